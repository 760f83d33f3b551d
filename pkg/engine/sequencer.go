package engine

import (
	"context"

	"github.com/templateschile/kalifinder-search/pkg/backend"
	"github.com/templateschile/kalifinder-search/pkg/core"
)

// triggerSearchLocked issues a fresh page-1 search for the current
// debounced query and filter selection. Callers hold e.mu.
//
// The dedup guard skips issuing entirely when the (normalized query,
// serialized filters) pair equals the last successfully issued pair and
// the trigger is not forced. Otherwise any in-flight request is aborted,
// the generation counter advances, and the new request is issued tagged
// with the captured generation.
func (e *Engine) triggerSearchLocked(force bool) {
	key := requestKey{query: e.debouncedQuery, filters: e.filterState.Serialize()}
	if !force && e.hasIssued && key == e.lastIssuedKey {
		e.logger.Debugf("dedup: skipping identical search %q", key.query)
		return
	}
	e.lastIssuedKey = key
	e.hasIssued = true

	e.cancelInFlightLocked()
	e.generation++
	gen := e.generation

	e.page = 1
	e.isLoading = true
	e.isLoadingMore = false
	e.message = ""
	e.showingRecommended = false

	if key.query != "" {
		e.hasSearched = true
		e.recordRecentSearch(key.query)
	}

	ctx := e.newRequestCtxLocked()
	req := e.buildRequestLocked(1, e.cfg.PageSize)

	e.logger.Debugf("search issued gen=%d q=%q", gen, key.query)
	go e.runSearch(ctx, gen, req, false)
}

// cancelInFlightLocked aborts the previous primary search, if any.
// Callers hold e.mu.
func (e *Engine) cancelInFlightLocked() {
	if e.cancelInFlight != nil {
		e.cancelInFlight()
		e.cancelInFlight = nil
	}
}

func (e *Engine) newRequestCtxLocked() context.Context {
	ctx, cancel := context.WithCancel(e.baseCtx)
	e.cancelInFlight = cancel
	return ctx
}

// buildRequestLocked assembles the wire request from the current
// debounced query, filter selection and page. Callers hold e.mu.
func (e *Engine) buildRequestLocked(page, limit int) backend.SearchRequest {
	req := backend.SearchRequest{
		Query:       e.debouncedQuery,
		Page:        page,
		Limit:       limit,
		Categories:  e.filterState.Values(core.DimCategories),
		Brands:      e.filterState.Values(core.DimBrands),
		Colors:      e.filterState.Values(core.DimColors),
		Sizes:       e.filterState.Values(core.DimSizes),
		Tags:        e.filterState.Values(core.DimTags),
		StockStatus: e.filterState.Values(core.DimStockStatus),
		Sort:        e.sort,
	}

	// The price range only constrains the search once the user moved the
	// slider; the auto-clamped ceiling is a display concern, not a filter.
	if e.filterState.PriceTouched() {
		pr := e.filterState.PriceRange()
		req.PriceRange = &pr
	}

	req.Featured = boolSelection(e.filterState.Values(core.DimFeatured))
	req.InSale = boolSelection(e.filterState.Values(core.DimSale))
	return req
}

// boolSelection reduces a boolean dimension's set to a tri-state wire
// value: exactly one selected value filters, anything else doesn't.
func boolSelection(values []string) *bool {
	if len(values) != 1 {
		return nil
	}
	v := values[0] == "true"
	return &v
}

// runSearch executes one tagged request and applies its response unless
// superseded. appendPage distinguishes pagination from a fresh search.
func (e *Engine) runSearch(ctx context.Context, gen uint64, req backend.SearchRequest, appendPage bool) {
	resp, err := e.client.Search(ctx, req)

	e.mu.Lock()
	if gen != e.generation {
		// Superseded: only the most recently issued request's response may
		// mutate result state.
		e.mu.Unlock()
		return
	}

	if err != nil {
		if backend.IsAbort(err) {
			e.mu.Unlock()
			return
		}
		e.logger.Errorf("search failed: %v", err)
		e.products = nil
		e.total = 0
		e.hasMore = false
		e.isLoading = false
		e.isLoadingMore = false
		e.mu.Unlock()
		e.publish()
		return
	}

	if appendPage {
		e.products = append(e.products, resp.Products...)
		e.isLoadingMore = false
	} else {
		e.products = resp.Products
		e.isLoading = false
	}
	e.total = resp.Total
	e.hasMore = resp.HasMore
	if resp.Currency != "" {
		e.currency = resp.Currency
	}
	if resp.QueryID != "" {
		e.queryID = resp.QueryID
	}
	if resp.Message != "" {
		e.message = resp.Message
	}
	if resp.ShowingRecommended {
		e.showingRecommended = true
	}

	e.reconciler.ApplySearch(resp.Facets, resp.Products)
	if !e.filterState.PriceTouched() {
		e.filterState.ResetPriceRange(e.reconciler.FilteredMaxPrice())
	}

	// Zero-result fallback: only for fresh searches with at least one
	// non-price filter active.
	if !appendPage && resp.Total == 0 && e.filterState.AnyNonPriceActive() {
		description := DescribeFilters(e.filterState.Snapshot())
		e.mu.Unlock()
		e.publish()
		e.runFallback(ctx, gen, description)
		return
	}

	e.mu.Unlock()
	e.publish()
}

// runInitialFetch performs the one-time unfiltered fetch that seeds the
// global facet maps, the price ceiling, and the Initial-phase
// recommendations. A failure leaves defaults in place and is not retried.
func (e *Engine) runInitialFetch(gen uint64) {
	req := backend.SearchRequest{
		Page:  1,
		Limit: e.cfg.InitialFetchLimit,
		Sort:  e.cfg.FallbackSort,
	}

	resp, err := e.client.Search(e.baseCtx, req)

	e.mu.Lock()
	if err != nil {
		if !backend.IsAbort(err) {
			e.logger.Errorf("initial facet fetch failed: %v", err)
		}
		if gen == e.generation {
			e.isLoading = false
		}
		e.mu.Unlock()
		e.publish()
		return
	}

	if gen != e.generation {
		// The user searched before the initial fetch resolved. Capture the
		// global maps and ceiling, but leave result state alone.
		e.reconciler.ApplyGlobal(resp.Facets, resp.Products)
		if !e.filterState.PriceTouched() {
			e.filterState.ResetPriceRange(e.reconciler.MaxPrice())
		}
		e.mu.Unlock()
		e.publish()
		return
	}

	e.reconciler.ApplyInitial(resp.Facets, resp.Products)
	if !e.filterState.PriceTouched() {
		e.filterState.ResetPriceRange(e.reconciler.MaxPrice())
	}

	products := resp.Products
	if len(products) > e.cfg.PageSize {
		products = products[:e.cfg.PageSize]
	}
	e.products = products
	e.total = resp.Total
	e.hasMore = false
	e.showingRecommended = true
	e.isLoading = false
	e.mu.Unlock()
	e.publish()
}

// fetchConfiguredFacets loads which filter dimensions the store exposes.
func (e *Engine) fetchConfiguredFacets() {
	configured, err := e.client.ConfiguredFacets(e.baseCtx)
	if err != nil {
		if !backend.IsAbort(err) {
			e.logger.Warnf("configured facets fetch failed: %v", err)
		}
		return
	}

	visible := make([]string, 0, len(configured))
	for _, f := range configured {
		if f.Visible {
			visible = append(visible, f.Field)
		}
	}

	e.mu.Lock()
	e.visibleDims = visible
	e.mu.Unlock()
	e.publish()
}

// recordRecentSearch persists a search string off the lock path.
func (e *Engine) recordRecentSearch(query string) {
	if e.recents == nil {
		return
	}
	go func() {
		if err := e.recents.Add(query); err != nil {
			e.logger.Warnf("recording recent search: %v", err)
		}
	}()
}
