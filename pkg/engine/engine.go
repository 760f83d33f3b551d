// Package engine implements the search session controller behind one
// widget instance: debounced query and filter propagation, request
// sequencing with generation-tagged cancellation, facet reconciliation,
// the zero-result fallback, and the Initial/Cleared/Active state machine
// the view layer renders from.
//
// All state is owned by the Engine and mutated behind one mutex; the view
// layer only dispatches intents and reads Snapshot(). Network calls run in
// goroutines tagged with the generation current at issue time, and a
// response is discarded unless its tag still equals the latest issued
// generation when it resolves. That tag is the sole ordering primitive:
// a slower, earlier-issued request can never overwrite newer state.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/templateschile/kalifinder-search/pkg/backend"
	"github.com/templateschile/kalifinder-search/pkg/core"
	"github.com/templateschile/kalifinder-search/pkg/debounce"
	"github.com/templateschile/kalifinder-search/pkg/facets"
	"github.com/templateschile/kalifinder-search/pkg/filters"
	"github.com/templateschile/kalifinder-search/pkg/history"
	"github.com/templateschile/kalifinder-search/pkg/log"
	"github.com/templateschile/kalifinder-search/pkg/realtime"
)

// Config carries the tunables for one engine instance.
type Config struct {
	// PageSize is the number of products requested per page.
	PageSize int

	// InitialFetchLimit is the page size of the one-time unfiltered fetch
	// that captures global facet counts and the price ceiling.
	InitialFetchLimit int

	// DefaultMaxPrice seeds the price ceiling until the initial fetch
	// derives a real one.
	DefaultMaxPrice float64

	// QueryDebounce and FilterDebounce are the quiet periods for the two
	// independent debouncers.
	QueryDebounce  time.Duration
	FilterDebounce time.Duration

	// FallbackSort is the sort order of the zero-result fallback request.
	FallbackSort string

	// Messages configures the user-visible copy. The zero value uses the
	// defaults.
	Messages MessageConfig
}

func (c *Config) applyDefaults() {
	if c.PageSize <= 0 {
		c.PageSize = 12
	}
	if c.InitialFetchLimit <= 0 {
		c.InitialFetchLimit = 1000
	}
	if c.DefaultMaxPrice <= 0 {
		c.DefaultMaxPrice = 1000
	}
	if c.QueryDebounce <= 0 {
		c.QueryDebounce = 800 * time.Millisecond
	}
	if c.FilterDebounce <= 0 {
		c.FilterDebounce = 500 * time.Millisecond
	}
	if c.FallbackSort == "" {
		c.FallbackSort = backend.SortFeatured
	}
	c.Messages.applyDefaults()
}

// requestKey is the dedup key: a new search is only issued when the pair
// differs from the last successfully issued one, unless forced.
type requestKey struct {
	query   string
	filters string
}

// Engine is the controller for one widget instance. Construct with New,
// call Start once, dispatch intents, and Close on unmount.
type Engine struct {
	cfg     Config
	client  *backend.Client
	hub     *realtime.Hub
	recents *history.Store
	logger  *log.Logger

	baseCtx   context.Context
	baseStop  context.CancelFunc
	debQuery  *debounce.Debouncer[string]
	debFilter *debounce.Debouncer[string]

	mu             sync.Mutex
	instanceID     string
	phase          core.Phase
	hasSearched    bool
	query          string
	debouncedQuery string
	sort           string

	filterState *filters.State
	reconciler  *facets.Reconciler

	generation     uint64
	lastIssuedKey  requestKey
	hasIssued      bool
	cancelInFlight context.CancelFunc

	page               int
	products           []core.Product
	total              int
	hasMore            bool
	isLoading          bool
	isLoadingMore      bool
	message            string
	showingRecommended bool
	currency           string
	queryID            string
	visibleDims        []string

	suggestSession uint64
	suggestions    []string

	closed bool
}

// New constructs an engine for one widget instance. hub and recents may be
// nil; state broadcasting and history persistence are then disabled.
func New(cfg Config, client *backend.Client, hub *realtime.Hub, recents *history.Store) *Engine {
	cfg.applyDefaults()

	ctx, stop := context.WithCancel(context.Background())
	e := &Engine{
		cfg:         cfg,
		client:      client,
		hub:         hub,
		recents:     recents,
		logger:      log.ForComponent("engine"),
		baseCtx:     ctx,
		baseStop:    stop,
		instanceID:  uuid.New().String(),
		phase:       core.PhaseInitial,
		filterState: filters.NewState(cfg.DefaultMaxPrice),
		reconciler:  facets.NewReconciler(cfg.DefaultMaxPrice),
	}
	e.debQuery = debounce.New(cfg.QueryDebounce, e.onDebouncedQuery)
	e.debFilter = debounce.New(cfg.FilterDebounce, e.onDebouncedFilters)
	return e
}

// InstanceID returns the unique id of this widget instance.
func (e *Engine) InstanceID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instanceID
}

// Start kicks off the one-time initial fetches: the store's facet
// configuration and the unfiltered fetch that captures global facet
// counts, the price ceiling, and the recommendation products shown in the
// Initial phase. Failures are logged and leave defaults in place; neither
// fetch is retried automatically.
func (e *Engine) Start() {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.isLoading = true
	e.mu.Unlock()
	e.publish()

	go e.fetchConfiguredFacets()
	go e.runInitialFetch(gen)
}

// Close tears down timers and aborts in-flight requests. Dispatching
// intents after Close is a no-op.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.cancelInFlight != nil {
		e.cancelInFlight()
		e.cancelInFlight = nil
	}
	e.mu.Unlock()

	e.debQuery.Stop()
	e.debFilter.Stop()
	e.baseStop()
}

// Search dispatches a query-text change. The search itself fires once the
// query has been stable for the query debounce window.
func (e *Engine) Search(query string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.query = query
	if strings.TrimSpace(query) != "" {
		e.phase = core.PhaseActive
	} else if e.hasSearched {
		e.phase = core.PhaseCleared
	} else {
		e.phase = core.PhaseInitial
	}
	e.mu.Unlock()

	e.publish()
	e.debQuery.Set(query)
}

// ToggleFilter dispatches a filter toggle. Applying any filter from the
// Initial phase transitions to Active even with an empty query.
func (e *Engine) ToggleFilter(dim core.Dimension, value string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.filterState.Toggle(dim, value)
	if e.phase == core.PhaseInitial {
		e.phase = core.PhaseActive
	}
	serialized := e.filterState.Serialize()
	e.mu.Unlock()

	e.publish()
	e.debFilter.Set(serialized)
}

// SetPriceRange dispatches a wholesale price-range update. The range is
// treated as user-raised afterwards, so ceiling recomputes stop clamping
// it down.
func (e *Engine) SetPriceRange(min, max float64) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.filterState.SetPriceRange(min, max)
	if e.phase == core.PhaseInitial {
		e.phase = core.PhaseActive
	}
	serialized := e.filterState.Serialize()
	e.mu.Unlock()

	e.publish()
	e.debFilter.Set(serialized)
}

// SetSort switches the result sort order and forces a refresh.
func (e *Engine) SetSort(sort string) {
	e.mu.Lock()
	if e.closed || e.sort == sort {
		e.mu.Unlock()
		return
	}
	e.sort = sort
	e.triggerSearchLocked(true)
	e.mu.Unlock()
	e.publish()
}

// ClearAll resets every filter and the query, then forces a fresh search
// even though the resulting state equals the pristine one. Any pending
// debounced query text is discarded. The session counts as "has searched"
// so the view shows global facet counts rather than the Initial
// recommendations.
func (e *Engine) ClearAll() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.filterState.Clear(e.reconciler.MaxPrice())
	e.query = ""
	e.debouncedQuery = ""
	e.hasSearched = true
	e.phase = core.PhaseActive
	e.triggerSearchLocked(true)
	e.mu.Unlock()

	e.debQuery.Cancel()
	e.publish()
}

// LoadMore requests the next result page with identical query and
// filters, appending to the displayed list. Guarded against concurrent
// pagination and exhausted result sets.
func (e *Engine) LoadMore() {
	e.mu.Lock()
	if e.closed || e.isLoadingMore || e.isLoading || !e.hasMore {
		e.mu.Unlock()
		return
	}
	e.cancelInFlightLocked()
	e.generation++
	gen := e.generation
	e.page++
	e.isLoadingMore = true
	ctx := e.newRequestCtxLocked()
	req := e.buildRequestLocked(e.page, e.cfg.PageSize)
	e.mu.Unlock()

	e.publish()
	go e.runSearch(ctx, gen, req, true)
}

// SelectSuggestion applies an autocomplete suggestion: the search fires
// immediately (no debounce), any half-typed pending text is discarded,
// and the text is recorded in the recent-search history.
func (e *Engine) SelectSuggestion(text string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.query = text
	e.debouncedQuery = normalizeQuery(text)
	e.phase = core.PhaseActive
	e.suggestions = nil
	e.triggerSearchLocked(false)
	e.mu.Unlock()

	e.debQuery.Cancel()
	e.publish()
}

// onDebouncedQuery runs once the query text has been stable for the
// quiet period.
func (e *Engine) onDebouncedQuery(query string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if query != e.query {
		// An immediate intent (clear all, suggestion select) replaced the
		// query after this fire was armed; the text is stale.
		e.mu.Unlock()
		return
	}
	e.debouncedQuery = normalizeQuery(query)

	// An empty query in the Initial phase keeps showing recommendations;
	// nothing to search yet.
	if e.debouncedQuery == "" && e.phase == core.PhaseInitial && !e.filterState.AnyNonPriceActive() {
		e.mu.Unlock()
		return
	}
	e.triggerSearchLocked(false)
	e.mu.Unlock()
	e.publish()
}

// onDebouncedFilters runs once the serialized filter set has been stable
// for the quiet period.
func (e *Engine) onDebouncedFilters(string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.triggerSearchLocked(false)
	e.mu.Unlock()
	e.publish()
}

// Snapshot returns the read-only derived state for the view layer.
func (e *Engine) Snapshot() core.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() core.Snapshot {
	products := make([]core.Product, len(e.products))
	copy(products, e.products)

	suggestions := make([]string, len(e.suggestions))
	copy(suggestions, e.suggestions)

	return core.Snapshot{
		InstanceID:         e.instanceID,
		Phase:              e.phase,
		Query:              e.query,
		HasSearched:        e.hasSearched,
		Products:           products,
		Total:              e.total,
		HasMore:            e.hasMore,
		Page:               e.page,
		IsLoading:          e.isLoading,
		IsLoadingMore:      e.isLoadingMore,
		Message:            e.message,
		ShowingRecommended: e.showingRecommended,
		Filters:            e.filterState.Snapshot(),
		PriceRange:         e.filterState.PriceRange(),
		MaxPrice:           e.reconciler.MaxPrice(),
		FilteredMaxPrice:   e.reconciler.FilteredMaxPrice(),
		Counts:             e.reconciler.CountsSnapshot(),
		VisibleDimensions:  append([]string(nil), e.visibleDims...),
		Suggestions:        suggestions,
		Currency:           e.currency,
		QueryID:            e.queryID,
	}
}

// publish broadcasts the current snapshot to realtime listeners.
func (e *Engine) publish() {
	if e.hub == nil {
		return
	}
	e.hub.BroadcastState(e.InstanceID(), e.Snapshot())
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
