package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/templateschile/kalifinder-search/pkg/backend"
	"github.com/templateschile/kalifinder-search/pkg/core"
)

// MessageConfig holds the user-visible copy for the zero-result fallback.
// The decision tree (which filters contribute to the description) is
// fixed; only the phrasing is configurable.
type MessageConfig struct {
	// NoResultsFormat must contain one %s verb receiving the filter
	// description.
	NoResultsFormat string
}

func (m *MessageConfig) applyDefaults() {
	if m.NoResultsFormat == "" {
		m.NoResultsFormat = `No results found for %s. Showing popular products instead.`
	}
}

// runFallback handles a zero-result response under active filters: one
// unfiltered popularity-sorted request substitutes the displayed set while
// total stays 0, so counts still reflect "no exact matches". A failed or
// empty fallback leaves the zero-result state as-is. This never loops.
func (e *Engine) runFallback(ctx context.Context, gen uint64, description string) {
	req := backend.SearchRequest{
		Page:  1,
		Limit: e.cfg.PageSize,
		Sort:  e.cfg.FallbackSort,
	}

	resp, err := e.client.Search(ctx, req)

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return
	}
	if err != nil {
		if !backend.IsAbort(err) {
			e.logger.Warnf("zero-result fallback failed: %v", err)
		}
		e.mu.Unlock()
		return
	}
	if len(resp.Products) == 0 {
		e.mu.Unlock()
		return
	}

	e.products = resp.Products
	e.total = 0
	e.hasMore = false
	e.showingRecommended = true
	e.message = fmt.Sprintf(e.cfg.Messages.NoResultsFormat, description)
	e.mu.Unlock()
	e.publish()
}

// descDim describes how one dimension contributes to the fallback
// message.
type descDim struct {
	dim      core.Dimension
	singular string
	plural   string
	// fixed replaces value-based phrasing for dimensions whose selection
	// reads as a single condition ("on sale", "featured").
	fixed string
}

var descOrder = []descDim{
	{dim: core.DimCategories, singular: "category", plural: "categories"},
	{dim: core.DimBrands, singular: "brand", plural: "brands"},
	{dim: core.DimColors, singular: "color", plural: "colors"},
	{dim: core.DimSizes, singular: "size", plural: "sizes"},
	{dim: core.DimTags, singular: "tag", plural: "tags"},
	{dim: core.DimStockStatus, singular: "availability", plural: "availability filters"},
	{dim: core.DimFeatured, fixed: "featured"},
	{dim: core.DimSale, fixed: "on sale"},
}

// DescribeFilters renders the active filter selection as a human-readable
// description, e.g. `category "Shoes", 2 brands, on sale`. Dimensions
// appear in a fixed order; empty dimensions are skipped.
func DescribeFilters(selection map[core.Dimension][]string) string {
	var parts []string
	for _, d := range descOrder {
		values := selection[d.dim]
		if len(values) == 0 {
			continue
		}
		switch {
		case d.fixed != "":
			parts = append(parts, d.fixed)
		case len(values) == 1:
			parts = append(parts, fmt.Sprintf("%s %q", d.singular, humanizeValue(values[0])))
		default:
			parts = append(parts, fmt.Sprintf("%d %s", len(values), d.plural))
		}
	}
	if len(parts) == 0 {
		return "the selected filters"
	}
	return strings.Join(parts, ", ")
}

func humanizeValue(v string) string {
	return strings.ReplaceAll(v, "_", " ")
}
