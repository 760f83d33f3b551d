// Package facets merges backend facet-bucket responses into per-dimension
// count maps. Each dimension keeps two parallel maps: a global map captured
// once from the unfiltered initial fetch, and a reactive map replaced
// wholesale on every search response with the backend's disjunctive
// counts. Stock/featured/sale counts are always displayed from the global
// map; category/brand/tag/color/size counts from the reactive map.
package facets

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/templateschile/kalifinder-search/pkg/core"
)

// Bucket is one facet value and its document count as returned by the
// backend aggregation. Key may be a string, number or boolean; DocCount is
// a pointer so a missing count can be told apart from zero.
type Bucket struct {
	Key         any    `json:"key"`
	KeyAsString string `json:"key_as_string,omitempty"`
	DocCount    *int   `json:"doc_count"`
}

// Stats carries the backend's numeric aggregate for a facet, currently
// only used for the price facet.
type Stats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

type aggregation struct {
	Buckets json.RawMessage `json:"buckets"`
	Stats   *Stats          `json:"stats,omitempty"`
}

// facetFields maps filter dimensions to the facet names used on the wire.
var facetFields = map[core.Dimension]string{
	core.DimCategories:  "categories",
	core.DimBrands:      "brands",
	core.DimColors:      "colors",
	core.DimSizes:       "sizes",
	core.DimTags:        "tags",
	core.DimStockStatus: "stock_status",
	core.DimFeatured:    "featured",
	core.DimSale:        "insale",
}

// FieldFor returns the wire-level facet name for a dimension.
func FieldFor(dim core.Dimension) string {
	return facetFields[dim]
}

// ParseDimensionCounts extracts the count map for one dimension from a
// raw facet payload. Missing or malformed aggregations yield an empty
// map.
func ParseDimensionCounts(payload map[string]json.RawMessage, dim core.Dimension) map[string]int {
	return parseCounts(payload[facetFields[dim]], isBooleanDimension(dim))
}

// Reconciler owns the global and reactive count maps plus the derived
// price ceilings. It is not safe for concurrent use; the engine serializes
// access.
type Reconciler struct {
	global   map[core.Dimension]map[string]int
	reactive map[core.Dimension]map[string]int

	defaultMaxPrice  float64
	maxPrice         float64
	filteredMaxPrice float64
	initialized      bool
}

// NewReconciler creates a reconciler whose price ceiling starts at
// defaultMaxPrice until the initial unfiltered fetch derives a real one.
func NewReconciler(defaultMaxPrice float64) *Reconciler {
	r := &Reconciler{defaultMaxPrice: defaultMaxPrice}
	r.Reset()
	return r
}

// Reset drops every count map and returns the price ceilings to the
// default. The next ApplyInitial repopulates the global maps.
func (r *Reconciler) Reset() {
	r.global = make(map[core.Dimension]map[string]int)
	r.reactive = make(map[core.Dimension]map[string]int)
	for _, dim := range core.SetDimensions() {
		r.global[dim] = make(map[string]int)
		r.reactive[dim] = make(map[string]int)
	}
	r.maxPrice = r.defaultMaxPrice
	r.filteredMaxPrice = r.defaultMaxPrice
	r.initialized = false
}

// Initialized reports whether the global maps have been captured.
func (r *Reconciler) Initialized() bool {
	return r.initialized
}

// ApplyInitial ingests the first, unfiltered facet response. Counts are
// written into both the reactive and the global maps; the global maps stay
// immutable afterwards until Reset. The global max price comes from the
// backend price stats (rounded up to the next multiple of 100) or, when
// absent, from the maximum observed product price with the same rounding.
func (r *Reconciler) ApplyInitial(payload map[string]json.RawMessage, products []core.Product) {
	r.ApplyGlobal(payload, products)
	for dim := range facetFields {
		r.reactive[dim] = copyCounts(r.global[dim])
	}
	r.filteredMaxPrice = r.maxPrice
}

// ApplyGlobal captures only the global maps and the global max price,
// leaving the reactive maps untouched. Used when the initial unfiltered
// fetch resolves after a user search has already populated reactive state.
func (r *Reconciler) ApplyGlobal(payload map[string]json.RawMessage, products []core.Product) {
	for dim, field := range facetFields {
		r.global[dim] = parseCounts(payload[field], isBooleanDimension(dim))
	}

	max := statsMax(payload["price"])
	if max <= 0 {
		max = maxProductPrice(products)
	}
	if max > 0 {
		r.maxPrice = roundUpTo(max, 100)
	}
	r.initialized = true
}

// ApplySearch ingests a per-search facet response. Only the reactive maps
// are overwritten; the stock/featured/sale reactive maps are still
// computed here but the display path never reads them (DisplayCounts
// serves those dimensions from the global maps). The filtered max price is
// recomputed from the current page's product prices, rounded up to the
// next multiple of 50.
func (r *Reconciler) ApplySearch(payload map[string]json.RawMessage, products []core.Product) {
	for dim, field := range facetFields {
		r.reactive[dim] = parseCounts(payload[field], isBooleanDimension(dim))
	}
	if max := maxProductPrice(products); max > 0 {
		r.filteredMaxPrice = roundUpTo(max, 50)
	}
}

// DisplayCounts returns the counts the view should show for a dimension:
// the global map for stock/featured/sale, the reactive map otherwise. The
// returned map is a copy.
func (r *Reconciler) DisplayCounts(dim core.Dimension) map[string]int {
	if core.IsStaticCountDimension(dim) {
		return copyCounts(r.global[dim])
	}
	return copyCounts(r.reactive[dim])
}

// GlobalCounts returns a copy of the global count map for a dimension.
func (r *Reconciler) GlobalCounts(dim core.Dimension) map[string]int {
	return copyCounts(r.global[dim])
}

// ReactiveCounts returns a copy of the reactive count map for a dimension.
func (r *Reconciler) ReactiveCounts(dim core.Dimension) map[string]int {
	return copyCounts(r.reactive[dim])
}

// CountsSnapshot returns the display counts for every dimension.
func (r *Reconciler) CountsSnapshot() map[core.Dimension]map[string]int {
	out := make(map[core.Dimension]map[string]int, len(facetFields))
	for dim := range facetFields {
		out[dim] = r.DisplayCounts(dim)
	}
	return out
}

// MaxPrice returns the global price ceiling.
func (r *Reconciler) MaxPrice() float64 {
	return r.maxPrice
}

// FilteredMaxPrice returns the ceiling derived from the latest filtered
// result page, used for the slider.
func (r *Reconciler) FilteredMaxPrice() float64 {
	return r.filteredMaxPrice
}

// parseCounts turns a raw aggregation into a count map. Missing or
// malformed facets (non-array buckets, a bucket without doc_count)
// degrade to an empty map; this function never fails.
func parseCounts(raw json.RawMessage, boolean bool) map[string]int {
	counts := make(map[string]int)
	if len(raw) == 0 {
		return counts
	}

	var agg aggregation
	if err := json.Unmarshal(raw, &agg); err != nil {
		return counts
	}
	if len(agg.Buckets) == 0 {
		return counts
	}

	var buckets []Bucket
	if err := json.Unmarshal(agg.Buckets, &buckets); err != nil {
		return counts
	}

	for _, b := range buckets {
		if b.DocCount == nil {
			return make(map[string]int)
		}
		var key string
		if boolean {
			truth, ok := resolveBool(b.Key)
			if !ok {
				// Unrecognized boolean form: dropped from the count.
				continue
			}
			key = strconv.FormatBool(truth)
		} else {
			key = resolveKey(b)
		}
		if key == "" {
			continue
		}
		counts[key] += *b.DocCount
	}
	return counts
}

// resolveKey prefers the raw key when it is a string; numeric and boolean
// keys prefer key_as_string when present and stringify otherwise.
func resolveKey(b Bucket) string {
	switch v := b.Key.(type) {
	case string:
		return v
	case float64:
		if b.KeyAsString != "" {
			return b.KeyAsString
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if b.KeyAsString != "" {
			return b.KeyAsString
		}
		return strconv.FormatBool(v)
	default:
		return b.KeyAsString
	}
}

// resolveBool maps a bucket key to true/false: native booleans, numeric
// 1/0, or the string forms "1"/"true" and "0"/"false" (case-insensitive).
// Anything else reports ok=false.
func resolveBool(key any) (value, ok bool) {
	switch v := key.(type) {
	case bool:
		return v, true
	case float64:
		if v == 1 {
			return true, true
		}
		if v == 0 {
			return false, true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true":
			return true, true
		case "0", "false":
			return false, true
		}
	}
	return false, false
}

func statsMax(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var agg aggregation
	if err := json.Unmarshal(raw, &agg); err != nil || agg.Stats == nil {
		return 0
	}
	return agg.Stats.Max
}

func maxProductPrice(products []core.Product) float64 {
	var max float64
	for _, p := range products {
		if p.Price > max {
			max = p.Price
		}
	}
	return max
}

func roundUpTo(v, step float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Ceil(v/step) * step
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func isBooleanDimension(dim core.Dimension) bool {
	for _, d := range core.BooleanDimensions() {
		if d == dim {
			return true
		}
	}
	return false
}
