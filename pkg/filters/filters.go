// Package filters holds the user-selected filter set for one search
// session: a string set per dimension plus a numeric price range. The
// state is owned by the engine and must only be mutated through its
// dispatch surface; none of the operations here take a lock.
package filters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/templateschile/kalifinder-search/pkg/core"
)

// State is the complete filter selection. All operations are total
// functions over the in-memory state; there are no error conditions.
type State struct {
	sets         map[core.Dimension]map[string]struct{}
	priceRange   [2]float64
	priceTouched bool
}

// NewState creates an empty filter state with the price range spanning
// [0, maxPrice].
func NewState(maxPrice float64) *State {
	s := &State{
		sets: make(map[core.Dimension]map[string]struct{}),
	}
	for _, dim := range core.SetDimensions() {
		s.sets[dim] = make(map[string]struct{})
	}
	s.priceRange = [2]float64{0, maxPrice}
	return s
}

// Toggle adds value to the dimension's set if absent, removes it if
// present. Unknown dimensions are ignored.
func (s *State) Toggle(dim core.Dimension, value string) {
	set, ok := s.sets[dim]
	if !ok {
		return
	}
	if _, exists := set[value]; exists {
		delete(set, value)
	} else {
		set[value] = struct{}{}
	}
}

// Replace swaps a dimension's selection wholesale.
func (s *State) Replace(dim core.Dimension, values []string) {
	set, ok := s.sets[dim]
	if !ok {
		return
	}
	for v := range set {
		delete(set, v)
	}
	for _, v := range values {
		set[v] = struct{}{}
	}
}

// SetPriceRange replaces the price range wholesale, normalizing so that
// min <= max and min >= 0. The range counts as user-set afterwards.
func (s *State) SetPriceRange(min, max float64) {
	if min < 0 {
		min = 0
	}
	if max < min {
		min, max = max, min
	}
	s.priceRange = [2]float64{min, max}
	s.priceTouched = true
}

// PriceTouched reports whether the user set the price range explicitly.
// An untouched range tracks the known ceiling and never reaches the wire.
func (s *State) PriceTouched() bool {
	return s.priceTouched
}

// PriceRange returns the current [min, max] selection.
func (s *State) PriceRange() [2]float64 {
	return s.priceRange
}

// Clear resets every dimension to empty and the price range to
// [0, currentMaxPrice], untouched again.
func (s *State) Clear(currentMaxPrice float64) {
	for dim, set := range s.sets {
		for v := range set {
			delete(set, v)
		}
		s.sets[dim] = set
	}
	s.priceRange = [2]float64{0, currentMaxPrice}
	s.priceTouched = false
}

// ResetPriceRange re-clamps the price range to [0, maxPrice] without
// touching any other dimension. Used when the known maximum price changes
// (e.g. a filtered max-price recompute) so the slider ceiling stays valid.
func (s *State) ResetPriceRange(maxPrice float64) {
	if maxPrice < 0 {
		maxPrice = 0
	}
	s.priceRange = [2]float64{0, maxPrice}
}

// Has reports whether value is selected in the given dimension.
func (s *State) Has(dim core.Dimension, value string) bool {
	set, ok := s.sets[dim]
	if !ok {
		return false
	}
	_, exists := set[value]
	return exists
}

// Values returns the dimension's selection sorted lexicographically.
// Insertion order carries no meaning.
func (s *State) Values(dim core.Dimension) []string {
	set, ok := s.sets[dim]
	if !ok || len(set) == 0 {
		return nil
	}
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// AnyActive reports whether any dimension is non-empty, the price range
// differs from the full [0, maxPrice] span, or the query is non-empty.
func (s *State) AnyActive(query string, maxPrice float64) bool {
	if strings.TrimSpace(query) != "" {
		return true
	}
	if s.priceRange[0] != 0 || s.priceRange[1] != maxPrice {
		return true
	}
	return s.AnyNonPriceActive()
}

// AnyNonPriceActive reports whether at least one set-valued dimension has
// a selection. The zero-result fallback triggers on this, deliberately
// ignoring the price range.
func (s *State) AnyNonPriceActive() bool {
	for _, set := range s.sets {
		if len(set) > 0 {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the selection per dimension, values sorted.
// Only non-empty dimensions are included.
func (s *State) Snapshot() map[core.Dimension][]string {
	out := make(map[core.Dimension][]string)
	for dim := range s.sets {
		if values := s.Values(dim); len(values) > 0 {
			out[dim] = values
		}
	}
	return out
}

// Serialize produces a canonical string for the full selection, suitable
// as the dedup half of a request key. Dimensions appear in fixed order
// and values are sorted, so two equal selections always serialize
// identically regardless of toggle order. The price pair participates
// only once the user set it; an untouched range tracks the response
// ceiling and never constrains a request.
func (s *State) Serialize() string {
	var b strings.Builder
	for i, dim := range core.SetDimensions() {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(string(dim))
		b.WriteByte('=')
		b.WriteString(strings.Join(s.Values(dim), ","))
	}
	if s.priceTouched {
		fmt.Fprintf(&b, "|price=%g-%g", s.priceRange[0], s.priceRange[1])
	}
	return b.String()
}
