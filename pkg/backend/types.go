package backend

import (
	"encoding/json"

	"github.com/templateschile/kalifinder-search/pkg/core"
)

// SearchRequest is the wire-level shape of one search call. The engine
// builds it from the current debounced query, filter selection and page.
type SearchRequest struct {
	Query string
	Page  int
	Limit int

	Categories  []string
	Brands      []string
	Colors      []string
	Sizes       []string
	Tags        []string
	StockStatus []string

	// PriceRange is [min, max]; nil means no price constraint.
	PriceRange *[2]float64

	// InSale / Featured are tri-state: nil means "don't filter".
	InSale   *bool
	Featured *bool

	Sort string
}

// SearchResponse is the typed search endpoint response. Facet
// aggregations stay raw so a malformed dimension degrades on its own
// instead of failing the whole decode.
type SearchResponse struct {
	Products           []core.Product             `json:"products"`
	Total              int                        `json:"total"`
	HasMore            bool                       `json:"hasMore"`
	Message            string                     `json:"message,omitempty"`
	ShowingRecommended bool                       `json:"showingRecommended,omitempty"`
	Facets             map[string]json.RawMessage `json:"facets,omitempty"`
	QueryID            string                     `json:"query_id,omitempty"`
	Currency           string                     `json:"currency,omitempty"`
}

// Suggestion is one autocomplete entry. Only the title is contractual;
// extra fields are preserved for the view.
type Suggestion struct {
	Title string         `json:"title"`
	Extra map[string]any `json:"-"`
}

// ConfiguredFacet describes one filter dimension the store has configured
// for the widget.
type ConfiguredFacet struct {
	Field   string `json:"field"`
	Visible bool   `json:"visible"`
}
