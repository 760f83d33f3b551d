package core

// Phase is the top-level state of one search session, consumed by the
// view layer to decide what to render.
type Phase string

const (
	// PhaseInitial: empty query, never searched. The view shows
	// recommendations and hides the filter sidebar.
	PhaseInitial Phase = "initial"

	// PhaseCleared: the query was cleared after having searched. The view
	// shows all products and keeps the filter sidebar.
	PhaseCleared Phase = "cleared"

	// PhaseActive: a non-empty query or at least one filter is applied.
	PhaseActive Phase = "active"
)

// Snapshot is the read-only derived state handed to the view layer.
// It is a value copy; mutating it has no effect on the engine.
type Snapshot struct {
	InstanceID string `json:"instance_id"`
	Phase      Phase  `json:"phase"`

	Query       string `json:"query"`
	HasSearched bool   `json:"has_searched"`

	Products           []Product `json:"products"`
	Total              int       `json:"total"`
	HasMore            bool      `json:"has_more"`
	Page               int       `json:"page"`
	IsLoading          bool      `json:"is_loading"`
	IsLoadingMore      bool      `json:"is_loading_more"`
	Message            string    `json:"message,omitempty"`
	ShowingRecommended bool      `json:"showing_recommended"`

	Filters          map[Dimension][]string `json:"filters"`
	PriceRange       [2]float64             `json:"price_range"`
	MaxPrice         float64                `json:"max_price"`
	FilteredMaxPrice float64                `json:"filtered_max_price"`

	// Counts holds the per-dimension facet counts the view should display:
	// global counts for stock/featured/sale, reactive counts elsewhere.
	Counts map[Dimension]map[string]int `json:"counts"`

	// VisibleDimensions lists the dimensions the store has configured the
	// widget to expose, in backend order. Empty means "show everything".
	VisibleDimensions []string `json:"visible_dimensions,omitempty"`

	Suggestions []string `json:"suggestions,omitempty"`

	Currency string `json:"currency,omitempty"`
	QueryID  string `json:"query_id,omitempty"`
}
