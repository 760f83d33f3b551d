package api

import (
	"time"

	"github.com/templateschile/kalifinder-search/pkg/core"
)

type StateResponse struct {
	State core.Snapshot `json:"state"`
}

type SearchRequest struct {
	Query string `json:"query"`
}

type ToggleFilterRequest struct {
	Dimension string `json:"dimension"`
	Value     string `json:"value"`
}

type PriceRangeRequest struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type SortRequest struct {
	Sort string `json:"sort"`
}

type SelectSuggestionRequest struct {
	Text string `json:"text"`
}

type SuggestResponse struct {
	Query       string   `json:"query"`
	Suggestions []string `json:"suggestions"`
	Count       int      `json:"count"`
	// Stale marks a response superseded by a newer suggest call; the
	// client should discard it.
	Stale bool `json:"stale,omitempty"`
}

type HistoryResponse struct {
	Searches []string `json:"searches"`
	Count    int      `json:"count"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}
