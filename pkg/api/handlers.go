package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/templateschile/kalifinder-search/pkg/core"
	"github.com/templateschile/kalifinder-search/pkg/version"
)

// HandleState returns the current snapshot. Intent handlers return the
// snapshot current at dispatch time; the websocket stream carries the
// post-debounce updates.
func (s *Server) HandleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, StateResponse{State: s.engine.Snapshot()})
}

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	s.engine.Search(req.Query)
	s.writeJSON(w, http.StatusOK, StateResponse{State: s.engine.Snapshot()})
}

func (s *Server) HandleToggleFilter(w http.ResponseWriter, r *http.Request) {
	var req ToggleFilterRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	dim, ok := core.ParseDimension(req.Dimension)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "Unknown dimension", fmt.Sprintf("Dimension '%s' does not exist", req.Dimension))
		return
	}
	if req.Value == "" {
		s.writeError(w, http.StatusBadRequest, "Missing value", "Filter value is required")
		return
	}

	s.engine.ToggleFilter(dim, req.Value)
	s.writeJSON(w, http.StatusOK, StateResponse{State: s.engine.Snapshot()})
}

func (s *Server) HandlePriceRange(w http.ResponseWriter, r *http.Request) {
	var req PriceRangeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	s.engine.SetPriceRange(req.Min, req.Max)
	s.writeJSON(w, http.StatusOK, StateResponse{State: s.engine.Snapshot()})
}

func (s *Server) HandleSort(w http.ResponseWriter, r *http.Request) {
	var req SortRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Sort == "" {
		s.writeError(w, http.StatusBadRequest, "Missing sort", "Sort order is required")
		return
	}

	s.engine.SetSort(req.Sort)
	s.writeJSON(w, http.StatusOK, StateResponse{State: s.engine.Snapshot()})
}

func (s *Server) HandleClearAll(w http.ResponseWriter, r *http.Request) {
	s.engine.ClearAll()
	s.writeJSON(w, http.StatusOK, StateResponse{State: s.engine.Snapshot()})
}

func (s *Server) HandleLoadMore(w http.ResponseWriter, r *http.Request) {
	s.engine.LoadMore()
	s.writeJSON(w, http.StatusOK, StateResponse{State: s.engine.Snapshot()})
}

func (s *Server) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "Missing query parameter", "Query parameter 'q' is required")
		return
	}

	suggestions, current, err := s.engine.Suggest(r.Context(), query)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Suggest failed", err.Error())
		return
	}

	response := SuggestResponse{
		Query:       query,
		Suggestions: suggestions,
		Count:       len(suggestions),
		Stale:       !current,
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) HandleSelectSuggestion(w http.ResponseWriter, r *http.Request) {
	var req SelectSuggestionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "Missing text", "Suggestion text is required")
		return
	}

	s.engine.SelectSuggestion(req.Text)
	s.writeJSON(w, http.StatusOK, StateResponse{State: s.engine.Snapshot()})
}

func (s *Server) HandleHistory(w http.ResponseWriter, r *http.Request) {
	searches, err := s.engine.RecentSearches()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to load history", err.Error())
		return
	}

	response := HistoryResponse{
		Searches: searches,
		Count:    len(searches),
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ClearRecentSearches(); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to clear history", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, HistoryResponse{Searches: []string{}, Count: 0})
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, health)
}

func decodeBody(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
