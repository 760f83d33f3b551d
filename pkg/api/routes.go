package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// API routes with method-specific routing
	mux.HandleFunc("GET /api/state", s.HandleState)
	mux.HandleFunc("POST /api/search", s.HandleSearch)
	mux.HandleFunc("POST /api/filters/toggle", s.HandleToggleFilter)
	mux.HandleFunc("POST /api/filters/price", s.HandlePriceRange)
	mux.HandleFunc("POST /api/sort", s.HandleSort)
	mux.HandleFunc("POST /api/clear", s.HandleClearAll)
	mux.HandleFunc("POST /api/loadmore", s.HandleLoadMore)
	mux.HandleFunc("GET /api/suggest", s.HandleSuggest)
	mux.HandleFunc("POST /api/suggestions/select", s.HandleSelectSuggestion)
	mux.HandleFunc("GET /api/history", s.HandleHistory)
	mux.HandleFunc("DELETE /api/history", s.HandleClearHistory)
	mux.HandleFunc("GET /api/stream", s.HandleStream)
	mux.HandleFunc("GET /health", s.HandleHealth)
}
