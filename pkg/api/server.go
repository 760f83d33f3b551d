// Package api exposes the search engine over HTTP: a JSON intent API the
// widget front end dispatches to, plus a websocket stream that pushes
// state snapshots as they change.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/templateschile/kalifinder-search/pkg/engine"
	"github.com/templateschile/kalifinder-search/pkg/log"
	"github.com/templateschile/kalifinder-search/pkg/realtime"
)

type Server struct {
	engine *engine.Engine
	hub    *realtime.Hub
	logger *log.Logger
}

func NewServer(eng *engine.Engine, hub *realtime.Hub) *Server {
	return &Server{
		engine: eng,
		hub:    hub,
		logger: log.ForComponent("api"),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
