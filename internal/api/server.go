// Package api exposes the metrics HTTP surface: a thin request/response
// mapping over the metrics controller.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/user/ghevents/internal/metrics"
)

// Server holds the HTTP handlers for the metrics API.
type Server struct {
	ctrl *metrics.Controller
}

// NewServer creates a new API server.
func NewServer(ctrl *metrics.Controller) *Server {
	return &Server{ctrl: ctrl}
}

// Router builds the chi router with all endpoints mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Route("/metrics", func(r chi.Router) {
		r.Get("/avg-time", s.handleAvgTime)
		r.Get("/count", s.handleCount)
		r.Get("/repositories", s.handleRepositories)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
