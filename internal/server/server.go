// Package server sets up the HTTP router, middleware, and public request
// handlers: POST /v1/chat/completions, POST /v1/cancel, GET /v1/models.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/deepgate/deepgate/internal/config"
	"github.com/deepgate/deepgate/internal/dispatcher"
	"github.com/deepgate/deepgate/internal/metrics"
	"github.com/deepgate/deepgate/internal/store"
)

// Server holds the HTTP router and all dependencies the public handlers
// need.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	disp    *dispatcher.Dispatcher
	repo    store.Repository
	metrics *metrics.Collectors // nil disables metrics recording
}

// New creates a Server, wires up routes and middleware, and returns it
// ready to use as an http.Handler. collectors may be nil to disable
// per-request metrics recording.
func New(cfg *config.Config, disp *dispatcher.Dispatcher, repo store.Repository, collectors *metrics.Collectors) *Server {
	s := &Server{cfg: cfg, disp: disp, repo: repo, metrics: collectors}
	s.routes()
	return s
}

// routes builds the chi router with all middleware and route definitions.
func (s *Server) routes() {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/v1/models", s.withAuth(s.handleListModels))
	r.Post("/v1/chat/completions", s.withAuth(s.handleChatCompletions))
	r.Post("/v1/cancel", s.withAuth(s.handleCancel))

	s.router = r
}

// ServeHTTP makes Server satisfy the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
