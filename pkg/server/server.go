// Package server exposes the graph store facade over a local HTTP API.
// This is the transport the UI shell talks to; it adds no semantics of
// its own beyond mapping facade errors onto status codes.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/noospace/noospace/pkg/config"
	"github.com/noospace/noospace/pkg/store"
)

// Server represents the HTTP server
type Server struct {
	config *config.Config
	store  *store.Store
	logger zerolog.Logger
	router *chi.Mux
}

// New creates a new server instance
func New(cfg *config.Config, st *store.Store, logger zerolog.Logger) *Server {
	s := &Server{
		config: cfg,
		store:  st,
		logger: logger,
		router: chi.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// Health check
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/version", s.handleVersion)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.handleState)

		// Spaces
		r.Get("/spaces", s.handleListSpaces)
		r.Post("/spaces", s.handleCreateSpace)
		r.Patch("/spaces/{id}", s.handleRenameSpace)
		r.Delete("/spaces/{id}", s.handleDeleteSpace)
		r.Post("/spaces/{id}/activate", s.handleActivateSpace)

		// Nodes and edges
		r.Post("/nodes", s.handleCreateNode)
		r.Patch("/nodes/{id}", s.handleUpdateNode)
		r.Delete("/nodes/{id}", s.handleDeleteNode)
		r.Post("/nodes/{id}/select", s.handleSelectNode)
		r.Post("/edges", s.handleLinkNodes)
		r.Delete("/edges/{id}", s.handleUnlinkNodes)
		r.Get("/edges/visible", s.handleVisibleEdges)

		// View
		r.Patch("/view", s.handleUpdateView)
		r.Post("/view/reset", s.handleResetView)

		// Derived reads and transfer
		r.Get("/search", s.handleSearch)
		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info().Str("addr", addr).Msg("Starting server")
	return http.ListenAndServe(addr, s.router)
}

// Handler returns the HTTP handler (useful for testing)
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": config.Version,
	})
}

// handleVersion returns server version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"version": config.Version,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"status":  status,
		},
	})
}

// writeStoreError maps facade errors onto HTTP status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrSpaceNotFound), errors.Is(err, store.ErrTemplateNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrNoActiveSpace):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error().Err(err).Msg("Store operation failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
