// Package server provides the HTTP API for tsunagu.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/tsunagu/internal/config"
	"github.com/hyperjump/tsunagu/internal/importer"
	"github.com/hyperjump/tsunagu/internal/search"
)

// Server is the HTTP server for the tsunagu API.
type Server struct {
	engine   *search.Engine
	importer *importer.Importer
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(engine *search.Engine, imp *importer.Importer, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		engine:   engine,
		importer: imp,
		config:   cfg,
		logger:   logger,
	}
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/context/{chunkID}", s.handleContext)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Get("/api/v1/categories", s.handleCategories)
	r.Get("/api/v1/categories/{category}/documents", s.handleCategoryDocuments)
	r.Get("/api/v1/stats", s.handleStats)
	r.Post("/api/v1/import", s.handleImport)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
