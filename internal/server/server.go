// Package server provides the HTTP API for legal and investigation questions.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"legal-rag/internal/config"
	"legal-rag/internal/models"
	"legal-rag/internal/rag"
)

// Answerer is the question answering surface of rag.App.
type Answerer interface {
	Answer(ctx context.Context, corpusID, question string) (models.PromptResponse, error)
	Health() []rag.PipelineHealth
}

// Server is the HTTP server for Service A.
type Server struct {
	app    Answerer
	db     *bun.DB
	config *config.ServerConfig
	server *http.Server
}

// NewServer creates a server. db may be nil, which disables the query log.
func NewServer(app Answerer, db *bun.DB, cfg *config.ServerConfig) *Server {
	return &Server{app: app, db: db, config: cfg}
}

// Handler builds the router with its middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("req_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(s.config.AllowedOrigins)))

	r.Post("/qa", s.handleQA)
	r.Post("/investigation", s.handleInvestigation)
	r.Get("/health", s.handleHealth)
	r.Get("/history", s.handleHistory)
	r.Get("/history/{id}", s.handleGetHistory)
	return r
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("addr", addr).Msg("Starting server")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
