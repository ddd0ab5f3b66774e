package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"legal-rag/internal/config"
	"legal-rag/internal/db"
	"legal-rag/internal/models"
)

const statusMessage = "Corruption Reporting Assistant API is running"

type userRequest struct {
	Question string `json:"question"`
}

type userResponse struct {
	Answer string  `json:"answer"`
	Status string  `json:"status"`
	Error  *string `json:"error"`
}

// Server is the HTTP server for the reporting assistant.
type Server struct {
	assistant *Assistant
	db        *bun.DB
	config    *config.AssistantConfig
	origins   []string
	server    *http.Server
}

// NewServer creates a server. queryDB may be nil, which disables the query log.
func NewServer(a *Assistant, queryDB *bun.DB, cfg *config.AssistantConfig, allowedOrigins []string) *Server {
	return &Server{assistant: a, db: queryDB, config: cfg, origins: allowedOrigins}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("req_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	r.Get("/", s.handleRoot)
	r.Post("/user", s.handleUser)
	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "active", "message": statusMessage})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondFailure(w, fmt.Errorf("%w: invalid request body", models.ErrInvalidInput))
		return
	}

	start := time.Now()
	answer, err := s.assistant.Guide(r.Context(), req.Question)
	s.recordQuery(r, &db.QueryLog{
		QueryType:  models.QueryTypeAssistant,
		Question:   strings.TrimSpace(req.Question),
		Answer:     answer,
		Error:      errString(err),
		DurationMs: time.Since(start).Milliseconds(),
	})
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("guidance failed")
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, userResponse{Answer: answer, Status: "success"})
}

// recordQuery stores a history entry. Failures are only logged.
func (s *Server) recordQuery(r *http.Request, entry *db.QueryLog) {
	if s.db == nil || entry.Question == "" {
		return
	}
	if err := db.StoreQuery(context.WithoutCancel(r.Context()), s.db, entry); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("failed to record query")
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func respondFailure(w http.ResponseWriter, err error) {
	msg := err.Error()
	respondJSON(w, statusFor(err), userResponse{Status: "error", Error: &msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrRemoteCall):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("addr", addr).Str("rag_api_url", s.config.RAGAPIURL).Msg("Starting assistant")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
