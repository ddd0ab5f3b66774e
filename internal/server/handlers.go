package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"legal-rag/internal/db"
	"legal-rag/internal/models"
)

type questionRequest struct {
	Question string `json:"question"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) handleQA(w http.ResponseWriter, r *http.Request) {
	s.answer(w, r, models.CorpusLegalQA, models.QueryTypeLegalQA)
}

func (s *Server) handleInvestigation(w http.ResponseWriter, r *http.Request) {
	s.answer(w, r, models.CorpusInvestigation, models.QueryTypeInvestigation)
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request, corpusID, queryType string) {
	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}

	logger := hlog.FromRequest(r)
	logger.Debug().Str("corpus", corpusID).Str("question", question).Msg("answer request")

	ctx := r.Context()
	if s.config.TimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.config.TimeoutSecs)*time.Second)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.app.Answer(ctx, corpusID, question)
	s.recordQuery(r.Context(), &db.QueryLog{
		QueryType:  queryType,
		Question:   question,
		Answer:     resp.Content,
		Sources:    resp.Sources,
		Error:      errString(err),
		DurationMs: time.Since(start).Milliseconds(),
	})
	if err != nil {
		logger.Error().Err(err).Str("corpus", corpusID).Msg("answer failed")
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, answerResponse{Answer: resp.Content})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":                             "healthy",
		"qa_database_initialized":            false,
		"qa_chain_initialized":               false,
		"investigation_database_initialized": false,
		"investigation_chain_initialized":    false,
	}
	pipelines := s.app.Health()
	for _, p := range pipelines {
		prefix := healthPrefix(p.CorpusID)
		resp[prefix+"_database_initialized"] = p.Index == "ready"
		resp[prefix+"_chain_initialized"] = p.Chain == "ready"
	}
	resp["pipelines"] = pipelines
	s.respondJSON(w, http.StatusOK, resp)
}

func healthPrefix(corpusID string) string {
	if corpusID == models.CorpusLegalQA {
		return "qa"
	}
	return strings.ReplaceAll(corpusID, "-", "_")
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.respondError(w, http.StatusNotImplemented, "query history is disabled")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	logs, err := db.ListQueries(r.Context(), s.db, r.URL.Query().Get("type"), limit)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list history failed")
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"history": logs})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.respondError(w, http.StatusNotImplemented, "query history is disabled")
		return
	}
	entry, err := db.GetQuery(r.Context(), s.db, chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, entry)
}

// recordQuery stores a history entry. Failures are only logged.
func (s *Server) recordQuery(ctx context.Context, entry *db.QueryLog) {
	if s.db == nil {
		return
	}
	if err := db.StoreQuery(context.WithoutCancel(ctx), s.db, entry); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to record query")
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"detail": message})
}
