// Package api exposes the HTTP interface for the VOD search service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/retakeai/retake/internal/config"
	"github.com/retakeai/retake/internal/discovery"
	"github.com/retakeai/retake/internal/ingest"
	"github.com/retakeai/retake/internal/metrics"
	"github.com/retakeai/retake/internal/search"
	"github.com/retakeai/retake/internal/store"
)

// Server wires HTTP handlers to the search and discovery services.
type Server struct {
	router    chi.Router
	search    *search.Service
	discovery *discovery.Service
	ingester  *ingest.Service
	cloud     store.Cloud
	cfg       config.Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes. cloud may be
// nil; the events listing then returns an empty list.
func NewServer(
	searchSvc *search.Service,
	discoverySvc *discovery.Service,
	ingester *ingest.Service,
	cloud store.Cloud,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:    searchSvc,
		discovery: discoverySvc,
		ingester:  ingester,
		cloud:     cloud,
		cfg:       cfg,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/query", s.query)
		r.Post("/ingest/url", s.ingestURL)
		r.Post("/admin/ingest-event", s.ingestEvent)
		r.Get("/events", s.listEvents)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// Both storage tiers are optional, so readiness mirrors liveness.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type queryRequest struct {
	QueryText string `json:"query_text"`
	NResults  int    `json:"n_results"`
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.QueryText == "" {
		writeError(w, http.StatusBadRequest, "query_text is required")
		return
	}
	resp := s.search.Query(r.Context(), req.QueryText, req.NResults)
	writeJSON(w, http.StatusOK, resp)
}

type urlIngestRequest struct {
	URL string `json:"url"`
}

func (s *Server) ingestURL(w http.ResponseWriter, r *http.Request) {
	var req urlIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	recs, err := s.discovery.ProcessSeries(r.Context(), req.URL)
	if err != nil || len(recs) == 0 {
		writeError(w, http.StatusBadRequest, "failed to scrape or process the provided URL")
		return
	}
	ids, err := s.ingester.Ingest(r.Context(), recs, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      fmt.Sprintf("Successfully ingested %d rounds from URL", len(ids)),
		"ingested_ids": ids,
		"url":          req.URL,
	})
}

type eventIngestRequest struct {
	EventURL string `json:"event_url"`
}

func (s *Server) ingestEvent(w http.ResponseWriter, r *http.Request) {
	var req eventIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EventURL == "" {
		writeError(w, http.StatusBadRequest, "event_url is required")
		return
	}
	total, err := s.discovery.IngestTournament(r.Context(), req.EventURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Successfully ingested %d rounds from the tournament.", total),
		"url":     req.EventURL,
	})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if s.cloud == nil {
		writeJSON(w, http.StatusOK, []store.EventRecord{})
		return
	}
	events, err := s.cloud.ListEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []store.EventRecord{}
	}
	writeJSON(w, http.StatusOK, events)
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		duration := time.Since(start)
		metrics.ObserveHTTPRequest(r.Method, r.URL.Path, ww.status, duration)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", duration.Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
