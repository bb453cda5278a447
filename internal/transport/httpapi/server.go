// Package httpapi exposes the RAG pipeline over HTTP: generation endpoints
// with optional SSE streaming, document ingestion, health, and metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ainova/newsrag/internal/domain"
	"github.com/ainova/newsrag/internal/generate"
	"github.com/ainova/newsrag/internal/ingest"
	"github.com/ainova/newsrag/internal/logger"
	"github.com/ainova/newsrag/internal/metrics"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API server.
type Server struct {
	orchestrator  *generate.Orchestrator
	ingest        *ingest.Service
	health        map[string]HealthCheck
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the API server. The health map binds dependency names to
// their probes; nil means no dependency checks.
func NewServer(o *generate.Orchestrator, ing *ingest.Service, health map[string]HealthCheck, log *zap.Logger) *Server {
	s := &Server{
		orchestrator: o,
		ingest:       ing,
		health:       health,
		logger:       log,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, "empty_query"),
		sentinelHandler(domain.ErrInvalidFilter, http.StatusBadRequest, "invalid_filter"),
		sentinelHandler(domain.ErrInvalidDocument, http.StatusBadRequest, "invalid_document"),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, "document_not_found"),
		sentinelHandler(domain.ErrModelMismatch, http.StatusConflict, "model_mismatch"),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, "embedding_unavailable"),
		sentinelHandler(domain.ErrGenerationUnavailable, http.StatusBadGateway, "generation_unavailable"),
		sentinelHandler(domain.ErrStreamInterrupted, http.StatusBadGateway, "stream_interrupted"),
	}
	return s
}

// Router assembles the chi router with the full middleware chain.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/query", s.generateHandler(domain.TaskAnswer))
		r.Post("/summarize", s.generateHandler(domain.TaskSummarize))
		r.Post("/timeline", s.generateHandler(domain.TaskTimeline))
		r.Post("/report", s.generateHandler(domain.TaskReport))
		r.Put("/documents/{id}", s.upsertDocument)
		r.Delete("/documents/{id}", s.deleteDocument)
	})
	r.Get("/health", s.healthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// generateHandler serves one generation task. The request runs in blocking
// mode unless ?stream=true or options.stream asks for SSE.
func (s *Server) generateHandler(task domain.TaskType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var wire generateRequest
		if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
			return
		}

		req, err := wire.toDomain(task)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		if wantsStream(r, wire) {
			s.streamGeneration(w, r, req)
			return
		}

		result, err := s.orchestrator.Run(r.Context(), req)
		if err != nil {
			s.handleDomainError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, generationToWire(result))
	}
}

func wantsStream(r *http.Request, wire generateRequest) bool {
	if stream, err := strconv.ParseBool(r.URL.Query().Get("stream")); err == nil && stream {
		return true
	}
	return wire.Options != nil && wire.Options.Stream
}

func (s *Server) upsertDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var wire upsertDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	doc, err := wire.toDomain(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	chunks, err := s.ingest.Ingest(r.Context(), doc)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, upsertDocumentResponse{ID: id, Chunks: chunks})
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.ingest.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK
	checks := make(map[string]string, len(s.health))

	for name, probe := range s.health {
		if err := probe(r.Context()); err != nil {
			checks[name] = "unhealthy"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
			s.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
		} else {
			checks[name] = "healthy"
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyQuery,
		domain.ErrInvalidFilter,
		domain.ErrInvalidDocument,
		domain.ErrDocumentNotFound,
		domain.ErrModelMismatch,
		domain.ErrRateLimited,
		domain.ErrEmbeddingUnavailable,
		domain.ErrGenerationUnavailable,
		domain.ErrStreamInterrupted,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromContext(ctx)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
