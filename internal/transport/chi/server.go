// Package chi exposes the query, ingest and key-index use cases over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/exifdex/internal/domain"
	"github.com/kailas-cloud/exifdex/internal/domain/document"
	healthuc "github.com/kailas-cloud/exifdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/exifdex/internal/usecase/ingest"
	keysuc "github.com/kailas-cloud/exifdex/internal/usecase/keys"
	queryuc "github.com/kailas-cloud/exifdex/internal/usecase/query"
	"github.com/kailas-cloud/exifdex/internal/version"
)

const (
	maxBodyBytes     = 32 << 20
	maxIngestRecords = 10000
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the HTTP handlers.
type Server struct {
	query         *queryuc.Service
	ingest        *ingestuc.Service
	keys          *keysuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	query *queryuc.Service,
	ingest *ingestuc.Service,
	keys *keysuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		query:  query,
		ingest: ingest,
		keys:   keys,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		detailHandler(domain.ErrMalformedPipeline, http.StatusBadRequest, CodeMalformedPipeline),
		detailHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeBadRequest),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, CodeStoreUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented, CodeNotImplemented),
	}
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Route("/files", func(r chi.Router) {
		r.Post("/", s.UpsertFiles)
		r.Delete("/", s.ClearFiles)
		r.Get("/ids", s.ListFileIDs)
	})
	r.Post("/search", s.Search)
	r.Post("/query", s.AdvancedQuery)
	r.Post("/aggregate", s.Aggregate)
	r.Post("/count", s.Count)
	r.Post("/group/{field}", s.GroupBy)
	r.Get("/stats", s.Stats)
	r.Get("/keys", s.Keys)
	r.Get("/keys/similar", s.SimilarKeys)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Stats:   report.Stats,
		Version: version.String(),
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// readBody reads a size-limited request body. It writes the error response itself and
// reports false when the body could not be read.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
				"request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return nil, false
	}
	return data, true
}

func documentList(docs []document.Document) DocumentListResponse {
	if docs == nil {
		docs = []document.Document{}
	}
	return DocumentListResponse{Items: docs, Total: len(docs)}
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrMalformedPipeline,
		domain.ErrStoreUnavailable,
		domain.ErrEmbeddingProviderError,
		domain.ErrNotImplemented,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error and
// answers with the sentinel's text only.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeDomainMessage(err))
		return true
	}
}

// detailHandler is sentinelHandler for caller mistakes: the full message tells the caller
// what to fix.
func detailHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
