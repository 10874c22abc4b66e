package chi

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

	"github.com/kailas-cloud/prestadores/internal/domain"
	logpkg "github.com/kailas-cloud/prestadores/internal/logger"
	"github.com/kailas-cloud/prestadores/internal/metrics"
	healthuc "github.com/kailas-cloud/prestadores/internal/usecase/health"
	"github.com/kailas-cloud/prestadores/internal/usecase/indexing"
	searchuc "github.com/kailas-cloud/prestadores/internal/usecase/search"
)

// Error codes returned in the "code" field of error responses.
const (
	codeBadRequest     = "bad_request"
	codeUnauthorized   = "unauthorized"
	codeDataLoad       = "data_load_failed"
	codeIndexBuild     = "index_build_failed"
	codeNotInitialized = "not_initialized"
	codeInternal       = "internal_error"
)

// Searcher is the search service as seen by the HTTP layer.
type Searcher interface {
	SearchDetailed(ctx context.Context, raw any) searchuc.Result
	Reindex(ctx context.Context) (*indexing.Index, error)
	Index() (indexing.Index, error)
}

// ChunkCounter reports the live number of chunks in a collection.
type ChunkCounter interface {
	Count(ctx context.Context, collection string) (int, error)
}

// HealthChecker produces the aggregated health report.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the search API.
type Server struct {
	search        Searcher
	chunks        ChunkCounter
	health        HealthChecker
	backend       string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. chunks can be nil; stats then report
// the count from the last build.
func NewServer(search Searcher, chunks ChunkCounter, health HealthChecker, backend string, logger *zap.Logger) *Server {
	s := &Server{
		search:  search,
		chunks:  chunks,
		health:  health,
		backend: backend,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotInitialized, http.StatusServiceUnavailable, codeNotInitialized),
		sentinelHandler(domain.ErrDataLoad, http.StatusInternalServerError, codeDataLoad),
		sentinelHandler(domain.ErrIndexBuild, http.StatusInternalServerError, codeIndexBuild),
	}
	return s
}

// Router assembles the middleware chain and routes.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", s.Search)
		r.Post("/index/rebuild", s.RebuildIndex)
		r.Get("/index/stats", s.IndexStats)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})
	return r
}

type searchRequest struct {
	Query          any  `json:"query"`
	IncludeSources bool `json:"include_sources"`
}

type searchResponse struct {
	Answer       string            `json:"answer"`
	Sources      []domain.Document `json:"sources,omitempty"`
	Variants     []string          `json:"variants,omitempty"`
	UsedFallback *bool             `json:"used_fallback,omitempty"`
}

type indexResponse struct {
	Collection string `json:"collection"`
	Chunks     int    `json:"chunks"`
}

type statsResponse struct {
	Collection string `json:"collection"`
	Backend    string `json:"backend"`
	Chunks     int    `json:"chunks"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Search handles POST /v1/search. Failures are part of the answer text, so
// any decodable body gets 200.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res := s.search.SearchDetailed(ctx, req.Query)
	if res.Err != nil {
		logpkg.FromContext(ctx).Warn("search answered with error", zap.Error(res.Err))
	}

	resp := searchResponse{Answer: res.Answer}
	if req.IncludeSources {
		resp.Sources = res.Sources
		resp.Variants = res.Variants
		fallback := res.UsedFallback
		resp.UsedFallback = &fallback
	}
	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, resp)
}

// RebuildIndex handles POST /v1/index/rebuild.
func (s *Server) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	idx, err := s.search.Reindex(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, indexResponse{Collection: idx.Collection, Chunks: idx.Chunks})
}

// IndexStats handles GET /v1/index/stats.
func (s *Server) IndexStats(w http.ResponseWriter, r *http.Request) {
	idx, err := s.search.Index()
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	chunks := idx.Chunks
	if s.chunks != nil {
		n, err := s.chunks.Count(r.Context(), idx.Collection)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		chunks = n
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Collection: idx.Collection,
		Backend:    s.backend,
		Chunks:     chunks,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.Usage) {
	if usage.Embedded() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.EmbeddingTokens()))
	}
	if n := usage.GenerationTokens(); n > 0 {
		w.Header().Set("X-Generation-Tokens", strconv.Itoa(n))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// The client sees the sentinel text, not the wrapped cause.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			s.logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}
