package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddleware_RecordsDurationAndCount(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest("POST", "/v1/search", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	requestsVal := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/v1/search", "200"))
	if requestsVal < 1 {
		t.Errorf("expected http_requests_total >= 1, got %f", requestsVal)
	}

	durationCount := testutil.CollectAndCount(httpRequestDuration)
	if durationCount == 0 {
		t.Error("expected http_request_duration_seconds to have observations")
	}
}

func TestMetricsMiddleware_DifferentStatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/index/stats", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/v1/index/rebuild", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	tests := []struct {
		path           string
		expectedStatus string
	}{
		{"/health", "200"},
		{"/v1/index/stats", "404"},
		{"/v1/index/rebuild", "500"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, http.NoBody)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", tc.path, tc.expectedStatus))
			if val < 1 {
				t.Errorf("expected requests_total for %s with status %s >= 1, got %f", tc.path, tc.expectedStatus, val)
			}
		})
	}
}

func TestMetricsMiddleware_DifferentMethods(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())

	r.Get("/v1/index/stats", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("get"))
	})
	r.Post("/v1/index/stats", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("post"))
	})
	r.Delete("/v1/index/stats", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("delete"))
	})

	methods := []string{"GET", "POST", "DELETE"}

	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/v1/index/stats", http.NoBody)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(method, "/v1/index/stats", "200"))
			if val < 1 {
				t.Errorf("expected requests_total for %s >= 1, got %f", method, val)
			}
		})
	}
}

func TestMetricsMiddleware_RoutePatternLabels(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/index/{name}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	for _, p := range []string{"/v1/index/a", "/v1/index/b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", p, http.NoBody))
	}

	val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/index/{name}", "204"))
	if val < 2 {
		t.Errorf("expected both requests under the route pattern, got %f", val)
	}
}

func TestMetricsMiddleware_UnmatchedRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", unmatchedRoute, "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/wp-login.php", http.NoBody))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", unmatchedRoute, "404"))

	if after-before != 1 {
		t.Errorf("expected one unmatched request, got %f", after-before)
	}
}

func TestMetricsMiddleware_InFlightReturnsToZero(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())

	var during float64
	r.Get("/slow", func(w http.ResponseWriter, _ *http.Request) {
		during = testutil.ToFloat64(httpRequestsInFlight)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/slow", http.NoBody))

	if during != 1 {
		t.Errorf("expected 1 in-flight request inside the handler, got %f", during)
	}
	if got := testutil.ToFloat64(httpRequestsInFlight); got != 0 {
		t.Errorf("expected 0 in-flight after the request, got %f", got)
	}
}

func TestMetricsHandler_ViaPromhttp(t *testing.T) {
	RegisterSearchMetrics()
	SearchFallbackTotal.Inc()

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())

	req := httptest.NewRequest("GET", "/metrics", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	body, err := io.ReadAll(rr.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	if !strings.Contains(string(body), "prestadores_search_fallback_total") {
		t.Error("expected search fallback counter in metrics output")
	}
}

func TestRegister_Idempotent(t *testing.T) {
	RegisterEmbeddingMetrics()
	RegisterEmbeddingMetrics()
	RegisterGenerationMetrics()
	RegisterGenerationMetrics()
	RegisterSearchMetrics()
	RegisterSearchMetrics()
	RegisterHTTPMetrics()
	RegisterHTTPMetrics()
}
