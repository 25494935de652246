package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rentfleet/aigw/server/metrics"
	"github.com/rentfleet/aigw/server/middleware"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusMetrics(t *testing.T) {
	m := metrics.NewMetrics()

	r := chi.NewRouter()
	r.Use(middleware.PrometheusMetrics(m))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Post("/parse-deal", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	r.Post("/recognize-documents", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	tests := []struct {
		name           string
		method         string
		path           string
		expectedPath   string
		expectedStatus string
		errorType      string
	}{
		{"success request", "GET", "/", "/", "200", ""},
		{"client error", "POST", "/parse-deal", "/parse-deal", "400", "client_error"},
		{"server error", "POST", "/recognize-documents", "/recognize-documents", "500", "server_error"},
		{"unknown path", "GET", "/wp-login.php", "unmatched", "404", "client_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			requestCount := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(tt.expectedPath, tt.expectedStatus))
			assert.Equal(t, float64(1), requestCount)

			// should be 0 after request completes
			assert.Equal(t, float64(0), testutil.ToFloat64(m.ActiveRequests.WithLabelValues("http")))

			if tt.errorType != "" {
				assert.GreaterOrEqual(t, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues(tt.errorType)), float64(1))
			}
		})
	}

	assert.Equal(t, len(tests), testutil.CollectAndCount(m.RequestDuration))
}
