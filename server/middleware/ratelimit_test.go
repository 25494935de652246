package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rentfleet/aigw/config"
	gwerrors "github.com/rentfleet/aigw/errors"
	"github.com/rentfleet/aigw/server/metrics"
	"github.com/rentfleet/aigw/server/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimit(t *testing.T) {
	m := metrics.NewMetrics()
	limiter := middleware.NewRateLimiter(config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 6,
		Burst:             3,
	}, m)

	handler := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/parse-deal", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send("10.0.0.1").Code, "request %d within burst", i)
	}

	rec := send("10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))

	var body gwerrors.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, gwerrors.RateLimitError, body.Type)
	assert.Equal(t, float64(10), body.Details["retry_after"])

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RateLimitHits.WithLabelValues("10.0.0.1")))

	// other clients have their own bucket
	assert.Equal(t, http.StatusOK, send("10.0.0.2").Code)

	limiter.Reset()
	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)
}
