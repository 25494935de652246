package routing

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rentfleet/aigw/config"
	gwerrors "github.com/rentfleet/aigw/errors"
	"github.com/rentfleet/aigw/server/handlers"
	"github.com/rentfleet/aigw/server/metrics"
	"github.com/rentfleet/aigw/server/mocks"
	"github.com/rentfleet/aigw/server/notify"
	"github.com/rentfleet/aigw/server/processing"
	"github.com/rentfleet/aigw/server/validation"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const dealCompletion = "`json\n" +
	`{"model_name":null,"bike_number":null,"batteries":[{"capacity":"30Ah","number":null},{"capacity":"30Ah","number":null}]}` +
	"\n`"

type stubBreaker gobreaker.State

func (s stubBreaker) State() gobreaker.State { return gobreaker.State(s) }

type env struct {
	router   *Router
	client   *mocks.MockClient
	metrics  *metrics.Metrics
	telegram *httptest.Server
	sent     atomic.Int32
}

func newEnv(t *testing.T, cfg *config.Config, breaker BreakerState) *env {
	t.Helper()
	e := &env{client: mocks.NewMockClient(dealCompletion), metrics: metrics.NewMetrics()}

	e.telegram = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.sent.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	t.Cleanup(e.telegram.Close)

	logger := zaptest.NewLogger(t)
	relay := notify.NewRelay(e.telegram.URL, "123:abc", "s3cret", notify.WithMetrics(e.metrics))
	processor := processing.NewProcessor(processing.NewBuilder(), e.client, logger, processing.WithMetrics(e.metrics))
	gateway := handlers.NewGateway(processor, relay, validation.NewDecoder(0, cfg.LLM.Model), logger)

	e.router = NewRouter(Deps{
		Config:  cfg,
		Gateway: gateway,
		Auth:    relay,
		Metrics: e.metrics,
		Breaker: breaker,
		Logger:  logger,
	})
	return e
}

func (e *env) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestParseDealEndToEnd(t *testing.T) {
	e := newEnv(t, config.DefaultConfig(), nil)

	rec := e.do("POST", "/parse-deal", `{"description":"эл.велосипед, 2 акб по 30Ah"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"model_name":null,"bike_number":null,"batteries":[{"capacity":"30Ah","number":null},{"capacity":"30Ah","number":null}]}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	e.client.Response = "Я не смог разобрать описание"
	rec = e.do("POST", "/parse-deal", `{"description":"эл.велосипед, 2 акб по 30Ah"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	metricsBody := e.do("GET", "/metrics", "", nil).Body.String()
	assert.Contains(t, metricsBody, `aigw_pipeline_outcomes_total{outcome="succeeded",task="parse_deal"} 1`)
	assert.Contains(t, metricsBody, `aigw_pipeline_outcomes_total{outcome="malformed",task="parse_deal"} 1`)
	assert.Contains(t, metricsBody, `aigw_http_requests_total{endpoint="/parse-deal",status="400"} 1`)
}

func TestBuyoutPlansAlias(t *testing.T) {
	e := newEnv(t, config.DefaultConfig(), nil)
	e.client.Response = `{"p1":{"label":"x","full_label":"y","first_payment":1,"total_payments":1,"period_days":30}}`

	for _, path := range []string{"/generate-buyout-plans", "/get-buyout-plans"} {
		rec := e.do("POST", path, `{"deal_description":"велосипед"}`, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, e.client.Response, rec.Body.String(), path)
	}
}

func TestNotifyEndToEnd(t *testing.T) {
	e := newEnv(t, config.DefaultConfig(), nil)

	tests := []struct {
		name       string
		secret     string
		body       string
		wantStatus int
	}{
		{"wrong secret with valid body", "nope", `{"recipient_id":1,"text":"hi"}`, http.StatusUnauthorized},
		{"wrong secret with invalid body", "nope", `{{{`, http.StatusUnauthorized},
		{"missing secret", "", `{"recipient_id":1,"text":"hi"}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do("POST", "/notify", tt.body, map[string]string{"X-Internal-Secret": tt.secret})
			require.Equal(t, tt.wantStatus, rec.Code)

			var body gwerrors.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, "unauthorized", body.Message)
		})
	}
	assert.Zero(t, e.sent.Load(), "unauthorized calls must not reach the messaging platform")

	rec := e.do("POST", "/notify", `{"recipient_id":1,"text":"hi"}`, map[string]string{"X-Internal-Secret": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Equal(t, int32(1), e.sent.Load())
}

func TestOperationalRoutes(t *testing.T) {
	e := newEnv(t, config.DefaultConfig(), stubBreaker(gobreaker.StateClosed))

	rec := e.do("GET", "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"Gemini API Gateway is running"}`, rec.Body.String())

	rec = e.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","completion":"closed"}`, rec.Body.String())

	rec = e.do("GET", "/no-such-route", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = e.do("GET", "/parse-deal", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthReportsOpenBreaker(t *testing.T) {
	e := newEnv(t, config.DefaultConfig(), stubBreaker(gobreaker.StateOpen))

	rec := e.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","completion":"open"}`, rec.Body.String())
}

func TestOptionalMiddleware(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}
	cfg.Queue = config.QueueConfig{Enabled: true, MaxConcurrent: 2, MaxQueued: 2}
	e := newEnv(t, cfg, nil)

	require.NotNil(t, e.router.Admission())

	assert.Equal(t, http.StatusOK, e.do("POST", "/parse-deal", `{"description":"велосипед"}`, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, e.do("POST", "/parse-deal", `{"description":"велосипед"}`, nil).Code)

	// operational routes are not rate limited
	assert.Equal(t, http.StatusOK, e.do("GET", "/", "", nil).Code)

	disabled := newEnv(t, config.DefaultConfig(), nil)
	assert.Nil(t, disabled.router.Admission())
}
