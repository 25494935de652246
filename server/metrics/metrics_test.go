package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesPrometheusAndOtelSeries(t *testing.T) {
	m := NewMetrics()

	m.PipelineOutcomes.WithLabelValues("parse_deal", "succeeded").Inc()
	hist, err := m.Meter().Float64Histogram("aigw.pipeline.duration")
	require.NoError(t, err)
	hist.Record(context.Background(), 0.42)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `aigw_pipeline_outcomes_total{outcome="succeeded",task="parse_deal"} 1`)
	assert.Contains(t, string(body), "aigw_pipeline_duration")
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.NotifyTotal.WithLabelValues("sent").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(a.NotifyTotal.WithLabelValues("sent")))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.NotifyTotal.WithLabelValues("sent")))
}
