package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"azure-cost-alerts/internal/analysis"
)

func TestRecorderObservesRows(t *testing.T) {
	rec := NewRecorder("azcostalert")
	rec.ObserveRow("corp-dev", analysis.ReportRow{
		GroupKey:      "web",
		AverageCost:   decimal.RequireFromString("2.5"),
		CostYesterday: decimal.RequireFromString("4"),
		Alert:         analysis.AlertYes,
	})

	assert.Equal(t, 2.5, testutil.ToFloat64(rec.averageCost.WithLabelValues("corp-dev", "web")))
	assert.Equal(t, 4.0, testutil.ToFloat64(rec.analysisDateCost.WithLabelValues("corp-dev", "web")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.alert.WithLabelValues("corp-dev", "web")))

	rec.ResetSubscription("corp-dev")
	assert.Equal(t, 0, testutil.CollectAndCount(rec.alert))
}

func TestRecorderCounters(t *testing.T) {
	rec := NewRecorder("azcostalert")
	rec.ObserveResponse(200)
	rec.ObserveResponse(200)
	rec.ObserveResponse(0)
	rec.ObserveFailure("corp-prod")
	rec.MarkRun(time.Unix(1718409600, 0))

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.upstream.WithLabelValues("200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.upstream.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.failures.WithLabelValues("corp-prod")))
	assert.Equal(t, 1718409600.0, testutil.ToFloat64(rec.lastRun))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.ObserveRow("x", analysis.ReportRow{})
	rec.ObserveResponse(500)
	rec.ObserveFailure("x")
	rec.ResetSubscription("x")
	rec.MarkRun(time.Now())
}

func TestRouter(t *testing.T) {
	rec := NewRecorder("azcostalert")
	rec.ObserveFailure("corp-dev")
	srv := httptest.NewServer(NewRouter(rec))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `azcostalert_subscription_failures_total{subscription="corp-dev"} 1`))
}
