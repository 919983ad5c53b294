package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"azure-cost-alerts/internal/analysis"
)

// Recorder publishes analysis results on a private registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	averageCost      *prometheus.GaugeVec
	analysisDateCost *prometheus.GaugeVec
	alert            *prometheus.GaugeVec
	upstream         *prometheus.CounterVec
	failures         *prometheus.CounterVec
	lastRun          prometheus.Gauge
}

// NewRecorder registers every collector under namespace.
func NewRecorder(namespace string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		averageCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "average_cost",
			Help:      "Average daily cost over the baseline period.",
		}, []string{"subscription", "group"}),
		analysisDateCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analysis_date_cost",
			Help:      "Cost on the analysis date.",
		}, []string{"subscription", "group"}),
		alert: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert",
			Help:      "1 when the analysis-date cost exceeds average plus one standard deviation.",
		}, []string{"subscription", "group"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Cost API requests by response status.",
		}, []string{"status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_failures_total",
			Help:      "Subscriptions skipped because of upstream errors.",
		}, []string{"subscription"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed analysis run.",
		}),
	}

	r.registry.MustRegister(r.averageCost, r.analysisDateCost, r.alert, r.upstream, r.failures, r.lastRun)
	return r
}

// ObserveRow records one report row.
func (r *Recorder) ObserveRow(subscription string, row analysis.ReportRow) {
	if r == nil {
		return
	}
	r.averageCost.WithLabelValues(subscription, row.GroupKey).Set(row.AverageCost.InexactFloat64())
	r.analysisDateCost.WithLabelValues(subscription, row.GroupKey).Set(row.CostYesterday.InexactFloat64())
	value := 0.0
	if row.Alerted() {
		value = 1
	}
	r.alert.WithLabelValues(subscription, row.GroupKey).Set(value)
}

// ResetSubscription drops the per-group series of a subscription before fresh results are recorded.
func (r *Recorder) ResetSubscription(subscription string) {
	if r == nil {
		return
	}
	labels := prometheus.Labels{"subscription": subscription}
	r.averageCost.DeletePartialMatch(labels)
	r.analysisDateCost.DeletePartialMatch(labels)
	r.alert.DeletePartialMatch(labels)
}

// ObserveResponse counts an upstream response; zero means a transport error.
func (r *Recorder) ObserveResponse(status int) {
	if r == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	r.upstream.WithLabelValues(label).Inc()
}

// ObserveFailure counts a skipped subscription.
func (r *Recorder) ObserveFailure(subscription string) {
	if r == nil {
		return
	}
	r.failures.WithLabelValues(subscription).Inc()
}

// MarkRun stores the completion time of a run.
func (r *Recorder) MarkRun(at time.Time) {
	if r == nil {
		return
	}
	r.lastRun.Set(float64(at.Unix()))
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
