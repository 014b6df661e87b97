// Package metrics records update run metrics in a node-exporter textfile.
package metrics

import (
	"strconv"
	"time"

	"github.com/huangsam/issuetrend/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder collects metrics of one update invocation.
type Recorder interface {
	ObserveUpdate(repo schema.RepoID, outcome schema.RunOutcome, kind schema.ErrorKind, duration time.Duration)
	SetSnapshot(repo schema.RepoID, bucket schema.DayBucket, days int)
	IncAPIRequests(endpoint string, status int)
	IncConditionalHits()
	SetRateRemaining(remaining int)
	WriteTextfile(path string) error
}

// PromRecorder is the Prometheus-backed Recorder.
type PromRecorder struct {
	registry       *prometheus.Registry
	updatesTotal   *prometheus.CounterVec
	updateDuration *prometheus.HistogramVec
	timelineDays   *prometheus.GaugeVec
	openItems      *prometheus.GaugeVec
	apiRequests    *prometheus.CounterVec
	notModified    prometheus.Counter
	rateRemaining  prometheus.Gauge
	lastRun        prometheus.Gauge
}

var _ Recorder = &PromRecorder{} // Compile-time check

// NewRecorder returns a Prometheus recorder on its own registry, or a no-op when disabled.
func NewRecorder(enabled bool) Recorder {
	if !enabled {
		return &noopRecorder{}
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &PromRecorder{
		registry: reg,
		updatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "issuetrend_updates_total",
			Help: "Repository updates by outcome and error kind",
		}, []string{"repo", "outcome", "error_kind"}),
		updateDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "issuetrend_update_duration_seconds",
			Help:    "Duration of one repository update in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"repo"}),
		timelineDays: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "issuetrend_timeline_days",
			Help: "Number of day buckets in the stored timeline",
		}, []string{"repo"}),
		openItems: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "issuetrend_open_items",
			Help: "Open items on the latest day by kind",
		}, []string{"repo", "kind"}),
		apiRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "issuetrend_api_requests_total",
			Help: "GitHub API requests by endpoint and status class",
		}, []string{"endpoint", "status"}),
		notModified: factory.NewCounter(prometheus.CounterOpts{
			Name: "issuetrend_api_not_modified_total",
			Help: "Conditional requests answered from the event cache",
		}),
		rateRemaining: factory.NewGauge(prometheus.GaugeOpts{
			Name: "issuetrend_rate_limit_remaining",
			Help: "Last reported remaining GitHub API requests",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "issuetrend_last_run_timestamp_seconds",
			Help: "Unix time of the last recorded update",
		}),
	}
}

// ObserveUpdate records the outcome and duration of one repository update.
func (m *PromRecorder) ObserveUpdate(repo schema.RepoID, outcome schema.RunOutcome, kind schema.ErrorKind, duration time.Duration) {
	kindLabel := string(kind)
	if kindLabel == "" {
		kindLabel = "none"
	}
	m.updatesTotal.WithLabelValues(repo.String(), string(outcome), kindLabel).Inc()
	m.updateDuration.WithLabelValues(repo.String()).Observe(duration.Seconds())
	m.lastRun.SetToCurrentTime()
}

// SetSnapshot records the size of the stored timeline and the counts of its last day.
func (m *PromRecorder) SetSnapshot(repo schema.RepoID, bucket schema.DayBucket, days int) {
	m.timelineDays.WithLabelValues(repo.String()).Set(float64(days))
	m.openItems.WithLabelValues(repo.String(), string(schema.IssueKind)).Set(float64(bucket.OpenIssues))
	m.openItems.WithLabelValues(repo.String(), string(schema.PullRequestKind)).Set(float64(bucket.OpenPRs))
}

// IncAPIRequests counts one API response.
func (m *PromRecorder) IncAPIRequests(endpoint string, status int) {
	m.apiRequests.WithLabelValues(endpoint, statusBucket(status)).Inc()
}

// IncConditionalHits counts one 304 response.
func (m *PromRecorder) IncConditionalHits() {
	m.notModified.Inc()
}

// SetRateRemaining records the latest rate-limit budget.
func (m *PromRecorder) SetRateRemaining(remaining int) {
	m.rateRemaining.Set(float64(remaining))
}

// WriteTextfile atomically writes all metrics in the text exposition format.
func (m *PromRecorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Gatherer exposes the registry for inspection.
func (m *PromRecorder) Gatherer() prometheus.Gatherer {
	return m.registry
}

func statusBucket(code int) string {
	switch {
	case code <= 0:
		return "error"
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return strconv.Itoa(code)
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// noopRecorder is a no-op implementation for when metrics are disabled.
type noopRecorder struct{}

func (n *noopRecorder) ObserveUpdate(_ schema.RepoID, _ schema.RunOutcome, _ schema.ErrorKind, _ time.Duration) {
}
func (n *noopRecorder) SetSnapshot(_ schema.RepoID, _ schema.DayBucket, _ int) {}
func (n *noopRecorder) IncAPIRequests(_ string, _ int)                          {}
func (n *noopRecorder) IncConditionalHits()                                    {}
func (n *noopRecorder) SetRateRemaining(_ int)                                 {}
func (n *noopRecorder) WriteTextfile(_ string) error                           { return nil }
