package stats

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relloyd/scdpipe/components"
)

const namespace = "scdpipe"

// Metrics holds the Prometheus collectors of the pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Runs          *prometheus.CounterVec
	Attempts      *prometheus.CounterVec
	Mutations     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	LastSuccess   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics registers every collector on a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total runs by final outcome",
		},
		[]string{"outcome"}, // "succeeded", "failed", "locked"
	)
	m.Attempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Total attempts by stage reached and outcome",
		},
		[]string{"stage", "outcome"},
	)
	m.Mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Total warehouse row changes by table and kind",
		},
		[]string{"table", "kind"}, // kind: "inserted", "closed", "corrected", "unchanged"
	)
	m.StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each attempt stage",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"stage"},
	)
	m.LastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_run_date_seconds",
			Help:      "Unix time of the latest run date merged successfully",
		},
	)
	m.registry.MustRegister(m.Runs, m.Attempts, m.Mutations, m.StageDuration, m.LastSuccess)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RunFinished(outcome string, runDate time.Time) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSucceeded {
		m.LastSuccess.Set(float64(runDate.Unix()))
	}
}

func (m *Metrics) AttemptFinished(stage string, outcome string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(stage, outcome).Inc()
}

func (m *Metrics) StageFinished(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Merged adds the counts of every plan.
func (m *Metrics) Merged(plans []*components.MergePlan) {
	if m == nil {
		return
	}
	for _, p := range plans {
		t := p.Table.TableName
		m.Mutations.WithLabelValues(t, "inserted").Add(float64(p.Stats.Inserted))
		m.Mutations.WithLabelValues(t, "closed").Add(float64(p.Stats.Closed))
		m.Mutations.WithLabelValues(t, "corrected").Add(float64(p.Stats.Corrected))
		m.Mutations.WithLabelValues(t, "unchanged").Add(float64(p.Stats.Unchanged))
	}
}

// Outcome label values.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeRetrying  = "retrying"
	OutcomeLocked    = "locked"
)
