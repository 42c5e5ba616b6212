package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reload results
const (
	ReloadOK     = "ok"
	ReloadStale  = "stale"
	ReloadFailed = "failed"
)

// Metrics contains Prometheus collectors for the rule engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	queries       *prometheus.CounterVec
	queryDuration prometheus.Histogram
	ambiguous     prometheus.Counter

	reloads        *prometheus.CounterVec
	reloadDuration prometheus.Histogram
	parseErrors    prometheus.Counter
	tables         *prometheus.GaugeVec
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		queries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dmnrules_queries_total",
				Help: "Total number of queries answered, by outcome",
			},
			[]string{"outcome"},
		),

		queryDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dmnrules_query_duration_seconds",
				Help:    "Time spent matching and evaluating a query",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
		),

		ambiguous: f.NewCounter(
			prometheus.CounterOpts{
				Name: "dmnrules_ambiguous_evaluations_total",
				Help: "Total number of UNIQUE tables where more than one rule matched",
			},
		),

		reloads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dmnrules_reloads_total",
				Help: "Total number of rule index reloads, by result",
			},
			[]string{"result"},
		),

		reloadDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dmnrules_reload_duration_seconds",
				Help:    "Time spent fetching and parsing decision models",
				Buckets: prometheus.DefBuckets,
			},
		),

		parseErrors: f.NewCounter(
			prometheus.CounterOpts{
				Name: "dmnrules_parse_errors_total",
				Help: "Total number of DMN documents skipped as malformed",
			},
		),

		tables: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dmnrules_indexed_tables",
				Help: "Number of decision tables in the current snapshot",
			},
			[]string{"tenant", "owner"},
		),
	}
}

// RecordQuery counts a query outcome and its latency
func (m *Metrics) RecordQuery(outcome string, ambiguous bool, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
	m.queryDuration.Observe(d.Seconds())
	if ambiguous {
		m.ambiguous.Inc()
	}
}

// RecordReload counts a reload result, its latency and skipped documents
func (m *Metrics) RecordReload(result string, parseErrors int, d time.Duration) {
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(result).Inc()
	m.reloadDuration.Observe(d.Seconds())
	m.parseErrors.Add(float64(parseErrors))
}

// SetTables publishes the table count of a scope's snapshot
func (m *Metrics) SetTables(tenant, owner string, n int) {
	if m == nil {
		return
	}
	m.tables.WithLabelValues(tenant, owner).Set(float64(n))
}

// DeleteScope drops the gauge series of a removed scope
func (m *Metrics) DeleteScope(tenant, owner string) {
	if m == nil {
		return
	}
	m.tables.DeleteLabelValues(tenant, owner)
}
