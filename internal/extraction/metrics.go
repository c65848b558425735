package extraction

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/syllabusd/internal/extraction"

// Metrics holds the Prometheus collectors for pipeline runs.
type Metrics struct {
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	snippets       prometheus.Counter
	oracleOutcomes *prometheus.CounterVec
	items          *prometheus.CounterVec
	dropped        *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "syllabusd_extraction_runs_total",
			Help: "Total number of extraction runs",
		}, []string{"fallback"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "syllabusd_extraction_run_duration_seconds",
			Help:    "Wall time of one extraction run",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		snippets: f.NewCounter(prometheus.CounterOpts{
			Name: "syllabusd_extraction_snippets_total",
			Help: "Total number of classifiable snippets",
		}),
		oracleOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "syllabusd_extraction_oracle_outcomes_total",
			Help: "Oracle call outcomes by status",
		}, []string{"status"}),
		items: f.NewCounterVec(prometheus.CounterOpts{
			Name: "syllabusd_extraction_items_total",
			Help: "Assembled items by kind and producer",
		}, []string{"kind", "source"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "syllabusd_extraction_dropped_total",
			Help: "Oracle proposals discarded by validation or trigger gates",
		}, []string{"reason"}),
	}
}

func (m *Metrics) recordOutcome(status OutcomeStatus) {
	if m == nil {
		return
	}
	m.oracleOutcomes.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) recordDropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) recordRun(res *Result, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(strconv.FormatBool(res.UsedFallback)).Inc()
	m.runDuration.Observe(elapsed.Seconds())
	m.snippets.Add(float64(res.Snippets))
	for _, it := range res.Items {
		source := string(SourceOracle)
		if it.Deadline != nil {
			source = string(it.Deadline.Source)
		}
		m.items.WithLabelValues(it.Kind(), source).Inc()
	}
}
