package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics owned by the search pipeline.
// A single instance is created per Pipeline so that tests can inject a fresh
// prometheus.Registry without polluting the default one.
type Metrics struct {
	// searchesTotal counts completed searches, partitioned by outcome:
	// "ok", "empty", or "error".
	searchesTotal *prometheus.CounterVec

	// stageDurationSeconds records per-stage wall-clock latency.
	stageDurationSeconds *prometheus.HistogramVec

	// candidates records the candidate counts flowing through the pipeline,
	// partitioned by stage ("lexical", "dense", "fused", "final").
	candidates *prometheus.HistogramVec

	// degradationsTotal counts soft failures absorbed by the pipeline,
	// partitioned by component ("expansion", "rerank").
	degradationsTotal *prometheus.CounterVec
}

// NewMetrics registers all pipeline metrics against reg and returns the
// populated Metrics. promauto.With(reg) is used so that each call registers
// into the provided registry rather than the global default — this keeps
// unit tests hermetic.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		searchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fathom",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of search requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		stageDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fathom",
			Subsystem: "search",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of each pipeline stage.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"stage"}),

		candidates: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fathom",
			Subsystem: "search",
			Name:      "candidates",
			Help:      "Candidate counts flowing through the pipeline, partitioned by stage.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}, []string{"stage"}),

		degradationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fathom",
			Subsystem: "search",
			Name:      "degradations_total",
			Help:      "Soft failures absorbed by the pipeline, partitioned by component.",
		}, []string{"component"}),
	}
}

// observe records a completed request's stats.
func (m *Metrics) observe(outcome string, stats Stats) {
	if m == nil {
		return
	}
	m.searchesTotal.WithLabelValues(outcome).Inc()

	m.stageDurationSeconds.WithLabelValues("route").Observe(float64(stats.RouteMS) / 1000)
	m.stageDurationSeconds.WithLabelValues("retrieve").Observe(float64(stats.RetrieveMS) / 1000)
	m.stageDurationSeconds.WithLabelValues("fuse").Observe(float64(stats.FuseMS) / 1000)
	m.stageDurationSeconds.WithLabelValues("rerank").Observe(float64(stats.RerankMS) / 1000)
	m.stageDurationSeconds.WithLabelValues("expand").Observe(float64(stats.ExpandMS) / 1000)

	m.candidates.WithLabelValues("lexical").Observe(float64(stats.LexicalCount))
	m.candidates.WithLabelValues("dense").Observe(float64(stats.DenseCount))
	m.candidates.WithLabelValues("fused").Observe(float64(stats.FusedCount))
	m.candidates.WithLabelValues("final").Observe(float64(stats.ResultCount))

	if stats.ExpansionDegraded {
		m.degradationsTotal.WithLabelValues("expansion").Inc()
	}
	if stats.RerankDegraded {
		m.degradationsTotal.WithLabelValues("rerank").Inc()
	}
}
