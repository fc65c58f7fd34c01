package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	queriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queryhub_queries_total",
		Help: "Queries handled, labeled by final route",
	}, []string{"route"})

	gateDenials = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "queryhub_gate_denials_total",
		Help: "Queries denied by the clearance gate",
	})

	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "queryhub_cache_hits_total",
		Help: "Responses replayed from the cache",
	})

	stageLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "queryhub_stage_latency_ms",
		Help:    "Latency of pipeline stages in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"stage"})

	retrievalTop1 = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "queryhub_retrieval_top1_similarity",
		Help:    "Top-1 similarity score of retrieval results",
		Buckets: []float64{0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 0.99, 1.0},
	})

	sqlRows = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "queryhub_sql_result_rows",
		Help:    "Row counts returned by the structured pipeline",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(queriesTotal, gateDenials, cacheHits, stageLatency, retrievalTop1, sqlRows)
	})
}

// IncQuery counts a completed query by its final route.
func IncQuery(route string) {
	ensureRegistered()
	queriesTotal.WithLabelValues(route).Inc()
}

// IncGateDenial counts a clearance denial.
func IncGateDenial() {
	ensureRegistered()
	gateDenials.Inc()
}

// IncCacheHit counts a cache replay.
func IncCacheHit() {
	ensureRegistered()
	cacheHits.Inc()
}

// ObserveStage records the latency of one pipeline stage.
func ObserveStage(stage string, start time.Time) {
	ensureRegistered()
	stageLatency.WithLabelValues(stage).Observe(float64(time.Since(start).Milliseconds()))
}

// ObserveRetrievalTop1 records the best similarity of a retrieval pass.
func ObserveRetrievalTop1(score float64) {
	ensureRegistered()
	if score >= 0 {
		retrievalTop1.Observe(score)
	}
}

// ObserveSQLRows records a structured result size.
func ObserveSQLRows(n int) {
	ensureRegistered()
	sqlRows.Observe(float64(n))
}

// Collectors exposes all collectors for registration with a custom registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		queriesTotal, gateDenials, cacheHits, stageLatency, retrievalTop1, sqlRows,
	}
}
