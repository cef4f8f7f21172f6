package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tickerpulse"

// Scheduler Prometheus metrics.
var (
	AcquireTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_acquire_total",
			Help:      "Model acquisitions by result",
		},
		[]string{"result"}, // "selected" / "none"
	)

	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_dispatch_total",
			Help:      "Successful dispatches per model",
		},
		[]string{"model"},
	)

	CooldownTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_cooldown_total",
			Help:      "Rate-limit cool-downs per model",
		},
		[]string{"model"},
	)

	BudgetRemaining = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget_requests_remaining",
			Help:      "Requests left in today's budget",
		},
	)

	PersistenceErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_persistence_errors_total",
			Help:      "Budget record load/save failures",
		},
		[]string{"op"}, // "load" / "save"
	)
)

// LLM Prometheus metrics.
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Language-model requests by outcome",
		},
		[]string{"model", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Language-model request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompt_cache_total",
			Help:      "Prompt cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

// Pipeline Prometheus metrics.
var (
	PipelineItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_items_total",
			Help:      "Posts and comments seen by the pipelines",
		},
		[]string{"kind", "result"}, // "post"/"comment", "kept"/"filtered"
	)

	PipelineBatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_batches_total",
			Help:      "Extraction batches sent",
		},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			AcquireTotal,
			DispatchTotal,
			CooldownTotal,
			BudgetRemaining,
			PersistenceErrorsTotal,
			LLMRequestsTotal,
			LLMRequestDuration,
			CacheTotal,
			PipelineItemsTotal,
			PipelineBatchesTotal,
		)
	})
}
