package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Generator outcomes
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

var (
	GeneratorRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediatags_generator_runs_total",
		Help: "Generator invocations per layer and outcome.",
	}, []string{"layer", "outcome"})

	GeneratorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mediatags_generator_duration_seconds",
		Help:    "Time spent processing one asset for one layer.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"layer"})

	ProfileRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediatags_profile_runs_total",
		Help: "Scan profile executions.",
	}, []string{"profile"})

	TagIndexMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediatags_tag_index_mutations_total",
		Help: "Tag index mutations by operation.",
	}, []string{"op"})

	TagIndexPersistFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediatags_tag_index_persist_failures_total",
		Help: "Tag index document writes that failed.",
	})

	TagIndexAssets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediatags_tag_index_assets",
		Help: "Assets with at least one layer record.",
	})

	ThrottleWaitSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediatags_throttle_wait_seconds_total",
		Help: "Time scan runs spent waiting for system load to drop.",
	})
)
