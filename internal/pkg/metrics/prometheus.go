package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reeltrip_stage_duration_seconds",
			Help:    "Pipeline stage wall-clock duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	stageCounters = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reeltrip_stage_counter_total",
			Help: "Pipeline stage custom counters",
		},
		[]string{"stage", "counter"},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reeltrip_runs_total",
			Help: "Total number of pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	estimatorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reeltrip_estimator_calls_total",
			Help: "Total number of vision estimator calls by result",
		},
		[]string{"result"},
	)

	refinementIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reeltrip_refinement_iterations",
			Help:    "Refinement loop iterations per run",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 8, 10},
		},
	)
)

func observeStageDuration(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func incrementStageCounter(stage, counter string, delta int) {
	if delta <= 0 {
		return
	}
	stageCounters.WithLabelValues(stage, counter).Add(float64(delta))
}

// RecordRunOutcome counts a finished run as "completed", "failed" or
// "unconverged".
func RecordRunOutcome(outcome string) {
	runsTotal.WithLabelValues(outcome).Inc()
}

// RecordEstimatorCall counts one estimator call as "success" or "failure".
func RecordEstimatorCall(result string) {
	estimatorCalls.WithLabelValues(result).Inc()
}

// RecordRefinementIterations observes how many iterations a run used.
func RecordRefinementIterations(n int) {
	refinementIterations.Observe(float64(n))
}
