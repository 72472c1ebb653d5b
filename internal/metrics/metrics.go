// Package metrics exposes the prometheus counters/gauges the loop and
// sandbox record per iteration and action.
//
// Grounded on tombee-conductor's internal/controller/filewatcher/metrics.go
// idiom:
// package-level promauto vectors plus small record* helper functions,
// rather than a struct threaded through every call site.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IterationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentcore_iterations_total",
			Help: "Total iterations executed, by terminal status when the run ended.",
		},
		[]string{"status", "stop_reason"},
	)

	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentcore_actions_total",
			Help: "Total actions dispatched by the sandbox, by action name and outcome.",
		},
		[]string{"action", "outcome"},
	)

	PlannerCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentcore_planner_calls_total",
			Help: "Total planner calls, by whether the call produced a sentinel parse-error plan.",
		},
		[]string{"sentinel"},
	)

	PlannerRetryAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agentcore_planner_retry_attempts",
			Help:    "Distribution of retry attempts consumed per planner call.",
			Buckets: []float64{0, 1, 2, 3, 4},
		},
	)

	ActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentcore_active_runs",
			Help: "Number of runs currently in the Running status.",
		},
	)

	RunDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentcore_run_duration_seconds",
			Help:    "Wall-clock duration of a run from prepare to terminal status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stop_reason"},
	)
)

// RecordAction increments the per-action counter.
func RecordAction(action string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	ActionsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordPlannerCall increments the planner-call counter and records the
// consumed retry attempts.
func RecordPlannerCall(sentinel bool, retryAttempts int) {
	label := "false"
	if sentinel {
		label = "true"
	}
	PlannerCallsTotal.WithLabelValues(label).Inc()
	PlannerRetryAttempts.Observe(float64(retryAttempts))
}

// RecordRunTerminal increments the iteration/run-terminal counters for one
// finished run.
func RecordRunTerminal(status, stopReason string, durationSeconds float64) {
	IterationsTotal.WithLabelValues(status, stopReason).Inc()
	RunDurationSeconds.WithLabelValues(stopReason).Observe(durationSeconds)
}
