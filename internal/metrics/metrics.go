package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels completed selection runs.
	OutcomeSuccess = "success"
	// OutcomeError labels runs aborted by precondition or pipeline failures.
	OutcomeError = "error"
)

var (
	selectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gmselect",
			Name:      "selections_total",
			Help:      "Total number of selection runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gmselect",
			Name:      "stage_seconds",
			Help:      "Pipeline stage latency in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	swapsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gmselect",
			Name:      "swaps_total",
			Help:      "Record substitutions committed by the optimizer.",
		},
	)

	unmatchedSlotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gmselect",
			Name:      "unmatched_slots_total",
			Help:      "Selection slots where no candidate satisfied the scale bound.",
		},
	)
)

// Register attaches gmselect collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		selectionsTotal,
		stageDurationSeconds,
		swapsTotal,
		unmatchedSlotsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records a completed run with its outcome label.
func ObserveRun(outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	selectionsTotal.WithLabelValues(label).Inc()
}

// ObserveStage records one pipeline stage duration.
func ObserveStage(stage string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	stageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// AddSwaps counts optimizer substitutions.
func AddSwaps(n int) {
	if n > 0 {
		swapsTotal.Add(float64(n))
	}
}

// AddUnmatchedSlots counts slots flagged by the matcher.
func AddUnmatchedSlots(n int) {
	if n > 0 {
		unmatchedSlotsTotal.Add(float64(n))
	}
}
