package models

// Metric enumerates the aggregate error metrics the optimizer can minimise.
type Metric string

const (
	// MetricSSE sums squared log-space deviations of the selection's mean and
	// standard deviation from the target, weighted per Weights.
	MetricSSE Metric = "sse"
	// MetricDStat sums per-period two-sample Kolmogorov distances between the
	// selection's empirical distribution and the target normal distribution.
	MetricDStat Metric = "dstat"
)

// Sampling enumerates the simulator's sampling schemes.
type Sampling string

const (
	SamplingLatin      Sampling = "latin"
	SamplingMonteCarlo Sampling = "monte"
)

// Weights control the relative importance of mean, standard deviation and
// skewness deviations when scoring simulated trials and SSE swaps.
type Weights struct {
	Mean  float64
	Stdev float64
}

// SelectionState is the evolving working set: one pool record per slot, its
// scale factor, and the resulting scaled log-spectral rows. Created by the
// initial matcher and refined in place by the optimizer.
type SelectionState struct {
	// Indices holds the pool row selected for each slot; no duplicates.
	Indices []int
	// Scales holds the linear scale factor applied to each selected record.
	Scales []float64
	// ScaledLogSa holds log(scale * sa) per slot and period.
	ScaledLogSa [][]float64
	// Unmatched lists slots where no candidate satisfied the scale bound and
	// the best poor match was taken instead.
	Unmatched []int
}

// Count returns the number of selection slots.
func (s *SelectionState) Count() int {
	return len(s.Indices)
}

// SelectedRecord is one row of the final deliverable.
type SelectedRecord struct {
	Seq         int
	RecordID    int64
	ScaleFactor float64
	FileName    string
	FileName2   string
}

// SelectionResult summarises a completed selection run.
type SelectionResult struct {
	Records []SelectedRecord
	// MaxMeanErrPct and MaxStdevErrPct are the final maximum percent errors of
	// the selection's mean and standard deviation relative to the target.
	MaxMeanErrPct  float64
	MaxStdevErrPct float64
	// Unmatched lists slots flagged by the matcher; empty on a clean run.
	Unmatched []int
	// Converged reports whether the final error is within tolerance.
	Converged bool
	// Swaps and Passes describe the optimization effort spent.
	Swaps  int
	Passes int
}
