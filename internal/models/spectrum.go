package models

import "gonum.org/v1/gonum/mat"

// TargetSpectrum holds the statistical target the selection must reproduce:
// log-mean spectral values and their covariance over an ascending period grid.
// Built once per run; immutable thereafter.
type TargetSpectrum struct {
	// Periods is the ascending, deduplicated period grid (seconds). When the
	// target is conditional the conditioning period is a member.
	Periods []float64
	// MeanReq holds the target log-mean spectral value per period.
	MeanReq []float64
	// CovReq is the symmetric positive-semidefinite covariance of log-spectral
	// values over Periods. Zero everywhere when variance is disabled.
	CovReq *mat.SymDense
	// Stdevs is sqrt of the CovReq diagonal, kept alongside because every
	// downstream stage consumes it.
	Stdevs []float64

	// Conditional reports whether the target is conditioned on one period.
	Conditional bool
	// CondIndex is the index of the conditioning period in Periods, -1 when
	// the target is unconditional.
	CondIndex int
}

// PoolRecord carries the identity of one admissible database record.
type PoolRecord struct {
	// ID is the opaque identifier into the original record database.
	ID int64
	// FileName names the time-series file; FileName2 is set for two-component
	// selections.
	FileName  string
	FileName2 string
}

// CandidatePool is the screened set of admissible records with their
// log-spectral values resampled onto the target period grid. Read-only input.
type CandidatePool struct {
	Periods []float64
	Records []PoolRecord
	// LogSa has one row per record, one column per period.
	LogSa [][]float64
}

// Size returns the number of admissible records.
func (p *CandidatePool) Size() int {
	return len(p.Records)
}
