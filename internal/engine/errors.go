package engine

import "errors"

// Precondition failures abort the pipeline before simulation; numerical
// degeneracy aborts the target build. Per-slot match warnings are carried on
// SelectionState instead of errors.
var (
	// ErrEmptyPeriodGrid reports a target build with no periods.
	ErrEmptyPeriodGrid = errors.New("period grid is empty")
	// ErrNonPositiveSigma reports a ground-motion model returning sigma <= 0.
	ErrNonPositiveSigma = errors.New("ground-motion model returned non-positive sigma")
	// ErrSingularConditioning reports a conditioning variance too small to
	// invert during the Schur-complement reduction.
	ErrSingularConditioning = errors.New("conditioning variance is singular")
	// ErrPoolTooSmall reports fewer admissible records than selection slots.
	ErrPoolTooSmall = errors.New("candidate pool smaller than selection count")
)
