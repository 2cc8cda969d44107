package engine

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/seismostack/gmselect/internal/correlation"
	"github.com/seismostack/gmselect/internal/gmpe"
	"github.com/seismostack/gmselect/internal/models"
)

// TargetOptions control how the target spectrum is assembled.
type TargetOptions struct {
	// Conditional pins the target to the scenario's conditioning period and
	// epsilon; unconditional targets use the model median directly.
	Conditional bool
	// VarianceEnabled toggles the covariance; when false the target is a
	// single deterministic spectrum and every covariance entry is zero.
	VarianceEnabled bool
}

// PeriodGrid returns the ascending, deduplicated period grid the run operates
// on, inserting the conditioning period when conditional selection needs it.
// The candidate pool must be resampled onto this exact grid.
func PeriodGrid(periods []float64, condPeriod float64, conditional bool) []float64 {
	grid := append([]float64(nil), periods...)
	if conditional {
		grid = append(grid, condPeriod)
	}
	sort.Float64s(grid)

	out := grid[:0]
	for i, p := range grid {
		if i > 0 && p == out[len(out)-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// BuildTarget queries the ground-motion model across the period grid and
// assembles the target mean vector and covariance matrix, conditioned on the
// scenario's conditioning period when requested.
func BuildTarget(gmm gmpe.Model, corr correlation.Func, rup models.RuptureScenario, periods []float64, opts TargetOptions) (*models.TargetSpectrum, error) {
	if len(periods) == 0 {
		return nil, ErrEmptyPeriodGrid
	}
	grid := PeriodGrid(periods, rup.ConditioningPeriod, opts.Conditional)

	condIdx := -1
	if opts.Conditional {
		condIdx = sort.SearchFloat64s(grid, rup.ConditioningPeriod)
	}

	n := len(grid)
	medians := make([]float64, n)
	sigmas := make([]float64, n)
	for i, period := range grid {
		mu, sigma, err := gmm.Evaluate(rup, period)
		if err != nil {
			return nil, fmt.Errorf("ground-motion model at %.4g s: %w", period, err)
		}
		if sigma <= 0 {
			return nil, fmt.Errorf("at period %.4g s: %w", period, ErrNonPositiveSigma)
		}
		medians[i] = mu
		sigmas[i] = sigma
	}

	mean := make([]float64, n)
	for i := range grid {
		mean[i] = medians[i]
		if opts.Conditional {
			mean[i] += sigmas[i] * rup.Epsilon * corr(grid[i], rup.ConditioningPeriod)
		}
	}

	cov, err := buildCovariance(grid, sigmas, corr, condIdx, opts.VarianceEnabled)
	if err != nil {
		return nil, err
	}

	stdevs := make([]float64, n)
	for i := range stdevs {
		stdevs[i] = math.Sqrt(cov.At(i, i))
	}

	return &models.TargetSpectrum{
		Periods:     grid,
		MeanReq:     mean,
		CovReq:      cov,
		Stdevs:      stdevs,
		Conditional: opts.Conditional,
		CondIndex:   condIdx,
	}, nil
}

// buildCovariance fills the covariance of log-spectral values over the grid.
// The unconditional and conditional cases share one Schur-complement
// reduction: the unconditional case simply has no conditioning variable
// (condIdx < 0), while conditioning subtracts the outer product of the
// cross-covariances with the conditioning period, scaled by the inverse of
// its variance.
func buildCovariance(grid, sigmas []float64, corr correlation.Func, condIdx int, varianceEnabled bool) (*mat.SymDense, error) {
	n := len(grid)
	cov := mat.NewSymDense(n, nil)
	if !varianceEnabled {
		return cov, nil
	}

	var cross []float64
	var condVar float64
	if condIdx >= 0 {
		condVar = sigmas[condIdx] * sigmas[condIdx]
		if condVar <= 0 || math.IsNaN(condVar) {
			return nil, ErrSingularConditioning
		}
		cross = make([]float64, n)
		for i := range grid {
			cross[i] = sigmas[i] * sigmas[condIdx] * corr(grid[i], grid[condIdx])
		}
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			entry := sigmas[i] * sigmas[j] * corr(grid[i], grid[j])
			if condIdx >= 0 {
				entry -= cross[i] * cross[j] / condVar
			}
			cov.SetSym(i, j, entry)
		}
	}

	if condIdx >= 0 {
		// The reduction zeroes the conditioning row and column analytically;
		// pin them so floating-point residue cannot leak into the diagonal.
		for i := 0; i < n; i++ {
			cov.SetSym(i, condIdx, 0)
		}
	}
	return cov, nil
}
