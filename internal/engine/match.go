package engine

import (
	"fmt"
	"math"

	"github.com/seismostack/gmselect/internal/models"
)

// MatchOptions control the greedy assignment of pool records to simulated
// spectra.
type MatchOptions struct {
	// ScalingEnabled allows a linear amplitude scale per record; when false
	// every record is taken as recorded.
	ScalingEnabled bool
	// MaxScale is the largest admissible scale factor.
	MaxScale float64
}

// MatchInitial assigns one pool record (and scale factor) to each simulated
// spectrum, minimising the per-record sum of squared log deviations. Records
// are consumed greedily: once used, a record is unavailable to later slots.
// Slots where every candidate violates the scale bound fall back to the best
// unused candidate with a clamped scale and are flagged in Unmatched.
func MatchInitial(sim *SimulatedSet, pool *models.CandidatePool, ts *models.TargetSpectrum, opts MatchOptions) (*models.SelectionState, error) {
	n := len(sim.LogSa)
	if pool.Size() < n {
		return nil, fmt.Errorf("%w: pool=%d selection=%d", ErrPoolTooSmall, pool.Size(), n)
	}

	state := &models.SelectionState{
		Indices:     make([]int, n),
		Scales:      make([]float64, n),
		ScaledLogSa: make([][]float64, n),
	}
	used := make(map[int]bool, n)

	for slot := 0; slot < n; slot++ {
		target := sim.LogSa[slot]

		bestIdx, bestScale, bestErr := -1, 0.0, math.Inf(1)
		fallIdx, fallScale, fallErr := -1, 0.0, math.Inf(1)
		for m := 0; m < pool.Size(); m++ {
			if used[m] {
				continue
			}
			scale := scaleFactor(pool.LogSa[m], target, ts, opts)

			clamped := clampScale(scale, opts)
			if e := matchError(pool.LogSa[m], clamped, target); e < fallErr {
				fallIdx, fallScale, fallErr = m, clamped, e
			}

			if !scaleAdmissible(scale, opts) {
				continue
			}
			if e := matchError(pool.LogSa[m], scale, target); e < bestErr {
				bestIdx, bestScale, bestErr = m, scale, e
			}
		}

		if bestIdx < 0 {
			// No candidate within the scale bound: keep the run alive with the
			// best poor match and surface the slot.
			bestIdx, bestScale = fallIdx, fallScale
			state.Unmatched = append(state.Unmatched, slot)
		}

		used[bestIdx] = true
		state.Indices[slot] = bestIdx
		state.Scales[slot] = bestScale
		state.ScaledLogSa[slot] = scaledRow(pool.LogSa[bestIdx], bestScale)
	}
	return state, nil
}

// scaleFactor computes the linear scale aligning a candidate with a target
// log-spectral row: the single-period amplitude ratio at the conditioning
// period for conditional targets, otherwise the least-squares scale in linear
// spectral space.
func scaleFactor(candidate, target []float64, ts *models.TargetSpectrum, opts MatchOptions) float64 {
	if !opts.ScalingEnabled {
		return 1
	}
	if ts.Conditional {
		return math.Exp(target[ts.CondIndex] - candidate[ts.CondIndex])
	}
	var num, den float64
	for j := range candidate {
		c := math.Exp(candidate[j])
		num += c * math.Exp(target[j])
		den += c * c
	}
	if den == 0 {
		return math.Inf(1)
	}
	return num / den
}

func scaleAdmissible(scale float64, opts MatchOptions) bool {
	if !opts.ScalingEnabled {
		return true
	}
	return scale > 0 && !math.IsInf(scale, 0) && !math.IsNaN(scale) && scale <= opts.MaxScale
}

func clampScale(scale float64, opts MatchOptions) float64 {
	if !opts.ScalingEnabled {
		return 1
	}
	if math.IsNaN(scale) || scale <= 0 {
		return 1
	}
	if scale > opts.MaxScale {
		return opts.MaxScale
	}
	return scale
}

// matchError is the sum of squared log-spectral differences after scaling.
func matchError(candidate []float64, scale float64, target []float64) float64 {
	logScale := math.Log(scale)
	var sum float64
	for j := range candidate {
		d := candidate[j] + logScale - target[j]
		sum += d * d
	}
	return sum
}

func scaledRow(candidate []float64, scale float64) []float64 {
	logScale := math.Log(scale)
	row := make([]float64, len(candidate))
	for j := range candidate {
		row[j] = candidate[j] + logScale
	}
	return row
}
