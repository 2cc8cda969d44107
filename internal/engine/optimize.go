package engine

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/seismostack/gmselect/internal/models"
	"github.com/seismostack/gmselect/internal/utils"
)

// OptimizeOptions control the swap-based refinement of a selection.
type OptimizeOptions struct {
	// Passes caps the number of full sweeps over the selection slots.
	Passes int
	// Metric chooses the aggregate error definition.
	Metric models.Metric
	// PenaltyWeight scales the penalty for scaled spectra leaving the target
	// mean +/- 3 stdev band; zero disables the penalty.
	PenaltyWeight float64
	// MaxScale is the largest admissible scale factor for substitutes.
	MaxScale float64
	// TolerancePercent skips optimization entirely when the incoming
	// selection's max percent error is already within it.
	TolerancePercent float64
	// Weights apply to the SSE metric's mean and stdev terms.
	Weights models.Weights
	// ScalingEnabled mirrors the matcher's scaling mode.
	ScalingEnabled bool
	// Parallel evaluates the candidate substitutions for each slot
	// concurrently. Commit order is unchanged, so results match the
	// sequential mode.
	Parallel bool
}

// OptimizeReport summarises the optimization outcome.
type OptimizeReport struct {
	// Skipped is true when the incoming selection was already within
	// tolerance and the state was returned unchanged.
	Skipped bool
	Swaps   int
	Passes  int
	// Converged is true when the final max percent error is within tolerance.
	Converged      bool
	MaxMeanErrPct  float64
	MaxStdevErrPct float64
	// InitialMetric and FinalMetric bracket the aggregate error trajectory.
	InitialMetric float64
	FinalMetric   float64
}

// Optimize refines the selection in place: for each slot it evaluates every
// unselected pool record as a substitute and commits the swap only when it
// strictly reduces the aggregate metric. Substitutions take effect
// immediately, so later evaluations in the same pass see the updated
// selection. Ties between candidates go to the lowest pool index.
func Optimize(ctx context.Context, state *models.SelectionState, ts *models.TargetSpectrum, pool *models.CandidatePool, opts OptimizeOptions, logger *slog.Logger) (OptimizeReport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	report := OptimizeReport{}
	report.MaxMeanErrPct, report.MaxStdevErrPct = maxPercentErrors(state.ScaledLogSa, ts)
	if math.Max(report.MaxMeanErrPct, report.MaxStdevErrPct) <= opts.TolerancePercent {
		report.Skipped = true
		report.Converged = true
		return report, nil
	}

	mopts := MatchOptions{ScalingEnabled: opts.ScalingEnabled, MaxScale: opts.MaxScale}
	tracker := utils.NewErrorTracker(opts.Passes + 1)

	current := selectionMetric(state.ScaledLogSa, ts, opts)
	report.InitialMetric = current
	tracker.Observe(current)

	used := make(map[int]bool, state.Count())
	for _, idx := range state.Indices {
		used[idx] = true
	}

	for pass := 0; pass < opts.Passes; pass++ {
		swapped := false
		for slot := 0; slot < state.Count(); slot++ {
			if err := ctx.Err(); err != nil {
				return report, err
			}

			best := evaluateSlot(state, ts, pool, used, slot, current, opts, mopts)
			if best.idx < 0 {
				continue
			}

			delete(used, state.Indices[slot])
			used[best.idx] = true
			state.Indices[slot] = best.idx
			state.Scales[slot] = best.scale
			state.ScaledLogSa[slot] = best.row
			current = best.score
			report.Swaps++
			swapped = true
			logger.Debug("swap committed",
				slog.Int("slot", slot),
				slog.Int("record", best.idx),
				slog.Float64("metric", current))
		}
		report.Passes = pass + 1
		tracker.Observe(current)
		if !swapped {
			break
		}
	}

	report.FinalMetric = tracker.Last()
	report.MaxMeanErrPct, report.MaxStdevErrPct = maxPercentErrors(state.ScaledLogSa, ts)
	report.Converged = math.Max(report.MaxMeanErrPct, report.MaxStdevErrPct) <= opts.TolerancePercent
	return report, nil
}

// swapCandidate is one evaluated substitution.
type swapCandidate struct {
	idx   int
	scale float64
	row   []float64
	score float64
}

// evaluateSlot finds the best strict improvement for one slot, or idx -1.
func evaluateSlot(state *models.SelectionState, ts *models.TargetSpectrum, pool *models.CandidatePool, used map[int]bool, slot int, current float64, opts OptimizeOptions, mopts MatchOptions) swapCandidate {
	if opts.Parallel {
		return evaluateSlotParallel(state, ts, pool, used, slot, current, opts, mopts)
	}
	best := swapCandidate{idx: -1, score: current}
	for m := 0; m < pool.Size(); m++ {
		if used[m] {
			continue
		}
		cand, ok := evaluateSwap(state, ts, pool, slot, m, opts, mopts)
		if ok && cand.score < best.score {
			best = cand
		}
	}
	return best
}

// evaluateSlotParallel fans the candidate scan out over the available CPUs.
// Evaluations only read the selection; the caller commits the single winner,
// and the merge prefers the lowest index on ties so the result is identical
// to the sequential scan.
func evaluateSlotParallel(state *models.SelectionState, ts *models.TargetSpectrum, pool *models.CandidatePool, used map[int]bool, slot int, current float64, opts OptimizeOptions, mopts MatchOptions) swapCandidate {
	workers := runtime.GOMAXPROCS(0)
	if workers > pool.Size() {
		workers = pool.Size()
	}

	results := make([]swapCandidate, workers)
	var wg sync.WaitGroup
	chunk := (pool.Size() + workers - 1) / workers
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			best := swapCandidate{idx: -1, score: current}
			lo, hi := w*chunk, (w+1)*chunk
			if hi > pool.Size() {
				hi = pool.Size()
			}
			for m := lo; m < hi; m++ {
				if used[m] {
					continue
				}
				cand, ok := evaluateSwap(state, ts, pool, slot, m, opts, mopts)
				if ok && cand.score < best.score {
					best = cand
				}
			}
			results[w] = best
		}(w)
	}
	wg.Wait()

	best := swapCandidate{idx: -1, score: current}
	for _, cand := range results {
		if cand.idx < 0 {
			continue
		}
		if cand.score < best.score || (cand.score == best.score && best.idx >= 0 && cand.idx < best.idx) {
			best = cand
		}
	}
	return best
}

// evaluateSwap scores the selection with slot replaced by pool record m. The
// substitute's scale factor is recomputed against the target mean the same
// way the matcher computes it.
func evaluateSwap(state *models.SelectionState, ts *models.TargetSpectrum, pool *models.CandidatePool, slot, m int, opts OptimizeOptions, mopts MatchOptions) (swapCandidate, bool) {
	scale := scaleFactor(pool.LogSa[m], ts.MeanReq, ts, mopts)
	if !scaleAdmissible(scale, mopts) {
		return swapCandidate{}, false
	}
	row := scaledRow(pool.LogSa[m], scale)

	rows := make([][]float64, state.Count())
	copy(rows, state.ScaledLogSa)
	rows[slot] = row

	return swapCandidate{idx: m, scale: scale, row: row, score: selectionMetric(rows, ts, opts)}, true
}

// selectionMetric computes the aggregate error of a selection against the
// target, plus the 3-sigma exceedance penalty when configured.
func selectionMetric(rows [][]float64, ts *models.TargetSpectrum, opts OptimizeOptions) float64 {
	var total float64
	switch opts.Metric {
	case models.MetricDStat:
		total = dStatistic(rows, ts)
	default:
		total = sseMetric(rows, ts, opts.Weights)
	}
	if opts.PenaltyWeight > 0 {
		total += opts.PenaltyWeight * float64(bandExceedances(rows, ts))
	}
	return total
}

// sseMetric sums weighted squared log-space deviations of the selection's
// per-period mean and standard deviation from the target.
func sseMetric(rows [][]float64, ts *models.TargetSpectrum, w models.Weights) float64 {
	col := make([]float64, len(rows))
	var total float64
	for j := range ts.Periods {
		for i := range rows {
			col[i] = rows[i][j]
		}
		m := stat.Mean(col, nil)
		total += w.Mean * sq(m-ts.MeanReq[j])
		if skipStdevAt(ts, j) {
			continue
		}
		s := stat.StdDev(col, nil)
		total += w.Stdev * sq(s-ts.Stdevs[j])
	}
	return total
}

// dStatistic sums, over periods, the Kolmogorov distance between the
// selection's empirical CDF and the target normal CDF.
func dStatistic(rows [][]float64, ts *models.TargetSpectrum) float64 {
	n := len(rows)
	col := make([]float64, n)
	var total float64
	for j := range ts.Periods {
		if skipStdevAt(ts, j) {
			continue
		}
		for i := range rows {
			col[i] = rows[i][j]
		}
		sort.Float64s(col)
		dist := distuv.Normal{Mu: ts.MeanReq[j], Sigma: ts.Stdevs[j]}

		var dMax float64
		for i, x := range col {
			f := dist.CDF(x)
			if d := math.Abs(float64(i+1)/float64(n) - f); d > dMax {
				dMax = d
			}
			if d := math.Abs(f - float64(i)/float64(n)); d > dMax {
				dMax = d
			}
		}
		total += dMax
	}
	return total
}

// bandExceedances counts period samples falling outside target mean +/- 3
// stdev across the whole selection.
func bandExceedances(rows [][]float64, ts *models.TargetSpectrum) int {
	count := 0
	for j := range ts.Periods {
		if ts.Stdevs[j] == 0 {
			continue
		}
		hi := ts.MeanReq[j] + 3*ts.Stdevs[j]
		lo := ts.MeanReq[j] - 3*ts.Stdevs[j]
		for i := range rows {
			if rows[i][j] > hi || rows[i][j] < lo {
				count++
			}
		}
	}
	return count
}

// maxPercentErrors reports the selection's maximum relative percent error in
// linear-space mean and in standard deviation against the target. The stdev
// error skips the conditioning period (its target stdev is zero) and any
// zero-variance period.
func maxPercentErrors(rows [][]float64, ts *models.TargetSpectrum) (meanErr, stdevErr float64) {
	col := make([]float64, len(rows))
	for j := range ts.Periods {
		for i := range rows {
			col[i] = rows[i][j]
		}
		m := stat.Mean(col, nil)
		if e := math.Abs(math.Exp(m)-math.Exp(ts.MeanReq[j])) / math.Exp(ts.MeanReq[j]) * 100; e > meanErr {
			meanErr = e
		}
		if skipStdevAt(ts, j) {
			continue
		}
		s := stat.StdDev(col, nil)
		if e := math.Abs(s-ts.Stdevs[j]) / ts.Stdevs[j] * 100; e > stdevErr {
			stdevErr = e
		}
	}
	return meanErr, stdevErr
}

func skipStdevAt(ts *models.TargetSpectrum, j int) bool {
	if ts.Stdevs[j] == 0 {
		return true
	}
	return ts.Conditional && j == ts.CondIndex
}
