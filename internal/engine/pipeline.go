// Package engine implements the target-matching and optimization pipeline:
// target spectrum construction, spectrum simulation, greedy matching, and
// swap-based refinement.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/seismostack/gmselect/internal/correlation"
	"github.com/seismostack/gmselect/internal/gmpe"
	"github.com/seismostack/gmselect/internal/metrics"
	"github.com/seismostack/gmselect/internal/models"
)

// Options gathers every pipeline parameter; the config layer assembles it.
type Options struct {
	Periods        []float64
	SelectionCount int

	Conditional     bool
	VarianceEnabled bool

	Trials   int
	Seed     uint64
	Sampling models.Sampling

	ScalingEnabled bool
	MaxScale       float64

	Passes           int
	Metric           models.Metric
	PenaltyWeight    float64
	TolerancePercent float64
	Weights          models.Weights
	Parallel         bool
}

// Pipeline orchestrates the selection flow: rupture scenario to target
// spectrum, simulated spectra, initial selection, optimized selection. Each
// stage fully consumes the prior stage's output before the next starts.
type Pipeline struct {
	logger *slog.Logger
	gmm    gmpe.Model
	corr   correlation.Func
	opts   Options
}

// NewPipeline constructs a selection pipeline.
func NewPipeline(logger *slog.Logger, gmm gmpe.Model, corr correlation.Func, opts Options) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if corr == nil {
		corr = correlation.BakerJayaram
	}
	return &Pipeline{logger: logger, gmm: gmm, corr: corr, opts: opts}
}

// Run executes the full selection for one rupture scenario against a screened
// candidate pool. Precondition failures abort before simulation; per-slot
// match warnings are carried into the result instead.
func (p *Pipeline) Run(ctx context.Context, rup models.RuptureScenario, pool *models.CandidatePool) (*models.SelectionResult, error) {
	if p.gmm == nil {
		return nil, fmt.Errorf("ground-motion model not configured")
	}
	if p.opts.SelectionCount <= 0 {
		return nil, fmt.Errorf("selection count must be positive, got %d", p.opts.SelectionCount)
	}
	if pool.Size() < p.opts.SelectionCount {
		return nil, fmt.Errorf("%w: pool=%d selection=%d", ErrPoolTooSmall, pool.Size(), p.opts.SelectionCount)
	}

	start := time.Now()
	target, err := BuildTarget(p.gmm, p.corr, rup, p.opts.Periods, TargetOptions{
		Conditional:     p.opts.Conditional,
		VarianceEnabled: p.opts.VarianceEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("build target: %w", err)
	}
	metrics.ObserveStage("target", time.Since(start))

	if err := checkPoolGrid(pool, target); err != nil {
		return nil, err
	}

	p.logger.Info("target spectrum built",
		slog.Int("periods", len(target.Periods)),
		slog.Bool("conditional", target.Conditional))

	start = time.Now()
	sim, err := Simulate(target, SimOptions{
		Count:    p.opts.SelectionCount,
		Trials:   p.opts.Trials,
		Seed:     p.opts.Seed,
		Weights:  p.opts.Weights,
		Sampling: p.opts.Sampling,
	})
	if err != nil {
		return nil, fmt.Errorf("simulate spectra: %w", err)
	}
	metrics.ObserveStage("simulate", time.Since(start))
	p.logger.Info("simulated spectra chosen", slog.Float64("trial_score", sim.Score))

	start = time.Now()
	state, err := MatchInitial(sim, pool, target, MatchOptions{
		ScalingEnabled: p.opts.ScalingEnabled,
		MaxScale:       p.opts.MaxScale,
	})
	if err != nil {
		return nil, fmt.Errorf("initial match: %w", err)
	}
	metrics.ObserveStage("match", time.Since(start))
	metrics.AddUnmatchedSlots(len(state.Unmatched))
	for _, slot := range state.Unmatched {
		p.logger.Warn("no candidate within scale bound, best poor match kept",
			slog.Int("slot", slot),
			slog.Int64("record", pool.Records[state.Indices[slot]].ID))
	}

	start = time.Now()
	report, err := Optimize(ctx, state, target, pool, OptimizeOptions{
		Passes:           p.opts.Passes,
		Metric:           p.opts.Metric,
		PenaltyWeight:    p.opts.PenaltyWeight,
		MaxScale:         p.opts.MaxScale,
		TolerancePercent: p.opts.TolerancePercent,
		Weights:          p.opts.Weights,
		ScalingEnabled:   p.opts.ScalingEnabled,
		Parallel:         p.opts.Parallel,
	}, p.logger)
	if err != nil {
		return nil, fmt.Errorf("optimize selection: %w", err)
	}
	metrics.ObserveStage("optimize", time.Since(start))
	metrics.AddSwaps(report.Swaps)

	if report.Skipped {
		p.logger.Info("optimization skipped, selection within tolerance",
			slog.Float64("max_mean_err_pct", report.MaxMeanErrPct),
			slog.Float64("max_stdev_err_pct", report.MaxStdevErrPct))
	} else if !report.Converged {
		p.logger.Warn("optimization exhausted passes above tolerance",
			slog.Int("passes", report.Passes),
			slog.Float64("max_mean_err_pct", report.MaxMeanErrPct),
			slog.Float64("max_stdev_err_pct", report.MaxStdevErrPct))
	}

	records := make([]models.SelectedRecord, state.Count())
	for slot, idx := range state.Indices {
		rec := pool.Records[idx]
		records[slot] = models.SelectedRecord{
			Seq:         slot + 1,
			RecordID:    rec.ID,
			ScaleFactor: state.Scales[slot],
			FileName:    rec.FileName,
			FileName2:   rec.FileName2,
		}
	}

	result := &models.SelectionResult{
		Records:        records,
		MaxMeanErrPct:  report.MaxMeanErrPct,
		MaxStdevErrPct: report.MaxStdevErrPct,
		Unmatched:      append([]int(nil), state.Unmatched...),
		Converged:      report.Converged,
		Swaps:          report.Swaps,
		Passes:         report.Passes,
	}

	p.logger.Info("selection complete",
		slog.Int("records", len(records)),
		slog.Int("swaps", report.Swaps),
		slog.Float64("max_mean_err_pct", result.MaxMeanErrPct),
		slog.Float64("max_stdev_err_pct", result.MaxStdevErrPct))
	return result, nil
}

// checkPoolGrid rejects pools that were not resampled onto the target grid.
func checkPoolGrid(pool *models.CandidatePool, ts *models.TargetSpectrum) error {
	if len(pool.Periods) != len(ts.Periods) {
		return fmt.Errorf("pool period grid has %d periods, target has %d", len(pool.Periods), len(ts.Periods))
	}
	for i := range ts.Periods {
		if math.Abs(pool.Periods[i]-ts.Periods[i]) > 1e-9 {
			return fmt.Errorf("pool period %d is %.6g s, target wants %.6g s", i, pool.Periods[i], ts.Periods[i])
		}
	}
	return nil
}
