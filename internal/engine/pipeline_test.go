package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/seismostack/gmselect/internal/models"
)

func pipelineOptions() Options {
	return Options{
		Periods:          logSpacedPeriods(0.1, 10, 30),
		SelectionCount:   30,
		Conditional:      true,
		VarianceEnabled:  true,
		Trials:           5,
		Seed:             13,
		Sampling:         models.SamplingLatin,
		ScalingEnabled:   true,
		MaxScale:         6,
		Passes:           3,
		Metric:           models.MetricSSE,
		TolerancePercent: 1,
		Weights:          models.Weights{Mean: 1, Stdev: 2},
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	opts := pipelineOptions()
	pipeline := NewPipeline(nil, fakeModel{}, testCorr(), opts)

	ts, err := BuildTarget(fakeModel{}, testCorr(), testScenario(), opts.Periods, TargetOptions{Conditional: true, VarianceEnabled: true})
	if err != nil {
		t.Fatalf("build target: %v", err)
	}
	pool := syntheticPool(ts, 150, 7)

	result, err := pipeline.Run(context.Background(), testScenario(), pool)
	if err != nil {
		t.Fatalf("pipeline run: %v", err)
	}

	if len(result.Records) != 30 {
		t.Fatalf("got %d records, want 30", len(result.Records))
	}
	seen := make(map[int64]bool)
	for _, rec := range result.Records {
		if seen[rec.RecordID] {
			t.Fatalf("record %d selected twice", rec.RecordID)
		}
		seen[rec.RecordID] = true
		if rec.ScaleFactor <= 0 || rec.ScaleFactor > opts.MaxScale+1e-12 {
			t.Fatalf("scale factor %v outside (0, %v]", rec.ScaleFactor, opts.MaxScale)
		}
	}
	for i, rec := range result.Records {
		if rec.Seq != i+1 {
			t.Fatalf("sequence numbers not contiguous: %d at position %d", rec.Seq, i)
		}
	}
	if result.MaxMeanErrPct > 15 {
		t.Fatalf("max mean error %v%% after optimization, expected a close match", result.MaxMeanErrPct)
	}
}

func TestPipelinePoolTooSmall(t *testing.T) {
	opts := pipelineOptions()
	pipeline := NewPipeline(nil, fakeModel{}, testCorr(), opts)

	ts, err := BuildTarget(fakeModel{}, testCorr(), testScenario(), opts.Periods, TargetOptions{Conditional: true, VarianceEnabled: true})
	if err != nil {
		t.Fatalf("build target: %v", err)
	}
	pool := syntheticPool(ts, 10, 7)

	if _, err := pipeline.Run(context.Background(), testScenario(), pool); !errors.Is(err, ErrPoolTooSmall) {
		t.Fatalf("expected ErrPoolTooSmall, got %v", err)
	}
}

func TestPipelineRejectsMismatchedPoolGrid(t *testing.T) {
	opts := pipelineOptions()
	pipeline := NewPipeline(nil, fakeModel{}, testCorr(), opts)

	ts, err := BuildTarget(fakeModel{}, testCorr(), testScenario(), opts.Periods, TargetOptions{Conditional: true, VarianceEnabled: true})
	if err != nil {
		t.Fatalf("build target: %v", err)
	}
	pool := syntheticPool(ts, 60, 7)
	pool.Periods = pool.Periods[:len(pool.Periods)-1]

	if _, err := pipeline.Run(context.Background(), testScenario(), pool); err == nil {
		t.Fatalf("expected grid mismatch error")
	}
}

func TestPipelineDeterministicWithSeed(t *testing.T) {
	opts := pipelineOptions()
	opts.SelectionCount = 15
	pipeline := NewPipeline(nil, fakeModel{}, testCorr(), opts)

	ts, err := BuildTarget(fakeModel{}, testCorr(), testScenario(), opts.Periods, TargetOptions{Conditional: true, VarianceEnabled: true})
	if err != nil {
		t.Fatalf("build target: %v", err)
	}
	pool := syntheticPool(ts, 80, 3)

	first, err := pipeline.Run(context.Background(), testScenario(), pool)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := pipeline.Run(context.Background(), testScenario(), pool)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for i := range first.Records {
		if first.Records[i].RecordID != second.Records[i].RecordID ||
			first.Records[i].ScaleFactor != second.Records[i].ScaleFactor {
			t.Fatalf("runs with identical seed diverge at record %d", i)
		}
	}
}
