package engine

import (
	"math"

	"golang.org/x/exp/rand"

	"github.com/seismostack/gmselect/internal/correlation"
	"github.com/seismostack/gmselect/internal/models"
)

// fakeModel is a deterministic stand-in ground-motion model with a smooth
// period shape and constant dispersion.
type fakeModel struct {
	sigma float64
}

func (f fakeModel) Evaluate(rup models.RuptureScenario, period float64) (float64, float64, error) {
	mu := 0.6*(rup.Magnitude-6) - 0.8*math.Log(rup.DistanceKm+5) - 0.7*math.Log(period+0.2)
	sigma := f.sigma
	if sigma == 0 {
		sigma = 0.6
	}
	return mu, sigma, nil
}

func testScenario() models.RuptureScenario {
	return models.RuptureScenario{
		Magnitude:          6.5,
		DistanceKm:         25,
		Vs30:               400,
		Mechanism:          models.MechanismStrikeSlip,
		Region:             models.RegionGlobal,
		ConditioningPeriod: 0.5,
		Epsilon:            1.9,
	}
}

func logSpacedPeriods(min, max float64, count int) []float64 {
	periods := make([]float64, count)
	step := (math.Log(max) - math.Log(min)) / float64(count-1)
	for i := range periods {
		periods[i] = math.Exp(math.Log(min) + float64(i)*step)
	}
	return periods
}

// syntheticPool draws pool spectra around the target mean so that matching
// and optimization have realistic candidates to work with.
func syntheticPool(ts *models.TargetSpectrum, size int, seed uint64) *models.CandidatePool {
	rnd := rand.New(rand.NewSource(seed))
	pool := &models.CandidatePool{
		Periods: append([]float64(nil), ts.Periods...),
		Records: make([]models.PoolRecord, size),
		LogSa:   make([][]float64, size),
	}
	for m := 0; m < size; m++ {
		pool.Records[m] = models.PoolRecord{ID: int64(1000 + m), FileName: "rec.AT2"}
		row := make([]float64, len(ts.Periods))
		shift := rnd.NormFloat64() * 0.5
		for j := range row {
			spread := ts.Stdevs[j]
			if spread == 0 {
				spread = 0.3
			}
			row[j] = ts.MeanReq[j] + shift + rnd.NormFloat64()*spread
		}
		pool.LogSa[m] = row
	}
	return pool
}

func testCorr() correlation.Func {
	return correlation.BakerJayaram
}
