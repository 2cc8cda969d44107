package engine

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/seismostack/gmselect/internal/models"
)

// SimOptions control spectrum simulation.
type SimOptions struct {
	// Count is the number of spectra per trial (the selection count).
	Count int
	// Trials is the number of independent trial sets scored against the
	// target; the best one is kept.
	Trials int
	// Seed fixes the random stream; 0 seeds from the clock.
	Seed uint64
	// Weights apply to the mean and stdev deviation terms of the trial score.
	Weights models.Weights
	// Sampling selects Latin-hypercube stratification or plain Monte Carlo.
	Sampling models.Sampling
}

// SimulatedSet is the chosen trial of synthetic log-spectral rows. Ephemeral:
// it only drives the initial matcher.
type SimulatedSet struct {
	LogSa [][]float64
	// Score is the winning trial's weighted deviation from the target.
	Score float64
}

// Simulate draws Trials candidate sets from the target distribution and keeps
// the one whose per-period mean, standard deviation and skewness deviate
// least from the target. A fixed non-zero seed makes the chosen trial
// reproducible bit for bit.
func Simulate(ts *models.TargetSpectrum, opts SimOptions) (*SimulatedSet, error) {
	if opts.Count <= 0 {
		return nil, fmt.Errorf("selection count must be positive, got %d", opts.Count)
	}
	if opts.Trials <= 0 {
		return nil, fmt.Errorf("trial count must be positive, got %d", opts.Trials)
	}

	n := len(ts.Periods)

	// Degenerate target: no randomness left, every spectrum is the mean.
	if isZeroVariance(ts) {
		rows := make([][]float64, opts.Count)
		for i := range rows {
			rows[i] = append([]float64(nil), ts.MeanReq...)
		}
		return &SimulatedSet{LogSa: rows}, nil
	}

	factor, err := covarianceFactor(ts.CovReq)
	if err != nil {
		return nil, err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rnd := rand.New(rand.NewSource(seed))

	var best *SimulatedSet
	z := mat.NewDense(opts.Count, n, nil)
	for trial := 0; trial < opts.Trials; trial++ {
		drawStandardNormals(z, rnd, opts.Sampling)

		var x mat.Dense
		x.Mul(z, factor.T())

		rows := make([][]float64, opts.Count)
		for i := range rows {
			row := make([]float64, n)
			for j := 0; j < n; j++ {
				row[j] = ts.MeanReq[j] + x.At(i, j)
			}
			rows[i] = row
		}

		score := trialScore(rows, ts, opts.Weights)
		if best == nil || score < best.Score {
			best = &SimulatedSet{LogSa: rows, Score: score}
		}
	}
	return best, nil
}

// covarianceFactor returns A with A*Aᵀ = cov via symmetric eigendecomposition.
// Unlike a Cholesky factor this tolerates the rank-deficient covariance a
// conditional target produces; tiny negative eigenvalues are clamped to zero.
func covarianceFactor(cov *mat.SymDense) (*mat.Dense, error) {
	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return nil, fmt.Errorf("covariance eigendecomposition failed: %w", ErrSingularConditioning)
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	n := len(values)
	factor := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		scale := 0.0
		if values[j] > 0 {
			scale = math.Sqrt(values[j])
		}
		for i := 0; i < n; i++ {
			factor.Set(i, j, vectors.At(i, j)*scale)
		}
	}
	return factor, nil
}

// drawStandardNormals fills z with independent standard normals. Latin
// hypercube sampling stratifies each dimension into equiprobable bands with
// one draw per band, improving low-sample coverage over plain Monte Carlo.
func drawStandardNormals(z *mat.Dense, rnd *rand.Rand, sampling models.Sampling) {
	rows, cols := z.Dims()
	if sampling == models.SamplingMonteCarlo {
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				z.Set(i, j, rnd.NormFloat64())
			}
		}
		return
	}
	for j := 0; j < cols; j++ {
		perm := rnd.Perm(rows)
		for i := 0; i < rows; i++ {
			p := (float64(perm[i]) + rnd.Float64()) / float64(rows)
			z.Set(i, j, distuv.UnitNormal.Quantile(p))
		}
	}
}

// trialScore measures a trial's weighted deviation from the target mean,
// standard deviation, and zero skewness.
func trialScore(rows [][]float64, ts *models.TargetSpectrum, w models.Weights) float64 {
	col := make([]float64, len(rows))
	var meanDev, stdDev, skewDev float64
	for j := range ts.Periods {
		for i := range rows {
			col[i] = rows[i][j]
		}
		m := stat.Mean(col, nil)
		s := stat.StdDev(col, nil)
		meanDev += sq(m - ts.MeanReq[j])
		stdDev += sq(s - ts.Stdevs[j])
		if s > 0 {
			skewDev += sq(stat.Skew(col, nil))
		}
	}
	return w.Mean*meanDev + w.Stdev*stdDev + 0.1*(w.Mean+w.Stdev)*skewDev
}

func isZeroVariance(ts *models.TargetSpectrum) bool {
	for _, s := range ts.Stdevs {
		if s != 0 {
			return false
		}
	}
	return true
}

func sq(v float64) float64 { return v * v }
