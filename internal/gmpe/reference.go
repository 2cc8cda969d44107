package gmpe

import (
	"fmt"
	"math"
	"sort"

	"github.com/seismostack/gmselect/internal/models"
)

// referenceCoeff holds the attenuation coefficients tabulated at one period.
type referenceCoeff struct {
	period float64
	c0     float64 // amplitude
	c1     float64 // linear magnitude scaling
	c2     float64 // quadratic magnitude scaling
	c3     float64 // geometric spreading
	c4     float64 // site (Vs30) scaling
	c5     float64 // basin depth scaling
	sigma  float64 // total log standard deviation
}

// ReferenceModel is a compact coefficient-table attenuation model intended as
// the default Model implementation and as a stand-in in tests. Coefficients
// are tabulated on a fixed period set; between tabulated periods the median
// and sigma are interpolated linearly in log period.
type ReferenceModel struct {
	coeffs []referenceCoeff
}

// Fictitious depth term keeping the distance metric finite at zero distance.
const referenceDepthKm = 6.0

// NewReferenceModel returns the built-in attenuation model.
func NewReferenceModel() *ReferenceModel {
	return &ReferenceModel{coeffs: referenceTable}
}

var referenceTable = []referenceCoeff{
	{period: 0.01, c0: 0.48, c1: 0.72, c2: -0.10, c3: -0.90, c4: -0.36, c5: 0.04, sigma: 0.55},
	{period: 0.05, c0: 0.96, c1: 0.70, c2: -0.10, c3: -0.95, c4: -0.30, c5: 0.03, sigma: 0.58},
	{period: 0.10, c0: 1.12, c1: 0.71, c2: -0.11, c3: -0.98, c4: -0.25, c5: 0.03, sigma: 0.60},
	{period: 0.20, c0: 0.97, c1: 0.75, c2: -0.12, c3: -0.94, c4: -0.31, c5: 0.04, sigma: 0.62},
	{period: 0.30, c0: 0.73, c1: 0.80, c2: -0.13, c3: -0.90, c4: -0.38, c5: 0.05, sigma: 0.63},
	{period: 0.50, c0: 0.33, c1: 0.88, c2: -0.14, c3: -0.85, c4: -0.48, c5: 0.07, sigma: 0.64},
	{period: 0.75, c0: -0.07, c1: 0.95, c2: -0.15, c3: -0.81, c4: -0.55, c5: 0.09, sigma: 0.65},
	{period: 1.00, c0: -0.37, c1: 1.01, c2: -0.16, c3: -0.78, c4: -0.60, c5: 0.11, sigma: 0.66},
	{period: 1.50, c0: -0.82, c1: 1.09, c2: -0.17, c3: -0.75, c4: -0.64, c5: 0.13, sigma: 0.67},
	{period: 2.00, c0: -1.16, c1: 1.15, c2: -0.18, c3: -0.72, c4: -0.66, c5: 0.15, sigma: 0.68},
	{period: 3.00, c0: -1.67, c1: 1.23, c2: -0.19, c3: -0.70, c4: -0.66, c5: 0.16, sigma: 0.69},
	{period: 4.00, c0: -2.05, c1: 1.28, c2: -0.20, c3: -0.69, c4: -0.64, c5: 0.17, sigma: 0.70},
	{period: 5.00, c0: -2.36, c1: 1.32, c2: -0.20, c3: -0.68, c4: -0.62, c5: 0.17, sigma: 0.71},
	{period: 7.50, c0: -2.95, c1: 1.38, c2: -0.21, c3: -0.67, c4: -0.58, c5: 0.17, sigma: 0.72},
	{period: 10.0, c0: -3.39, c1: 1.42, c2: -0.21, c3: -0.66, c4: -0.55, c5: 0.17, sigma: 0.73},
}

// Evaluate returns the median log spectral acceleration and its standard
// deviation for the scenario at the requested period. Periods outside the
// tabulated range are an error.
func (m *ReferenceModel) Evaluate(rup models.RuptureScenario, period float64) (float64, float64, error) {
	n := len(m.coeffs)
	if period < m.coeffs[0].period || period > m.coeffs[n-1].period {
		return 0, 0, fmt.Errorf("period %.4g s outside tabulated range [%.4g, %.4g]",
			period, m.coeffs[0].period, m.coeffs[n-1].period)
	}
	if rup.Magnitude <= 0 || rup.Vs30 <= 0 || rup.DistanceKm < 0 {
		return 0, 0, fmt.Errorf("invalid scenario: magnitude=%.3g distance=%.3g vs30=%.3g",
			rup.Magnitude, rup.DistanceKm, rup.Vs30)
	}

	hi := sort.Search(n, func(i int) bool { return m.coeffs[i].period >= period })
	if m.coeffs[hi].period == period {
		mu, sig := m.evalAt(m.coeffs[hi], rup)
		return mu, sig, nil
	}
	lo := hi - 1

	muLo, sigLo := m.evalAt(m.coeffs[lo], rup)
	muHi, sigHi := m.evalAt(m.coeffs[hi], rup)
	frac := (math.Log(period) - math.Log(m.coeffs[lo].period)) /
		(math.Log(m.coeffs[hi].period) - math.Log(m.coeffs[lo].period))
	return muLo + frac*(muHi-muLo), sigLo + frac*(sigHi-sigLo), nil
}

func (m *ReferenceModel) evalAt(c referenceCoeff, rup models.RuptureScenario) (float64, float64) {
	dm := rup.Magnitude - 6.0
	r := math.Sqrt(rup.DistanceKm*rup.DistanceKm + referenceDepthKm*referenceDepthKm)

	mu := c.c0 + c.c1*dm + c.c2*dm*dm + c.c3*math.Log(r) + c.c4*math.Log(rup.Vs30/760)
	if rup.BasinDepthKm > 0 {
		mu += c.c5 * math.Log(rup.BasinDepthKm+0.1)
	}
	switch rup.Mechanism {
	case models.MechanismReverse:
		mu += 0.08
	case models.MechanismNormal:
		mu -= 0.05
	}
	return mu, c.sigma
}
