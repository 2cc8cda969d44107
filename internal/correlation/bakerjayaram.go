// Package correlation provides inter-period correlation models for
// log-spectral acceleration.
package correlation

import "math"

// Func returns the correlation of log-spectral acceleration between two
// periods. Implementations must be symmetric, pure, and return 1 for equal
// periods.
type Func func(periodA, periodB float64) float64

// BakerJayaram implements the Baker & Jayaram (2008) correlation model,
// applicable for periods in [0.01, 10] seconds.
func BakerJayaram(periodA, periodB float64) float64 {
	tMin := math.Min(periodA, periodB)
	tMax := math.Max(periodA, periodB)
	if tMin == tMax {
		return 1
	}

	c1 := 1 - math.Cos(math.Pi/2-0.366*math.Log(tMax/math.Max(tMin, 0.109)))

	c2 := 0.0
	if tMax < 0.2 {
		c2 = 1 - 0.105*(1-1/(1+math.Exp(100*tMax-5)))*((tMax-tMin)/(tMax-0.0099))
	}

	c3 := c1
	if tMax < 0.109 {
		c3 = c2
	}

	c4 := c1 + 0.5*(math.Sqrt(c3)-c3)*(1+math.Cos(math.Pi*tMin/0.109))

	switch {
	case tMax < 0.109:
		return c2
	case tMin > 0.109:
		return c1
	case tMax < 0.2:
		return math.Min(c2, c4)
	default:
		return c4
	}
}
