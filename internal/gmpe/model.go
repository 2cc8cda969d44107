// Package gmpe defines the ground-motion prediction capability consumed by
// the target spectrum builder, plus a built-in reference model.
package gmpe

import (
	"github.com/seismostack/gmselect/internal/models"
)

// Model supplies the median and dispersion of log spectral acceleration for a
// rupture scenario at one period. Implementations must be deterministic and
// pure.
type Model interface {
	Evaluate(rup models.RuptureScenario, period float64) (medianLogSa, sigma float64, err error)
}

// Func adapts a plain function to the Model interface.
type Func func(rup models.RuptureScenario, period float64) (float64, float64, error)

// Evaluate implements Model.
func (f Func) Evaluate(rup models.RuptureScenario, period float64) (float64, float64, error) {
	return f(rup, period)
}
