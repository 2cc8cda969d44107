// Package recorddb loads and screens ground-motion record catalogs into
// candidate pools resampled onto a target period grid.
package recorddb

import (
	"fmt"
	"math"
	"sort"
)

// Filters is the screening predicate applied to catalog records. Zero-valued
// maxima disable the corresponding upper bound. The admitted pool is exactly
// the set of records passing the predicate; no truncation is applied.
type Filters struct {
	MinMagnitude float64
	MaxMagnitude float64

	MinDistanceKm float64
	MaxDistanceKm float64

	MinVs30 float64
	MaxVs30 float64

	// MaxUsablePeriodFactor rejects records whose lowest usable frequency
	// makes the longest grid period unreliable: 1/lowestUsableFreq must reach
	// factor times the longest period. Zero disables the check.
	MaxUsablePeriodFactor float64
}

// recordMeta carries one catalog record's screening attributes.
type recordMeta struct {
	id               int64
	magnitude        float64
	distanceKm       float64
	vs30             float64
	lowestUsableFreq float64
	fileName         string
	fileName2        string
}

// admits applies the screening predicate.
func (f Filters) admits(meta recordMeta, maxPeriod float64) bool {
	if meta.magnitude < f.MinMagnitude {
		return false
	}
	if f.MaxMagnitude > 0 && meta.magnitude > f.MaxMagnitude {
		return false
	}
	if meta.distanceKm < f.MinDistanceKm {
		return false
	}
	if f.MaxDistanceKm > 0 && meta.distanceKm > f.MaxDistanceKm {
		return false
	}
	if meta.vs30 < f.MinVs30 {
		return false
	}
	if f.MaxVs30 > 0 && meta.vs30 > f.MaxVs30 {
		return false
	}
	if f.MaxUsablePeriodFactor > 0 && meta.lowestUsableFreq > 0 {
		if 1/meta.lowestUsableFreq < f.MaxUsablePeriodFactor*maxPeriod {
			return false
		}
	}
	return true
}

// interpLogSa resamples a record's spectrum onto the target grid,
// interpolating log spectral acceleration linearly in log period. Grids
// extending beyond the record's tabulated range are an error; the caller
// screens such records out.
func interpLogSa(periods, sas, grid []float64) ([]float64, error) {
	if len(periods) != len(sas) || len(periods) < 2 {
		return nil, fmt.Errorf("spectrum has %d periods and %d values", len(periods), len(sas))
	}
	if grid[0] < periods[0] || grid[len(grid)-1] > periods[len(periods)-1] {
		return nil, fmt.Errorf("grid [%.4g, %.4g] outside record range [%.4g, %.4g]",
			grid[0], grid[len(grid)-1], periods[0], periods[len(periods)-1])
	}

	out := make([]float64, len(grid))
	for g, target := range grid {
		hi := sort.SearchFloat64s(periods, target)
		if hi < len(periods) && periods[hi] == target {
			if sas[hi] <= 0 {
				return nil, fmt.Errorf("non-positive spectral value %.4g at %.4g s", sas[hi], target)
			}
			out[g] = math.Log(sas[hi])
			continue
		}
		lo := hi - 1
		if sas[lo] <= 0 || sas[hi] <= 0 {
			return nil, fmt.Errorf("non-positive spectral value bracketing %.4g s", target)
		}
		frac := (math.Log(target) - math.Log(periods[lo])) / (math.Log(periods[hi]) - math.Log(periods[lo]))
		out[g] = math.Log(sas[lo]) + frac*(math.Log(sas[hi])-math.Log(sas[lo]))
	}
	return out, nil
}
