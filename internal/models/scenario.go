package models

// Mechanism enumerates fault rupture styles.
type Mechanism string

const (
	MechanismUnspecified Mechanism = "unspecified"
	MechanismStrikeSlip  Mechanism = "strike-slip"
	MechanismNormal      Mechanism = "normal"
	MechanismReverse     Mechanism = "reverse"
)

// Region enumerates broad tectonic regions recognised by ground-motion models.
type Region string

const (
	RegionGlobal     Region = "global"
	RegionCalifornia Region = "california"
	RegionJapan      Region = "japan"
	RegionTaiwan     Region = "taiwan"
)

// RuptureScenario describes the earthquake scenario a target spectrum is built
// for. Immutable input to the pipeline.
type RuptureScenario struct {
	Magnitude    float64
	DistanceKm   float64
	Vs30         float64
	BasinDepthKm float64
	Mechanism    Mechanism
	Region       Region

	// ConditioningPeriod is the period (seconds) at which the target is pinned
	// when conditional selection is enabled.
	ConditioningPeriod float64
	// Epsilon is the number of standard deviations the conditioning spectral
	// value lies above or below the model median.
	Epsilon float64
}
