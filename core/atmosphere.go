package core

import "math"

// International Standard Atmosphere, troposphere only.
const (
	isaSeaLevelTempK = 288.15
	isaLapseRate     = 0.0065 // K per metre
	isaGravity       = 9.80665
	isaGasConstant   = 287.05287
	isaTropopauseM   = 11000.0
)

// DensityRatio returns sigma = rho/rho0 at the given altitude in metres.
// Altitudes outside [0, 11000] are clamped.
func DensityRatio(altitudeM float64) float64 {
	h := math.Max(0, math.Min(isaTropopauseM, altitudeM))
	t := isaSeaLevelTempK - isaLapseRate*h
	exp := isaGravity/(isaLapseRate*isaGasConstant) - 1
	return math.Pow(t/isaSeaLevelTempK, exp)
}

// PowerScale is the factor by which level-flight power grows at altitude
// for the same indicated airspeed, 1/sqrt(sigma).
func PowerScale(altitudeM float64) float64 {
	return 1 / math.Sqrt(DensityRatio(altitudeM))
}
