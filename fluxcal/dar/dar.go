// Package dar models differential atmospheric refraction (DAR) for optical
// wavelengths, following the analytic approximations of Filippenko (1982).
package dar

import "math"

// ReferenceWavelength is the wavelength, in angstroms, at which the
// refraction offset is defined to be zero.
const ReferenceWavelength = 5000.0

const arcsecPerRadian = 206265.0

// Conditions describes the site atmosphere during an observation.
type Conditions struct {
	Temperature    float64 // degrees Celsius
	Pressure       float64 // millimetres of mercury
	VapourPressure float64 // millimetres of mercury
}

// DefaultConditions returns the atmosphere assumed when no site measurements
// are available.
func DefaultConditions() Conditions {
	return Conditions{
		Temperature:    7.0,
		Pressure:       600.0,
		VapourPressure: 8.0,
	}
}

// RefractiveIndex returns the refractive index of air at the given wavelength
// in angstroms under the given conditions.
func RefractiveIndex(wavelength float64, cond Conditions) float64 {
	// The dispersion formula works in microns.
	wl := wavelength * 1e-4
	invWl2 := 1.0 / (wl * wl)

	seaLevelDry := 64.328 +
		29498.1/(146.0-invWl2) +
		255.4/(41.0-invWl2)
	altitude := (cond.Pressure * (1.0 + (1.049-0.0157*cond.Temperature)*1e-6*cond.Pressure)) /
		(720.883 * (1.0 + 0.003661*cond.Temperature))
	vapour := ((0.0624 - 0.000680*invWl2) / (1.0 + 0.003661*cond.Temperature)) *
		cond.VapourPressure

	return 1e-6*(seaLevelDry*altitude-vapour) + 1.0
}

// Offset returns the apparent angular displacement, in arcseconds, of light
// at the given wavelength relative to the reference wavelength, for a source
// observed at the given zenith distance in radians. Blue wavelengths are
// displaced towards the zenith, giving positive offsets below the reference
// wavelength and negative offsets above it.
func Offset(wavelength, zenithDistance float64, cond Conditions) float64 {
	dn := RefractiveIndex(wavelength, cond) - RefractiveIndex(ReferenceWavelength, cond)
	return arcsecPerRadian * dn * math.Tan(zenithDistance)
}
