// Package transfer builds the wavelength-dependent transfer function that
// converts observed counts into the flux units of a reference spectrum.
//
// The observed spectrum is rebinned onto the (coarser) grid of the reference,
// the two are divided, the ratio is optionally smoothed with a Gaussian
// kernel, and the result is interpolated back onto the observed wavelength
// grid.
package transfer

import (
	"fmt"
	"math"
	"sort"

	"github.com/rscalzo/sami/fluxcal/rebin"
)

// DefaultWidth is the Gaussian sigma, in reference-grid samples, used to
// smooth the ratio.
const DefaultWidth = 10.0

type config struct {
	smooth bool
	width  float64
}

// Option adjusts how the transfer function is built.
type Option func(*config)

// WithoutSmoothing disables Gaussian smoothing of the ratio.
func WithoutSmoothing() Option {
	return func(c *config) { c.smooth = false }
}

// WithWidth sets the smoothing sigma in reference-grid samples. Values at or
// below zero are ignored.
func WithWidth(width float64) Option {
	return func(c *config) {
		if width > 0 {
			c.width = width
		}
	}
}

// Ratio derives the transfer function on the observed wavelength grid.
//
// The observed flux is rebinned onto the standard grid, the standard flux is
// divided by it, the ratio is smoothed unless disabled, and the result is
// linearly interpolated back onto the observed grid with end values clamped.
// Standard samples with no finite observed coverage produce NaN stretches in
// the result.
func Ratio(standardFlux, standardWavelength, observedFlux, observedWavelength []float64, opts ...Option) ([]float64, error) {
	cfg := config{smooth: true, width: DefaultWidth}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(standardFlux) != len(standardWavelength) {
		return nil, fmt.Errorf("transfer: standard flux length %d does not match %d wavelengths",
			len(standardFlux), len(standardWavelength))
	}
	if len(observedFlux) != len(observedWavelength) {
		return nil, fmt.Errorf("transfer: observed flux length %d does not match %d wavelengths",
			len(observedFlux), len(observedWavelength))
	}
	if len(standardWavelength) == 0 || len(observedWavelength) == 0 {
		return nil, fmt.Errorf("transfer: empty spectrum")
	}

	rebinned := rebin.Rebin(standardWavelength, observedWavelength, observedFlux)
	ratio := make([]float64, len(standardFlux))
	for i := range ratio {
		ratio[i] = standardFlux[i] / rebinned[i]
	}
	if cfg.smooth {
		ratio = Smooth(ratio, cfg.width)
	}
	return interpClamped(observedWavelength, standardWavelength, ratio), nil
}

// interpClamped linearly interpolates fp (sampled at xp, strictly increasing)
// at the points x. Values outside the xp range clamp to the end values.
// Non-finite fp samples propagate into neighbouring intervals.
func interpClamped(x, xp, fp []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		j := sort.SearchFloat64s(xp, v)
		switch {
		case j == 0:
			out[i] = fp[0]
		case j == len(xp):
			out[i] = fp[len(fp)-1]
		case xp[j] == v:
			out[i] = fp[j]
		default:
			t := (v - xp[j-1]) / (xp[j] - xp[j-1])
			out[i] = fp[j-1] + t*(fp[j]-fp[j-1])
		}
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
