package transfer

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"
)

// Smooth applies Gaussian smoothing with the given sigma (in samples) to a
// transfer function and returns the result; the input is not modified.
//
// The smoothing runs on the reciprocal of the ratio, which behaves better at
// the spectrum ends. Non-finite stretches at either end are left untouched,
// interior non-finite values are filled by linear interpolation over sample
// index before smoothing, and the ends are extended by point-reflected
// padding so the kernel sees plausible data. Inputs with no finite
// reciprocal, or too short to pad, come back unchanged, as do calls with a
// non-positive width.
func Smooth(ratio []float64, width float64) []float64 {
	out := append([]float64(nil), ratio...)
	if width <= 0 {
		return out
	}

	inverse := make([]float64, len(ratio))
	for i, v := range ratio {
		inverse[i] = 1.0 / v
	}

	first, last := -1, -1
	for i, v := range inverse {
		if isFinite(v) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	extra := int(math.Round(3.0 * width))
	if first < 0 || last-first+1 < extra+2 {
		return out
	}

	cut := inverse[first : last+1]
	fillInterior(cut)
	extended := mirrorExtend(cut, extra)
	smoothed := gaussianFilter(extended, width)
	copy(cut, smoothed[extra:extra+len(cut)])

	for i := range out {
		out[i] = 1.0 / inverse[i]
	}
	return out
}

// fillInterior replaces non-finite interior values by linear interpolation
// over sample index. The first and last element must be finite.
func fillInterior(vals []float64) {
	prev := 0
	for i := 1; i < len(vals); i++ {
		if !isFinite(vals[i]) {
			continue
		}
		if i > prev+1 {
			span := float64(i - prev)
			for k := prev + 1; k < i; k++ {
				t := float64(k-prev) / span
				vals[k] = vals[prev] + t*(vals[i]-vals[prev])
			}
		}
		prev = i
	}
}

// mirrorExtend pads both ends with extra samples reflected through the end
// values. The leading pad mirrors samples 2..extra+1 and the trailing pad
// mirrors samples n-1..n-extra, so the trailing pad starts with a repeat of
// the edge sample. Requires len(vals) >= extra+2.
func mirrorExtend(vals []float64, extra int) []float64 {
	n := len(vals)
	out := make([]float64, n+2*extra)
	copy(out[extra:], vals)
	for i := 0; i < extra; i++ {
		out[i] = 2*vals[0] - vals[extra+1-i]
		out[extra+n+i] = 2*vals[n-1] - vals[n-1-i]
	}
	return out
}

// gaussianFilter correlates vals with a normalized Gaussian kernel of the
// given sigma, radius int(4 sigma + 0.5), extending the ends with the nearest
// value.
func gaussianFilter(vals []float64, sigma float64) []float64 {
	radius := int(4.0*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-0.5 * x * x / (sigma * sigma))
	}
	vecmath.ScaleBlock(kernel, kernel, 1.0/floats.Sum(kernel))

	out := make([]float64, len(vals))
	for i := range out {
		acc := 0.0
		for k := -radius; k <= radius; k++ {
			j := i + k
			if j < 0 {
				j = 0
			} else if j >= len(vals) {
				j = len(vals) - 1
			}
			acc += kernel[k+radius] * vals[j]
		}
		out[i] = acc
	}
	return out
}
