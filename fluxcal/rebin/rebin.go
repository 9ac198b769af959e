// Package rebin resamples spectra onto new wavelength grids while conserving
// flux.
//
// Each sample is treated as the mean flux density over a bin whose edges sit
// halfway between neighbouring samples, with the outermost edges pinned to the
// first and last sample. Rebinning distributes the per-bin flux of the source
// grid over the overlapping target bins and converts back to density, so total
// flux over a fully covered range is preserved. Non-finite source samples
// carry zero weight; target bins with no finite overlap come out NaN.
package rebin

import (
	"math"
	"sort"

	"github.com/cwbudde/algo-vecmath"
)

// Rebin resamples sourceFlux from sourceWavelength onto targetWavelength.
//
// Both wavelength grids must be strictly increasing and sourceFlux must match
// sourceWavelength in length; otherwise, and when the source has fewer than
// two samples, the result is all NaN. Target bins that extend below the
// source range are NaN. A target bin whose upper edge lies above the source
// range counts only its lowest overlapping source bin.
func Rebin(targetWavelength, sourceWavelength, sourceFlux []float64) []float64 {
	out := make([]float64, len(targetWavelength))
	m := len(sourceWavelength)
	if m < 2 || len(sourceFlux) != m ||
		!strictlyIncreasing(sourceWavelength) || !strictlyIncreasing(targetWavelength) {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	sourceEdges := binEdges(sourceWavelength)
	widths := make([]float64, m)
	for k := 0; k < m; k++ {
		widths[k] = sourceEdges[k+1] - sourceEdges[k]
	}

	// Per source bin: total flux and usable width, zero where the sample is
	// not finite.
	flux := make([]float64, m)
	weight := make([]float64, m)
	for k, v := range sourceFlux {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			flux[k] = v
			weight[k] = 1.0
		}
	}
	vecmath.MulBlockInPlace(flux, widths)
	vecmath.MulBlockInPlace(weight, widths)

	// Target bin edges in source bin-index units: source bin k spans
	// [k, k+1]; NaN marks edges outside the source range.
	targetEdges := binEdges(targetWavelength)
	pos := make([]float64, len(targetEdges))
	for i, e := range targetEdges {
		pos[i] = indexOf(e, sourceEdges)
	}

	for i := range out {
		lo := pos[i]
		if math.IsNaN(lo) {
			out[i] = math.NaN()
			continue
		}
		low := int(lo)
		if low >= m {
			out[i] = math.NaN()
			continue
		}
		lowFrac := 1.0 - (lo - math.Floor(lo))
		fluxAcc := lowFrac * flux[low]
		weightAcc := lowFrac * weight[low]

		if hi := pos[i+1]; !math.IsNaN(hi) {
			upper := int(hi)
			for k := low + 1; k < upper; k++ {
				fluxAcc += flux[k]
				weightAcc += weight[k]
			}
			if upper < m {
				upFrac := hi - math.Floor(hi)
				fluxAcc += upFrac * flux[upper]
				weightAcc += upFrac * weight[upper]
			}
		}
		out[i] = fluxAcc / weightAcc
	}
	return out
}

// binEdges returns the n+1 bin edges for n samples: midpoints between
// neighbours, with the first and last edge equal to the first and last
// sample.
func binEdges(wavelength []float64) []float64 {
	edges := make([]float64, len(wavelength)+1)
	edges[0] = wavelength[0]
	for i := 1; i < len(wavelength); i++ {
		edges[i] = 0.5 * (wavelength[i-1] + wavelength[i])
	}
	edges[len(wavelength)] = wavelength[len(wavelength)-1]
	return edges
}

// indexOf linearly interpolates x into edge-index space: edges[j] maps to j.
// Values outside the edge range map to NaN.
func indexOf(x float64, edges []float64) float64 {
	if x < edges[0] || x > edges[len(edges)-1] {
		return math.NaN()
	}
	j := sort.SearchFloat64s(edges, x)
	if j < len(edges) && edges[j] == x {
		return float64(j)
	}
	return float64(j-1) + (x-edges[j-1])/(edges[j]-edges[j-1])
}

func strictlyIncreasing(vals []float64) bool {
	for i := 1; i < len(vals); i++ {
		if !(vals[i] > vals[i-1]) {
			return false
		}
	}
	return true
}
