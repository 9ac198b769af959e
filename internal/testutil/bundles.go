package testutil

import (
	"math"
	"testing"

	"github.com/rscalzo/sami/fluxcal/psf"
)

// HexBundle returns fibre offsets for a hexagonally packed bundle with the
// given number of rings around a central core, at the given core spacing in
// arcsec. Two rings give a 19-fibre bundle, four rings a 61-fibre one. The
// central fibre comes first, then each ring in order.
func HexBundle(rings int, spacing float64) (x, y []float64) {
	n := 1 + 3*rings*(rings+1)
	x = make([]float64, 0, n)
	y = make([]float64, 0, n)
	x = append(x, 0)
	y = append(y, 0)
	dirs := [6][2]int{{1, 0}, {1, -1}, {0, -1}, {-1, 0}, {-1, 1}, {0, 1}}
	for ring := 1; ring <= rings; ring++ {
		q, r := -ring, ring
		for side := 0; side < 6; side++ {
			for step := 0; step < ring; step++ {
				x = append(x, spacing*(float64(q)+float64(r)/2.0))
				y = append(y, spacing*float64(r)*math.Sqrt(3)/2.0)
				q += dirs[side][0]
				r += dirs[side][1]
			}
		}
	}
	return x, y
}

// Observation evaluates the PSF model for the given parameter record and
// returns noiseless fibre-major data with unit variance.
func Observation(t *testing.T, p psf.Params, wavelength, x, y []float64) (data, variance [][]float64) {
	t.Helper()
	slices, err := psf.ExpandToSlices(p, wavelength)
	if err != nil {
		t.Fatalf("expand parameters: %v", err)
	}
	data = psf.NewModel().Flux(slices, x, y)
	variance = make([][]float64, len(x))
	for i := range variance {
		variance[i] = Ones(len(wavelength))
	}
	return data, variance
}
