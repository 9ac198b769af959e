package psffit

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/rscalzo/sami/fluxcal/psf"
	"github.com/rscalzo/sami/internal/testutil"
)

func TestFitRecoversCircularMoffat(t *testing.T) {
	x, y := testutil.HexBundle(2, 1.6)
	wavelength := []float64{4500, 4750, 5000, 5250, 5500}
	truth := psf.Params{
		Variant:         psf.VariantCircular,
		Flux:            []float64{100, 95, 90, 85, 80},
		Background:      []float64{0.5, 0.5, 0.5, 0.5, 0.5},
		XCenRef:         0.3,
		YCenRef:         -0.2,
		ZenithDirection: math.Pi / 3.0,
		ZenithDistance:  math.Pi / 8.0,
		AlphaRef:        1.0,
		Beta:            4.0,
	}
	data, variance := testutil.Observation(t, truth, wavelength, x, y)

	got, err := Fit(data, variance, x, y, wavelength, psf.VariantCircular)
	if err != nil {
		t.Fatalf("Fit error: %v", err)
	}
	if got.Variant != psf.VariantCircular {
		t.Fatalf("variant mismatch: got %v", got.Variant)
	}
	testutil.RequireClose(t, "xcen", got.XCenRef, truth.XCenRef, 0.01)
	testutil.RequireClose(t, "ycen", got.YCenRef, truth.YCenRef, 0.01)
	testutil.RequireClose(t, "alpha", got.AlphaRef, truth.AlphaRef, 0.01)
	testutil.RequireClose(t, "beta", got.Beta, truth.Beta, 0.01)
	for j := range wavelength {
		testutil.RequireClose(t, "flux", got.Flux[j], truth.Flux[j], 0.01)
		testutil.RequireClose(t, "background", got.Background[j], truth.Background[j], 0.01)
	}
}

func TestFitRecoversEllipticalMoffat(t *testing.T) {
	x, y := testutil.HexBundle(2, 1.6)
	wavelength := []float64{4600, 5000, 5400}
	truth := psf.Params{
		Variant:         psf.VariantFull,
		Flux:            []float64{120, 110, 100},
		Background:      []float64{1, 1, 1},
		XCenRef:         -0.1,
		YCenRef:         0.25,
		ZenithDirection: math.Pi / 4.0,
		ZenithDistance:  math.Pi / 8.0,
		AlphaXRef:       1.1,
		AlphaYRef:       0.9,
		Beta:            4.0,
		Rho:             0.15,
	}
	data, variance := testutil.Observation(t, truth, wavelength, x, y)

	got, err := Fit(data, variance, x, y, wavelength, psf.VariantFull)
	if err != nil {
		t.Fatalf("Fit error: %v", err)
	}
	testutil.RequireClose(t, "xcen", got.XCenRef, truth.XCenRef, 0.02)
	testutil.RequireClose(t, "ycen", got.YCenRef, truth.YCenRef, 0.02)
	testutil.RequireClose(t, "alphax", got.AlphaXRef, truth.AlphaXRef, 0.02)
	testutil.RequireClose(t, "alphay", got.AlphaYRef, truth.AlphaYRef, 0.02)
	testutil.RequireClose(t, "beta", got.Beta, truth.Beta, 0.02)
	testutil.RequireClose(t, "rho", got.Rho, truth.Rho, 0.05)
	for j := range wavelength {
		testutil.RequireClose(t, "flux", got.Flux[j], truth.Flux[j], 0.02)
	}
}

func TestFitUnknownVariant(t *testing.T) {
	data := [][]float64{{1}}
	variance := [][]float64{{1}}
	_, err := Fit(data, variance, []float64{0}, []float64{0}, []float64{5000}, psf.Variant(42))
	if !errors.Is(err, psf.ErrUnknownVariant) {
		t.Fatalf("got %v, want ErrUnknownVariant", err)
	}
}

func TestFitValidation(t *testing.T) {
	wl := []float64{5000, 5100}
	good := [][]float64{{1, 1}, {1, 1}}
	pos := []float64{0, 1}

	cases := []struct {
		name     string
		data     [][]float64
		variance [][]float64
		x, y     []float64
		wl       []float64
		wantSub  string
	}{
		{"no fibres", nil, nil, nil, nil, wl, "no fibres"},
		{"no chunks", good, good, pos, pos, nil, "no wavelength"},
		{"positions", good, good, pos[:1], pos, wl, "fibre positions"},
		{"variance fibres", good, good[:1], pos, pos, wl, "variance has"},
		{"ragged", [][]float64{{1, 1}, {1}}, good, pos, pos, wl, "does not match"},
	}
	for _, tc := range cases {
		_, err := Fit(tc.data, tc.variance, tc.x, tc.y, tc.wl, psf.VariantCircular)
		if err == nil || !strings.Contains(err.Error(), tc.wantSub) {
			t.Fatalf("%s: got error %v, want substring %q", tc.name, err, tc.wantSub)
		}
	}
}

func TestFirstGuess(t *testing.T) {
	data := [][]float64{{4, 6}, {2, 2}}
	variance := [][]float64{{1, 1}, {2, 2}}
	x := []float64{1, -1}
	y := []float64{0.5, 0.5}
	wl := []float64{4800, 5200}

	guess, err := firstGuess(data, variance, x, y, wl, psf.VariantCircular)
	if err != nil {
		t.Fatalf("firstGuess error: %v", err)
	}
	// Fibre weights are 10 and 2, normalized to 5/6 and 1/6.
	testutil.RequireClose(t, "xcen", guess.XCenRef, 2.0/3.0, 1e-12)
	testutil.RequireClose(t, "ycen", guess.YCenRef, 0.5, 1e-12)
	testutil.RequireSliceNearlyEqual(t, guess.Flux, []float64{6, 8}, 1e-12)
	testutil.RequireSliceNearlyEqual(t, guess.Background, []float64{0, 0}, 0)
	if guess.ZenithDirection != math.Pi/4.0 || guess.ZenithDistance != math.Pi/8.0 {
		t.Fatalf("zenith start values mismatch: %v, %v", guess.ZenithDirection, guess.ZenithDistance)
	}
	if guess.AlphaRef != 1.0 || guess.Beta != 4.0 {
		t.Fatalf("shape start values mismatch: %v, %v", guess.AlphaRef, guess.Beta)
	}

	atm, err := firstGuess(data, variance, x, y, wl, psf.VariantCircularAtm)
	if err != nil {
		t.Fatalf("firstGuess error: %v", err)
	}
	if atm.Atmosphere.Temperature != 7.0 || atm.Atmosphere.Pressure != 600.0 || atm.Atmosphere.VapourPressure != 8.0 {
		t.Fatalf("atmosphere start values mismatch: %+v", atm.Atmosphere)
	}
}

func TestFirstGuessNaNHandling(t *testing.T) {
	nan := math.NaN()
	data := [][]float64{{4, 6}, {2, nan}}
	variance := [][]float64{{1, 1}, {1, 1}}
	x := []float64{1, -1}
	y := []float64{0, 0}
	wl := []float64{4800, 5200}

	guess, err := firstGuess(data, variance, x, y, wl, psf.VariantCircular)
	if err != nil {
		t.Fatalf("firstGuess error: %v", err)
	}
	// Per-chunk flux skips NaN fibres; the centroid weights do not, so a
	// fibre with any NaN chunk poisons the centroid.
	testutil.RequireSliceNearlyEqual(t, guess.Flux, []float64{6, 6}, 1e-12)
	if !math.IsNaN(guess.XCenRef) {
		t.Fatalf("centroid should propagate NaN: got %v", guess.XCenRef)
	}
}
