package testutil

import (
	"math"
	"testing"

	"github.com/rscalzo/sami/fluxcal/psf"
)

func TestHexBundleLayout(t *testing.T) {
	x, y := HexBundle(2, 1.6)
	if len(x) != 19 || len(y) != 19 {
		t.Fatalf("fibre count mismatch: got %d/%d, want 19", len(x), len(y))
	}
	if x[0] != 0 || y[0] != 0 {
		t.Fatalf("central fibre not at the origin: (%v, %v)", x[0], y[0])
	}
	counts := map[string]int{}
	for i := 1; i < 19; i++ {
		r := math.Hypot(x[i], y[i])
		switch {
		case math.Abs(r-1.6) < 1e-12:
			counts["inner"]++
		case math.Abs(r-3.2) < 1e-12:
			counts["corner"]++
		case math.Abs(r-1.6*math.Sqrt(3)) < 1e-12:
			counts["midpoint"]++
		default:
			t.Fatalf("fibre %d at unexpected radius %v", i, r)
		}
	}
	if counts["inner"] != 6 || counts["corner"] != 6 || counts["midpoint"] != 6 {
		t.Fatalf("ring population mismatch: %v", counts)
	}
}

func TestHexBundleFourRings(t *testing.T) {
	x, y := HexBundle(4, 1.6)
	if len(x) != 61 || len(y) != 61 {
		t.Fatalf("fibre count mismatch: got %d/%d, want 61", len(x), len(y))
	}
	seen := map[[2]int]bool{}
	for i := range x {
		key := [2]int{int(math.Round(x[i] * 1000)), int(math.Round(y[i] * 1000))}
		if seen[key] {
			t.Fatalf("duplicate fibre position at index %d: (%v, %v)", i, x[i], y[i])
		}
		seen[key] = true
	}
}

func TestObservationShape(t *testing.T) {
	x, y := HexBundle(2, 1.6)
	wl := []float64{4500, 5000, 5500}
	p := psf.Params{
		Variant:        psf.VariantCircular,
		Flux:           []float64{100, 90, 80},
		Background:     []float64{0.5, 0.5, 0.5},
		ZenithDistance: math.Pi / 8,
		AlphaRef:       1.0,
		Beta:           4.0,
	}

	data, variance := Observation(t, p, wl, x, y)
	if len(data) != 19 || len(variance) != 19 {
		t.Fatalf("fibre count mismatch: got %d/%d", len(data), len(variance))
	}
	for i := range data {
		if len(data[i]) != 3 || len(variance[i]) != 3 {
			t.Fatalf("fibre %d slice count mismatch", i)
		}
		RequireFinite(t, data[i])
		for j, v := range variance[i] {
			if v != 1.0 {
				t.Fatalf("variance[%d][%d] = %v, want 1", i, j, v)
			}
		}
	}
	// The central fibre sees more light than any outer-ring fibre.
	if data[0][0] <= data[7][0] {
		t.Fatalf("central fibre should dominate: %v vs %v", data[0][0], data[7][0])
	}
}
