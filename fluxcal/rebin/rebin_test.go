package rebin

import (
	"math"
	"testing"
)

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestRebinIdentity(t *testing.T) {
	// Uneven spacing, one bad sample.
	wl := []float64{4000, 4010, 4025, 4030, 4050, 4080}
	flux := []float64{1.5, 2.5, math.NaN(), 4.0, 3.25, 0.5}

	got := Rebin(wl, wl, flux)
	if len(got) != len(flux) {
		t.Fatalf("length mismatch: got %d want %d", len(got), len(flux))
	}
	for i := range flux {
		if math.IsNaN(flux[i]) {
			if !math.IsNaN(got[i]) {
				t.Fatalf("sample %d: got %v want NaN", i, got[i])
			}
			continue
		}
		if got[i] != flux[i] {
			t.Fatalf("sample %d mismatch: got %v want %v", i, got[i], flux[i])
		}
	}
}

func TestRebinConservesFlux(t *testing.T) {
	source := ramp(100, 0, 1)
	flux := make([]float64, 100)
	for k := range flux {
		flux[k] = 2.0 + math.Sin(float64(k)/7.0)
	}
	target := ramp(27, 10, 3) // 10, 13, ..., 88, well inside the source range

	got := Rebin(target, source, flux)

	// Total flux over the covered range, using the target bin widths.
	total := 0.0
	edges := binEdges(target)
	for i := range got {
		total += got[i] * (edges[i+1] - edges[i])
	}
	// The covered range is [10, 88]: half of source bins 10 and 88 plus
	// everything between.
	want := 0.5*flux[10] + 0.5*flux[88]
	for k := 11; k <= 87; k++ {
		want += flux[k]
	}
	if math.Abs(total-want) > 1e-9*math.Abs(want) {
		t.Fatalf("flux not conserved: got %v want %v", total, want)
	}
}

func TestRebinCoarseGridAverages(t *testing.T) {
	source := ramp(10, 0, 1)
	flux := []float64{1, 1, 3, 3, 3, 3, 3, 3, 5, 5}

	// Every source bin overlapping the target range holds 3.
	got := Rebin([]float64{3, 4, 5}, source, flux)
	for i, v := range got {
		if v != 3.0 {
			t.Fatalf("bin %d mismatch: got %v want 3", i, v)
		}
	}
}

func TestRebinSkipsNonFiniteSource(t *testing.T) {
	source := ramp(10, 0, 1)
	flux := []float64{2, 2, 2, math.NaN(), 2, 2, 2, 2, 2, 2}

	got := Rebin([]float64{2, 4}, source, flux)
	for i, v := range got {
		if v != 2.0 {
			t.Fatalf("bin %d should average the finite samples: got %v", i, v)
		}
	}
}

func TestRebinBelowRangeIsNaN(t *testing.T) {
	source := ramp(10, 0, 1)
	flux := make([]float64, 10)
	for i := range flux {
		flux[i] = 1
	}

	got := Rebin([]float64{-5, -1, 3, 6}, source, flux)
	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Fatalf("bins below the source range should be NaN: got %v", got[:2])
	}
	if got[2] != 1 || got[3] != 1 {
		t.Fatalf("covered bins mismatch: got %v", got[2:])
	}
}

func TestRebinPartialTopBin(t *testing.T) {
	source := ramp(10, 0, 1)
	flux := []float64{1, 1, 1, 1, 1, 1, 1, 1, 5, 9}

	// The top target bin [7.3, 9.6] runs past the source range, so only its
	// lowest overlapping source bin counts; the jump to 5 and 9 is invisible.
	got := Rebin([]float64{5, 9.6}, source, flux)
	if got[1] != 1.0 {
		t.Fatalf("top bin mismatch: got %v want 1", got[1])
	}
}

func TestRebinNoOverlapIsNaN(t *testing.T) {
	source := ramp(10, 0, 1)
	flux := make([]float64, 10)

	got := Rebin([]float64{20, 21, 22}, source, flux)
	for i, v := range got {
		if !math.IsNaN(v) {
			t.Fatalf("bin %d outside the source range should be NaN: got %v", i, v)
		}
	}
}

func TestRebinMalformedInput(t *testing.T) {
	target := ramp(5, 0, 1)
	cases := []struct {
		name   string
		source []float64
		flux   []float64
	}{
		{"length mismatch", ramp(10, 0, 1), ramp(9, 0, 1)},
		{"single sample", []float64{5}, []float64{1}},
		{"unsorted source", []float64{0, 2, 1, 3}, ramp(4, 0, 1)},
	}
	for _, tc := range cases {
		got := Rebin(target, tc.source, tc.flux)
		if len(got) != len(target) {
			t.Fatalf("%s: length mismatch: got %d", tc.name, len(got))
		}
		for i, v := range got {
			if !math.IsNaN(v) {
				t.Fatalf("%s: bin %d should be NaN: got %v", tc.name, i, v)
			}
		}
	}

	got := Rebin([]float64{0, 2, 1}, ramp(10, 0, 1), ramp(10, 0, 1))
	for i, v := range got {
		if !math.IsNaN(v) {
			t.Fatalf("unsorted target: bin %d should be NaN: got %v", i, v)
		}
	}
}
