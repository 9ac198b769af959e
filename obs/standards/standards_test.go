package standards_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rscalzo/sami/obs/standards"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadCatalogue(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "index.dat", strings.Join([]string{
		"# primary standards",
		"",
		"star1.dat FIRST 01 30 00 10 30 00",
		"sub/star2.dat NEGZERO 12 00 00 -00 30 00",
	}, "\n"))

	stars, err := standards.LoadCatalogue(path)
	if err != nil {
		t.Fatalf("LoadCatalogue: %v", err)
	}
	if len(stars) != 2 {
		t.Fatalf("got %d stars, want 2", len(stars))
	}
	first := stars[0]
	if first.Name != "FIRST" || first.Path != filepath.Join(dir, "star1.dat") {
		t.Errorf("got %q at %q, want FIRST at star1.dat", first.Name, first.Path)
	}
	if first.RA != 22.5 || first.Dec != 10.5 {
		t.Errorf("got RA %v Dec %v, want 22.5 10.5", first.RA, first.Dec)
	}

	// The degrees token "-00" must keep its sign.
	second := stars[1]
	if second.RA != 180.0 || second.Dec != -0.5 {
		t.Errorf("got RA %v Dec %v, want 180 -0.5", second.RA, second.Dec)
	}
	if second.Path != filepath.Join(dir, "sub", "star2.dat") {
		t.Errorf("got path %q, want it under %s", second.Path, dir)
	}
}

func TestLoadCatalogueMalformed(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"short row", "star.dat NAME 01 30 00 10 30", "want 8"},
		{"bad number", "star.dat NAME 01 xx 00 10 30 00", "bad coordinate field"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, dir, "bad_"+strings.ReplaceAll(tc.name, " ", "_"), tc.content)
			_, err := standards.LoadCatalogue(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("got %v, want error containing %q", err, tc.want)
			}
		})
	}
	if _, err := standards.LoadCatalogue(filepath.Join(dir, "missing.dat")); err == nil {
		t.Fatal("expected error for missing catalogue")
	}
}

func TestSeparation(t *testing.T) {
	// A pure declination offset maps to arcsec directly.
	if got := standards.Separation(22.5, 10.5, 22.5, 10.5+10.0/3600.0); math.Abs(got-10.0) > 1e-6 {
		t.Errorf("got %v arcsec, want 10", got)
	}
	// A right ascension offset shrinks with cos(dec).
	if got := standards.Separation(100.0, 60.0, 100.0+20.0/3600.0, 60.0); math.Abs(got-10.0) > 1e-3 {
		t.Errorf("got %v arcsec, want 10", got)
	}
	if got := standards.Separation(40.0, -30.0, 40.0, -30.0); got != 0 {
		t.Errorf("got %v arcsec for identical positions, want 0", got)
	}
}

func TestMatchReturnsFirstWithinRadius(t *testing.T) {
	stars := []standards.Star{
		{Name: "FAR", RA: 22.5, Dec: 10.5 + 20.0/3600.0},
		{Name: "NEAR", RA: 22.5, Dec: 10.5 + 5.0/3600.0},
	}

	got, err := standards.Match(stars, 22.5, 10.5, standards.DefaultMaxSeparation)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	// Catalogue order wins over distance.
	if got.Name != "FAR" {
		t.Errorf("got %q, want FAR", got.Name)
	}
	if math.Abs(got.Separation-20.0) > 1e-6 {
		t.Errorf("got separation %v, want 20", got.Separation)
	}

	_, err = standards.Match(stars, 22.5, 11.5, standards.DefaultMaxSeparation)
	if !errors.Is(err, standards.ErrNoMatch) {
		t.Fatalf("got %v, want ErrNoMatch", err)
	}
}

func TestMatchBundle(t *testing.T) {
	stars := []standards.Star{
		{Name: "STD", RA: 180.0, Dec: -0.5},
	}
	probes := []standards.Probe{
		{Number: 3, RA: 150.0, Dec: 30.0},
		{Number: 7, RA: 180.0, Dec: -0.5 + 4.0/3600.0},
	}

	got, err := standards.MatchBundle(stars, probes, standards.DefaultMaxSeparation)
	if err != nil {
		t.Fatalf("MatchBundle: %v", err)
	}
	if got.Name != "STD" || got.Probe != 7 {
		t.Errorf("got %q in probe %d, want STD in probe 7", got.Name, got.Probe)
	}
	if math.Abs(got.Separation-4.0) > 1e-6 {
		t.Errorf("got separation %v, want 4", got.Separation)
	}

	_, err = standards.MatchBundle(stars, probes[:1], standards.DefaultMaxSeparation)
	if !errors.Is(err, standards.ErrNoMatch) {
		t.Fatalf("got %v, want ErrNoMatch", err)
	}
}

func TestReadSpectrum(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "star.dat", strings.Join([]string{
		"EG 21 flux standard",
		"wavelength(A) flux mag",
		"3300.0 1.18e-12 11.1",
		"3350.0 1.20e-12 11.0",
		"3400.0 1.25e-12 10.9",
	}, "\n"))

	wavelength, flux, err := standards.ReadSpectrum(path)
	if err != nil {
		t.Fatalf("ReadSpectrum: %v", err)
	}
	if len(wavelength) != 3 || len(flux) != 3 {
		t.Fatalf("got %d/%d rows, want 3", len(wavelength), len(flux))
	}
	if wavelength[0] != 3300.0 || flux[0] != 1.18e-12 {
		t.Errorf("got first row %v %v, want 3300 1.18e-12", wavelength[0], flux[0])
	}
	if wavelength[2] != 3400.0 || flux[2] != 1.25e-12 {
		t.Errorf("got last row %v %v, want 3400 1.25e-12", wavelength[2], flux[2])
	}
}

func TestReadSpectrumNoHeader(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "plain.dat", "5000.0 2.0\n5050.0 2.5\n")

	wavelength, flux, err := standards.ReadSpectrum(path)
	if err != nil {
		t.Fatalf("ReadSpectrum: %v", err)
	}
	if len(wavelength) != 2 || flux[1] != 2.5 {
		t.Fatalf("got %d rows, flux[1] %v, want 2 rows, 2.5", len(wavelength), flux[1])
	}
}

func TestReadSpectrumMalformed(t *testing.T) {
	dir := t.TempDir()

	path := writeFile(t, dir, "ragged.dat", "5000.0 2.0\n5050.0\n")
	if _, _, err := standards.ReadSpectrum(path); err == nil || !strings.Contains(err.Error(), "want 2") {
		t.Fatalf("got %v, want error containing %q", err, "want 2")
	}

	path = writeFile(t, dir, "headers.dat", "only headers\nno data here\n")
	if _, _, err := standards.ReadSpectrum(path); err == nil || !strings.Contains(err.Error(), "no spectrum rows") {
		t.Fatalf("got %v, want error containing %q", err, "no spectrum rows")
	}
}
