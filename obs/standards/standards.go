// Package standards locates spectrophotometric standard stars. Catalogue
// index files map star positions to reference spectra on disk; matching is
// by angular separation against the mean sky position of each hexabundle.
package standards

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultMaxSeparation is the matching radius in arcsec.
const DefaultMaxSeparation = 30.0

// ErrNoMatch reports that no catalogue star lies within the matching radius.
var ErrNoMatch = errors.New("standards: no catalogue star within the separation limit")

// Star is one catalogue entry. Separation and Probe are zero until filled
// in by Match or MatchBundle.
type Star struct {
	Path string // reference spectrum, resolved relative to the catalogue file
	Name string
	RA   float64 // degrees
	Dec  float64 // degrees

	Separation float64 // arcsec to the matched position
	Probe      int     // hexabundle that observed the star
}

// Probe is the mean on-sky position of one hexabundle's fibres.
type Probe struct {
	Number int
	RA     float64 // degrees
	Dec    float64 // degrees
}

// LoadCatalogue parses a catalogue index file. Each row holds a spectrum
// path, a star name, and sexagesimal coordinates:
//
//	path name rah ram ras decd decm decs
//
// The declination sign comes from the degrees token as written, so a
// "-00" degree field keeps its sign. Blank lines and # comments are
// skipped. Spectrum paths are resolved relative to the catalogue file.
func LoadCatalogue(path string) ([]Star, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("standards: %w", err)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	var stars []Star
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if len(fields) < 8 {
			return nil, fmt.Errorf("standards: %s line %d: %d fields, want 8", path, lineNum, len(fields))
		}
		ra, err := parseRA(fields[2], fields[3], fields[4])
		if err != nil {
			return nil, fmt.Errorf("standards: %s line %d: %w", path, lineNum, err)
		}
		dec, err := parseDec(fields[5], fields[6], fields[7])
		if err != nil {
			return nil, fmt.Errorf("standards: %s line %d: %w", path, lineNum, err)
		}
		stars = append(stars, Star{
			Path: filepath.Join(dir, fields[0]),
			Name: fields[1],
			RA:   ra,
			Dec:  dec,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("standards: %s: %w", path, err)
	}
	return stars, nil
}

// LoadCatalogues concatenates several catalogue files in the given order,
// which is also the order Match scans them in.
func LoadCatalogues(paths []string) ([]Star, error) {
	var stars []Star
	for _, path := range paths {
		loaded, err := LoadCatalogue(path)
		if err != nil {
			return nil, err
		}
		stars = append(stars, loaded...)
	}
	return stars, nil
}

// Match returns the first star within maxSepArcsec of the given position,
// with its separation filled in. Stars are tried in catalogue order, not
// by distance.
func Match(stars []Star, ra, dec, maxSepArcsec float64) (Star, error) {
	for _, star := range stars {
		sep := Separation(ra, dec, star.RA, star.Dec)
		if sep < maxSepArcsec {
			star.Separation = sep
			return star, nil
		}
	}
	return Star{}, ErrNoMatch
}

// MatchBundle tries each probe in turn and returns the first catalogue
// match, with the probe number filled in.
func MatchBundle(stars []Star, probes []Probe, maxSepArcsec float64) (Star, error) {
	for _, probe := range probes {
		star, err := Match(stars, probe.RA, probe.Dec, maxSepArcsec)
		if err == nil {
			star.Probe = probe.Number
			return star, nil
		}
	}
	return Star{}, ErrNoMatch
}

// Separation returns the angular distance between two sky positions in
// arcsec. Inputs are in degrees.
func Separation(ra1, dec1, ra2, dec2 float64) float64 {
	const degToRad = math.Pi / 180.0
	sinDec := math.Sin((dec2 - dec1) * degToRad / 2.0)
	sinRA := math.Sin((ra2 - ra1) * degToRad / 2.0)
	h := sinDec*sinDec + math.Cos(dec1*degToRad)*math.Cos(dec2*degToRad)*sinRA*sinRA
	return 2.0 * math.Asin(math.Sqrt(h)) / degToRad * 3600.0
}

// ReadSpectrum reads a reference spectrum table: any leading header lines
// are skipped until the first line whose first field parses as a number,
// then each remaining row provides wavelength and flux from its first two
// columns.
func ReadSpectrum(path string) (wavelength, flux []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("standards: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	inHeader := true
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if inHeader {
			if _, err := strconv.ParseFloat(fields[0], 64); err != nil {
				continue
			}
			inHeader = false
		}
		if len(fields) < 2 {
			return nil, nil, fmt.Errorf("standards: %s line %d: %d fields, want 2", path, lineNum, len(fields))
		}
		wl, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("standards: %s line %d: %w", path, lineNum, err)
		}
		fl, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("standards: %s line %d: %w", path, lineNum, err)
		}
		wavelength = append(wavelength, wl)
		flux = append(flux, fl)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("standards: %s: %w", path, err)
	}
	if len(wavelength) == 0 {
		return nil, nil, fmt.Errorf("standards: %s holds no spectrum rows", path)
	}
	return wavelength, flux, nil
}

// parseRA converts sexagesimal right ascension to degrees.
func parseRA(h, m, s string) (float64, error) {
	hours, err := sexagesimal(h, m, s)
	if err != nil {
		return 0, err
	}
	return 15.0 * hours, nil
}

// parseDec converts sexagesimal declination to degrees. The sign is taken
// from the degrees token before parsing, so "-00" stays negative.
func parseDec(d, m, s string) (float64, error) {
	neg := strings.HasPrefix(d, "-")
	deg, err := sexagesimal(strings.TrimPrefix(d, "-"), m, s)
	if err != nil {
		return 0, err
	}
	if neg {
		deg = -deg
	}
	return deg, nil
}

func sexagesimal(whole, minutes, seconds string) (float64, error) {
	w, err := strconv.ParseFloat(whole, 64)
	if err != nil {
		return 0, fmt.Errorf("bad coordinate field %q", whole)
	}
	m, err := strconv.ParseFloat(minutes, 64)
	if err != nil {
		return 0, fmt.Errorf("bad coordinate field %q", minutes)
	}
	s, err := strconv.ParseFloat(seconds, 64)
	if err != nil {
		return 0, fmt.Errorf("bad coordinate field %q", seconds)
	}
	return math.Abs(w) + m/60.0 + s/3600.0, nil
}
