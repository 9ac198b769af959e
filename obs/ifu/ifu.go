// Package ifu reads and updates reduced spectrograph frames. A frame holds
// a fibre-major flux image, a VARIANCE image extension, and the FIBRES_IFU
// table mapping image rows to hexabundles and sky positions. Updates are
// whole-file rewrites: the FITS library writes streams, so the HDU list is
// copied with the changed extension swapped in.
package ifu

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/rscalzo/sami/obs/standards"
)

// Bundle is one probe's slice of a reduced frame: object-fibre data with
// fibre offsets in arcsec relative to the bundle centre.
type Bundle struct {
	Path  string
	Probe int
	Name  string // probe name, usually the target name

	Data       [][]float64 // [fibre][pixel]
	Variance   [][]float64
	Wavelength []float64
	XFibre     []float64
	YFibre     []float64
}

// Read loads the given probe's bundle from a reduced frame. Only object
// fibres (TYPE "P") are kept; their order follows the image rows.
func Read(path string, probe int) (*Bundle, error) {
	f, done, err := open(path)
	if err != nil {
		return nil, err
	}
	defer done()

	primary, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("ifu: %s has no primary image", path)
	}
	data, err := imageRows(primary)
	if err != nil {
		return nil, fmt.Errorf("ifu: %s: %w", path, err)
	}

	varHDU := findHDU(f, "VARIANCE")
	if varHDU == nil {
		return nil, fmt.Errorf("ifu: %s has no VARIANCE extension", path)
	}
	varImage, ok := varHDU.(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("ifu: VARIANCE in %s is not an image", path)
	}
	variance, err := imageRows(varImage)
	if err != nil {
		return nil, fmt.Errorf("ifu: %s VARIANCE: %w", path, err)
	}
	if len(variance) != len(data) {
		return nil, fmt.Errorf("ifu: %s VARIANCE has %d rows, flux has %d", path, len(variance), len(data))
	}

	fibres, err := readFibreTable(f, path)
	if err != nil {
		return nil, err
	}
	if len(fibres) != len(data) {
		return nil, fmt.Errorf("ifu: %s has %d fibre rows for %d image rows", path, len(fibres), len(data))
	}

	nPixel := len(data[0])
	wavelength, err := wavelengthAxis(primary.Header(), nPixel, path)
	if err != nil {
		return nil, err
	}

	b := &Bundle{Path: path, Probe: probe, Wavelength: wavelength}
	for i, row := range fibres {
		if int(row.ProbeNum) != probe || row.Type != "P" {
			continue
		}
		if b.Name == "" {
			b.Name = row.ProbeName
		}
		b.Data = append(b.Data, data[i])
		b.Variance = append(b.Variance, variance[i])
		b.XFibre = append(b.XFibre, row.XPos)
		b.YFibre = append(b.YFibre, row.YPos)
	}
	if len(b.Data) == 0 {
		return nil, fmt.Errorf("ifu: probe %d has no object fibres in %s", probe, path)
	}

	// Offsets are relative to the bundle centre.
	recentre(b.XFibre)
	recentre(b.YFibre)
	return b, nil
}

// ProbeSky summarises the non-sky probes of a frame: each probe's number
// with the mean sky position of its fibres, in ascending probe order.
func ProbeSky(path string) ([]standards.Probe, error) {
	f, done, err := open(path)
	if err != nil {
		return nil, err
	}
	defer done()

	fibres, err := readFibreTable(f, path)
	if err != nil {
		return nil, err
	}

	sums := make(map[int]*standards.Probe)
	counts := make(map[int]int)
	for _, row := range fibres {
		if strings.Contains(row.ProbeName, "SKY") {
			continue
		}
		num := int(row.ProbeNum)
		probe, ok := sums[num]
		if !ok {
			probe = &standards.Probe{Number: num}
			sums[num] = probe
		}
		probe.RA += row.RA
		probe.Dec += row.Dec
		counts[num]++
	}

	probes := make([]standards.Probe, 0, len(sums))
	for num, probe := range sums {
		n := float64(counts[num])
		probes = append(probes, standards.Probe{Number: num, RA: probe.RA / n, Dec: probe.Dec / n})
	}
	sort.Slice(probes, func(i, j int) bool { return probes[i].Number < probes[j].Number })
	return probes, nil
}

func open(path string) (*fitsio.File, func(), error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("ifu: %w", err)
	}
	f, err := fitsio.Open(r)
	if err != nil {
		r.Close()
		return nil, nil, fmt.Errorf("ifu: opening %s: %w", path, err)
	}
	return f, func() {
		f.Close()
		r.Close()
	}, nil
}

func recentre(offsets []float64) {
	mean := 0.0
	for _, v := range offsets {
		mean += v
	}
	mean /= float64(len(offsets))
	for i := range offsets {
		offsets[i] -= mean
	}
}
