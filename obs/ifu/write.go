package ifu

import (
	"bytes"
	"fmt"
	"os"

	"github.com/astrogo/fitsio"

	"github.com/rscalzo/sami/obs/standards"
)

// WriteExtracted stores the extracted standard-star flux and background in
// a FLUX_CALIBRATION image extension (row 0: flux, row 1: background),
// replacing any previous one. The matched star identifies the probe and
// the reference spectrum in the header cards.
func WriteExtracted(path string, flux, background []float64, star standards.Star) error {
	if len(flux) != len(background) {
		return fmt.Errorf("ifu: flux has %d samples, background has %d", len(flux), len(background))
	}
	data := make([]float64, 0, 2*len(flux))
	data = append(data, flux...)
	data = append(data, background...)
	cards := []fitsio.Card{
		{Name: "PROBENUM", Value: star.Probe, Comment: "Number of the probe containing the star"},
		{Name: "STDNAME", Value: star.Name, Comment: "Name of standard star"},
		{Name: "STDFILE", Value: star.Path, Comment: "Filename of standard spectrum"},
		{Name: "STDOFF", Value: star.Separation, Comment: "Offset (arcsec) to standard star coordinates"},
	}
	return rewrite(path, func(f *fitsio.File, hdu fitsio.HDU) (bool, error) {
		// Drop any existing extension; the fresh one is appended at the end.
		return hdu.Name() == "FLUX_CALIBRATION", nil
	}, func(f *fitsio.File) error {
		return writeImageHDU(f, "FLUX_CALIBRATION", []int{len(flux), 2}, data, cards)
	})
}

// WriteTransfer stores a transfer function as row 2 of the existing
// FLUX_CALIBRATION extension, appending the row on first write and
// overwriting it on reruns.
func WriteTransfer(path string, transfer []float64) error {
	if err := requireHDU(path, "FLUX_CALIBRATION"); err != nil {
		return err
	}
	return rewrite(path, func(f *fitsio.File, hdu fitsio.HDU) (bool, error) {
		if hdu.Name() != "FLUX_CALIBRATION" {
			return false, nil
		}
		img, ok := hdu.(fitsio.Image)
		if !ok {
			return false, fmt.Errorf("ifu: FLUX_CALIBRATION in %s is not an image", path)
		}
		rows, err := imageRows(img)
		if err != nil {
			return false, fmt.Errorf("ifu: FLUX_CALIBRATION in %s: %w", path, err)
		}
		nPixel := len(rows[0])
		if len(transfer) != nPixel {
			return false, fmt.Errorf("ifu: transfer function has %d samples, frame has %d", len(transfer), nPixel)
		}
		switch len(rows) {
		case 2:
			rows = append(rows, transfer)
		case 3:
			rows[2] = transfer
		default:
			return false, fmt.Errorf("ifu: FLUX_CALIBRATION in %s has %d rows", path, len(rows))
		}
		flat := make([]float64, 0, len(rows)*nPixel)
		for _, row := range rows {
			flat = append(flat, row...)
		}
		cards := dataCards(img.Header())
		if err := writeImageHDU(f, "FLUX_CALIBRATION", []int{nPixel, len(rows)}, flat, cards); err != nil {
			return false, err
		}
		return true, nil
	}, nil)
}

// requireHDU checks an extension exists before the file is touched.
func requireHDU(path, name string) error {
	f, done, err := open(path)
	if err != nil {
		return err
	}
	defer done()
	if findHDU(f, name) == nil {
		return fmt.Errorf("ifu: %s has no %s extension", path, name)
	}
	return nil
}

// dataCards collects the non-structural cards of a header.
func dataCards(hdr *fitsio.Header) []fitsio.Card {
	var cards []fitsio.Card
	for _, key := range hdr.Keys() {
		if structuralKey(key) {
			continue
		}
		if card := hdr.Get(key); card != nil {
			cards = append(cards, *card)
		}
	}
	return cards
}

// rewrite streams a frame into a fresh FITS file. For every HDU the
// replace hook either writes its own replacement (returning true) or
// defers to a verbatim copy; the optional appendHDU hook runs after the
// existing HDUs. The original file is swapped only on success.
func rewrite(path string, replace func(*fitsio.File, fitsio.HDU) (bool, error), appendHDU func(*fitsio.File) error) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ifu: %w", err)
	}
	in, err := fitsio.Open(bytes.NewReader(src))
	if err != nil {
		return fmt.Errorf("ifu: opening %s: %w", path, err)
	}
	defer in.Close()

	var buf bytes.Buffer
	out, err := fitsio.Create(&buf)
	if err != nil {
		return fmt.Errorf("ifu: rewriting %s: %w", path, err)
	}

	for _, hdu := range in.HDUs() {
		handled, err := replace(out, hdu)
		if err != nil {
			out.Close()
			return err
		}
		if handled {
			continue
		}
		if err := copyHDU(out, hdu); err != nil {
			out.Close()
			return err
		}
	}
	if appendHDU != nil {
		if err := appendHDU(out); err != nil {
			out.Close()
			return err
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("ifu: rewriting %s: %w", path, err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("ifu: %w", err)
	}
	return nil
}
