package ifu

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/astrogo/fitsio"
)

// fibreRow mirrors the FIBRES_IFU columns the pipeline consumes.
type fibreRow struct {
	ProbeNum  int32   `fits:"PROBENUM"`
	ProbeName string  `fits:"PROBENAME"`
	Type      string  `fits:"TYPE"`
	XPos      float64 `fits:"XPOS"`
	YPos      float64 `fits:"YPOS"`
	RA        float64 `fits:"FIB_MRA"`
	Dec       float64 `fits:"FIB_MDEC"`
}

func fibreColumns() []fitsio.Column {
	return []fitsio.Column{
		{Name: "PROBENUM", Format: "1J"},
		{Name: "PROBENAME", Format: "20A"},
		{Name: "TYPE", Format: "1A"},
		{Name: "XPOS", Format: "1D"},
		{Name: "YPOS", Format: "1D"},
		{Name: "FIB_MRA", Format: "1D"},
		{Name: "FIB_MDEC", Format: "1D"},
	}
}

// findHDU returns the first HDU whose EXTNAME matches, or nil.
func findHDU(f *fitsio.File, name string) fitsio.HDU {
	for _, hdu := range f.HDUs() {
		if hdu.Name() == name {
			return hdu
		}
	}
	return nil
}

// readFibreTable scans the FIBRES_IFU rows in table order, which is also
// the fibre-major row order of the image HDUs.
func readFibreTable(f *fitsio.File, path string) ([]fibreRow, error) {
	hdu := findHDU(f, "FIBRES_IFU")
	if hdu == nil {
		return nil, fmt.Errorf("ifu: %s has no FIBRES_IFU extension", path)
	}
	tbl, ok := hdu.(*fitsio.Table)
	if !ok {
		return nil, fmt.Errorf("ifu: FIBRES_IFU in %s is not a table", path)
	}

	nRows := tbl.NumRows()
	rows, err := tbl.Read(0, nRows)
	if err != nil {
		return nil, fmt.Errorf("ifu: reading FIBRES_IFU in %s: %w", path, err)
	}
	defer rows.Close()

	entries := make([]fibreRow, 0, nRows)
	for rows.Next() {
		var row fibreRow
		if err := rows.Scan(&row); err != nil {
			return nil, fmt.Errorf("ifu: scanning FIBRES_IFU row %d in %s: %w", len(entries), path, err)
		}
		row.ProbeName = strings.TrimSpace(row.ProbeName)
		row.Type = strings.TrimSpace(row.Type)
		entries = append(entries, row)
	}
	if int64(len(entries)) != nRows {
		return nil, fmt.Errorf("ifu: read %d of %d FIBRES_IFU rows in %s", len(entries), nRows, path)
	}
	return entries, nil
}

// decodeImage unpacks an image HDU's data block into float64 values in
// row-major order. Only floating-point images appear in reduced frames.
func decodeImage(img fitsio.Image) ([]float64, error) {
	hdr := img.Header()
	if hdr.Get("BSCALE") != nil || hdr.Get("BZERO") != nil {
		return nil, fmt.Errorf("scaled image data is not supported")
	}
	n := 1
	axes := hdr.Axes()
	if len(axes) == 0 {
		return nil, nil
	}
	for _, ax := range axes {
		n *= ax
	}

	raw := img.Raw()
	switch bitpix := hdr.Bitpix(); bitpix {
	case -32:
		if len(raw) < 4*n {
			return nil, fmt.Errorf("image data block holds %d bytes, want %d", len(raw), 4*n)
		}
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = float64(math.Float32frombits(binary.BigEndian.Uint32(raw[4*i:])))
		}
		return vals, nil
	case -64:
		if len(raw) < 8*n {
			return nil, fmt.Errorf("image data block holds %d bytes, want %d", len(raw), 8*n)
		}
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = math.Float64frombits(binary.BigEndian.Uint64(raw[8*i:]))
		}
		return vals, nil
	default:
		return nil, fmt.Errorf("unsupported BITPIX %d", bitpix)
	}
}

// imageRows decodes a 2-D image into rows of its fastest axis, so
// rows[fibre][pixel] for fibre-major frames.
func imageRows(img fitsio.Image) ([][]float64, error) {
	axes := img.Header().Axes()
	if len(axes) != 2 {
		return nil, fmt.Errorf("image has %d axes, want 2", len(axes))
	}
	flat, err := decodeImage(img)
	if err != nil {
		return nil, err
	}
	nx, ny := axes[0], axes[1]
	rows := make([][]float64, ny)
	for i := range rows {
		rows[i] = flat[i*nx : (i+1)*nx]
	}
	return rows, nil
}

// cardFloat reads a numeric header value.
func cardFloat(hdr *fitsio.Header, key string) (float64, bool) {
	card := hdr.Get(key)
	if card == nil {
		return 0, false
	}
	switch v := card.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// wavelengthAxis builds the linear wavelength grid from the WCS cards.
// CRPIX1 follows the FITS convention of 1-based pixel indices.
func wavelengthAxis(hdr *fitsio.Header, n int, path string) ([]float64, error) {
	crval, ok := cardFloat(hdr, "CRVAL1")
	if !ok {
		return nil, fmt.Errorf("ifu: %s has no CRVAL1", path)
	}
	cdelt, ok := cardFloat(hdr, "CDELT1")
	if !ok {
		return nil, fmt.Errorf("ifu: %s has no CDELT1", path)
	}
	crpix, ok := cardFloat(hdr, "CRPIX1")
	if !ok {
		return nil, fmt.Errorf("ifu: %s has no CRPIX1", path)
	}
	wavelength := make([]float64, n)
	for j := range wavelength {
		wavelength[j] = crval + (float64(j+1)-crpix)*cdelt
	}
	return wavelength, nil
}

// structuralKey reports header keys that the FITS writer owns. They are
// dropped when copying cards between HDUs.
func structuralKey(key string) bool {
	switch key {
	case "SIMPLE", "BITPIX", "EXTEND", "XTENSION", "PCOUNT", "GCOUNT",
		"GROUPS", "TFIELDS", "EXTNAME", "COMMENT", "HISTORY", "END":
		return true
	}
	return strings.HasPrefix(key, "NAXIS") ||
		strings.HasPrefix(key, "TTYPE") ||
		strings.HasPrefix(key, "TFORM") ||
		strings.HasPrefix(key, "TUNIT")
}

// copyCards appends the non-structural cards of src to dst.
func copyCards(dst, src *fitsio.Header) error {
	for _, key := range src.Keys() {
		if structuralKey(key) {
			continue
		}
		card := src.Get(key)
		if card == nil {
			continue
		}
		if err := dst.Append(*card); err != nil {
			return fmt.Errorf("ifu: copying card %s: %w", key, err)
		}
	}
	return nil
}

// writeImageHDU appends a float64 image extension with the given name and
// extra cards. A row-major flat data layout matches axes [nx, ny].
func writeImageHDU(f *fitsio.File, name string, axes []int, data []float64, cards []fitsio.Card) error {
	img := fitsio.NewImage(-64, axes)
	defer img.Close()
	if name != "" {
		named := append([]fitsio.Card{{Name: "EXTNAME", Value: name}}, cards...)
		cards = named
	}
	if len(cards) > 0 {
		if err := img.Header().Append(cards...); err != nil {
			return fmt.Errorf("ifu: %s header: %w", name, err)
		}
	}
	if err := img.Write(&data); err != nil {
		return fmt.Errorf("ifu: writing %s data: %w", name, err)
	}
	if err := f.Write(img); err != nil {
		return fmt.Errorf("ifu: writing %s: %w", name, err)
	}
	return nil
}

// copyImageHDU clones an image HDU into the output file, preserving its
// data block and non-structural cards.
func copyImageHDU(f *fitsio.File, src fitsio.Image) error {
	hdr := src.Header()
	img := fitsio.NewImage(hdr.Bitpix(), hdr.Axes())
	defer img.Close()
	if name := src.Name(); name != "" {
		if err := img.Header().Append(fitsio.Card{Name: "EXTNAME", Value: name}); err != nil {
			return fmt.Errorf("ifu: copying %s: %w", name, err)
		}
	}
	if err := copyCards(img.Header(), hdr); err != nil {
		return err
	}
	if len(hdr.Axes()) > 0 {
		if err := writeDecoded(img, src); err != nil {
			return fmt.Errorf("ifu: copying image %q: %w", src.Name(), err)
		}
	}
	if err := f.Write(img); err != nil {
		return fmt.Errorf("ifu: copying image %q: %w", src.Name(), err)
	}
	return nil
}

// writeDecoded moves the source data block across in its native type.
func writeDecoded(dst fitsio.Image, src fitsio.Image) error {
	hdr := src.Header()
	if hdr.Get("BSCALE") != nil || hdr.Get("BZERO") != nil {
		return fmt.Errorf("scaled image data is not supported")
	}
	n := 1
	for _, ax := range hdr.Axes() {
		n *= ax
	}
	raw := src.Raw()
	pixsz := hdr.Bitpix() / 8
	if pixsz < 0 {
		pixsz = -pixsz
	}
	if len(raw) < n*pixsz {
		return fmt.Errorf("image data block holds %d bytes, want %d", len(raw), n*pixsz)
	}
	switch hdr.Bitpix() {
	case 8:
		vals := make([]int8, n)
		for i := range vals {
			vals[i] = int8(raw[i])
		}
		return dst.Write(&vals)
	case 16:
		vals := make([]int16, n)
		for i := range vals {
			vals[i] = int16(binary.BigEndian.Uint16(raw[2*i:]))
		}
		return dst.Write(&vals)
	case 32:
		vals := make([]int32, n)
		for i := range vals {
			vals[i] = int32(binary.BigEndian.Uint32(raw[4*i:]))
		}
		return dst.Write(&vals)
	case 64:
		vals := make([]int64, n)
		for i := range vals {
			vals[i] = int64(binary.BigEndian.Uint64(raw[8*i:]))
		}
		return dst.Write(&vals)
	case -32:
		vals := make([]float32, n)
		for i := range vals {
			vals[i] = math.Float32frombits(binary.BigEndian.Uint32(raw[4*i:]))
		}
		return dst.Write(&vals)
	case -64:
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = math.Float64frombits(binary.BigEndian.Uint64(raw[8*i:]))
		}
		return dst.Write(&vals)
	default:
		return fmt.Errorf("unsupported BITPIX %d", hdr.Bitpix())
	}
}

// copyFibreTable clones a FIBRES_IFU table into the output file.
func copyFibreTable(f *fitsio.File, src *fitsio.Table) error {
	nRows := src.NumRows()
	rows, err := src.Read(0, nRows)
	if err != nil {
		return fmt.Errorf("ifu: copying %s: %w", src.Name(), err)
	}
	defer rows.Close()

	entries := make([]fibreRow, 0, nRows)
	for rows.Next() {
		var row fibreRow
		if err := rows.Scan(&row); err != nil {
			return fmt.Errorf("ifu: copying %s row %d: %w", src.Name(), len(entries), err)
		}
		entries = append(entries, row)
	}
	if int64(len(entries)) != nRows {
		return fmt.Errorf("ifu: copied %d of %d rows of %s", len(entries), nRows, src.Name())
	}

	tbl, err := fitsio.NewTable(src.Name(), fibreColumns(), fitsio.BINARY_TBL)
	if err != nil {
		return fmt.Errorf("ifu: rebuilding %s: %w", src.Name(), err)
	}
	defer tbl.Close()
	for i := range entries {
		if err := tbl.Write(&entries[i]); err != nil {
			return fmt.Errorf("ifu: rebuilding %s row %d: %w", src.Name(), i, err)
		}
	}
	if err := f.Write(tbl); err != nil {
		return fmt.Errorf("ifu: copying table %q: %w", src.Name(), err)
	}
	return nil
}

// copyHDU dispatches on the HDU kind. Tables other than FIBRES_IFU are not
// expected in reduced frames and come back as an error rather than being
// dropped silently.
func copyHDU(f *fitsio.File, hdu fitsio.HDU) error {
	switch h := hdu.(type) {
	case fitsio.Image:
		return copyImageHDU(f, h)
	case *fitsio.Table:
		if h.Name() != "FIBRES_IFU" {
			return fmt.Errorf("ifu: cannot copy table %q", h.Name())
		}
		return copyFibreTable(f, h)
	default:
		return fmt.Errorf("ifu: cannot copy HDU %q", hdu.Name())
	}
}
