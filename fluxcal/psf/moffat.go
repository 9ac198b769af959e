package psf

import "math"

// SliceParams holds the resolved PSF parameters for one wavelength slice.
// Positions and widths are in arcseconds relative to the field center.
type SliceParams struct {
	XCen       float64
	YCen       float64
	AlphaX     float64
	AlphaY     float64
	Beta       float64
	Rho        float64
	Flux       float64
	Background float64
}

// Point evaluates the elliptical Moffat profile at the given sky position.
// The profile integrates to one over the plane and is rescaled by the nominal
// fiber disc area, so a flux parameter multiplies it directly into counts.
func (p SliceParams) Point(x, y float64) float64 {
	xt := (x - p.XCen) / p.AlphaX
	yt := (y - p.YCen) / p.AlphaY
	omr2 := 1.0 - p.Rho*p.Rho
	norm := (p.Beta - 1.0) / (math.Pi * p.AlphaX * p.AlphaY * math.Sqrt(omr2))
	shape := 1.0 + (xt*xt+yt*yt-2.0*p.Rho*xt*yt)/omr2
	return norm * math.Pow(shape, -p.Beta) * math.Pi * FibreRadius * FibreRadius
}

// Model evaluates fiber-integrated Moffat profiles over a fixed aperture
// subgrid. The zero value is not usable; construct with NewModel.
type Model struct {
	grid *Subgrid
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithSubgrid substitutes a custom aperture subgrid.
func WithSubgrid(g *Subgrid) ModelOption {
	return func(m *Model) {
		if g != nil && g.Len() > 0 {
			m.grid = g
		}
	}
}

// NewModel creates a model over the default fiber aperture subgrid.
func NewModel(opts ...ModelOption) *Model {
	m := &Model{grid: NewSubgrid(FibreRadius)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fibre returns the profile integrated over a fiber aperture centered at
// (x, y): the mean of point evaluations at every subgrid offset.
func (m *Model) Fibre(p SliceParams, x, y float64) float64 {
	sum := 0.0
	for i := range m.grid.x {
		sum += p.Point(x+m.grid.x[i], y+m.grid.y[i])
	}
	return sum / float64(len(m.grid.x))
}

// Profile fills dst with the fiber-integrated profile at each fiber position.
// dst must have the same length as xf and yf.
func (m *Model) Profile(dst []float64, p SliceParams, xf, yf []float64) {
	for i := range dst {
		dst[i] = m.Fibre(p, xf[i], yf[i])
	}
}

// Flux returns the fiber-major model flux for all slices:
// out[fiber][slice] = slice.Flux * profile + slice.Background.
func (m *Model) Flux(slices []SliceParams, xf, yf []float64) [][]float64 {
	out := make([][]float64, len(xf))
	for i := range out {
		out[i] = make([]float64, len(slices))
	}
	prof := make([]float64, len(xf))
	for j, sp := range slices {
		m.Profile(prof, sp, xf, yf)
		for i := range xf {
			out[i][j] = sp.Flux*prof[i] + sp.Background
		}
	}
	return out
}
