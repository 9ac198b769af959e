// Package extract recovers the total flux of a standard star from its
// fiber bundle, one wavelength slice at a time, once the PSF shape has
// been fitted. Each slice is a two-parameter least-squares fit of
// amplitude and background against the fixed normalised profile.
package extract

import (
	"fmt"
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/floats"

	"github.com/rscalzo/sami/fluxcal/psf"
)

// MinFibres is the smallest number of finite-valued fibres a slice needs
// before a fit is attempted. Slices below it yield NaN flux and background.
const MinFibres = 31

const (
	maxIterations = 100
	objectiveTol  = 1e-16
)

// Slice fits flux and background for a single wavelength slice. data and
// variance hold one sample per fibre at the positions xFibre, yFibre, and
// shape carries the PSF parameters resolved for this slice; its Flux and
// Background fields are ignored. A nil model evaluates over the default
// aperture subgrid.
//
// The fit is unweighted. Variance is accepted for symmetry with the rest
// of the pipeline but takes no part in the residual.
// TODO: weight by variance once the upstream variance maps are trustworthy.
func Slice(data, variance, xFibre, yFibre []float64, shape psf.SliceParams, model *psf.Model) (flux, background float64) {
	if model == nil {
		model = psf.NewModel()
	}

	vals := make([]float64, 0, len(data))
	xs := make([]float64, 0, len(data))
	ys := make([]float64, 0, len(data))
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		vals = append(vals, v)
		xs = append(xs, xFibre[i])
		ys = append(ys, yFibre[i])
	}
	if len(vals) < MinFibres {
		return math.NaN(), math.NaN()
	}

	profile := make([]float64, len(vals))
	model.Profile(profile, shape, xs, ys)

	residual := func(dst, params []float64) {
		for i := range dst {
			dst[i] = (params[1] + params[0]*profile[i]) - vals[i]
		}
	}
	jacobian := lm.NumJac{Func: residual}

	problem := lm.LMProblem{
		Dim:        2,
		Size:       len(vals),
		Func:       residual,
		Jac:        jacobian.Jac,
		InitParams: []float64{floats.Sum(vals), 0.0},
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}
	results, err := lm.LM(problem, &lm.Settings{Iterations: maxIterations, ObjectiveTol: objectiveTol})
	if err != nil {
		return math.NaN(), math.NaN()
	}
	return results.X[0], results.X[1]
}

// Spectrum extracts flux and background over the full wavelength grid.
// data and variance are fiber-major [fibre][pixel], and p holds the fitted
// reference parameters whose shape fields are expanded to every pixel.
// Slices with too few finite fibres come back as NaN.
func Spectrum(data, variance [][]float64, xFibre, yFibre, wavelength []float64, p psf.Params) (flux, background []float64, err error) {
	if err := validate(data, variance, xFibre, yFibre, wavelength); err != nil {
		return nil, nil, err
	}

	slices, err := psf.ExpandToSlices(p, wavelength)
	if err != nil {
		return nil, nil, fmt.Errorf("extract: %w", err)
	}

	model := psf.NewModel()
	nFibre := len(data)
	flux = make([]float64, len(wavelength))
	background = make([]float64, len(wavelength))
	dataCol := make([]float64, nFibre)
	varCol := make([]float64, nFibre)
	for j := range wavelength {
		for i := 0; i < nFibre; i++ {
			dataCol[i] = data[i][j]
			varCol[i] = variance[i][j]
		}
		flux[j], background[j] = Slice(dataCol, varCol, xFibre, yFibre, slices[j], model)
	}
	return flux, background, nil
}

func validate(data, variance [][]float64, xFibre, yFibre, wavelength []float64) error {
	nFibre := len(data)
	if nFibre == 0 {
		return fmt.Errorf("extract: no fibres")
	}
	if len(wavelength) == 0 {
		return fmt.Errorf("extract: no wavelength pixels")
	}
	if len(xFibre) != nFibre || len(yFibre) != nFibre {
		return fmt.Errorf("extract: %d/%d fibre positions for %d fibres", len(xFibre), len(yFibre), nFibre)
	}
	if len(variance) != nFibre {
		return fmt.Errorf("extract: variance has %d fibres, data has %d", len(variance), nFibre)
	}
	for i := 0; i < nFibre; i++ {
		if len(data[i]) != len(wavelength) || len(variance[i]) != len(wavelength) {
			return fmt.Errorf("extract: fibre %d does not match %d wavelength pixels", i, len(wavelength))
		}
	}
	return nil
}
