// Package psffit fits a Moffat PSF model jointly to chunked fibre fluxes
// across wavelength.
//
// A single parameter record describes the star at a reference wavelength;
// atmospheric refraction and the seeing law tie every wavelength chunk to the
// same record, so one nonlinear fit pools the signal of all chunks. The
// minimized quantity is the variance-weighted residual over every fibre and
// chunk.
package psffit

import (
	"fmt"
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/floats"

	"github.com/rscalzo/sami/fluxcal/dar"
	"github.com/rscalzo/sami/fluxcal/psf"
)

const (
	maxIterations = 1000
	objectiveTol  = 1e-16
)

// Fit derives the PSF parameter record that best matches the chunked data.
//
// data and variance are fibre-major with one column per wavelength chunk;
// xFibre and yFibre give the fibre offsets in arcsec. The returned record
// uses the requested variant and carries fitted flux and background per
// chunk.
func Fit(data, variance [][]float64, xFibre, yFibre, wavelength []float64, variant psf.Variant) (psf.Params, error) {
	if err := validate(data, variance, xFibre, yFibre, wavelength); err != nil {
		return psf.Params{}, err
	}
	guess, err := firstGuess(data, variance, xFibre, yFibre, wavelength, variant)
	if err != nil {
		return psf.Params{}, err
	}
	initParams, err := psf.ToVector(guess)
	if err != nil {
		return psf.Params{}, err
	}

	nFibre := len(data)
	nSlice := len(wavelength)
	model := psf.NewModel()
	residual := func(dst, params []float64) {
		rec, err := psf.FromVector(variant, params)
		var slices []psf.SliceParams
		if err == nil {
			slices, err = psf.ExpandToSlices(rec, wavelength)
		}
		if err != nil {
			// The solver never changes the vector length or variant;
			// poison the residual rather than panic.
			for i := range dst {
				dst[i] = math.Inf(1)
			}
			return
		}
		modelled := model.Flux(slices, xFibre, yFibre)
		k := 0
		for i := 0; i < nFibre; i++ {
			for j := 0; j < nSlice; j++ {
				dst[k] = (modelled[i][j] - data[i][j]) / math.Sqrt(variance[i][j])
				k++
			}
		}
	}

	jacobian := lm.NumJac{Func: residual}
	problem := lm.LMProblem{
		Dim:        len(initParams),
		Size:       nFibre * nSlice,
		Func:       residual,
		Jac:        jacobian.Jac,
		InitParams: initParams,
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}
	results, err := lm.LM(problem, &lm.Settings{Iterations: maxIterations, ObjectiveTol: objectiveTol})
	if err != nil {
		return psf.Params{}, fmt.Errorf("psffit: optimization failed: %w", err)
	}
	return psf.FromVector(variant, results.X)
}

// firstGuess seeds the fit: centers from the variance-weighted centroid of
// the fibre fluxes, per-chunk flux from the fibre sums, and fixed starting
// values for the shape and refraction parameters.
func firstGuess(data, variance [][]float64, xFibre, yFibre, wavelength []float64, variant psf.Variant) (psf.Params, error) {
	nFibre := len(data)
	nSlice := len(wavelength)

	weights := make([]float64, nFibre)
	for i := range weights {
		sum := 0.0
		for j := 0; j < nSlice; j++ {
			sum += data[i][j] / variance[i][j]
		}
		weights[i] = sum
	}
	floats.Scale(1.0/floats.Sum(weights), weights)

	flux := make([]float64, nSlice)
	for j := 0; j < nSlice; j++ {
		sum := 0.0
		for i := 0; i < nFibre; i++ {
			if !math.IsNaN(data[i][j]) {
				sum += data[i][j]
			}
		}
		flux[j] = sum
	}

	p := psf.Params{
		Variant:         variant,
		Flux:            flux,
		Background:      make([]float64, nSlice),
		XCenRef:         floats.Dot(xFibre, weights),
		YCenRef:         floats.Dot(yFibre, weights),
		ZenithDirection: math.Pi / 4.0,
		ZenithDistance:  math.Pi / 8.0,
		Beta:            4.0,
	}
	switch variant {
	case psf.VariantFull:
		p.AlphaXRef = 1.0
		p.AlphaYRef = 1.0
		p.Rho = 0.0
	case psf.VariantCircular:
		p.AlphaRef = 1.0
	case psf.VariantCircularAtm:
		p.AlphaRef = 1.0
		p.Atmosphere = dar.DefaultConditions()
	default:
		return psf.Params{}, fmt.Errorf("psffit: %w: %v", psf.ErrUnknownVariant, int(variant))
	}
	return p, nil
}

func validate(data, variance [][]float64, xFibre, yFibre, wavelength []float64) error {
	nFibre := len(data)
	if nFibre == 0 {
		return fmt.Errorf("psffit: no fibres")
	}
	if len(wavelength) == 0 {
		return fmt.Errorf("psffit: no wavelength chunks")
	}
	if len(xFibre) != nFibre || len(yFibre) != nFibre {
		return fmt.Errorf("psffit: %d/%d fibre positions for %d fibres", len(xFibre), len(yFibre), nFibre)
	}
	if len(variance) != nFibre {
		return fmt.Errorf("psffit: variance has %d fibres, data has %d", len(variance), nFibre)
	}
	for i := 0; i < nFibre; i++ {
		if len(data[i]) != len(wavelength) || len(variance[i]) != len(wavelength) {
			return fmt.Errorf("psffit: fibre %d does not match %d wavelength chunks", i, len(wavelength))
		}
	}
	return nil
}
