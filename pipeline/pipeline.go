// Package pipeline derives flux calibration transfer functions end to end.
//
// A group of frames observing the same field is processed together: the
// standard star and its probe are identified from the fibre table of the
// first frame, the star's PSF is fitted once to chunked data pooled from
// every frame, and each frame then gets its own extracted spectrum and
// transfer function written back into a FLUX_CALIBRATION extension.
package pipeline

import (
	"fmt"

	"github.com/rscalzo/sami/fluxcal/chunk"
	"github.com/rscalzo/sami/fluxcal/psf"
	"github.com/rscalzo/sami/fluxcal/transfer"
	"github.com/rscalzo/sami/measure/extract"
	"github.com/rscalzo/sami/measure/psffit"
	"github.com/rscalzo/sami/obs/ifu"
	"github.com/rscalzo/sami/obs/standards"
)

// Options configures a transfer-function derivation.
type Options struct {
	// Model selects the PSF parameterization. The zero value is
	// psf.VariantFull; DefaultConfig uses the circular model.
	Model psf.Variant

	// Catalogues lists the standard star index files to search.
	Catalogues []string

	// MaxSeparation is the matching radius in arcsec. Values at or below
	// zero fall back to standards.DefaultMaxSeparation.
	MaxSeparation float64

	// SmoothWidth is the Gaussian sigma, in reference-grid samples, for
	// smoothing the transfer function. Values at or below zero fall back
	// to transfer.DefaultWidth.
	SmoothWidth float64
}

// Result reports one derivation: the matched star, the joint PSF fit and the
// per-frame calibration products.
type Result struct {
	Star  standards.Star
	PSF   psf.Params
	Files []FileResult
}

// FileResult holds the calibration products written into one frame.
type FileResult struct {
	Path       string
	Wavelength []float64
	Flux       []float64
	Background []float64
	Transfer   []float64
}

// Observation couples chunked fibre fluxes with the layout of the bundle
// that recorded them.
type Observation struct {
	Chunks chunk.Set
	XFibre []float64 // arcsec
	YFibre []float64 // arcsec
}

// ReadChunked reads one probe's spectra from every path, chunks each frame
// and concatenates the chunks. Frames from different spectrograph arms or
// repeat exposures cover different wavelength ranges; the chunk axis simply
// grows. The fibre layout is taken from the last frame.
func ReadChunked(paths []string, probe int, opts ...chunk.Option) (Observation, error) {
	if len(paths) == 0 {
		return Observation{}, fmt.Errorf("pipeline: no input files")
	}
	sets := make([]chunk.Set, 0, len(paths))
	var last *ifu.Bundle
	for _, path := range paths {
		b, err := ifu.Read(path, probe)
		if err != nil {
			return Observation{}, fmt.Errorf("pipeline: %w", err)
		}
		set, err := chunk.Split(b.Data, b.Variance, b.Wavelength, opts...)
		if err != nil {
			return Observation{}, fmt.Errorf("pipeline: chunking %s: %w", path, err)
		}
		sets = append(sets, set)
		last = b
	}
	combined, err := chunk.Concat(sets...)
	if err != nil {
		return Observation{}, fmt.Errorf("pipeline: %w", err)
	}
	return Observation{Chunks: combined, XFibre: last.XFibre, YFibre: last.YFibre}, nil
}

// DeriveTransferFunction runs the full calibration for one group of frames.
//
// The standard star is matched against the catalogues using the fibre table
// of the first frame, its reference spectrum is loaded, and the PSF model is
// fitted to the chunked data of all frames pooled together. Every frame then
// has its total flux extracted at native resolution and divided into the
// reference spectrum; both products are persisted into the frame. Frames
// already carrying calibration products have them replaced.
func DeriveTransferFunction(paths []string, o Options) (Result, error) {
	if len(paths) == 0 {
		return Result{}, fmt.Errorf("pipeline: no input files")
	}
	if len(o.Catalogues) == 0 {
		return Result{}, fmt.Errorf("pipeline: no standard star catalogues")
	}
	maxSep := o.MaxSeparation
	if maxSep <= 0 {
		maxSep = standards.DefaultMaxSeparation
	}

	stars, err := standards.LoadCatalogues(o.Catalogues)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: %w", err)
	}
	probes, err := ifu.ProbeSky(paths[0])
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: %w", err)
	}
	star, err := standards.MatchBundle(stars, probes, maxSep)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: no standard star in %s: %w", paths[0], err)
	}
	stdWavelength, stdFlux, err := standards.ReadSpectrum(star.Path)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: %w", err)
	}

	obs, err := ReadChunked(paths, star.Probe)
	if err != nil {
		return Result{}, err
	}
	params, err := psffit.Fit(obs.Chunks.Data, obs.Chunks.Variance,
		obs.XFibre, obs.YFibre, obs.Chunks.Wavelength, o.Model)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: %w", err)
	}

	var ratioOpts []transfer.Option
	if o.SmoothWidth > 0 {
		ratioOpts = append(ratioOpts, transfer.WithWidth(o.SmoothWidth))
	}

	result := Result{Star: star, PSF: params, Files: make([]FileResult, 0, len(paths))}
	for _, path := range paths {
		b, err := ifu.Read(path, star.Probe)
		if err != nil {
			return Result{}, fmt.Errorf("pipeline: %w", err)
		}
		flux, background, err := extract.Spectrum(b.Data, b.Variance,
			b.XFibre, b.YFibre, b.Wavelength, params)
		if err != nil {
			return Result{}, fmt.Errorf("pipeline: extracting %s: %w", path, err)
		}
		if err := ifu.WriteExtracted(path, flux, background, star); err != nil {
			return Result{}, fmt.Errorf("pipeline: %w", err)
		}
		tf, err := transfer.Ratio(stdFlux, stdWavelength, flux, b.Wavelength, ratioOpts...)
		if err != nil {
			return Result{}, fmt.Errorf("pipeline: %s: %w", path, err)
		}
		if err := ifu.WriteTransfer(path, tf); err != nil {
			return Result{}, fmt.Errorf("pipeline: %w", err)
		}
		result.Files = append(result.Files, FileResult{
			Path:       path,
			Wavelength: b.Wavelength,
			Flux:       flux,
			Background: background,
			Transfer:   tf,
		})
	}
	return result, nil
}
