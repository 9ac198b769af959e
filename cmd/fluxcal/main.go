// Command fluxcal derives flux calibration transfer functions from reduced
// IFU frames observing a spectrophotometric standard star.
//
// Usage:
//
//	fluxcal [flags] frame.fits [frame.fits ...]
//
// The frames must cover the same field, e.g. the blue and red arms of one
// exposure or repeat exposures. The standard star is located from the first
// frame's fibre table, its PSF is fitted jointly across all frames, and each
// frame is updated in place with a FLUX_CALIBRATION extension holding the
// extracted flux, the fitted background and the transfer function.
//
// Examples:
//
//	fluxcal -catalogue standards/index.dat 06mar10036red.fits 06mar10036blu.fits
//	fluxcal -config fluxcal.yml -model circular_atm frame.fits
//	fluxcal -catalogue standards/index.dat -plot qc.png frame.fits
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rscalzo/sami/fluxcal/psf"
	"github.com/rscalzo/sami/internal/qcplot"
	"github.com/rscalzo/sami/pipeline"
)

// catalogueList collects repeated -catalogue flags.
type catalogueList []string

func (c *catalogueList) String() string { return strings.Join(*c, ",") }

func (c *catalogueList) Set(v string) error {
	*c = append(*c, v)
	return nil
}

func main() {
	model := flag.String("model", "", "PSF model: full, circular or circular_atm")
	maxSep := flag.Float64("maxsep", 0, "standard star matching radius in arcsec")
	smooth := flag.Float64("smooth", 0, "transfer function smoothing sigma in reference-grid samples")
	configPath := flag.String("config", "", "YAML configuration file")
	plotPath := flag.String("plot", "", "write a QC plot of each transfer function (png, svg or pdf)")
	var catalogues catalogueList
	flag.Var(&catalogues, "catalogue", "standard star catalogue index file (repeatable)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fluxcal [flags] frame.fits [frame.fits ...]\n\n")
		fmt.Fprintf(os.Stderr, "Derives the flux calibration transfer function from frames observing\n")
		fmt.Fprintf(os.Stderr, "a standard star and writes it back into each frame.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  fluxcal -catalogue standards/index.dat 06mar10036red.fits 06mar10036blu.fits\n")
		fmt.Fprintf(os.Stderr, "  fluxcal -config fluxcal.yml -model circular_atm frame.fits\n")
	}
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "error: no input frames\n\n")
		flag.Usage()
		os.Exit(2)
	}

	cfg := pipeline.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = pipeline.LoadConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
	// Flags override the config file.
	if *model != "" {
		cfg.Model = *model
	}
	if *maxSep > 0 {
		cfg.MaxSeparation = *maxSep
	}
	if *smooth > 0 {
		cfg.SmoothWidth = *smooth
	}
	if len(catalogues) > 0 {
		cfg.Catalogues = catalogues
	}

	opts, err := cfg.Options()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	res, err := pipeline.DeriveTransferFunction(paths, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	printSummary(res)

	if *plotPath != "" {
		for _, file := range res.Files {
			path := plotName(*plotPath, file.Path, len(res.Files) > 1)
			if err := qcplot.TransferFunction(path, file.Wavelength, file.Transfer); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("QC plot written to %s\n", path)
		}
	}
}

func printSummary(res pipeline.Result) {
	fmt.Printf("Standard star %s in probe %d, %.2f arcsec from catalogue position\n",
		res.Star.Name, res.Star.Probe, res.Star.Separation)
	fmt.Printf("PSF %s\n\n", describePSF(res.PSF))

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "Frame\tPixels\tCalibrated\tTransfer Min\tTransfer Max\n"); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to write output header: %v\n", err)
		return
	}
	if _, err := fmt.Fprintf(tw, "-----\t------\t----------\t------------\t------------\n"); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to write output header: %v\n", err)
		return
	}
	for _, file := range res.Files {
		finite, lo, hi := transferRange(file.Transfer)
		if _, err := fmt.Fprintf(tw, "%s\t%d\t%d\t%.4g\t%.4g\n",
			filepath.Base(file.Path), len(file.Transfer), finite, lo, hi); err != nil {
			fmt.Fprintf(os.Stderr, "error: failed to write output row: %v\n", err)
			return
		}
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to flush output: %v\n", err)
	}
}

func describePSF(p psf.Params) string {
	switch p.Variant {
	case psf.VariantFull:
		return fmt.Sprintf("%s: alphax %.3f alphay %.3f beta %.3f rho %.3f",
			p.Variant, p.AlphaXRef, p.AlphaYRef, p.Beta, p.Rho)
	case psf.VariantCircularAtm:
		return fmt.Sprintf("%s: alpha %.3f beta %.3f (%.1f C, %.1f mmHg)",
			p.Variant, p.AlphaRef, p.Beta, p.Atmosphere.Temperature, p.Atmosphere.Pressure)
	default:
		return fmt.Sprintf("%s: alpha %.3f beta %.3f", p.Variant, p.AlphaRef, p.Beta)
	}
}

// transferRange reports how many transfer samples are finite and their range.
func transferRange(transfer []float64) (finite int, lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range transfer {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		finite++
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if finite == 0 {
		return 0, math.NaN(), math.NaN()
	}
	return finite, lo, hi
}

// plotName derives a per-frame plot path. With a single frame the requested
// path is used as is; with several the frame's base name is appended so the
// plots do not overwrite each other.
func plotName(base, framePath string, multi bool) string {
	if !multi {
		return base
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	frame := strings.TrimSuffix(filepath.Base(framePath), filepath.Ext(framePath))
	return stem + "_" + frame + ext
}
