// Package qcplot renders quick-look figures for visual inspection of
// calibration products.
package qcplot

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// TransferFunction writes a line plot of the transfer function against
// wavelength to path. The image format follows the path extension, as
// understood by gonum/plot (png, svg, pdf). Non-finite samples, such as
// the trimmed spectrum ends, are left out of the line.
func TransferFunction(path string, wavelength, transfer []float64) error {
	if len(wavelength) != len(transfer) {
		return fmt.Errorf("qcplot: %d wavelengths for %d transfer samples", len(wavelength), len(transfer))
	}

	pts := make(plotter.XYs, 0, len(transfer))
	for i := range transfer {
		if math.IsNaN(transfer[i]) || math.IsInf(transfer[i], 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: wavelength[i], Y: transfer[i]})
	}
	if len(pts) == 0 {
		return fmt.Errorf("qcplot: no finite transfer samples to plot")
	}

	p := plot.New()
	p.Title.Text = "Transfer function"
	p.X.Label.Text = "Wavelength (Å)"
	p.Y.Label.Text = "Standard flux / observed counts"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("qcplot: %w", err)
	}
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(line)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("qcplot: %w", err)
	}
	return nil
}
