// Package chunk condenses full-resolution fibre spectra into a small number
// of wavelength chunks.
//
// PSF fitting does not need (and cannot afford) one nonlinear fit per detector
// pixel. Instead the usable wavelength range is cut into roughly 100-pixel
// chunks and each chunk is collapsed to a mean flux, a propagated variance and
// a representative wavelength. The chunk axis is what the joint PSF fit runs
// over.
package chunk

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

const (
	defaultDrop      = 24
	targetChunkWidth = 100.0
)

// Set holds chunked spectra for one probe: per-fibre mean flux and variance
// with one representative wavelength per chunk. Data and Variance are
// fibre-major with shape (nFibre, nChunk); Wavelength has length nChunk.
type Set struct {
	Data       [][]float64
	Variance   [][]float64
	Wavelength []float64
}

type config struct {
	drop   int
	chunks int
}

// Option adjusts how a spectrum is split into chunks.
type Option func(*config)

// WithDrop sets how many pixels to discard at each end of the spectrum
// before chunking. Negative values are ignored. The default is 24.
func WithDrop(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.drop = n
		}
	}
}

// WithChunks fixes the number of chunks instead of deriving it from the
// usable pixel count. Values below one are ignored.
func WithChunks(n int) Option {
	return func(c *config) {
		if n >= 1 {
			c.chunks = n
		}
	}
}

// Split condenses per-fibre spectra into wavelength chunks.
//
// data and variance are fibre-major (nFibre, nPixel) and wavelength has
// length nPixel. After dropping pixels at both ends the remainder is cut
// into chunks of equal size; by default the chunk count is chosen so chunks
// are about 100 pixels wide. Any pixels left over past the last whole chunk
// are discarded.
//
// Per chunk and fibre the flux is the mean over finite pixels, the variance
// is the finite-pixel sum divided by the squared finite count, and the
// wavelength is the median over the chunk. Chunks with no finite pixels
// come out NaN.
func Split(data, variance [][]float64, wavelength []float64, opts ...Option) (Set, error) {
	cfg := config{drop: defaultDrop}
	for _, opt := range opts {
		opt(&cfg)
	}

	nFibre := len(data)
	if nFibre == 0 {
		return Set{}, fmt.Errorf("chunk: no fibres")
	}
	nPixel := len(data[0])
	if len(wavelength) != nPixel {
		return Set{}, fmt.Errorf("chunk: wavelength length %d does not match %d pixels", len(wavelength), nPixel)
	}
	if len(variance) != nFibre {
		return Set{}, fmt.Errorf("chunk: variance has %d fibres, data has %d", len(variance), nFibre)
	}
	for i := 0; i < nFibre; i++ {
		if len(data[i]) != nPixel || len(variance[i]) != nPixel {
			return Set{}, fmt.Errorf("chunk: fibre %d has ragged data or variance", i)
		}
	}

	usable := nPixel - 2*cfg.drop
	nChunk := cfg.chunks
	if nChunk == 0 {
		nChunk = int(math.Round(float64(usable) / targetChunkWidth))
	}
	if nChunk < 1 {
		return Set{}, fmt.Errorf("chunk: %d usable pixels is too few to chunk", usable)
	}
	size := int(math.Round(float64(usable) / float64(nChunk)))
	if size < 1 {
		return Set{}, fmt.Errorf("chunk: %d chunks over %d usable pixels leaves empty chunks", nChunk, usable)
	}
	if cfg.drop+nChunk*size > nPixel {
		return Set{}, fmt.Errorf("chunk: %d chunks of %d pixels exceed the spectrum", nChunk, size)
	}

	out := Set{
		Data:       make([][]float64, nFibre),
		Variance:   make([][]float64, nFibre),
		Wavelength: make([]float64, nChunk),
	}
	for i := range out.Data {
		out.Data[i] = make([]float64, nChunk)
		out.Variance[i] = make([]float64, nChunk)
	}
	for c := 0; c < nChunk; c++ {
		lo := cfg.drop + c*size
		hi := lo + size
		out.Wavelength[c] = median(wavelength[lo:hi])
		for i := 0; i < nFibre; i++ {
			out.Data[i][c] = finiteMean(data[i][lo:hi])
			out.Variance[i][c] = propagateVariance(variance[i][lo:hi])
		}
	}
	return out, nil
}

// Concat joins chunk sets along the chunk axis, as when the blue and red arms
// of an exposure (or repeat exposures) feed a single fit. All sets must share
// the same fibre count.
func Concat(sets ...Set) (Set, error) {
	if len(sets) == 0 {
		return Set{}, fmt.Errorf("chunk: nothing to concatenate")
	}
	nFibre := len(sets[0].Data)
	total := 0
	for k, s := range sets {
		if len(s.Data) != nFibre {
			return Set{}, fmt.Errorf("chunk: set %d has %d fibres, want %d", k, len(s.Data), nFibre)
		}
		total += len(s.Wavelength)
	}

	out := Set{
		Data:       make([][]float64, nFibre),
		Variance:   make([][]float64, nFibre),
		Wavelength: make([]float64, 0, total),
	}
	for i := 0; i < nFibre; i++ {
		out.Data[i] = make([]float64, 0, total)
		out.Variance[i] = make([]float64, 0, total)
	}
	for _, s := range sets {
		out.Wavelength = append(out.Wavelength, s.Wavelength...)
		for i := 0; i < nFibre; i++ {
			out.Data[i] = append(out.Data[i], s.Data[i]...)
			out.Variance[i] = append(out.Variance[i], s.Variance[i]...)
		}
	}
	return out, nil
}

func finiteMean(vals []float64) float64 {
	sum := 0.0
	count := 0
	for _, v := range vals {
		if isFinite(v) {
			sum += v
			count++
		}
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}

// propagateVariance combines per-pixel variances into the variance of the
// finite-pixel mean: sum over finite pixels divided by the squared count.
func propagateVariance(vals []float64) float64 {
	sum := 0.0
	count := 0
	for _, v := range vals {
		if isFinite(v) {
			sum += v
			count++
		}
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count*count)
}

// median returns the middle value, or the mean of the two middle values for
// an even count. Any NaN in the input makes the result NaN.
func median(vals []float64) float64 {
	if len(vals) == 0 || floats.HasNaN(vals) {
		return math.NaN()
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return 0.5 * (sorted[mid-1] + sorted[mid])
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
