package psf

import (
	"fmt"
	"math"

	"github.com/rscalzo/sami/fluxcal/dar"
)

// Variant selects one of the three PSF parameterizations.
type Variant int

const (
	// VariantFull fits independent x/y widths and a correlation term.
	VariantFull Variant = iota
	// VariantCircular fits a single shared width with zero correlation.
	VariantCircular
	// VariantCircularAtm is VariantCircular with free atmospheric conditions.
	VariantCircularAtm
)

func (v Variant) String() string {
	switch v {
	case VariantFull:
		return "full"
	case VariantCircular:
		return "circular"
	case VariantCircularAtm:
		return "circular_atm"
	default:
		return "unknown"
	}
}

// ParseVariant maps a variant name to its tag.
func ParseVariant(name string) (Variant, error) {
	switch name {
	case "full":
		return VariantFull, nil
	case "circular":
		return VariantCircular, nil
	case "circular_atm":
		return VariantCircularAtm, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
}

// refCount returns the number of reference-wavelength parameters appended
// after the per-slice flux and background blocks in the flat vector.
func (v Variant) refCount() (int, error) {
	switch v {
	case VariantFull:
		return 8, nil
	case VariantCircular:
		return 6, nil
	case VariantCircularAtm:
		return 9, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrUnknownVariant, int(v))
	}
}

// Params is the reference-wavelength parameter record for a PSF fit. The
// Variant tag decides which fields are meaningful: AlphaXRef, AlphaYRef and
// Rho belong to VariantFull; AlphaRef to the circular variants; Atmosphere to
// VariantCircularAtm only. Flux and Background carry one entry per wavelength
// slice.
type Params struct {
	Variant Variant

	Flux       []float64
	Background []float64

	XCenRef         float64 // arcsec
	YCenRef         float64 // arcsec
	ZenithDirection float64 // radians, direction of atmospheric displacement
	ZenithDistance  float64 // radians

	AlphaXRef float64
	AlphaYRef float64
	AlphaRef  float64
	Beta      float64
	Rho       float64

	Atmosphere dar.Conditions
}

// NSlices returns the number of wavelength slices carried by the record.
func (p Params) NSlices() int { return len(p.Flux) }

// Alpha scales a reference-wavelength Moffat width to another wavelength
// using the lambda^(-1/5) turbulence power law. Exact at the reference
// wavelength: Alpha(dar.ReferenceWavelength, a) == a.
func Alpha(wavelength, alphaRef float64) float64 {
	return alphaRef * math.Pow(wavelength/dar.ReferenceWavelength, -0.2)
}

// ToVector flattens a record into the optimizer's vector layout:
// [flux(n), background(n), variant-specific reference parameters]. The
// reference block holds 8 (full), 6 (circular) or 9 (circular_atm) values.
func ToVector(p Params) ([]float64, error) {
	if len(p.Flux) != len(p.Background) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrMismatchedSlices, len(p.Flux), len(p.Background))
	}
	k, err := p.Variant.refCount()
	if err != nil {
		return nil, err
	}
	v := make([]float64, 0, 2*len(p.Flux)+k)
	v = append(v, p.Flux...)
	v = append(v, p.Background...)
	switch p.Variant {
	case VariantFull:
		v = append(v, p.XCenRef, p.YCenRef, p.ZenithDirection, p.ZenithDistance,
			p.AlphaXRef, p.AlphaYRef, p.Beta, p.Rho)
	case VariantCircular:
		v = append(v, p.XCenRef, p.YCenRef, p.ZenithDirection, p.ZenithDistance,
			p.AlphaRef, p.Beta)
	case VariantCircularAtm:
		v = append(v, p.Atmosphere.Temperature, p.Atmosphere.Pressure, p.Atmosphere.VapourPressure,
			p.XCenRef, p.YCenRef, p.ZenithDirection, p.ZenithDistance,
			p.AlphaRef, p.Beta)
	}
	return v, nil
}

// FromVector rebuilds a record from the flat vector layout produced by
// ToVector. The slice count is inferred from the vector length.
func FromVector(variant Variant, v []float64) (Params, error) {
	k, err := variant.refCount()
	if err != nil {
		return Params{}, err
	}
	if len(v) < k {
		return Params{}, fmt.Errorf("%w: %d values for variant %v", ErrVectorLength, len(v), variant)
	}
	n := (len(v) - k) / 2
	p := Params{Variant: variant}
	p.Flux = append([]float64(nil), v[:n]...)
	p.Background = append([]float64(nil), v[n:2*n]...)
	ref := v[len(v)-k:]
	switch variant {
	case VariantFull:
		p.XCenRef = ref[0]
		p.YCenRef = ref[1]
		p.ZenithDirection = ref[2]
		p.ZenithDistance = ref[3]
		p.AlphaXRef = ref[4]
		p.AlphaYRef = ref[5]
		p.Beta = ref[6]
		p.Rho = ref[7]
	case VariantCircular:
		p.XCenRef = ref[0]
		p.YCenRef = ref[1]
		p.ZenithDirection = ref[2]
		p.ZenithDistance = ref[3]
		p.AlphaRef = ref[4]
		p.Beta = ref[5]
	case VariantCircularAtm:
		p.Atmosphere.Temperature = ref[0]
		p.Atmosphere.Pressure = ref[1]
		p.Atmosphere.VapourPressure = ref[2]
		p.XCenRef = ref[3]
		p.YCenRef = ref[4]
		p.ZenithDirection = ref[5]
		p.ZenithDistance = ref[6]
		p.AlphaRef = ref[7]
		p.Beta = ref[8]
	}
	return p, nil
}

// ExpandToSlices resolves a record into per-wavelength slice parameters. The
// center moves along the zenith direction by the differential refraction
// offset, the widths follow the Alpha power law, rho is forced to zero for
// the circular variants, and flux/background are copied only when the
// record's arrays match the wavelength count (otherwise they stay zero for
// shape-only evaluation).
func ExpandToSlices(p Params, wavelengths []float64) ([]SliceParams, error) {
	if _, err := p.Variant.refCount(); err != nil {
		return nil, err
	}
	cond := dar.DefaultConditions()
	if p.Variant == VariantCircularAtm {
		cond = p.Atmosphere
	}
	cosDir := math.Cos(p.ZenithDirection)
	sinDir := math.Sin(p.ZenithDirection)
	copyFlux := len(p.Flux) == len(wavelengths)
	copyBackground := len(p.Background) == len(wavelengths)

	out := make([]SliceParams, len(wavelengths))
	for i, wl := range wavelengths {
		off := dar.Offset(wl, p.ZenithDistance, cond)
		sp := SliceParams{
			XCen: p.XCenRef + cosDir*off,
			YCen: p.YCenRef + sinDir*off,
			Beta: p.Beta,
		}
		if p.Variant == VariantFull {
			sp.AlphaX = Alpha(wl, p.AlphaXRef)
			sp.AlphaY = Alpha(wl, p.AlphaYRef)
			sp.Rho = p.Rho
		} else {
			a := Alpha(wl, p.AlphaRef)
			sp.AlphaX = a
			sp.AlphaY = a
		}
		if copyFlux {
			sp.Flux = p.Flux[i]
		}
		if copyBackground {
			sp.Background = p.Background[i]
		}
		out[i] = sp
	}
	return out, nil
}
