// Package psf models the point-spread function of a fiber-fed integral-field
// spectrograph as an elliptical Moffat profile, integrated over each fiber's
// circular aperture by averaging over a fixed subgrid of sample points.
//
// Three parameterizations are supported, selected by a Variant tag:
//   - VariantFull: independent x/y widths plus a correlation term
//   - VariantCircular: one shared width, zero correlation
//   - VariantCircularAtm: VariantCircular with free atmospheric conditions
//
// A Params record stores reference-wavelength values; ExpandToSlices resolves
// it into per-wavelength SliceParams by applying differential atmospheric
// refraction to the center and the turbulence power law to the widths.
// ToVector and FromVector translate between Params and the flat vector layout
// used by least-squares optimizers.
//
// Common workflow:
//   - m := psf.NewModel()
//   - slices, err := psf.ExpandToSlices(params, wavelengths)
//   - flux := m.Flux(slices, xFibre, yFibre)
package psf
