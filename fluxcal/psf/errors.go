package psf

import "errors"

var (
	// ErrUnknownVariant indicates a model variant outside the supported set.
	ErrUnknownVariant = errors.New("psf: unknown model variant")
	// ErrMismatchedSlices indicates flux and background arrays of different length.
	ErrMismatchedSlices = errors.New("psf: flux and background lengths differ")
	// ErrVectorLength indicates a parameter vector too short for its variant.
	ErrVectorLength = errors.New("psf: parameter vector too short")
)
