package scan2pdf

import "errors"

// Sentinel errors for library operations.
var (
	// Decode errors. A frame that fails to decode is skipped.
	ErrDecodeFrame       = errors.New("cannot decode frame")
	ErrUnsupportedFormat = errors.New("unsupported source format")

	// Container errors. The whole document yields no frames.
	ErrOpenDocument = errors.New("cannot open document")

	// Authentication errors.
	ErrWrongPassword     = errors.New("incorrect password")
	ErrPasswordAbandoned = errors.New("password entry abandoned")

	// Assembly errors.
	ErrAssemble = errors.New("cannot write output document")
	ErrNoPages  = errors.New("no pages to write")

	// Effect validation errors.
	ErrInvalidQuality = errors.New("invalid quality")
	ErrInvalidNoise   = errors.New("invalid noise level")
	ErrInvalidFactor  = errors.New("invalid adjustment factor")

	// Setup errors. These abort the whole run.
	ErrRasterizerInit = errors.New("PDF rasterizer unavailable")
)
