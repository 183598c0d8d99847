package main

import (
	"errors"
	"os"

	flag "github.com/spf13/pflag"

	scan2pdf "github.com/alnah/go-scan2pdf"
	"github.com/alnah/go-scan2pdf/internal/config"
)

// Exit codes for scan2pdf CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess    = 0 // At least one document produced, or nothing failed
	ExitGeneral    = 1 // General/unexpected error, or every document failed
	ExitUsage      = 2 // Invalid flags, config, or validation
	ExitIO         = 3 // Missing input, no matching files, write failures
	ExitRasterizer = 4 // PDF renderer could not start
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Renderer setup (exit 4)
	if errors.Is(err, scan2pdf.ErrRasterizerInit) {
		return ExitRasterizer
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrNoInput) ||
		errors.Is(err, ErrNoMatchingFiles) ||
		errors.Is(err, ErrOutputDir) ||
		errors.Is(err, scan2pdf.ErrAssemble) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, scan2pdf.ErrInvalidQuality) ||
		errors.Is(err, scan2pdf.ErrInvalidNoise) ||
		errors.Is(err, scan2pdf.ErrInvalidFactor) ||
		errors.Is(err, ErrTooManyArgs) ||
		errors.Is(err, flag.ErrHelp) {
		return ExitUsage
	}

	return ExitGeneral
}
