package main

import (
	"io"
	"os"
	"time"

	scan2pdf "github.com/alnah/go-scan2pdf"
)

// Environment holds injectable dependencies for testability.
// Includes I/O, time, terminal state, and the PDF renderer factory.
type Environment struct {
	Now    func() time.Time
	Stdout io.Writer
	Stderr io.Writer
	Stdin  *os.File // nil disables interactive password prompts
	Color  bool     // colour status lines; --no-color turns it off

	// NewRasterizer starts the PDF renderer. Called once per run, and only
	// when PDF documents were discovered.
	NewRasterizer func() (scan2pdf.Rasterizer, error)

	// Credentials overrides the terminal password prompt when set.
	Credentials scan2pdf.CredentialSource
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:    time.Now,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Stdin:  os.Stdin,
		Color:  os.Getenv("NO_COLOR") == "" && scan2pdf.IsInteractive(os.Stdout),
		NewRasterizer: func() (scan2pdf.Rasterizer, error) {
			return scan2pdf.NewPDFiumRasterizer()
		},
	}
}
