// Package pipeline implements the scan-simulation effect pipeline.
//
// A frame passes through a fixed, ordered list of stages:
//   - Lossy JPEG recompression
//   - Brightness jitter
//   - Askew rotation
//   - Monochrome conversion with a photocopier contrast boost
//   - Uniform Gaussian blur
//   - Depth-of-field blur through a gradient mask
//   - Salt-and-pepper noise
//   - User tone adjustments (contrast, sharpness, brightness)
//
// Disabled stages are skipped, never reordered. Every stage draws its
// randomness from the *rand.Rand handed to it, so a fixed seed gives a
// reproducible result.
//
// Decoding sources and writing the output document are handled by the
// root scan2pdf package. This package only sees opaque *image.RGBA frames.
package pipeline
