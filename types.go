package scan2pdf

import (
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"
	"strings"

	"github.com/alnah/go-scan2pdf/internal/pipeline"
)

// Quality bounds for JPEG recompression.
const (
	MinQuality     = pipeline.MinQuality
	MaxQuality     = pipeline.MaxQuality
	DefaultQuality = 95
)

// Noise bounds.
const (
	MinNoise = 0
	MaxNoise = 100
)

// OutputSuffix is appended to the source stem to name the output document.
const OutputSuffix = "_output.pdf"

// EffectConfig selects the scan effects applied to every frame.
type EffectConfig struct {
	Quality      int     // JPEG quality, 50-100
	Askew        bool    // rotate by a small random angle
	Monochrome   bool    // photocopier-style grayscale
	Blur         bool    // uniform Gaussian blur
	DepthOfField bool    // gradient blur, one side out of focus
	Noise        int     // salt-and-pepper level, 0-100
	Contrast     float64 // 1.0 leaves contrast unchanged
	Sharpness    float64 // 1.0 leaves sharpness unchanged
	Brightness   float64 // 1.0 leaves brightness unchanged
}

// DefaultEffectConfig returns the effects used when nothing is configured.
func DefaultEffectConfig() EffectConfig {
	return EffectConfig{
		Quality:    DefaultQuality,
		Askew:      true,
		Contrast:   1.0,
		Sharpness:  1.0,
		Brightness: 1.0,
	}
}

// Validate checks that all values are in range.
func (c EffectConfig) Validate() error {
	if c.Quality < MinQuality || c.Quality > MaxQuality {
		return fmt.Errorf("%w: %d (must be between %d and %d)", ErrInvalidQuality, c.Quality, MinQuality, MaxQuality)
	}
	if c.Noise < MinNoise || c.Noise > MaxNoise {
		return fmt.Errorf("%w: %d (must be between %d and %d)", ErrInvalidNoise, c.Noise, MinNoise, MaxNoise)
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"contrast", c.Contrast},
		{"sharpness", c.Sharpness},
		{"brightness", c.Brightness},
	} {
		if f.value < 0 {
			return fmt.Errorf("%w: %s %.2f (must be >= 0)", ErrInvalidFactor, f.name, f.value)
		}
	}
	return nil
}

// settings converts the config into pipeline settings.
func (c EffectConfig) settings(maxAngle float64) pipeline.Settings {
	return pipeline.Settings{
		Quality:      c.Quality,
		Askew:        c.Askew,
		MaxAngle:     maxAngle,
		Monochrome:   c.Monochrome,
		Blur:         c.Blur,
		DepthOfField: c.DepthOfField,
		Noise:        c.Noise,
		Contrast:     c.Contrast,
		Sharpness:    c.Sharpness,
		Brightness:   c.Brightness,
	}
}

// SourceKind classifies a source document.
type SourceKind int

// Source kinds.
const (
	KindUnknown SourceKind = iota
	KindImage
	KindMultiFrameImage
	KindPDF
)

// String returns the kind name.
func (k SourceKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindMultiFrameImage:
		return "multi-frame image"
	case KindPDF:
		return "pdf"
	}
	return "unknown"
}

// imageExtensions lists the supported raster formats by extension.
var imageExtensions = map[string]SourceKind{
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".webp": KindImage,
	".bmp":  KindImage,
	".gif":  KindMultiFrameImage,
	".tif":  KindMultiFrameImage,
	".tiff": KindMultiFrameImage,
}

// KindOf classifies path by extension (case-insensitive).
func KindOf(path string) SourceKind {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		return KindPDF
	}
	if k, ok := imageExtensions[ext]; ok {
		return k
	}
	return KindUnknown
}

// IsImagePath reports whether path has a supported image extension.
func IsImagePath(path string) bool {
	k := KindOf(path)
	return k == KindImage || k == KindMultiFrameImage
}

// ImageExtensions returns the supported image extensions, sorted.
func ImageExtensions() []string {
	return []string{".bmp", ".gif", ".jpeg", ".jpg", ".png", ".tif", ".tiff", ".webp"}
}

// SourceDocument identifies one input file.
type SourceDocument struct {
	Path string
	Kind SourceKind
}

// NewSourceDocument classifies path.
func NewSourceDocument(path string) SourceDocument {
	return SourceDocument{Path: path, Kind: KindOf(path)}
}

// OutputPath returns the output document path for src.
// The stem of src gets OutputSuffix. When outputDir is empty the document
// is placed beside src.
func OutputPath(src, outputDir string) string {
	base := filepath.Base(src)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dir := outputDir
	if dir == "" {
		dir = filepath.Dir(src)
	}
	return filepath.Join(dir, stem+OutputSuffix)
}

// Option configures a Scanner.
type Option func(*Scanner)

// defaultMaxAttempts bounds interactive password prompts per document.
const defaultMaxAttempts = 3

// scannerConfig holds internal configuration for Scanner.
type scannerConfig struct {
	effects     EffectConfig
	outputDir   string
	log         io.Writer
	password    string
	source      CredentialSource
	maxAttempts int
}

// WithEffects sets the effect configuration.
// The config is validated by NewScanner.
func WithEffects(c EffectConfig) Option {
	return func(s *Scanner) {
		s.cfg.effects = c
	}
}

// WithOutputDir writes output documents to dir instead of beside the source.
func WithOutputDir(dir string) Option {
	return func(s *Scanner) {
		s.cfg.outputDir = dir
	}
}

// WithLogger sets the writer for progress and warning lines.
// Panics if w is nil (programmer error).
func WithLogger(w io.Writer) Option {
	if w == nil {
		panic("scan2pdf: WithLogger writer must not be nil")
	}
	return func(s *Scanner) {
		s.cfg.log = w
	}
}

// WithSeed makes every random draw reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Scanner) {
		s.rng = newRand(seed)
	}
}

// WithRand sets the random source.
// Panics if rng is nil (programmer error).
func WithRand(rng *rand.Rand) Option {
	if rng == nil {
		panic("scan2pdf: WithRand source must not be nil")
	}
	return func(s *Scanner) {
		s.rng = rng
	}
}

// WithRasterizer sets the PDF rasterizer. The scanner does not close it.
// Panics if r is nil (programmer error).
func WithRasterizer(r Rasterizer) Option {
	if r == nil {
		panic("scan2pdf: WithRasterizer rasterizer must not be nil")
	}
	return func(s *Scanner) {
		s.rasterizer = r
		s.ownsRasterizer = false
	}
}

// WithPassword sets the password tried first for every encrypted document.
func WithPassword(password string) Option {
	return func(s *Scanner) {
		s.cfg.password = password
	}
}

// WithCredentialSource sets where passwords are asked for.
// Panics if src is nil (programmer error). Use NoPrompt to disable prompting.
func WithCredentialSource(src CredentialSource) Option {
	if src == nil {
		panic("scan2pdf: WithCredentialSource source must not be nil")
	}
	return func(s *Scanner) {
		s.cfg.source = src
	}
}

// WithMaxAttempts sets the number of interactive password attempts.
// Panics if n <= 0 (programmer error).
func WithMaxAttempts(n int) Option {
	if n <= 0 {
		panic("scan2pdf: WithMaxAttempts count must be positive")
	}
	return func(s *Scanner) {
		s.cfg.maxAttempts = n
	}
}

// newRand returns a PCG-backed generator for seed.
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
