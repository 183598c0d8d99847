package scan2pdf

import (
	"context"
	"fmt"
	"io"
	"iter"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/alnah/go-scan2pdf/internal/pipeline"
)

// Scanner turns source documents into scanned-looking PDFs.
// Create with NewScanner and call Close when done. A Scanner processes one
// document at a time and is not safe for concurrent use.
type Scanner struct {
	cfg            scannerConfig
	rng            *rand.Rand
	rasterizer     Rasterizer
	ownsRasterizer bool
	initOnce       sync.Once
	initErr        error
	newRasterizer  func() (Rasterizer, error)
}

// NewScanner creates a Scanner.
// Returns an error if the effect configuration is invalid.
// The PDF rasterizer is started on the first PDF, not here.
func NewScanner(opts ...Option) (*Scanner, error) {
	s := &Scanner{
		cfg: scannerConfig{
			effects:     DefaultEffectConfig(),
			log:         io.Discard,
			source:      NoPrompt,
			maxAttempts: defaultMaxAttempts,
		},
		ownsRasterizer: true,
		newRasterizer: func() (Rasterizer, error) {
			return NewPDFiumRasterizer()
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.cfg.effects.Validate(); err != nil {
		return nil, err
	}
	if s.rng == nil {
		s.rng = newRand(uint64(time.Now().UnixNano())) // #nosec G115 -- any clock value is a valid seed
	}
	return s, nil
}

// Effects returns the effect configuration.
func (s *Scanner) Effects() EffectConfig {
	return s.cfg.effects
}

// Close releases the rasterizer if the scanner started it.
func (s *Scanner) Close() error {
	if s.ownsRasterizer && s.rasterizer != nil {
		return s.rasterizer.Close()
	}
	return nil
}

// ensureRasterizer starts the rasterizer once.
func (s *Scanner) ensureRasterizer() error {
	s.initOnce.Do(func() {
		if s.rasterizer != nil {
			return
		}
		r, err := s.newRasterizer()
		if err != nil {
			s.initErr = err
			return
		}
		s.rasterizer = r
	})
	return s.initErr
}

// ProcessSingleDocument converts one PDF into {stem}_output.pdf and returns
// the number of pages written.
//
// A document that cannot be opened, or whose password is abandoned, yields
// zero pages and no output file. Pages that fail to render are skipped.
// Only an error wrapping ErrRasterizerInit means later documents will fail
// too.
func (s *Scanner) ProcessSingleDocument(ctx context.Context, path string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.ensureRasterizer(); err != nil {
		return 0, err
	}

	var doc Document
	resolver := &Resolver{
		Supplied:    s.cfg.password,
		Source:      s.cfg.source,
		MaxAttempts: s.cfg.maxAttempts,
	}
	_, attempt, err := resolver.Resolve(path, func(password string) error {
		d, err := s.rasterizer.Open(path, password)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		return 0, err
	}
	defer func() { _ = doc.Close() }()

	if attempt.Attempts > 0 {
		fmt.Fprintf(s.cfg.log, "%s: unlocked after %d attempt(s)\n", path, attempt.Attempts)
	}

	src := frameSource{log: s.cfg.log}
	frames := s.applyEffects(ctx, src.pages(ctx, doc, path), pipeline.DefaultMaxAngle)
	return NewAssembler(s.cfg.effects.Quality, s.cfg.log).Assemble(ctx, OutputPath(path, s.cfg.outputDir), frames)
}

// ProcessImageBatch merges images into one PDF named after the first image
// and returns the number of pages written. Multi-frame images contribute
// one page per frame. A single image gets a slightly stronger skew.
func (s *Scanner) ProcessImageBatch(ctx context.Context, paths []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(paths) == 0 {
		return 0, fmt.Errorf("%w: empty image batch", ErrNoPages)
	}

	maxAngle := pipeline.DefaultMaxAngle
	if len(paths) == 1 {
		maxAngle = pipeline.SingleImageMaxAngle
	}

	src := frameSource{log: s.cfg.log}
	frames := s.applyEffects(ctx, src.images(ctx, paths), maxAngle)
	return NewAssembler(s.cfg.effects.Quality, s.cfg.log).Assemble(ctx, OutputPath(paths[0], s.cfg.outputDir), frames)
}

// ProcessFrame runs the effect pipeline over one frame in place.
func (s *Scanner) ProcessFrame(f *Frame, maxAngle float64) error {
	p := pipeline.New(s.cfg.effects.settings(maxAngle))
	img, err := p.Apply(f.Image, s.rng)
	if err != nil {
		return err
	}
	f.Image = img
	return nil
}

// applyEffects yields each frame after the effect pipeline.
// Frames the pipeline rejects are logged and skipped.
func (s *Scanner) applyEffects(ctx context.Context, frames iter.Seq[*Frame], maxAngle float64) iter.Seq[*Frame] {
	return func(yield func(*Frame) bool) {
		for f := range frames {
			if ctx.Err() != nil {
				return
			}
			if err := s.ProcessFrame(f, maxAngle); err != nil {
				fmt.Fprintf(s.cfg.log, "warning: %s: frame %d: %v\n", f.Source, f.Index+1, err)
				continue
			}
			if !yield(f) {
				return
			}
		}
	}
}
