package pipeline

import (
	"errors"
	"fmt"
	"image"
	"math/rand/v2"
)

// Sentinel errors for stage execution.
var (
	ErrNilFrame    = errors.New("frame cannot be nil")
	ErrEmptyFrame  = errors.New("frame has no pixels")
	ErrStageFailed = errors.New("effect stage failed")
)

// Quality bounds for the lossy recompression stage.
const (
	MinQuality = 50
	MaxQuality = 100
)

// Askew angle limits in degrees.
const (
	DefaultMaxAngle     = 0.55
	SingleImageMaxAngle = 0.75
)

// Settings is the read-only effect configuration seen by stages.
type Settings struct {
	Quality      int
	Askew        bool
	MaxAngle     float64 // 0 means DefaultMaxAngle
	Monochrome   bool
	Blur         bool
	DepthOfField bool
	Noise        int // 0-100
	Contrast     float64
	Sharpness    float64
	Brightness   float64
}

// Stage is one transform of the pipeline.
type Stage interface {
	// Name identifies the stage in logs and errors.
	Name() string
	// Enabled reports whether the stage runs for the given settings.
	Enabled(s Settings) bool
	// Apply transforms img and returns the result. Implementations may
	// return img itself or a new image; img must not be used afterwards.
	Apply(img *image.RGBA, s Settings, rng *rand.Rand) (*image.RGBA, error)
}

// Pipeline runs stages in a fixed order.
type Pipeline struct {
	settings Settings
	stages   []Stage
}

// DefaultStages returns the canonical stage order.
func DefaultStages() []Stage {
	return []Stage{
		&Recompress{},
		&BrightnessJitter{},
		&Askew{},
		&Monochrome{},
		&Blur{},
		&DepthOfField{},
		&SaltAndPepper{},
		&ToneAdjust{},
	}
}

// New creates a Pipeline with the canonical stages.
func New(s Settings) *Pipeline {
	return &Pipeline{settings: s, stages: DefaultStages()}
}

// NewWithStages creates a Pipeline with a custom stage list, run in the given order.
func NewWithStages(s Settings, stages ...Stage) *Pipeline {
	return &Pipeline{settings: s, stages: stages}
}

// Stages returns the names of the stages that will run, in order.
func (p *Pipeline) Stages() []string {
	var names []string
	for _, st := range p.stages {
		if st.Enabled(p.settings) {
			names = append(names, st.Name())
		}
	}
	return names
}

// Apply runs every enabled stage over img.
// Recovers from stage panics so a single bad frame cannot crash a batch.
func (p *Pipeline) Apply(img *image.RGBA, rng *rand.Rand) (out *image.RGBA, err error) {
	if img == nil {
		return nil, ErrNilFrame
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyFrame
	}

	var current string
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: %s: internal error: %v", ErrStageFailed, current, r)
		}
	}()

	out = img
	for _, st := range p.stages {
		if !st.Enabled(p.settings) {
			continue
		}
		current = st.Name()
		out, err = st.Apply(out, p.settings, rng)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrStageFailed, current, err)
		}
	}
	return out, nil
}

// uniform draws a float64 from [lo, hi).
func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// clampQuality keeps q inside the recompression bounds.
func clampQuality(q int) int {
	return min(max(q, MinQuality), MaxQuality)
}

// clampUnit keeps v inside [0, 1].
func clampUnit(v float32) float32 {
	return min(max(v, 0), 1)
}
