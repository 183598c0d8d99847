package pipeline

// Notes:
// - Stage randomness: every test builds its own *rand.Rand from a fixed seed,
//   so results are reproducible and tests can run in parallel.
// - Exact pixel values after blur/rotation depend on the filter libraries; we
//   assert observable properties (bounds, opacity, grayscale, ranges) instead.

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// testFrame returns a w x h opaque frame with a colour gradient.
func testFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

// solidFrame returns a w x h frame filled with c.
func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

// checkerboard returns a w x h black and white board of cell x cell squares.
func checkerboard(w, h, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := uint8(0)
			if (x/cell+y/cell)%2 == 0 {
				v = 255
			}
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// redRange returns max-min of the red channel over r.
func redRange(img *image.RGBA, r image.Rectangle) int {
	lo, hi := 255, 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			v := int(img.RGBAAt(x, y).R)
			lo, hi = min(lo, v), max(hi, v)
		}
	}
	return hi - lo
}

// redVariance returns the variance of the red channel.
func redVariance(img *image.RGBA) float64 {
	var sum, sq float64
	n := 0
	for i := 0; i < len(img.Pix); i += 4 {
		v := float64(img.Pix[i])
		sum += v
		sq += v * v
		n++
	}
	mean := sum / float64(n)
	return sq/float64(n) - mean*mean
}

func neutralSettings() Settings {
	return Settings{Quality: 95, Contrast: 1, Sharpness: 1, Brightness: 1}
}

func assertOpaque(t *testing.T, img *image.RGBA) {
	t.Helper()
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 255 {
			x := (i / 4) % img.Bounds().Dx()
			y := (i / 4) / img.Bounds().Dx()
			t.Fatalf("pixel (%d,%d) alpha = %d, want 255", x, y, img.Pix[i])
		}
	}
}

// failingStage always returns an error.
type failingStage struct{}

func (failingStage) Name() string          { return "failing" }
func (failingStage) Enabled(Settings) bool { return true }
func (failingStage) Apply(*image.RGBA, Settings, *rand.Rand) (*image.RGBA, error) {
	return nil, errors.New("boom")
}

// panickingStage panics when applied.
type panickingStage struct{}

func (panickingStage) Name() string          { return "panicking" }
func (panickingStage) Enabled(Settings) bool { return true }
func (panickingStage) Apply(*image.RGBA, Settings, *rand.Rand) (*image.RGBA, error) {
	panic("unexpected")
}

// ---------------------------------------------------------------------------
// TestPipeline_PreservesSize - Without askew the canvas never changes
// ---------------------------------------------------------------------------

func TestPipeline_PreservesSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(s *Settings)
	}{
		{
			name:   "recompression and jitter only",
			modify: func(*Settings) {},
		},
		{
			name: "monochrome and blur",
			modify: func(s *Settings) {
				s.Monochrome = true
				s.Blur = true
			},
		},
		{
			name: "depth of field",
			modify: func(s *Settings) {
				s.DepthOfField = true
			},
		},
		{
			name: "tone adjustments",
			modify: func(s *Settings) {
				s.Contrast = 1.3
				s.Sharpness = 2
				s.Brightness = 0.8
			},
		},
		{
			name: "low quality",
			modify: func(s *Settings) {
				s.Quality = 50
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := neutralSettings()
			tt.modify(&s)

			in := testFrame(97, 61)
			out, err := New(s).Apply(in, newRNG(7))
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if out.Bounds().Dx() != 97 || out.Bounds().Dy() != 61 {
				t.Errorf("bounds = %v, want 97x61", out.Bounds())
			}
			assertOpaque(t, out)
		})
	}
}

// ---------------------------------------------------------------------------
// TestPipeline_AskewExpandsCanvas - Rotation never shrinks the page
// ---------------------------------------------------------------------------

func TestPipeline_AskewExpandsCanvas(t *testing.T) {
	t.Parallel()

	for seed := range uint64(20) {
		s := neutralSettings()
		s.Askew = true

		out, err := New(s).Apply(testFrame(100, 100), newRNG(seed))
		if err != nil {
			t.Fatalf("seed %d: Apply() error = %v", seed, err)
		}
		if out.Bounds().Dx() < 100 || out.Bounds().Dy() < 100 {
			t.Errorf("seed %d: bounds = %v, want at least 100x100", seed, out.Bounds())
		}
		assertOpaque(t, out)
	}
}

// ---------------------------------------------------------------------------
// TestPipeline_Deterministic - A fixed seed gives identical output
// ---------------------------------------------------------------------------

func TestPipeline_Deterministic(t *testing.T) {
	t.Parallel()

	s := Settings{
		Quality:      80,
		Askew:        true,
		Monochrome:   true,
		Blur:         true,
		DepthOfField: true,
		Noise:        30,
		Contrast:     1.1,
		Sharpness:    1.2,
		Brightness:   1.05,
	}

	a, err := New(s).Apply(testFrame(64, 48), newRNG(42))
	if err != nil {
		t.Fatalf("first Apply() error = %v", err)
	}
	b, err := New(s).Apply(testFrame(64, 48), newRNG(42))
	if err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}

	if a.Bounds() != b.Bounds() {
		t.Fatalf("bounds differ: %v vs %v", a.Bounds(), b.Bounds())
	}
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("same seed produced different pixels")
	}
}

// ---------------------------------------------------------------------------
// TestPipeline_Stages - Fixed order, disabled stages skipped
// ---------------------------------------------------------------------------

func TestPipeline_Stages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings Settings
		want     []string
	}{
		{
			name:     "neutral settings",
			settings: neutralSettings(),
			want:     []string{"recompress", "jitter"},
		},
		{
			name: "everything enabled",
			settings: Settings{
				Quality: 90, Askew: true, Monochrome: true, Blur: true,
				DepthOfField: true, Noise: 10, Contrast: 2, Sharpness: 1, Brightness: 1,
			},
			want: []string{
				"recompress", "jitter", "askew", "monochrome",
				"blur", "depth-of-field", "noise", "tone",
			},
		},
		{
			name: "askew and noise only",
			settings: Settings{
				Quality: 90, Askew: true, Noise: 5, Contrast: 1, Sharpness: 1, Brightness: 1,
			},
			want: []string{"recompress", "jitter", "askew", "noise"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := New(tt.settings).Stages()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Stages() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestPipeline_Errors - Invalid frames and failing stages
// ---------------------------------------------------------------------------

func TestPipeline_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		p       *Pipeline
		img     *image.RGBA
		wantErr error
	}{
		{
			name:    "nil frame",
			p:       New(neutralSettings()),
			img:     nil,
			wantErr: ErrNilFrame,
		},
		{
			name:    "empty frame",
			p:       New(neutralSettings()),
			img:     image.NewRGBA(image.Rect(0, 0, 0, 0)),
			wantErr: ErrEmptyFrame,
		},
		{
			name:    "failing stage is wrapped",
			p:       NewWithStages(neutralSettings(), &Recompress{}, failingStage{}),
			img:     testFrame(8, 8),
			wantErr: ErrStageFailed,
		},
		{
			name:    "panicking stage is recovered",
			p:       NewWithStages(neutralSettings(), panickingStage{}),
			img:     testFrame(8, 8),
			wantErr: ErrStageFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := tt.p.Apply(tt.img, newRNG(1))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Apply() error = %v, want %v", err, tt.wantErr)
			}
			if out != nil {
				t.Error("Apply() returned a frame alongside an error")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestStage_Askew - Corners outside the rotated page are white
// ---------------------------------------------------------------------------

func TestStage_Askew(t *testing.T) {
	t.Parallel()

	s := neutralSettings()
	s.Askew = true
	s.MaxAngle = SingleImageMaxAngle

	out, err := (&Askew{}).Apply(solidFrame(400, 400, color.RGBA{A: 255}), s, newRNG(3))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	b := out.Bounds()
	corners := []image.Point{
		{b.Min.X, b.Min.Y},
		{b.Max.X - 1, b.Min.Y},
		{b.Min.X, b.Max.Y - 1},
		{b.Max.X - 1, b.Max.Y - 1},
	}
	for _, p := range corners {
		c := out.RGBAAt(p.X, p.Y)
		if c.R < 250 || c.G < 250 || c.B < 250 {
			t.Errorf("corner %v = %v, want white fill", p, c)
		}
	}

	center := out.RGBAAt(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2)
	if center.R > 5 {
		t.Errorf("center = %v, want black page content", center)
	}
}

// ---------------------------------------------------------------------------
// TestStage_Blur - The whole frame is softened
// ---------------------------------------------------------------------------

func TestStage_Blur(t *testing.T) {
	t.Parallel()

	s := neutralSettings()
	s.Blur = true

	for seed := range uint64(5) {
		src := checkerboard(64, 64, 2)
		before := redVariance(src)

		out, err := (&Blur{}).Apply(src, s, newRNG(seed))
		if err != nil {
			t.Fatalf("seed %d: Apply() error = %v", seed, err)
		}
		if out.Bounds() != image.Rect(0, 0, 64, 64) {
			t.Errorf("seed %d: bounds = %v, want 64x64", seed, out.Bounds())
		}
		assertOpaque(t, out)
		if after := redVariance(out); after > before/2 {
			t.Errorf("seed %d: variance %.0f -> %.0f, want at least halved", seed, before, after)
		}
	}
}

// ---------------------------------------------------------------------------
// TestStage_DepthOfField - One side blurred, the opposite side sharp
// ---------------------------------------------------------------------------

func TestStage_DepthOfField(t *testing.T) {
	t.Parallel()

	const size = 200
	// Corner patches away from the outermost pixels, where the blur
	// kernel runs off the frame.
	topLeft := image.Rect(3, 3, 13, 13)
	bottomRight := image.Rect(size-13, size-13, size-3, size-3)

	s := neutralSettings()
	s.DepthOfField = true

	const seeds = 40
	topLeftSharp := 0
	for seed := range uint64(seeds) {
		out, err := (&DepthOfField{}).Apply(checkerboard(size, size, 1), s, newRNG(seed))
		if err != nil {
			t.Fatalf("seed %d: Apply() error = %v", seed, err)
		}
		if out.Bounds() != image.Rect(0, 0, size, size) {
			t.Fatalf("seed %d: bounds = %v, want %dx%d", seed, out.Bounds(), size, size)
		}

		tl, br := redRange(out, topLeft), redRange(out, bottomRight)
		sharp, soft := max(tl, br), min(tl, br)
		if sharp < 200 || soft > 80 {
			t.Errorf("seed %d: corner contrast TL=%d BR=%d, want one sharp (>=200) and one blurred (<=80)", seed, tl, br)
		}
		if tl > br {
			topLeftSharp++
		}
	}

	// Every direction puts the top-left and bottom-right corners at
	// opposite ends of the ramp; inversion decides which one stays sharp.
	if topLeftSharp < seeds/5 || topLeftSharp > seeds*4/5 {
		t.Errorf("top-left sharp in %d of %d runs, want both orientations", topLeftSharp, seeds)
	}
}

// ---------------------------------------------------------------------------
// TestStage_Monochrome - Output channels are equal
// ---------------------------------------------------------------------------

func TestStage_Monochrome(t *testing.T) {
	t.Parallel()

	out, err := (&Monochrome{}).Apply(testFrame(32, 32), neutralSettings(), newRNG(5))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	for i := 0; i < len(out.Pix); i += 4 {
		r, g, b := out.Pix[i], out.Pix[i+1], out.Pix[i+2]
		if r != g || g != b {
			t.Fatalf("pixel %d = (%d,%d,%d), want gray", i/4, r, g, b)
		}
	}
	assertOpaque(t, out)
}

// ---------------------------------------------------------------------------
// TestStage_BrightnessJitter - Slightly brighter, never darker
// ---------------------------------------------------------------------------

func TestStage_BrightnessJitter(t *testing.T) {
	t.Parallel()

	in := solidFrame(10, 10, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	out, err := (&BrightnessJitter{}).Apply(in, neutralSettings(), newRNG(9))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	got := out.RGBAAt(5, 5).R
	if got < 100 || got > 103 {
		t.Errorf("R = %d, want within [100, 103]", got)
	}
}

// ---------------------------------------------------------------------------
// TestNoiseWrites - Density is capped at one half
// ---------------------------------------------------------------------------

func TestNoiseWrites(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		noise int
		w, h  int
		want  int
	}{
		{"zero noise", 0, 100, 100, 0},
		{"negative noise", -5, 100, 100, 0},
		{"maximum noise", 100, 100, 100, 5000},
		{"quarter density", 50, 100, 100, 2500},
		{"above range is capped", 400, 10, 10, 50},
		{"empty frame", 50, 0, 10, 0},
		{"fractional writes truncate", 1, 10, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := NoiseWrites(tt.noise, tt.w, tt.h); got != tt.want {
				t.Errorf("NoiseWrites(%d, %d, %d) = %d, want %d", tt.noise, tt.w, tt.h, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestStage_SaltAndPepper - Only pure black or white writes
// ---------------------------------------------------------------------------

func TestStage_SaltAndPepper(t *testing.T) {
	t.Parallel()

	s := neutralSettings()
	s.Noise = 100
	in := solidFrame(40, 40, color.RGBA{R: 128, G: 128, B: 128, A: 255})

	out, err := (&SaltAndPepper{}).Apply(in, s, newRNG(11))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	changed := 0
	for i := 0; i < len(out.Pix); i += 4 {
		v := out.Pix[i]
		switch v {
		case 128:
		case 0, 255:
			changed++
			if out.Pix[i+1] != v || out.Pix[i+2] != v {
				t.Fatalf("pixel %d has mixed channels", i/4)
			}
		default:
			t.Fatalf("pixel %d = %d, want 0, 128 or 255", i/4, v)
		}
	}

	maxWrites := NoiseWrites(100, 40, 40)
	if changed == 0 || changed > maxWrites {
		t.Errorf("changed pixels = %d, want in (0, %d]", changed, maxWrites)
	}
}

// ---------------------------------------------------------------------------
// TestStage_ToneAdjust - Factor semantics
// ---------------------------------------------------------------------------

func TestStage_ToneAdjust(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings Settings
		in       uint8
		wantMin  uint8
		wantMax  uint8
	}{
		{
			name:     "brightness scales",
			settings: Settings{Contrast: 1, Sharpness: 1, Brightness: 1.5},
			in:       100,
			wantMin:  148,
			wantMax:  152,
		},
		{
			name:     "contrast pushes away from mid gray",
			settings: Settings{Contrast: 2, Sharpness: 1, Brightness: 1},
			in:       160,
			wantMin:  190,
			wantMax:  195,
		},
		{
			name:     "zero contrast gives mid gray",
			settings: Settings{Contrast: 0, Sharpness: 1, Brightness: 1},
			in:       30,
			wantMin:  126,
			wantMax:  129,
		},
		{
			name:     "sharpness keeps flat areas",
			settings: Settings{Contrast: 1, Sharpness: 3, Brightness: 1},
			in:       90,
			wantMin:  88,
			wantMax:  92,
		},
		{
			name:     "zero brightness gives black",
			settings: Settings{Contrast: 1, Sharpness: 1, Brightness: 0},
			in:       200,
			wantMin:  0,
			wantMax:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stage := &ToneAdjust{}
			if !stage.Enabled(tt.settings) {
				t.Fatal("Enabled() = false, want true")
			}

			in := solidFrame(16, 16, color.RGBA{R: tt.in, G: tt.in, B: tt.in, A: 255})
			out, err := stage.Apply(in, tt.settings, newRNG(1))
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			got := out.RGBAAt(8, 8).R
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("R = %d, want within [%d, %d]", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestStage_ToneAdjust_DisabledAtUnity(t *testing.T) {
	t.Parallel()

	if (&ToneAdjust{}).Enabled(neutralSettings()) {
		t.Error("Enabled() = true for unity factors, want false")
	}
}

// ---------------------------------------------------------------------------
// TestStage_Recompress - Quality is clamped and size kept
// ---------------------------------------------------------------------------

func TestStage_Recompress(t *testing.T) {
	t.Parallel()

	for _, q := range []int{0, 10, 50, 75, 100, 150} {
		s := neutralSettings()
		s.Quality = q

		out, err := (&Recompress{}).Apply(testFrame(33, 17), s, nil)
		if err != nil {
			t.Fatalf("quality %d: Apply() error = %v", q, err)
		}
		if out.Bounds().Dx() != 33 || out.Bounds().Dy() != 17 {
			t.Errorf("quality %d: bounds = %v, want 33x17", q, out.Bounds())
		}
		assertOpaque(t, out)
	}
}

func TestClampQuality(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want int
	}{
		{0, 50}, {49, 50}, {50, 50}, {95, 95}, {100, 100}, {101, 100},
	}
	for _, tt := range tests {
		if got := clampQuality(tt.in); got != tt.want {
			t.Errorf("clampQuality(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
