package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand/v2"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/clone"
	"github.com/disintegration/gift"
	xdraw "golang.org/x/image/draw"
)

// Random ranges for the stochastic stages.
const (
	jitterMin        = 1.01
	jitterMax        = 1.02
	monoContrastMin  = 1.2
	monoContrastMax  = 1.5
	blurRadiusMin    = 1.1
	blurRadiusMax    = 1.4
	depthRadiusMin   = 2.0
	depthRadiusMax   = 5.0
	maxNoiseDensity  = 0.5
	noiseDensityBase = 200.0
	sharpnessSigma   = 1.0
	midGray          = 0.5
)

// ---------------------------------------------------------------------------
// Recompress
// ---------------------------------------------------------------------------

// Recompress passes the frame through a JPEG encode/decode round trip.
type Recompress struct{}

func (*Recompress) Name() string { return "recompress" }

func (*Recompress) Enabled(Settings) bool { return true }

func (*Recompress) Apply(img *image.RGBA, s Settings, _ *rand.Rand) (*image.RGBA, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: clampQuality(s.Quality)}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	decoded, err := jpeg.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decoding jpeg: %w", err)
	}
	return clone.AsRGBA(decoded), nil
}

// ---------------------------------------------------------------------------
// BrightnessJitter
// ---------------------------------------------------------------------------

// BrightnessJitter simulates uneven scanner illumination.
type BrightnessJitter struct{}

func (*BrightnessJitter) Name() string { return "jitter" }

func (*BrightnessJitter) Enabled(Settings) bool { return true }

func (*BrightnessJitter) Apply(img *image.RGBA, _ Settings, rng *rand.Rand) (*image.RGBA, error) {
	f := uniform(rng, jitterMin, jitterMax)
	return applyFilters(img, scaleFilter(float32(f))), nil
}

// ---------------------------------------------------------------------------
// Askew
// ---------------------------------------------------------------------------

// Askew rotates the frame by a small random angle on an expanded white canvas.
type Askew struct{}

func (*Askew) Name() string { return "askew" }

func (*Askew) Enabled(s Settings) bool { return s.Askew }

func (*Askew) Apply(img *image.RGBA, s Settings, rng *rand.Rand) (*image.RGBA, error) {
	limit := s.MaxAngle
	if limit <= 0 {
		limit = DefaultMaxAngle
	}
	angle := uniform(rng, -limit, limit)
	return applyFilters(img, gift.Rotate(float32(angle), color.White, gift.CubicInterpolation)), nil
}

// ---------------------------------------------------------------------------
// Monochrome
// ---------------------------------------------------------------------------

// Monochrome converts to luminance and punches up contrast like a photocopier.
type Monochrome struct{}

func (*Monochrome) Name() string { return "monochrome" }

func (*Monochrome) Enabled(s Settings) bool { return s.Monochrome }

func (*Monochrome) Apply(img *image.RGBA, _ Settings, rng *rand.Rand) (*image.RGBA, error) {
	f := uniform(rng, monoContrastMin, monoContrastMax)
	return applyFilters(img, gift.Grayscale(), contrastFilter(float32(f))), nil
}

// ---------------------------------------------------------------------------
// Blur
// ---------------------------------------------------------------------------

// Blur softens the whole frame.
type Blur struct{}

func (*Blur) Name() string { return "blur" }

func (*Blur) Enabled(s Settings) bool { return s.Blur }

func (*Blur) Apply(img *image.RGBA, _ Settings, rng *rand.Rand) (*image.RGBA, error) {
	return blur.Gaussian(img, uniform(rng, blurRadiusMin, blurRadiusMax)), nil
}

// ---------------------------------------------------------------------------
// DepthOfField
// ---------------------------------------------------------------------------

// DepthOfField blends a heavily blurred copy over the frame through a
// gradient mask so one side of the page looks out of focus.
type DepthOfField struct{}

func (*DepthOfField) Name() string { return "depth-of-field" }

func (*DepthOfField) Enabled(s Settings) bool { return s.DepthOfField }

func (*DepthOfField) Apply(img *image.RGBA, _ Settings, rng *rand.Rand) (*image.RGBA, error) {
	blurred := blur.Gaussian(img, uniform(rng, depthRadiusMin, depthRadiusMax))

	b := img.Bounds()
	mask := GradientMask(b, RandomDirection(rng))
	if rng.IntN(2) == 0 {
		InvertMask(mask)
	}

	xdraw.DrawMask(img, b, blurred, blurred.Bounds().Min, mask, b.Min, xdraw.Over)
	return img, nil
}

// ---------------------------------------------------------------------------
// SaltAndPepper
// ---------------------------------------------------------------------------

// SaltAndPepper sets random pixels to pure white or pure black.
// Writes are drawn with replacement, so fewer distinct pixels may change.
type SaltAndPepper struct{}

func (*SaltAndPepper) Name() string { return "noise" }

func (*SaltAndPepper) Enabled(s Settings) bool { return s.Noise > 0 }

func (*SaltAndPepper) Apply(img *image.RGBA, s Settings, rng *rand.Rand) (*image.RGBA, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	n := NoiseWrites(s.Noise, w, h)

	for range n {
		x := b.Min.X + rng.IntN(w)
		y := b.Min.Y + rng.IntN(h)
		var v uint8
		if rng.IntN(2) == 0 {
			v = 255
		}
		off := img.PixOffset(x, y)
		img.Pix[off+0] = v
		img.Pix[off+1] = v
		img.Pix[off+2] = v
		img.Pix[off+3] = 255
	}
	return img, nil
}

// NoiseWrites returns the number of pixel writes for a noise level on a w x h frame.
func NoiseWrites(noise, w, h int) int {
	if noise <= 0 || w <= 0 || h <= 0 {
		return 0
	}
	density := min(float64(noise)/noiseDensityBase, maxNoiseDensity)
	return int(density * float64(w) * float64(h))
}

// ---------------------------------------------------------------------------
// ToneAdjust
// ---------------------------------------------------------------------------

// ToneAdjust applies the user's contrast, sharpness and brightness factors.
// A factor of exactly 1.0 leaves that property untouched.
type ToneAdjust struct{}

func (*ToneAdjust) Name() string { return "tone" }

func (*ToneAdjust) Enabled(s Settings) bool {
	return s.Contrast != 1.0 || s.Sharpness != 1.0 || s.Brightness != 1.0
}

func (*ToneAdjust) Apply(img *image.RGBA, s Settings, _ *rand.Rand) (*image.RGBA, error) {
	if s.Contrast != 1.0 {
		img = applyFilters(img, contrastFilter(float32(s.Contrast)))
	}
	if s.Sharpness != 1.0 {
		img = sharpen(img, float32(s.Sharpness))
	}
	if s.Brightness != 1.0 {
		img = applyFilters(img, scaleFilter(float32(s.Brightness)))
	}
	return img, nil
}

// sharpen scales the difference between img and a softened copy by f.
// f > 1 sharpens, f < 1 softens, f == 0 returns the softened copy.
func sharpen(img *image.RGBA, f float32) *image.RGBA {
	if f > 1 {
		return applyFilters(img, gift.UnsharpMask(sharpnessSigma, f-1, 0))
	}

	soft := applyFilters(img, gift.GaussianBlur(sharpnessSigma))
	out := image.NewRGBA(img.Bounds())
	for i := 0; i < len(img.Pix); i += 4 {
		for c := range 3 {
			o := float32(img.Pix[i+c])
			sv := float32(soft.Pix[i+c])
			out.Pix[i+c] = uint8(min(max(sv+f*(o-sv), 0), 255) + 0.5)
		}
		out.Pix[i+3] = 255
	}
	return out
}

// ---------------------------------------------------------------------------
// Filter helpers
// ---------------------------------------------------------------------------

// applyFilters runs gift filters over img into a freshly sized RGBA image.
func applyFilters(img *image.RGBA, filters ...gift.Filter) *image.RGBA {
	g := gift.New(filters...)
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// scaleFilter multiplies each colour channel by f.
func scaleFilter(f float32) gift.Filter {
	return gift.ColorFunc(func(r0, g0, b0, a0 float32) (r, g, b, a float32) {
		return clampUnit(r0 * f), clampUnit(g0 * f), clampUnit(b0 * f), a0
	})
}

// contrastFilter scales each channel's distance from mid-gray by f.
func contrastFilter(f float32) gift.Filter {
	return gift.ColorFunc(func(r0, g0, b0, a0 float32) (r, g, b, a float32) {
		return clampUnit(midGray + (r0-midGray)*f),
			clampUnit(midGray + (g0-midGray)*f),
			clampUnit(midGray + (b0-midGray)*f),
			a0
	})
}
