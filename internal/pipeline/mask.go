package pipeline

import (
	"image"
	"math/rand/v2"

	xdraw "golang.org/x/image/draw"
)

// maskSize is the working resolution of the gradient before resizing.
const maskSize = 256

// Direction selects the axis of a gradient mask.
type Direction int

// Gradient directions.
const (
	Horizontal Direction = iota
	Vertical
	Diagonal
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	case Diagonal:
		return "diagonal"
	}
	return "unknown"
}

// RandomDirection picks a direction uniformly.
func RandomDirection(rng *rand.Rand) Direction {
	return Direction(rng.IntN(3))
}

// GradientMask builds a soft 8-bit mask covering bounds. The ramp is drawn
// at 256x256 and resized bilinearly, so generation cost does not depend on
// the frame size. Values run from 0 at the origin side to 255 at the far side.
// The mask is an *image.Alpha so it can drive draw.DrawMask directly.
func GradientMask(bounds image.Rectangle, dir Direction) *image.Alpha {
	src := image.NewAlpha(image.Rect(0, 0, maskSize, maskSize))
	for y := range maskSize {
		for x := range maskSize {
			src.Pix[y*src.Stride+x] = rampValue(x, y, dir)
		}
	}

	dst := image.NewAlpha(bounds)
	if bounds.Empty() {
		return dst
	}
	xdraw.BiLinear.Scale(dst, bounds, src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// rampValue returns the mask value at (x, y) of the working square.
// The diagonal is two triangular ramps, one rising from the top-left
// corner and one falling from the bottom-right corner, meeting on the
// anti-diagonal.
func rampValue(x, y int, dir Direction) uint8 {
	switch dir {
	case Vertical:
		return uint8(y)
	case Diagonal:
		const last = maskSize - 1
		if x+y <= last {
			return uint8((x + y) / 2)
		}
		return uint8(last - (2*last-x-y)/2)
	default:
		return uint8(x)
	}
}

// InvertMask flips every mask value in place.
func InvertMask(m *image.Alpha) {
	for i, v := range m.Pix {
		m.Pix[i] = 255 - v
	}
}
