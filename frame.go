package scan2pdf

import (
	"bytes"
	"image"

	"github.com/disintegration/gift"
	"github.com/rwcarlsen/goexif/exif"
	xdraw "golang.org/x/image/draw"
)

// Oversampling factors.
const (
	pdfScale   = 2.0
	imageScale = 1.0
)

// Frame is one opaque raster on its way to becoming a page.
type Frame struct {
	Image  *image.RGBA // always opaque, origin at (0, 0)
	Scale  float64     // pixels per output point
	Source string      // source document path
	Index  int         // zero-based position within the source
}

// PageSize returns the output page size in points.
func (f *Frame) PageSize() (w, h float64) {
	scale := f.Scale
	if scale <= 0 {
		scale = imageScale
	}
	b := f.Image.Bounds()
	return float64(b.Dx()) / scale, float64(b.Dy()) / scale
}

// newFrame flattens img onto white and wraps it.
func newFrame(img image.Image, scale float64, source string, index int) *Frame {
	return &Frame{
		Image:  Flatten(img),
		Scale:  scale,
		Source: source,
		Index:  index,
	}
}

// Flatten composites img over an opaque white canvas of the same size.
// Alpha and palette transparency are used as blend weight; opaque images
// are copied unchanged. The result has its origin at (0, 0).
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), image.White, image.Point{}, xdraw.Src)
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Over)
	return dst
}

// flattenStraightAlpha composites a buffer holding non-premultiplied
// RGBA samples onto white. The result does not share img's pixels.
func flattenStraightAlpha(img *image.RGBA) *image.RGBA {
	return Flatten(&image.NRGBA{Pix: img.Pix, Stride: img.Stride, Rect: img.Rect})
}

// orientationFilters maps EXIF orientation values to the transform that
// restores the upright image.
var orientationFilters = map[int]gift.Filter{
	2: gift.FlipHorizontal(),
	3: gift.Rotate180(),
	4: gift.FlipVertical(),
	5: gift.Transpose(),
	6: gift.Rotate270(),
	7: gift.Transverse(),
	8: gift.Rotate90(),
}

// exifOrientation returns the EXIF orientation of an encoded image.
// Returns 1 when the tag is missing or unreadable.
func exifOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// Orient applies an EXIF orientation to img.
// Values outside 2-8 return img unchanged.
func Orient(img image.Image, orientation int) image.Image {
	f, ok := orientationFilters[orientation]
	if !ok {
		return img
	}
	g := gift.New(f)
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}
