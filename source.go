package scan2pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"iter"
	"os"

	"github.com/anthonynsimon/bild/clone"
	_ "golang.org/x/image/bmp" // register BMP decoder
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register TIFF format for DecodeConfig
	_ "golang.org/x/image/webp" // register WebP decoder
)

// frameSource turns source documents into lazy frame sequences.
// Decode failures are written to log and the frame is skipped.
type frameSource struct {
	log io.Writer
}

func (fs frameSource) warn(format string, args ...any) {
	fmt.Fprintf(fs.log, "warning: "+format+"\n", args...)
}

// images yields the frames of every image in paths, in order.
// Each file is read and decoded only when the sequence reaches it.
func (fs frameSource) images(ctx context.Context, paths []string) iter.Seq[*Frame] {
	return func(yield func(*Frame) bool) {
		for _, path := range paths {
			if ctx.Err() != nil {
				return
			}
			frames, err := ReadImageFrames(path)
			if err != nil {
				fs.warn("%s: %v", path, err)
			}
			for _, f := range frames {
				if !yield(f) {
					return
				}
			}
		}
	}
}

// pages yields one frame per page of doc, rendered at twice the point size.
// Only one rendered page is held at a time.
func (fs frameSource) pages(ctx context.Context, doc Document, path string) iter.Seq[*Frame] {
	return func(yield func(*Frame) bool) {
		for i := range doc.PageCount() {
			if ctx.Err() != nil {
				return
			}
			img, err := doc.RenderPage(i, pdfScale)
			if err != nil {
				fs.warn("%s: page %d: %v", path, i+1, fmt.Errorf("%w: %v", ErrDecodeFrame, err))
				continue
			}
			if !yield(newFrame(img, pdfScale, path, i)) {
				return
			}
		}
	}
}

// ReadImageFrames reads and decodes every frame of the image at path.
func ReadImageFrames(path string) ([]*Frame, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- discovered path
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFrame, err)
	}
	return DecodeImageFrames(data, path)
}

// DecodeImageFrames decodes every frame of an encoded image.
// GIF animations yield one frame per embedded frame, composed onto the
// logical screen, and TIFF files one frame per page. Other formats yield
// a single frame. Orientation metadata is applied to each frame and
// transparency is flattened onto white.
//
// A multi-page TIFF with some undecodable pages returns the decoded
// frames together with an error wrapping ErrDecodeFrame.
func DecodeImageFrames(data []byte, source string) ([]*Frame, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	if format == "tiff" {
		return decodeTIFFFrames(data, source)
	}

	orientation := exifOrientation(data)

	if format == "gif" {
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecodeFrame, err)
		}
		var frames []*Frame
		for img := range composeGIF(g) {
			frames = append(frames, newFrame(Orient(img, orientation), imageScale, source, len(frames)))
		}
		return frames, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFrame, err)
	}
	return []*Frame{newFrame(Orient(img, orientation), imageScale, source, 0)}, nil
}

// composeGIF yields the logical screen after each frame is drawn,
// honouring the per-frame disposal method.
func composeGIF(g *gif.GIF) iter.Seq[image.Image] {
	return func(yield func(image.Image) bool) {
		screen := image.Rect(0, 0, g.Config.Width, g.Config.Height)
		if screen.Empty() {
			for _, fr := range g.Image {
				screen = screen.Union(fr.Bounds())
			}
		}
		canvas := image.NewRGBA(screen)

		for i, fr := range g.Image {
			var disposal byte
			if i < len(g.Disposal) {
				disposal = g.Disposal[i]
			}

			var saved *image.RGBA
			if disposal == gif.DisposalPrevious {
				saved = clone.AsRGBA(canvas)
			}

			xdraw.Draw(canvas, fr.Bounds(), fr, fr.Bounds().Min, xdraw.Over)
			if !yield(clone.AsRGBA(canvas)) {
				return
			}

			switch disposal {
			case gif.DisposalBackground:
				xdraw.Draw(canvas, fr.Bounds(), image.Transparent, image.Point{}, xdraw.Src)
			case gif.DisposalPrevious:
				copy(canvas.Pix, saved.Pix)
			}
		}
	}
}
