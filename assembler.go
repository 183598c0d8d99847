package scan2pdf

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"iter"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/dustin/go-humanize"
	"seehuhn.de/go/pdf"
)

// imageResource is the XObject name of the page image.
const imageResource = "Im0"

// Assembler writes frames as image-only PDF pages.
type Assembler struct {
	quality int
	log     io.Writer
}

// NewAssembler creates an Assembler that embeds frames as JPEG at quality.
// A nil log discards output.
func NewAssembler(quality int, log io.Writer) *Assembler {
	if log == nil {
		log = io.Discard
	}
	return &Assembler{quality: min(max(quality, MinQuality), MaxQuality), log: log}
}

// AssembleFrames writes frames to dest. See Assemble.
func (a *Assembler) AssembleFrames(ctx context.Context, dest string, frames []*Frame) (int, error) {
	return a.Assemble(ctx, dest, slices.Values(frames))
}

// Assemble writes one page per frame to a PDF 1.7 document at dest and
// returns the page count.
//
// Each page is sized to the frame's pixels divided by its Scale, in points.
// A frame that cannot be embedded is logged and skipped. The document is
// written to a temporary file beside dest and renamed into place, so dest
// is never left half-written. When no page could be written, nothing is
// created and the error wraps ErrNoPages.
func (a *Assembler) Assemble(ctx context.Context, dest string, frames iter.Seq[*Frame]) (n int, err error) {
	var doc *pdfDocument
	defer func() {
		if doc != nil && err != nil {
			doc.discard()
		}
	}()

	for f := range frames {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if f == nil || f.Image == nil || f.Image.Bounds().Empty() {
			fmt.Fprintf(a.log, "warning: skipping empty frame\n")
			continue
		}

		data, err := encodeJPEG(f, a.quality)
		if err != nil {
			fmt.Fprintf(a.log, "warning: %s: frame %d: %v\n", f.Source, f.Index+1, err)
			continue
		}

		if doc == nil {
			doc, err = createPDFDocument(dest)
			if err != nil {
				return 0, err
			}
		}
		w, h := f.PageSize()
		b := f.Image.Bounds()
		if err := doc.addPage(data, b.Dx(), b.Dy(), w, h); err != nil {
			if doc.out.err != nil {
				return 0, fmt.Errorf("%w: writing %s: %v", ErrAssemble, dest, doc.out.err)
			}
			fmt.Fprintf(a.log, "warning: %s: frame %d: %v\n", f.Source, f.Index+1, err)
			continue
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if doc == nil || doc.pageCount() == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoPages, dest)
	}

	n = doc.pageCount()
	if err := doc.finish(); err != nil {
		return 0, err
	}

	if info, statErr := os.Stat(dest); statErr == nil {
		fmt.Fprintf(a.log, "%s (%s)\n", dest, humanize.IBytes(uint64(info.Size()))) // #nosec G115 -- file size is non-negative
	}
	return n, nil
}

// encodeJPEG compresses the frame for embedding.
func encodeJPEG(f *Frame, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.Image, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding page image: %w", err)
	}
	return buf.Bytes(), nil
}

// recordingWriter keeps the first error of the underlying writer.
// It has no Close method, so the PDF writer leaves the file open.
type recordingWriter struct {
	w   io.Writer
	err error
}

func (r *recordingWriter) Write(p []byte) (int, error) {
	n, err := r.w.Write(p)
	if err != nil && r.err == nil {
		r.err = err
	}
	return n, err
}

// pdfDocument is an output document being written to a temporary file.
// A failed page leaves at most unreferenced objects behind; a failed
// write to the file ends the document.
type pdfDocument struct {
	dest  string
	file  *os.File
	out   *recordingWriter
	w     *pdf.Writer
	pages pdf.Reference
	kids  pdf.Array
}

// createPDFDocument opens a temporary file next to dest.
func createPDFDocument(dest string) (*pdfDocument, error) {
	dir := filepath.Dir(dest)
	f, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssemble, err)
	}

	// The file is closed by finish.
	out := &recordingWriter{w: f}
	w, err := pdf.NewWriter(out, pdf.V1_7, nil)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("%w: %v", ErrAssemble, err)
	}

	return &pdfDocument{dest: dest, file: f, out: out, w: w, pages: w.Alloc()}, nil
}

func (d *pdfDocument) pageCount() int { return len(d.kids) }

// addPage writes an image XObject, a content stream drawing it over the
// whole page, and the page dictionary.
func (d *pdfDocument) addPage(jpegData []byte, px, py int, w, h float64) error {
	if !validPageSize(w) || !validPageSize(h) {
		return fmt.Errorf("%w: invalid page size %vx%v", ErrAssemble, w, h)
	}

	imgRef := d.w.Alloc()
	stm, err := d.w.OpenStream(imgRef, pdf.Dict{
		"Type":             pdf.Name("XObject"),
		"Subtype":          pdf.Name("Image"),
		"Width":            pdf.Integer(px),
		"Height":           pdf.Integer(py),
		"ColorSpace":       pdf.Name("DeviceRGB"),
		"BitsPerComponent": pdf.Integer(8),
		"Filter":           pdf.Name("DCTDecode"),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAssemble, err)
	}
	if _, err := stm.Write(jpegData); err != nil {
		_ = stm.Close()
		return fmt.Errorf("%w: %v", ErrAssemble, err)
	}
	if err := stm.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrAssemble, err)
	}

	contentRef := d.w.Alloc()
	cs, err := d.w.OpenStream(contentRef, nil, pdf.FilterCompress{})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAssemble, err)
	}
	if _, err := fmt.Fprintf(cs, "q %s 0 0 %s 0 0 cm /%s Do Q\n", formatNumber(w), formatNumber(h), imageResource); err != nil {
		_ = cs.Close()
		return fmt.Errorf("%w: %v", ErrAssemble, err)
	}
	if err := cs.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrAssemble, err)
	}

	pageRef := d.w.Alloc()
	page := pdf.Dict{
		"Type":     pdf.Name("Page"),
		"Parent":   d.pages,
		"MediaBox": pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Number(w), pdf.Number(h)},
		"Resources": pdf.Dict{
			"XObject": pdf.Dict{pdf.Name(imageResource): imgRef},
		},
		"Contents": contentRef,
	}
	if err := d.w.Put(pageRef, page); err != nil {
		return fmt.Errorf("%w: %v", ErrAssemble, err)
	}

	d.kids = append(d.kids, pageRef)
	return nil
}

// validPageSize reports whether v is a usable page dimension in points.
func validPageSize(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// finish writes the page tree and trailer, then renames the file to dest.
func (d *pdfDocument) finish() error {
	tree := pdf.Dict{
		"Type":  pdf.Name("Pages"),
		"Kids":  d.kids,
		"Count": pdf.Integer(len(d.kids)),
	}
	if err := d.w.Put(d.pages, tree); err != nil {
		return fmt.Errorf("%w: %v", ErrAssemble, err)
	}
	d.w.GetMeta().Catalog.Pages = d.pages

	if err := d.w.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrAssemble, err)
	}
	if err := d.file.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrAssemble, err)
	}
	if err := d.file.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrAssemble, err)
	}
	if err := os.Rename(d.file.Name(), d.dest); err != nil {
		return fmt.Errorf("%w: %v", ErrAssemble, err)
	}
	return nil
}

// discard removes the temporary file.
// The file may already be closed by finish.
func (d *pdfDocument) discard() {
	_ = d.file.Close()
	_ = os.Remove(d.file.Name())
}

// formatNumber formats v as a PDF number without exponent.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
