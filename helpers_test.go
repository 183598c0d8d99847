package scan2pdf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/pagetree"
)

// ---------------------------------------------------------------------------
// Image fixtures
// ---------------------------------------------------------------------------

// gradientImage returns an opaque w x h image with a colour gradient.
func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

// encodePNG returns img as PNG bytes.
func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

// encodeJPEGFixture returns img as JPEG bytes.
func encodeJPEGFixture(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode() error = %v", err)
	}
	return buf.Bytes()
}

// encodeAnimatedGIF returns a GIF with n frames of size w x h.
func encodeAnimatedGIF(t *testing.T, n, w, h int) []byte {
	t.Helper()
	palette := color.Palette{color.Black, color.White, color.RGBA{R: 255, A: 255}}
	g := &gif.GIF{Config: image.Config{Width: w, Height: h, ColorModel: palette}}
	for i := range n {
		fr := image.NewPaletted(image.Rect(0, 0, w, h), palette)
		for j := range fr.Pix {
			fr.Pix[j] = uint8(i % len(palette))
		}
		g.Image = append(g.Image, fr)
		g.Delay = append(g.Delay, 10)
		g.Disposal = append(g.Disposal, gif.DisposalNone)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		t.Fatalf("gif.EncodeAll() error = %v", err)
	}
	return buf.Bytes()
}

// tiffPageFixture describes one page of a hand-built grayscale TIFF.
type tiffPageFixture struct {
	w, h        int
	gray        uint8
	orientation uint16 // 0 omits the tag
	badStrip    bool   // point the strip past the end of the file
}

// encodeMultiPageTIFF returns an uncompressed little-endian 8-bit
// grayscale TIFF with one directory per page, chained in order.
func encodeMultiPageTIFF(t *testing.T, pages ...tiffPageFixture) []byte {
	t.Helper()

	type entry struct {
		tag, typ uint16
		value    uint32
	}
	const short, long = 3, 4

	dataOffs := make([]uint32, len(pages))
	ifdOffs := make([]uint32, len(pages))
	entries := make([][]entry, len(pages))
	pos := uint32(8)
	for i, p := range pages {
		dataOffs[i] = pos
		pos += uint32(p.w * p.h)
		pos += pos % 2

		strip := dataOffs[i]
		if p.badStrip {
			strip = 1 << 30
		}
		e := []entry{
			{256, short, uint32(p.w)},
			{257, short, uint32(p.h)},
			{258, short, 8},
			{259, short, 1}, // no compression
			{262, short, 1}, // black is zero
			{273, long, strip},
		}
		if p.orientation != 0 {
			e = append(e, entry{0x0112, short, uint32(p.orientation)})
		}
		e = append(e,
			entry{277, short, 1},
			entry{278, short, uint32(p.h)},
			entry{279, long, uint32(p.w * p.h)},
		)
		entries[i] = e

		ifdOffs[i] = pos
		pos += uint32(2 + len(e)*12 + 4)
	}

	le := binary.LittleEndian
	buf := make([]byte, pos)
	copy(buf, "II")
	le.PutUint16(buf[2:], 42)
	le.PutUint32(buf[4:], ifdOffs[0])
	for i, p := range pages {
		for j := range p.w * p.h {
			buf[int(dataOffs[i])+j] = p.gray
		}

		at := ifdOffs[i]
		le.PutUint16(buf[at:], uint16(len(entries[i])))
		at += 2
		for _, e := range entries[i] {
			le.PutUint16(buf[at:], e.tag)
			le.PutUint16(buf[at+2:], e.typ)
			le.PutUint32(buf[at+4:], 1)
			le.PutUint32(buf[at+8:], e.value)
			at += 12
		}
		var next uint32
		if i+1 < len(pages) {
			next = ifdOffs[i+1]
		}
		le.PutUint32(buf[at:], next)
	}
	return buf
}

// writeFile writes data to dir/name and returns the path.
func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
	return path
}

// ---------------------------------------------------------------------------
// PDF fixtures
// ---------------------------------------------------------------------------

// writeFixturePDF writes an n-page US Letter PDF. A non-empty password
// encrypts the document with that user password.
func writeFixturePDF(t *testing.T, path string, n int, password string) {
	t.Helper()

	var opt *pdf.WriterOptions
	if password != "" {
		opt = &pdf.WriterOptions{UserPassword: password, OwnerPassword: password + "-owner"}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create(%s) error = %v", path, err)
	}
	w, err := pdf.NewWriter(f, pdf.V1_7, opt)
	if err != nil {
		t.Fatalf("pdf.NewWriter() error = %v", err)
	}

	pagesRef := w.Alloc()
	var kids pdf.Array
	for i := range n {
		contentRef := w.Alloc()
		cs, err := w.OpenStream(contentRef, nil, pdf.FilterCompress{})
		if err != nil {
			t.Fatalf("OpenStream() error = %v", err)
		}
		// A dark box whose position differs per page.
		fmt.Fprintf(cs, "0.1 0.1 0.1 rg %d 500 200 200 re f\n", 72+i*20)
		if err := cs.Close(); err != nil {
			t.Fatalf("closing content stream: %v", err)
		}

		pageRef := w.Alloc()
		if err := w.Put(pageRef, pdf.Dict{
			"Type":     pdf.Name("Page"),
			"Parent":   pagesRef,
			"MediaBox": pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(612), pdf.Integer(792)},
			"Contents": contentRef,
		}); err != nil {
			t.Fatalf("Put(page) error = %v", err)
		}
		kids = append(kids, pageRef)
	}

	if err := w.Put(pagesRef, pdf.Dict{
		"Type":  pdf.Name("Pages"),
		"Kids":  kids,
		"Count": pdf.Integer(n),
	}); err != nil {
		t.Fatalf("Put(pages) error = %v", err)
	}
	w.GetMeta().Catalog.Pages = pagesRef

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	_ = f.Close()
}

// readPDF opens an unencrypted PDF written by the assembler.
func readPDF(t *testing.T, path string) *pdf.Reader {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-1.7")) {
		t.Fatalf("%s does not start with %%PDF-1.7: %q", path, data[:min(len(data), 16)])
	}
	r, err := pdf.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		t.Fatalf("pdf.NewReader() error = %v", err)
	}
	return r
}

// countPages returns the page count of the PDF at path.
func countPages(t *testing.T, path string) int {
	t.Helper()
	n, err := pagetree.NumPages(readPDF(t, path))
	if err != nil {
		t.Fatalf("NumPages() error = %v", err)
	}
	return n
}

// mediaBoxes returns the MediaBox of every page of the PDF at path.
func mediaBoxes(t *testing.T, path string) []*pdf.Rectangle {
	t.Helper()
	r := readPDF(t, path)

	pages, err := pdf.GetDict(r, r.GetMeta().Catalog.Pages)
	if err != nil {
		t.Fatalf("reading page tree: %v", err)
	}
	kids, err := pdf.GetArray(r, pages["Kids"])
	if err != nil {
		t.Fatalf("reading kids: %v", err)
	}

	var boxes []*pdf.Rectangle
	for _, kid := range kids {
		page, err := pdf.GetDict(r, kid)
		if err != nil {
			t.Fatalf("reading page: %v", err)
		}
		box, err := pdf.GetRectangle(r, page["MediaBox"])
		if err != nil {
			t.Fatalf("reading MediaBox: %v", err)
		}
		boxes = append(boxes, box)
	}
	return boxes
}

// assertNoFile fails if path exists.
func assertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("%s exists, want no file", path)
	}
}

// assertNoTempFiles fails if dir contains leftover temporary files.
func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%s) error = %v", dir, err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temporary file %s", e.Name())
		}
	}
}

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// countingSource answers from a list and counts prompts.
type countingSource struct {
	answers []string
	calls   int
}

func (c *countingSource) Password(_ string, attempt int) (string, error) {
	c.calls++
	if attempt-1 < len(c.answers) {
		return c.answers[attempt-1], nil
	}
	return "", nil
}

// fakeRasterizer opens any path as a document of fixed size, guarded by an
// optional password.
type fakeRasterizer struct {
	password string
	pages    int
	failPage int // 1-based page that fails to render, 0 for none
	openErr  error
	opens    int
	closed   bool
}

func (r *fakeRasterizer) Open(path, password string) (Document, error) {
	r.opens++
	if r.openErr != nil {
		return nil, r.openErr
	}
	if r.password != "" && password != r.password {
		return nil, fmt.Errorf("%w: %s", ErrWrongPassword, path)
	}
	return &fakeDocument{pages: r.pages, failPage: r.failPage}, nil
}

func (r *fakeRasterizer) Close() error {
	r.closed = true
	return nil
}

type fakeDocument struct {
	pages    int
	failPage int
}

func (d *fakeDocument) PageCount() int { return d.pages }

func (d *fakeDocument) RenderPage(index int, scale float64) (*image.RGBA, error) {
	if index+1 == d.failPage {
		return nil, fmt.Errorf("render failed")
	}
	// A 100 x 50 point page.
	return gradientImage(int(100*scale), int(50*scale)), nil
}

func (d *fakeDocument) Close() error { return nil }
