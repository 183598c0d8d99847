package main

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	scan2pdf "github.com/alnah/go-scan2pdf"
)

// ---------------------------------------------------------------------------
// Test Infrastructure - Fake PDF renderer
// ---------------------------------------------------------------------------

// fakeRasterizer opens any file. Files whose name starts with "locked"
// require password. Every document has pages pages of 60x40 points.
type fakeRasterizer struct {
	mu       sync.Mutex
	password string
	pages    int
	opens    int
	closed   bool
}

func (r *fakeRasterizer) Open(path, password string) (scan2pdf.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opens++
	if strings.HasPrefix(filepath.Base(path), "locked") && password != r.password {
		return nil, fmt.Errorf("%w: %s", scan2pdf.ErrWrongPassword, path)
	}
	pages := r.pages
	if pages == 0 {
		pages = 1
	}
	return &fakeDocument{pages: pages}, nil
}

func (r *fakeRasterizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeRasterizer) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type fakeDocument struct{ pages int }

func (d *fakeDocument) PageCount() int { return d.pages }

func (d *fakeDocument) RenderPage(index int, scale float64) (*image.RGBA, error) {
	if index < 0 || index >= d.pages {
		return nil, errors.New("page out of range")
	}
	w, h := int(60*scale), int(40*scale)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 6), B: 200, A: 255})
		}
	}
	return img, nil
}

func (d *fakeDocument) Close() error { return nil }

// ---------------------------------------------------------------------------
// Test Infrastructure - Environment and fixtures
// ---------------------------------------------------------------------------

type testEnv struct {
	*Environment
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	raster *fakeRasterizer
}

// newTestEnv returns an environment with captured output, no colour,
// no terminal and a fake renderer.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	te := &testEnv{
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		raster: &fakeRasterizer{pages: 2, password: "hunter2"},
	}
	te.Environment = &Environment{
		Now:    time.Now,
		Stdout: te.stdout,
		Stderr: te.stderr,
		NewRasterizer: func() (scan2pdf.Rasterizer, error) {
			return te.raster, nil
		},
	}
	return te
}

// writePNG writes a small opaque PNG to path.
func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := range 30 {
		for x := range 40 {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: 120, B: uint8(y * 8), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	writeFile(t, path, buf.Bytes())
}

// writeFile creates path and its parent directories.
func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("creating dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// touch creates an empty file whose content the fake renderer ignores.
func touch(t *testing.T, path string) {
	t.Helper()
	writeFile(t, path, nil)
}

// assertPDF checks that path exists and starts with a PDF header.
func assertPDF(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("%s does not start with %%PDF-", path)
	}
}

func assertNotExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("%s should not exist (stat err = %v)", path, err)
	}
}
