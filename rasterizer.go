package scan2pdf

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"sync"
	"time"

	"github.com/anthonynsimon/bild/clone"
	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/enums"
	pdfiumerrors "github.com/klippa-app/go-pdfium/errors"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/structs"
	"github.com/klippa-app/go-pdfium/webassembly"
)

// Rasterizer opens PDF documents for page rendering.
type Rasterizer interface {
	// Open opens the document at path with password ("" for none).
	// Returns an error wrapping ErrWrongPassword when the password is
	// rejected, or ErrOpenDocument when the file is not a usable PDF.
	Open(path, password string) (Document, error)
	// Close releases the rasterizer.
	Close() error
}

// Document is an opened PDF.
type Document interface {
	// PageCount returns the number of pages.
	PageCount() int
	// RenderPage renders page index (zero-based) at scale pixels per point.
	RenderPage(index int, scale float64) (*image.RGBA, error)
	// Close releases the document.
	Close() error
}

// Compile-time interface implementation checks.
var (
	_ Rasterizer = (*PDFiumRasterizer)(nil)
	_ Document   = (*pdfiumDocument)(nil)
)

// pointsPerInch converts render scale to DPI.
const pointsPerInch = 72

// instanceTimeout bounds the wait for the single WebAssembly instance.
const instanceTimeout = 30 * time.Second

// renderFlags draws annotation appearances along with the page content.
const renderFlags = enums.FPDF_RENDER_FLAG_ANNOT

// opaqueWhite is the bitmap fill colour in ARGB.
const opaqueWhite = 0xFFFFFFFF

// PDFiumRasterizer renders pages with a WebAssembly build of PDFium.
// It runs a single instance; calls are serialized.
type PDFiumRasterizer struct {
	mu       sync.Mutex
	pool     pdfium.Pool
	instance pdfium.Pdfium
	closed   bool
}

// NewPDFiumRasterizer starts the WebAssembly runtime.
// Returns an error wrapping ErrRasterizerInit on failure.
func NewPDFiumRasterizer() (*PDFiumRasterizer, error) {
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRasterizerInit, err)
	}

	instance, err := pool.GetInstance(instanceTimeout)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrRasterizerInit, err)
	}

	return &PDFiumRasterizer{pool: pool, instance: instance}, nil
}

// Open implements Rasterizer.
func (r *PDFiumRasterizer) Open(path, password string) (Document, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- discovered path
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenDocument, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("%w: rasterizer closed", ErrOpenDocument)
	}

	req := &requests.OpenDocument{File: &data}
	if password != "" {
		req.Password = &password
	}
	doc, err := r.instance.OpenDocument(req)
	if err != nil {
		if errors.Is(err, pdfiumerrors.ErrPassword) {
			return nil, fmt.Errorf("%w: %s", ErrWrongPassword, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrOpenDocument, err)
	}

	count, err := r.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{Document: doc.Document})
	if err != nil {
		_, _ = r.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})
		return nil, fmt.Errorf("%w: %v", ErrOpenDocument, err)
	}

	return &pdfiumDocument{
		r:     r,
		ref:   doc.Document,
		pages: count.PageCount,
		form:  r.initForms(doc.Document),
	}, nil
}

// initForms sets up form filling for documents that carry a form, so
// field values are drawn. Returns nil when there is no form or the
// environment cannot be created; such pages render without form drawing.
func (r *PDFiumRasterizer) initForms(doc references.FPDF_DOCUMENT) *references.FPDF_FORMHANDLE {
	ft, err := r.instance.FPDF_GetFormType(&requests.FPDF_GetFormType{Document: doc})
	if err != nil || ft.FormType == enums.FPDF_FORMTYPE_NONE {
		return nil
	}

	res, err := r.instance.FPDFDOC_InitFormFillEnvironment(&requests.FPDFDOC_InitFormFillEnvironment{
		Document:     doc,
		FormFillInfo: staticFormFillInfo(),
	})
	if err != nil {
		return nil
	}
	return &res.FormHandle
}

// staticFormFillInfo returns the callbacks of a non-interactive viewer.
func staticFormFillInfo() structs.FPDF_FORMFILLINFO {
	return structs.FPDF_FORMFILLINFO{
		FFI_Invalidate:         func(references.FPDF_PAGE, float64, float64, float64, float64) {},
		FFI_OutputSelectedRect: func(references.FPDF_PAGE, float64, float64, float64, float64) {},
		FFI_SetCursor:          func(enums.FXCT) {},
		FFI_SetTimer:           func(int, func(int)) int { return 0 },
		FFI_KillTimer:          func(int) {},
		FFI_GetLocalTime: func() structs.FPDF_SYSTEMTIME {
			now := time.Now()
			return structs.FPDF_SYSTEMTIME{
				Year:         uint16(now.Year()),
				Month:        uint16(now.Month()),
				DayOfWeek:    uint16(now.Weekday()),
				Day:          uint16(now.Day()),
				Hour:         uint16(now.Hour()),
				Minute:       uint16(now.Minute()),
				Second:       uint16(now.Second()),
				Milliseconds: uint16(now.Nanosecond() / int(time.Millisecond)),
			}
		},
		FFI_OnChange:           func() {},
		FFI_GetPage:            func(references.FPDF_DOCUMENT, int) *references.FPDF_PAGE { return nil },
		FFI_GetCurrentPage:     func(references.FPDF_DOCUMENT) *references.FPDF_PAGE { return nil },
		FFI_GetRotation:        func(references.FPDF_PAGE) enums.FPDF_PAGE_ROTATION { return enums.FPDF_PAGE_ROTATION_NONE },
		FFI_ExecuteNamedAction: func(string) {},
		FFI_SetTextFieldFocus:  func(string, bool) {},
		FFI_DoURIAction:        func(string) {},
		FFI_DoGoToAction:       func(int, enums.FPDF_ZOOM_MODE, []float32) {},
	}
}

// Close implements Rasterizer. Safe to call more than once.
func (r *PDFiumRasterizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if err := r.instance.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.pool.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// pdfiumDocument is a document opened in the shared instance.
type pdfiumDocument struct {
	r      *PDFiumRasterizer
	ref    references.FPDF_DOCUMENT
	pages  int
	form   *references.FPDF_FORMHANDLE // nil without a form
	closed bool
}

func (d *pdfiumDocument) PageCount() int { return d.pages }

// RenderPage renders with annotations. Form documents also get their
// field values drawn; when that fails the page is rendered without them.
func (d *pdfiumDocument) RenderPage(index int, scale float64) (*image.RGBA, error) {
	if index < 0 || index >= d.pages {
		return nil, fmt.Errorf("page %d out of range [0, %d)", index, d.pages)
	}

	d.r.mu.Lock()
	defer d.r.mu.Unlock()

	dpi := int(scale * pointsPerInch)
	if d.form != nil {
		if img, err := d.renderWithForm(index, dpi); err == nil {
			return img, nil
		}
	}

	res, err := d.r.instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI:         dpi,
		RenderFlags: renderFlags,
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: d.ref,
				Index:    index,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	defer res.Cleanup()

	// The render buffer is released by Cleanup.
	if res.Result.HasTransparency {
		// Transparent pages come back on a clear background with
		// straight alpha.
		return flattenStraightAlpha(res.Result.Image), nil
	}
	return clone.AsRGBA(res.Result.Image), nil
}

// renderWithForm draws page index and its form fields onto an opaque
// white bitmap. The caller holds the instance lock.
func (d *pdfiumDocument) renderWithForm(index, dpi int) (*image.RGBA, error) {
	inst := d.r.instance

	loaded, err := inst.FPDF_LoadPage(&requests.FPDF_LoadPage{Document: d.ref, Index: index})
	if err != nil {
		return nil, err
	}
	pageRef := loaded.Page
	page := requests.Page{ByReference: &pageRef}
	defer func() { _, _ = inst.FPDF_ClosePage(&requests.FPDF_ClosePage{Page: pageRef}) }()

	if _, err := inst.FORM_OnAfterLoadPage(&requests.FORM_OnAfterLoadPage{Page: page, FormHandle: *d.form}); err != nil {
		return nil, err
	}
	defer func() {
		_, _ = inst.FORM_OnBeforeClosePage(&requests.FORM_OnBeforeClosePage{Page: page, FormHandle: *d.form})
	}()

	pw, err := inst.FPDF_GetPageWidthF(&requests.FPDF_GetPageWidthF{Page: page})
	if err != nil {
		return nil, err
	}
	ph, err := inst.FPDF_GetPageHeightF(&requests.FPDF_GetPageHeightF{Page: page})
	if err != nil {
		return nil, err
	}
	ratio := float64(dpi) / pointsPerInch
	w := int(math.Ceil(float64(pw.PageWidth) * ratio))
	h := int(math.Ceil(float64(ph.PageHeight) * ratio))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("page %d has no area", index)
	}

	bm, err := inst.FPDFBitmap_Create(&requests.FPDFBitmap_Create{Width: w, Height: h, Alpha: 0})
	if err != nil {
		return nil, err
	}
	defer func() { _, _ = inst.FPDFBitmap_Destroy(&requests.FPDFBitmap_Destroy{Bitmap: bm.Bitmap}) }()

	if _, err := inst.FPDFBitmap_FillRect(&requests.FPDFBitmap_FillRect{
		Bitmap: bm.Bitmap, Width: w, Height: h, Color: opaqueWhite,
	}); err != nil {
		return nil, err
	}

	flags := renderFlags | enums.FPDF_RENDER_FLAG_REVERSE_BYTE_ORDER
	if _, err := inst.FPDF_RenderPageBitmap(&requests.FPDF_RenderPageBitmap{
		Bitmap: bm.Bitmap, Page: page, SizeX: w, SizeY: h, Flags: flags,
	}); err != nil {
		return nil, err
	}
	if _, err := inst.FPDF_FFLDraw(&requests.FPDF_FFLDraw{
		FormHandle: *d.form, Bitmap: bm.Bitmap, Page: page, SizeX: w, SizeY: h, Flags: flags,
	}); err != nil {
		return nil, err
	}

	stride, err := inst.FPDFBitmap_GetStride(&requests.FPDFBitmap_GetStride{Bitmap: bm.Bitmap})
	if err != nil {
		return nil, err
	}
	buf, err := inst.FPDFBitmap_GetBuffer(&requests.FPDFBitmap_GetBuffer{Bitmap: bm.Bitmap})
	if err != nil {
		return nil, err
	}
	return copyBitmap(buf.Buffer, stride.Stride, w, h)
}

// copyBitmap copies an RGBx buffer into a new opaque image.
// The buffer is a view into WebAssembly memory and is not retained.
func copyBitmap(buf []byte, stride, w, h int) (*image.RGBA, error) {
	if stride < w*4 || len(buf) < stride*(h-1)+w*4 {
		return nil, fmt.Errorf("bitmap buffer too small: %d bytes for %dx%d", len(buf), w, h)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		copy(row, buf[y*stride:])
		for x := 3; x < len(row); x += 4 {
			row[x] = 0xFF
		}
	}
	return img, nil
}

func (d *pdfiumDocument) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	if d.r.closed {
		return nil
	}
	var errs []error
	if d.form != nil {
		if _, err := d.r.instance.FPDFDOC_ExitFormFillEnvironment(&requests.FPDFDOC_ExitFormFillEnvironment{FormHandle: *d.form}); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := d.r.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: d.ref}); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
