// Package scan2pdf makes digital documents look scanned.
//
// A source PDF or a batch of images is rasterized, passed through a
// stochastic effect pipeline (recompression, skew, monochrome, blur,
// noise) and written back as an image-only PDF.
//
// # Quick Start
//
//	sc, err := scan2pdf.NewScanner(
//	    scan2pdf.WithEffects(scan2pdf.DefaultEffectConfig()),
//	    scan2pdf.WithLogger(os.Stderr),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sc.Close()
//
//	pages, err := sc.ProcessSingleDocument(ctx, "report.pdf")
//	if err != nil {
//	    log.Printf("report.pdf: %v", err)
//	}
//	fmt.Println(pages, "pages written to", scan2pdf.OutputPath("report.pdf", ""))
//
// # Sources
//
// PDF pages are rendered at twice their point size by a WebAssembly build
// of PDFium, so no native library is needed. The oversampling is removed
// again when pages are written. Images (JPEG, PNG, GIF, WebP, TIFF, BMP)
// are decoded directly; animated GIFs yield one page per frame. EXIF
// orientation is honoured and transparency is flattened onto white.
//
// # Encrypted Documents
//
// Encrypted PDFs are opened through a [Resolver]. A password given with
// [WithPassword] is tried first without prompting. Otherwise the
// [CredentialSource] set with [WithCredentialSource] is asked, up to three
// times. An empty answer skips the document.
//
// # Reproducibility
//
// Every random draw comes from one *rand.Rand. Use [WithSeed] to make a
// run reproducible.
//
// # Error Handling
//
// A failed document never aborts a batch. Processing methods return a page
// count of zero and an error that can be matched with errors.Is against
// the sentinels in this package, such as [ErrPasswordAbandoned] or
// [ErrOpenDocument]. Only [ErrRasterizerInit] indicates that no further PDF
// can be processed.
package scan2pdf
