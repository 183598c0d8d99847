package main

import (
	"cmp"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/djherbis/times"

	scan2pdf "github.com/alnah/go-scan2pdf"
	"github.com/alnah/go-scan2pdf/internal/config"
	"github.com/alnah/go-scan2pdf/internal/fileutil"
)

// discoveryMode selects how discovered files are processed.
type discoveryMode int

const (
	modePDF   discoveryMode = iota // one output per document
	modeImage                      // every image merged into one output
)

func (m discoveryMode) String() string {
	if m == modeImage {
		return "image"
	}
	return "pdf"
}

// fileFilter decides which directory entries are sources.
type fileFilter struct {
	mode       discoveryMode
	extensions map[string]bool // lower-case, with leading dot
	name       string          // exact base name; empty matches any
}

// newFileFilter interprets the --filter value.
// Keywords "pdf" and "image" select every supported file of that kind.
// A value starting with "." selects one extension. Anything else is an
// exact file name whose extension picks the mode. Unrecognized values
// fall back to PDF mode and report it through warning.
func newFileFilter(filter string) (f fileFilter, warning string) {
	switch strings.ToLower(filter) {
	case "", "pdf":
		return fileFilter{mode: modePDF, extensions: map[string]bool{".pdf": true}}, ""
	case "image":
		exts := make(map[string]bool)
		for _, ext := range scan2pdf.ImageExtensions() {
			exts[ext] = true
		}
		return fileFilter{mode: modeImage, extensions: exts}, ""
	}

	ext := strings.ToLower(filepath.Ext(filter))
	if strings.HasPrefix(filter, ".") {
		ext = strings.ToLower(filter)
	} else {
		f.name = filter
	}

	switch {
	case ext == ".pdf":
		f.mode = modePDF
	case scan2pdf.IsImagePath("x" + ext):
		f.mode = modeImage
	default:
		return fileFilter{mode: modePDF, extensions: map[string]bool{".pdf": true}, name: f.name},
			fmt.Sprintf("unrecognized filter %q, looking for PDF documents", filter)
	}
	f.extensions = map[string]bool{ext: true}
	return f, ""
}

// match reports whether the file at path is a source.
// Previously generated outputs are never sources.
func (f fileFilter) match(path string) bool {
	base := filepath.Base(path)
	if strings.HasSuffix(base, scan2pdf.OutputSuffix) {
		return false
	}
	if !f.extensions[strings.ToLower(filepath.Ext(base))] {
		return false
	}
	return f.name == "" || base == f.name
}

// discoveredFile is a source with the keys used for ordering.
type discoveredFile struct {
	path  string
	depth int
	ctime time.Time
	mtime time.Time
}

// discoverFiles lists the sources under root, ordered by sortBy and then
// by directory depth so files of one folder stay together.
func discoverFiles(root string, f fileFilter, recurse bool, sortBy string) ([]scan2pdf.SourceDocument, error) {
	var found []discoveredFile

	add := func(path string) error {
		ts, err := times.Stat(path)
		if err != nil {
			return fmt.Errorf("reading times of %s: %w", path, err)
		}
		df := discoveredFile{path: path, depth: fileutil.Depth(root, path), mtime: ts.ModTime(), ctime: ts.ModTime()}
		if ts.HasChangeTime() {
			df.ctime = ts.ChangeTime()
		}
		found = append(found, df)
		return nil
	}

	if recurse {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return fmt.Errorf("scanning %s: %w", path, err)
			}
			if d.IsDir() || !f.match(path) {
				return nil
			}
			return add(path)
		})
		if err != nil {
			return nil, err
		}
	} else {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", root, err)
		}
		for _, e := range entries {
			path := filepath.Join(root, e.Name())
			if e.IsDir() || !f.match(path) {
				continue
			}
			if err := add(path); err != nil {
				return nil, err
			}
		}
	}

	sortDiscovered(found, sortBy)

	docs := make([]scan2pdf.SourceDocument, len(found))
	for i, df := range found {
		docs[i] = scan2pdf.NewSourceDocument(df.path)
	}
	return docs, nil
}

// sortDiscovered orders files in place. SortNone keeps walk order.
func sortDiscovered(files []discoveredFile, sortBy string) {
	switch sortBy {
	case config.SortNone:
		return
	case config.SortCTime:
		slices.SortStableFunc(files, func(a, b discoveredFile) int { return a.ctime.Compare(b.ctime) })
	case config.SortMTime:
		slices.SortStableFunc(files, func(a, b discoveredFile) int { return a.mtime.Compare(b.mtime) })
	default:
		slices.SortStableFunc(files, func(a, b discoveredFile) int {
			return cmp.Compare(filepath.Base(a.path), filepath.Base(b.path))
		})
	}
	slices.SortStableFunc(files, func(a, b discoveredFile) int { return cmp.Compare(a.depth, b.depth) })
}
