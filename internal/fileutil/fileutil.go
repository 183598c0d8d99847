// Package fileutil provides file and path utility functions.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for file utility operations.
var (
	ErrEmptyPath = errors.New("path cannot be empty")
	ErrNotDir    = errors.New("path is not a directory")
)

// FileExists returns true if the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists returns true if the path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsFilePath returns true if the string looks like a file path rather than a name.
// A string containing path separators (/, \) is treated as a path.
//
// Examples:
//   - "scanned" -> false (name)
//   - "./scanned.yaml" -> true (relative path)
//   - "C:\configs\scanned.yaml" -> true (Windows)
func IsFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// EnsureDir creates path and any missing parents.
// An existing non-directory at path is an error.
func EnsureDir(path string, perm os.FileMode) error {
	if path == "" {
		return ErrEmptyPath
	}
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%w: %s", ErrNotDir, path)
		}
		return nil
	}
	if err := os.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return nil
}

// CheckWritable verifies that a file can be created in dir.
func CheckWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".scan2pdf-check-*")
	if err != nil {
		return fmt.Errorf("directory not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// Depth returns the number of directories between root and path.
// A file directly inside root has depth 0.
func Depth(root, path string) int {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/") + 1
}
