// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"strings"

	"github.com/alnah/go-scan2pdf/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config and creating a config in ~/.config/go-scan2pdf/.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	for _, p := range searchedPaths {
		if strings.Contains(p, ".config/go-scan2pdf") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForNoMatchingFiles returns hints when discovery finds nothing.
func ForNoMatchingFiles(filter string, recurse bool) string {
	var hints []string
	switch filter {
	case "", "pdf":
		hints = append(hints, "use --filter image to convert pictures")
	case "image":
		hints = append(hints, "use --filter pdf to convert PDF documents")
	}
	if !recurse {
		hints = append(hints, "use --recurse to search subdirectories")
	}
	return formatHints(hints)
}

// ForPasswordAbandoned returns hints for encrypted documents that were skipped.
func ForPasswordAbandoned(interactive bool) string {
	if interactive {
		return format("use --password to supply it up front")
	}
	return format("stdin is not a terminal; use --password or SCAN2PDF_PASSWORD")
}

// ForRasterizerInit returns hints for PDF renderer startup failures.
func ForRasterizerInit() string {
	hints := []string{"run 'scan2pdf doctor' for diagnostics"}
	if IsInContainer() || os.Getenv("CI") != "" {
		hints = append(hints, "the renderer needs about 64 MiB of free memory")
	}
	return formatHints(hints)
}

// ForOutputDirectory returns hints for output directory creation errors.
func ForOutputDirectory() string {
	return format("check parent directory exists and is writable")
}

// ForQuality returns hints for rejected quality values.
func ForQuality() string {
	return format("quality must be a multiple of 5 between 50 and 100")
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
