package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	scan2pdf "github.com/alnah/go-scan2pdf"
	"github.com/alnah/go-scan2pdf/internal/fileutil"
)

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status     string         `json:"status"` // "ready", "warnings", "errors"
	Rasterizer rasterizerInfo `json:"rasterizer"`
	Env        envInfo        `json:"environment"`
	System     systemInfo     `json:"system"`
	Warnings   []string       `json:"warnings,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
}

// rasterizerInfo holds PDF renderer startup results.
type rasterizerInfo struct {
	Ready     bool   `json:"ready"`
	Engine    string `json:"engine"`
	StartupMs int64  `json:"startup_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	GoMaxProcs    int    `json:"gomaxprocs"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
	Terminal      bool   `json:"terminal"`
	NoColor       bool   `json:"no_color"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempDir      string `json:"temp_dir"`
	TempWritable bool   `json:"temp_writable"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found.
func runDoctorCmd(args []string, env *Environment) int {
	jsonOutput := false
	for _, arg := range args {
		switch arg {
		case "--json":
			jsonOutput = true
		case "-h", "--help":
			printDoctorUsage(env.Stdout)
			return ExitSuccess
		default:
			fmt.Fprintf(env.Stderr, "unknown doctor flag: %s\n", arg)
			printDoctorUsage(env.Stderr)
			return ExitUsage
		}
	}

	result := runDoctor(env)

	if jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == "errors" {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks.
func runDoctor(env *Environment) *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Rasterizer: rasterizerInfo{
			Engine: "pdfium (webassembly)",
		},
		Env: envInfo{
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			GoMaxProcs: runtime.GOMAXPROCS(0),
		},
	}

	checkRasterizer(result, env)
	checkEnvironment(result, env)
	checkSystem(result)

	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}

	return result
}

// checkRasterizer starts and stops the PDF renderer once.
func checkRasterizer(result *doctorResult, env *Environment) {
	if env.NewRasterizer == nil {
		result.Errors = append(result.Errors, "PDF renderer not configured")
		return
	}

	start := time.Now()
	r, err := env.NewRasterizer()
	if err != nil {
		result.Rasterizer.Error = err.Error()
		result.Errors = append(result.Errors, fmt.Sprintf("PDF renderer failed to start: %v", err))
		return
	}
	result.Rasterizer.StartupMs = time.Since(start).Milliseconds()
	result.Rasterizer.Ready = true

	if err := r.Close(); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("PDF renderer did not shut down cleanly: %v", err))
	}
}

// checkEnvironment detects container, CI and terminal state.
func checkEnvironment(result *doctorResult, env *Environment) {
	result.Env.Container, result.Env.ContainerHint = isContainer()

	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}

	result.Env.Terminal = interactiveStdin(env)
	result.Env.NoColor = os.Getenv("NO_COLOR") != ""

	if !result.Env.Terminal {
		result.Warnings = append(result.Warnings,
			"stdin is not a terminal: encrypted PDFs need --password or SCAN2PDF_PASSWORD")
	}
}

// interactiveStdin reports whether password prompts can be shown.
func interactiveStdin(env *Environment) bool {
	if env.Credentials != nil {
		return true
	}
	return env.Stdin != nil && scan2pdf.IsInteractive(env.Stdin)
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer() (bool, string) {
	if os.Getenv("SCAN2PDF_CONTAINER") == "1" {
		return true, "SCAN2PDF_CONTAINER=1"
	}
	if fileutil.FileExists("/.dockerenv") {
		return true, "/.dockerenv"
	}
	if v := os.Getenv("container"); v != "" {
		return true, "container=" + v
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkSystem verifies the temp directory used for output staging.
func checkSystem(result *doctorResult) {
	tmpDir := os.TempDir()
	result.System.TempDir = tmpDir
	if err := fileutil.CheckWritable(tmpDir); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Temp directory not writable: %s", tmpDir))
		return
	}
	result.System.TempWritable = true
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "scan2pdf doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "PDF renderer")
	if r.Rasterizer.Ready {
		fmt.Fprintf(w, "  [OK] %s started in %d ms\n", r.Rasterizer.Engine, r.Rasterizer.StartupMs)
	} else {
		fmt.Fprintf(w, "  [ERROR] %s unavailable\n", r.Rasterizer.Engine)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s (GOMAXPROCS=%d)\n", r.Env.OS, r.Env.Arch, r.Env.GoMaxProcs)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	if r.Env.Terminal {
		fmt.Fprintln(w, "  [OK] Terminal: interactive password prompts available")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "System")
	if r.System.TempWritable {
		fmt.Fprintln(w, "  [OK] Temp directory: writable")
	} else {
		fmt.Fprintln(w, "  [ERROR] Temp directory: not writable")
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case "ready":
		fmt.Fprintln(w, "Status: Ready to scan")
	case "warnings":
		fmt.Fprintln(w, "Status: Ready with warnings")
	case "errors":
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
