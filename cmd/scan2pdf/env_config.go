package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alnah/go-scan2pdf/internal/config"
)

// envConfig holds configuration from SCAN2PDF_* environment variables.
type envConfig struct {
	ConfigPath string // SCAN2PDF_CONFIG: config file name or path
	InputDir   string // SCAN2PDF_INPUT_DIR: default input directory
	OutputDir  string // SCAN2PDF_OUTPUT_DIR: default output directory
	Quality    int    // SCAN2PDF_QUALITY: JPEG quality (0 = unset)
	Password   string // SCAN2PDF_PASSWORD: password tried before prompting
	Sort       string // SCAN2PDF_SORT: name, ctime, mtime, none
}

// knownEnvVars lists valid SCAN2PDF_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"SCAN2PDF_CONFIG":     true,
	"SCAN2PDF_INPUT_DIR":  true,
	"SCAN2PDF_OUTPUT_DIR": true,
	"SCAN2PDF_QUALITY":    true,
	"SCAN2PDF_PASSWORD":   true,
	"SCAN2PDF_SORT":       true,
	"SCAN2PDF_CONTAINER":  true, // read by doctor
}

// loadEnvConfig reads configuration from environment variables.
// A quality that is not an integer is reported and left unset.
func loadEnvConfig(warn io.Writer) *envConfig {
	cfg := &envConfig{
		ConfigPath: os.Getenv("SCAN2PDF_CONFIG"),
		InputDir:   os.Getenv("SCAN2PDF_INPUT_DIR"),
		OutputDir:  os.Getenv("SCAN2PDF_OUTPUT_DIR"),
		Password:   os.Getenv("SCAN2PDF_PASSWORD"),
		Sort:       os.Getenv("SCAN2PDF_SORT"),
	}

	if q := os.Getenv("SCAN2PDF_QUALITY"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			fmt.Fprintf(warn, "warning: ignoring SCAN2PDF_QUALITY=%q: not an integer\n", q)
		} else {
			cfg.Quality = n
		}
	}

	return cfg
}

// warnUnknownEnvVars logs warnings for unrecognized SCAN2PDF_* variables.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "SCAN2PDF_") {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig overrides config file values with environment values.
// Precedence: CLI flags > env vars > config file > defaults
// (CLI flags are applied later via mergeFlags).
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.InputDir != "" {
		cfg.Input.Dir = env.InputDir
	}
	if env.OutputDir != "" {
		cfg.Output.Dir = env.OutputDir
	}
	if env.Quality != 0 {
		cfg.Effects.Quality = env.Quality
	}
	if env.Password != "" {
		cfg.Password = env.Password
	}
	if env.Sort != "" {
		cfg.Input.Sort = env.Sort
	}
}
