package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/alnah/go-scan2pdf/internal/fileutil"
	"github.com/alnah/go-scan2pdf/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Field length limits.
const (
	MaxPathLength     = 4096
	MaxFilterLength   = 255
	MaxPasswordLength = 1024
)

// Effect ranges.
const (
	MinQuality     = 50
	MaxQuality     = 100
	QualityStep    = 5
	DefaultQuality = 95
	MinNoise       = 0
	MaxNoise       = 100
)

// Discovery sort orders.
const (
	SortName  = "name"
	SortCTime = "ctime"
	SortMTime = "mtime"
	SortNone  = "none"
)

// SortOrders lists the accepted input.sort values.
var SortOrders = []string{SortName, SortCTime, SortMTime, SortNone}

// Config holds all configuration for a scan run.
type Config struct {
	Input    InputConfig   `yaml:"input"`
	Output   OutputConfig  `yaml:"output"`
	Effects  EffectsConfig `yaml:"effects"`
	Password string        `yaml:"password"` // tried silently before prompting
}

// InputConfig defines how source documents are discovered.
type InputConfig struct {
	Dir     string `yaml:"dir"`     // empty = current directory
	Filter  string `yaml:"filter"`  // "pdf", "image", ".ext" or an exact file name
	Recurse bool   `yaml:"recurse"` // descend into subdirectories
	Sort    string `yaml:"sort"`    // name, ctime, mtime, none
}

// OutputConfig defines output destination options.
type OutputConfig struct {
	Dir string `yaml:"dir"` // empty = beside each source
}

// EffectsConfig selects the scan effects.
type EffectsConfig struct {
	Quality      int     `yaml:"quality"`
	Askew        bool    `yaml:"askew"`
	Monochrome   bool    `yaml:"monochrome"`
	Blur         bool    `yaml:"blur"`
	DepthOfField bool    `yaml:"depthOfField"`
	Noise        int     `yaml:"noise"`
	Contrast     float64 `yaml:"contrast"`
	Sharpness    float64 `yaml:"sharpness"`
	Brightness   float64 `yaml:"brightness"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{Filter: "pdf", Sort: SortName},
		Effects: EffectsConfig{
			Quality:    DefaultQuality,
			Askew:      true,
			Contrast:   1.0,
			Sharpness:  1.0,
			Brightness: 1.0,
		},
	}
}

// Validate checks ranges, enum values and field lengths.
// Called automatically by LoadConfig, and again by the CLI after flags
// and environment overrides are merged.
func (c *Config) Validate() error {
	if err := validateFieldLength("input.dir", c.Input.Dir, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("input.filter", c.Input.Filter, MaxFilterLength); err != nil {
		return err
	}
	if strings.ContainsAny(c.Input.Filter, "/\\\x00") {
		return fmt.Errorf("%w: input.filter %q must be a file name, not a path", ErrInvalidValue, c.Input.Filter)
	}
	if c.Input.Sort != "" && !isSortOrder(c.Input.Sort) {
		return fmt.Errorf("%w: input.sort %q (must be one of %s)", ErrInvalidValue, c.Input.Sort, strings.Join(SortOrders, ", "))
	}
	if err := validateFieldLength("output.dir", c.Output.Dir, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("password", c.Password, MaxPasswordLength); err != nil {
		return err
	}
	return c.Effects.Validate()
}

// Validate checks effect ranges.
func (e *EffectsConfig) Validate() error {
	if e.Quality < MinQuality || e.Quality > MaxQuality || e.Quality%QualityStep != 0 {
		return fmt.Errorf("%w: effects.quality %d (must be %d-%d in steps of %d)",
			ErrInvalidValue, e.Quality, MinQuality, MaxQuality, QualityStep)
	}
	if e.Noise < MinNoise || e.Noise > MaxNoise {
		return fmt.Errorf("%w: effects.noise %d (must be between %d and %d)", ErrInvalidValue, e.Noise, MinNoise, MaxNoise)
	}
	factors := []struct {
		name  string
		value float64
	}{
		{"effects.contrast", e.Contrast},
		{"effects.sharpness", e.Sharpness},
		{"effects.brightness", e.Brightness},
	}
	for _, f := range factors {
		if f.value < 0 {
			return fmt.Errorf("%w: %s %.2f (must be >= 0)", ErrInvalidValue, f.name, f.value)
		}
	}
	return nil
}

func isSortOrder(s string) bool {
	for _, o := range SortOrders {
		if s == o {
			return true
		}
	}
	return false
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Keys missing from the file keep their DefaultConfig values.
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !fileutil.IsFilePath(nameOrPath) {
		var err error
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	cfg := DefaultConfig()
	if err := yamlutil.ReadFileStrict(configPath, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SearchPaths returns the locations tried for a config name, in order:
// ./name.yaml, ./name.yml, then the user config directory.
func SearchPaths(name string) []string {
	extensions := []string{".yaml", ".yml"}
	paths := make([]string, 0, len(extensions)*2)
	for _, ext := range extensions {
		paths = append(paths, name+ext)
	}
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(userConfigDir, "go-scan2pdf", name+ext))
		}
	}
	return paths
}

// resolveConfigPath returns the first existing file among SearchPaths.
func resolveConfigPath(name string) (string, error) {
	paths := SearchPaths(name)
	for _, p := range paths {
		if fileutil.FileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(paths, ", "))
}
