package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gookit/color"

	scan2pdf "github.com/alnah/go-scan2pdf"
	"github.com/alnah/go-scan2pdf/internal/config"
	"github.com/alnah/go-scan2pdf/internal/fileutil"
	"github.com/alnah/go-scan2pdf/internal/hints"
)

// Sentinel errors for CLI operations.
var (
	ErrNoInput          = errors.New("input folder not found")
	ErrNoMatchingFiles  = errors.New("no matching files found")
	ErrOutputDir        = errors.New("cannot create output folder")
	ErrTooManyArgs      = errors.New("too many arguments")
	ErrConversionFailed = errors.New("no document could be converted")
)

// File permission constants.
const (
	dirPermissions = 0o750 // rwxr-x---: owner full, group read+execute
)

// ConversionResult holds the outcome of one output document.
type ConversionResult struct {
	InputPath  string
	OutputPath string
	Pages      int
	Err        error
	Duration   time.Duration
}

// runConvert discovers sources, runs the scanner over them and reports.
func runConvert(ctx context.Context, positionalArgs []string, flags *convertFlags, env *Environment) error {
	out := newConsole(env, flags.common)

	cfg, err := loadConfig(flags, out)
	if err != nil {
		return err
	}

	inputDir, err := resolveInputDir(positionalArgs, cfg)
	if err != nil {
		return err
	}

	if cfg.Output.Dir != "" {
		if err := fileutil.EnsureDir(cfg.Output.Dir, dirPermissions); err != nil {
			return fmt.Errorf("%w: %v%s", ErrOutputDir, err, hints.ForOutputDirectory())
		}
	}

	filter, warning := newFileFilter(cfg.Input.Filter)
	if warning != "" {
		out.warn("%s", warning)
	}
	out.debug("Processing files from %s with mode=%s", inputDir, filter.mode)

	files, err := discoverFiles(inputDir, filter, cfg.Input.Recurse, cfg.Input.Sort)
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}

	out.info(color.Blue, "Files Found: %d", len(files))
	for _, doc := range files {
		out.debug("  %s (%s)", doc.Path, doc.Kind)
	}
	if len(files) == 0 {
		out.info(color.Red, "No matching files found. No output documents generated!")
		return fmt.Errorf("%w in %s%s", ErrNoMatchingFiles, inputDir, hints.ForNoMatchingFiles(cfg.Input.Filter, cfg.Input.Recurse))
	}

	opts, closeRasterizer, err := scannerOptions(flags, cfg, filter.mode, env, out)
	if err != nil {
		return err
	}
	defer closeRasterizer()

	sc, err := scan2pdf.NewScanner(opts...)
	if err != nil {
		return err
	}
	defer func() { _ = sc.Close() }()

	results, err := convertFiles(ctx, sc, files, filter.mode, cfg.Output.Dir, env)
	if err != nil {
		return err
	}

	failed, pages := printResults(results, out, interactive(flags, env))
	if msg := energyMessage(pages); msg != "" {
		out.info(color.Green, "\n%s", msg)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 && pages == 0 {
		return fmt.Errorf("%w: %d failed", ErrConversionFailed, failed)
	}
	return nil
}

// loadConfig layers defaults, config file, environment and flags, then
// validates the result.
func loadConfig(flags *convertFlags, out *console) (*config.Config, error) {
	log := out.libraryLog()
	warnUnknownEnvVars(log)
	envCfg := loadEnvConfig(log)

	name := flags.common.config
	if name == "" {
		name = envCfg.ConfigPath
	}

	cfg := config.DefaultConfig()
	if name != "" {
		var err error
		cfg, err = config.LoadConfig(name)
		if err != nil {
			if errors.Is(err, config.ErrConfigNotFound) && !fileutil.IsFilePath(name) {
				return nil, fmt.Errorf("loading config: %w%s", err, hints.ForConfigNotFound(config.SearchPaths(name)))
			}
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	applyEnvConfig(envCfg, cfg)
	mergeFlags(flags, cfg)

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrInvalidValue) && !validQuality(cfg.Effects.Quality) {
			return nil, fmt.Errorf("%w%s", err, hints.ForQuality())
		}
		return nil, err
	}
	return cfg, nil
}

func validQuality(q int) bool {
	return q >= config.MinQuality && q <= config.MaxQuality && q%config.QualityStep == 0
}

// resolveInputDir picks the positional argument, then input.dir, then the
// current directory. The result is absolute and must be a directory.
func resolveInputDir(args []string, cfg *config.Config) (string, error) {
	if len(args) > 1 {
		return "", fmt.Errorf("%w: expected at most one input folder, got %d", ErrTooManyArgs, len(args))
	}

	dir := cfg.Input.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		dir = "."
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNoInput, dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrNoInput, abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrNoInput, abs)
	}
	return abs, nil
}

// scannerOptions builds the scanner options. The PDF renderer is started
// only in PDF mode; the returned func releases it.
func scannerOptions(flags *convertFlags, cfg *config.Config, mode discoveryMode, env *Environment, out *console) ([]scan2pdf.Option, func(), error) {
	opts := []scan2pdf.Option{
		scan2pdf.WithEffects(effectsFromConfig(cfg.Effects)),
		scan2pdf.WithOutputDir(cfg.Output.Dir),
		scan2pdf.WithLogger(out.libraryLog()),
		scan2pdf.WithPassword(cfg.Password),
		scan2pdf.WithCredentialSource(credentialSource(flags, env)),
	}
	if flags.changed != nil && flags.changed("seed") {
		opts = append(opts, scan2pdf.WithSeed(flags.seed))
	}

	noop := func() {}
	if mode != modePDF || env.NewRasterizer == nil {
		return opts, noop, nil
	}

	start := time.Now()
	r, err := env.NewRasterizer()
	if err != nil {
		if !errors.Is(err, scan2pdf.ErrRasterizerInit) {
			err = fmt.Errorf("%w: %w", scan2pdf.ErrRasterizerInit, err)
		}
		return nil, noop, fmt.Errorf("%w%s", err, hints.ForRasterizerInit())
	}
	out.debug("PDF renderer ready in %v", time.Since(start).Round(time.Millisecond))

	opts = append(opts, scan2pdf.WithRasterizer(r))
	return opts, func() { _ = r.Close() }, nil
}

// effectsFromConfig converts config effects to library effects.
func effectsFromConfig(e config.EffectsConfig) scan2pdf.EffectConfig {
	return scan2pdf.EffectConfig{
		Quality:      e.Quality,
		Askew:        e.Askew,
		Monochrome:   e.Monochrome,
		Blur:         e.Blur,
		DepthOfField: e.DepthOfField,
		Noise:        e.Noise,
		Contrast:     e.Contrast,
		Sharpness:    e.Sharpness,
		Brightness:   e.Brightness,
	}
}

// interactive reports whether passwords may be asked on the terminal.
func interactive(flags *convertFlags, env *Environment) bool {
	return !flags.password.noPrompt && interactiveStdin(env)
}

// credentialSource selects where passwords come from for this run.
func credentialSource(flags *convertFlags, env *Environment) scan2pdf.CredentialSource {
	switch {
	case flags.password.noPrompt:
		return scan2pdf.NoPrompt
	case env.Credentials != nil:
		return env.Credentials
	case env.Stdin != nil && scan2pdf.IsInteractive(env.Stdin):
		return &scan2pdf.TerminalPrompt{In: env.Stdin, Out: env.Stderr, MaxAttempts: 3}
	default:
		return scan2pdf.NoPrompt
	}
}

// convertFiles runs the scanner. In image mode all files form one batch;
// in PDF mode each document is its own unit. A renderer setup failure
// aborts the run; other failures are recorded and the batch continues.
func convertFiles(ctx context.Context, sc *scan2pdf.Scanner, files []scan2pdf.SourceDocument, mode discoveryMode, outputDir string, env *Environment) ([]ConversionResult, error) {
	if mode == modeImage {
		paths := make([]string, len(files))
		for i, doc := range files {
			paths[i] = doc.Path
		}
		start := env.Now()
		n, err := sc.ProcessImageBatch(ctx, paths)
		return []ConversionResult{{
			InputPath:  paths[0],
			OutputPath: scan2pdf.OutputPath(paths[0], outputDir),
			Pages:      n,
			Err:        err,
			Duration:   env.Now().Sub(start),
		}}, nil
	}

	results := make([]ConversionResult, 0, len(files))
	for _, doc := range files {
		if ctx.Err() != nil {
			break
		}
		path := doc.Path
		start := env.Now()
		n, err := sc.ProcessSingleDocument(ctx, path)
		if errors.Is(err, scan2pdf.ErrRasterizerInit) {
			return results, fmt.Errorf("%w%s", err, hints.ForRasterizerInit())
		}
		results = append(results, ConversionResult{
			InputPath:  path,
			OutputPath: scan2pdf.OutputPath(path, outputDir),
			Pages:      n,
			Err:        err,
			Duration:   env.Now().Sub(start),
		})
	}
	return results, nil
}

// printResults reports failures, verbose timings and the batch summary.
// Returns the failed count and the total pages produced.
func printResults(results []ConversionResult, out *console, interactive bool) (failed, pages int) {
	for _, r := range results {
		if r.Err != nil {
			failed++
			hint := ""
			if errors.Is(r.Err, scan2pdf.ErrPasswordAbandoned) {
				hint = hints.ForPasswordAbandoned(interactive)
			}
			out.fail("FAILED %s: %v%s", r.InputPath, r.Err, hint)
			continue
		}
		pages += r.Pages
		out.debug("%s -> %s (%d pages, %v)", r.InputPath, r.OutputPath, r.Pages, r.Duration.Round(time.Millisecond))
	}

	if len(results) > 1 {
		out.info(color.Blue, "\n%d succeeded, %d failed", len(results)-failed, failed)
	}
	return failed, pages
}
