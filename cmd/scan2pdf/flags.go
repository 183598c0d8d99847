package main

import (
	"io"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-scan2pdf/internal/config"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
	noColor bool
}

// inputFlags holds discovery flags.
type inputFlags struct {
	dir     string
	filter  string
	recurse bool
	sort    string
}

// effectFlags holds scan effect flags.
type effectFlags struct {
	quality      int
	noAskew      bool
	monochrome   bool
	blur         bool
	depthOfField bool
	noise        int
	contrast     float64
	sharpness    float64
	brightness   float64
}

// passwordFlags holds encrypted-document flags.
type passwordFlags struct {
	password string
	noPrompt bool
}

// convertFlags holds all flags for the convert command.
type convertFlags struct {
	common   commonFlags
	input    inputFlags
	effects  effectFlags
	password passwordFlags
	output   string
	seed     uint64

	// changed reports whether a flag was set on the command line.
	changed func(name string) bool
}

func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVar(&f.config, "config", "", "config file name or path")
	fs.BoolVar(&f.quiet, "quiet", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show timing and runtime details")
	fs.BoolVar(&f.noColor, "no-color", false, "disable coloured output")
}

func addInputFlags(fs *flag.FlagSet, f *inputFlags) {
	fs.StringVarP(&f.dir, "input", "i", "", "input folder (default: current directory)")
	fs.StringVarP(&f.filter, "filter", "f", "pdf", "pdf, image, .ext or an exact file name")
	fs.BoolVarP(&f.recurse, "recurse", "r", false, "search subdirectories")
	fs.StringVarP(&f.sort, "sort", "s", config.SortName, "order: name, ctime, mtime, none")
}

func addEffectFlags(fs *flag.FlagSet, f *effectFlags) {
	fs.IntVarP(&f.quality, "quality", "q", config.DefaultQuality, "JPEG quality, 50-100 in steps of 5")
	fs.BoolVar(&f.noAskew, "no-askew", false, "keep pages straight")
	fs.BoolVarP(&f.monochrome, "monochrome", "b", false, "photocopier-style black and white")
	fs.BoolVarP(&f.blur, "blur", "l", false, "slightly out-of-focus pages")
	fs.BoolVar(&f.depthOfField, "depth-of-field", false, "blur one side of the page")
	fs.IntVarP(&f.noise, "noise", "n", 0, "salt-and-pepper noise level, 0-100")
	fs.Float64VarP(&f.contrast, "contrast", "c", 1.0, "contrast factor (1.0 = unchanged)")
	fs.Float64Var(&f.sharpness, "sharpness", 1.0, "sharpness factor (1.0 = unchanged)")
	fs.Float64Var(&f.brightness, "brightness", 1.0, "brightness factor (1.0 = unchanged)")
}

func addPasswordFlags(fs *flag.FlagSet, f *passwordFlags) {
	fs.StringVar(&f.password, "password", "", "password tried first for encrypted PDFs")
	fs.BoolVar(&f.noPrompt, "no-prompt", false, "never ask for passwords interactively")
}

// parseConvertFlags parses convert command flags and returns positional args.
// Usage goes to usageOut on parse errors and -h.
func parseConvertFlags(args []string, usageOut io.Writer) (*convertFlags, []string, error) {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(usageOut)
	f := &convertFlags{changed: fs.Changed}

	fs.StringVarP(&f.output, "output", "o", "", "output directory (default: beside each source)")
	fs.Uint64Var(&f.seed, "seed", 0, "random seed for reproducible output")

	addCommonFlags(fs, &f.common)
	addInputFlags(fs, &f.input)
	addEffectFlags(fs, &f.effects)
	addPasswordFlags(fs, &f.password)

	fs.Usage = func() { printConvertUsage(usageOut) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	return f, fs.Args(), nil
}

// mergeFlags applies flags that were set on the command line. CLI wins.
func mergeFlags(f *convertFlags, cfg *config.Config) {
	set := f.changed
	if set == nil {
		set = func(string) bool { return false }
	}

	if set("input") {
		cfg.Input.Dir = f.input.dir
	}
	if set("filter") {
		cfg.Input.Filter = f.input.filter
	}
	if set("recurse") {
		cfg.Input.Recurse = f.input.recurse
	}
	if set("sort") {
		cfg.Input.Sort = f.input.sort
	}
	if set("output") {
		cfg.Output.Dir = f.output
	}

	if set("quality") {
		cfg.Effects.Quality = f.effects.quality
	}
	if set("no-askew") {
		cfg.Effects.Askew = !f.effects.noAskew
	}
	if set("monochrome") {
		cfg.Effects.Monochrome = f.effects.monochrome
	}
	if set("blur") {
		cfg.Effects.Blur = f.effects.blur
	}
	if set("depth-of-field") {
		cfg.Effects.DepthOfField = f.effects.depthOfField
	}
	if set("noise") {
		cfg.Effects.Noise = f.effects.noise
	}
	if set("contrast") {
		cfg.Effects.Contrast = f.effects.contrast
	}
	if set("sharpness") {
		cfg.Effects.Sharpness = f.effects.sharpness
	}
	if set("brightness") {
		cfg.Effects.Brightness = f.effects.brightness
	}

	if set("password") {
		cfg.Password = f.password.password
	}
}
