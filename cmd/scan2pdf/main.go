package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	os.Exit(runMain(os.Args, DefaultEnv()))
}

// runMain dispatches the command and returns the process exit code.
// A first argument that is not a command runs convert.
func runMain(args []string, env *Environment) int {
	var rest []string
	if len(args) > 1 {
		rest = args[1:]
	}

	cmd := "convert"
	if len(rest) > 0 && isCommand(rest[0]) {
		cmd, rest = rest[0], rest[1:]
	}

	switch cmd {
	case "version":
		fmt.Fprintf(env.Stdout, "go-scan2pdf %s\n", Version)
		return ExitSuccess
	case "help":
		return runHelp(rest, env)
	case "doctor":
		return runDoctorCmd(rest, env)
	}

	flags, positional, err := parseConvertFlags(rest, env.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintln(env.Stderr, err)
		return ExitUsage
	}

	configureMaxProcs(flags.common.verbose, env.Stderr)

	ctx, stop := notifyContext(context.Background())
	defer stop()

	if err := runConvert(ctx, positional, flags, env); err != nil {
		fmt.Fprintf(env.Stderr, "error: %v\n", err)
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// isCommand reports whether s names a subcommand.
func isCommand(s string) bool {
	switch s {
	case "convert", "version", "help", "doctor":
		return true
	}
	return false
}

// configureMaxProcs sets GOMAXPROCS from the container CPU quota.
// Errors are ignored: maxprocs.Set only fails if GOMAXPROCS is invalid,
// in which case Go runtime defaults apply.
func configureMaxProcs(verbose bool, w io.Writer) {
	logf := func(string, ...any) {}
	if verbose {
		logf = func(format string, args ...any) {
			fmt.Fprintf(w, format+"\n", args...)
		}
	}
	_, _ = maxprocs.Set(maxprocs.Logger(logf))
}
