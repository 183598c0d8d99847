package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: scan2pdf [command] [flags] [input]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  convert    Make PDFs and images look scanned (default)")
	fmt.Fprintln(w, "  doctor     Check the PDF renderer and environment")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'scan2pdf help <command>' for details on a specific command.")
}

// printConvertUsage prints usage for the convert command.
func printConvertUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: scan2pdf convert [input] [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Convert PDFs into scanned-looking PDFs, or merge images into one.")
	fmt.Fprintln(w, "Each PDF becomes {name}_output.pdf; all images become one document")
	fmt.Fprintln(w, "named after the first image.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  input    Input folder (same as --input)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input/Output:")
	fmt.Fprintln(w, "  -i, --input <dir>         Input folder (default: current directory)")
	fmt.Fprintln(w, "  -f, --filter <s>          pdf, image, .ext or exact file name (default: pdf)")
	fmt.Fprintln(w, "  -r, --recurse             Search subdirectories")
	fmt.Fprintln(w, "  -s, --sort <s>            name, ctime, mtime, none (default: name)")
	fmt.Fprintln(w, "  -o, --output <dir>        Output folder (default: beside each source)")
	fmt.Fprintln(w, "      --config <name>       Config file name or path")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Effects:")
	fmt.Fprintln(w, "  -q, --quality <n>         JPEG quality, 50-100 in steps of 5 (default: 95)")
	fmt.Fprintln(w, "      --no-askew            Keep pages straight")
	fmt.Fprintln(w, "  -b, --monochrome          Photocopier-style black and white")
	fmt.Fprintln(w, "  -l, --blur                Slightly out-of-focus pages")
	fmt.Fprintln(w, "      --depth-of-field      Blur one side of the page")
	fmt.Fprintln(w, "  -n, --noise <n>           Salt-and-pepper noise, 0-100 (default: 0)")
	fmt.Fprintln(w, "  -c, --contrast <f>        Contrast factor (default: 1.0)")
	fmt.Fprintln(w, "      --sharpness <f>       Sharpness factor (default: 1.0)")
	fmt.Fprintln(w, "      --brightness <f>      Brightness factor (default: 1.0)")
	fmt.Fprintln(w, "      --seed <n>            Random seed for reproducible output")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Encrypted PDFs:")
	fmt.Fprintln(w, "      --password <s>        Password tried first for every document")
	fmt.Fprintln(w, "      --no-prompt           Never ask interactively; skip locked documents")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "      --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Show detailed timing")
	fmt.Fprintln(w, "      --no-color            Disable coloured output (or set NO_COLOR)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  SCAN2PDF_CONFIG, SCAN2PDF_INPUT_DIR, SCAN2PDF_OUTPUT_DIR,")
	fmt.Fprintln(w, "  SCAN2PDF_QUALITY, SCAN2PDF_PASSWORD, SCAN2PDF_SORT")
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: scan2pdf doctor [--json]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check that the PDF renderer starts, the temp directory is writable,")
	fmt.Fprintln(w, "and report container, CI and terminal detection.")
}

// runHelp prints help for a specific command and returns an exit code.
func runHelp(args []string, env *Environment) int {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return ExitSuccess
	}

	switch args[0] {
	case "convert":
		printConvertUsage(env.Stdout)
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: scan2pdf version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: scan2pdf help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
		return ExitUsage
	}
	return ExitSuccess
}
