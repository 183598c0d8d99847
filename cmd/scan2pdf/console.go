package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gookit/color"
)

// console writes user-facing lines with optional colour.
type console struct {
	stdout  io.Writer
	stderr  io.Writer
	color   bool
	quiet   bool
	verbose bool
}

func newConsole(env *Environment, f commonFlags) *console {
	return &console{
		stdout:  env.Stdout,
		stderr:  env.Stderr,
		color:   env.Color && !f.noColor,
		quiet:   f.quiet,
		verbose: f.verbose,
	}
}

func (c *console) paint(col color.Color, s string) string {
	if !c.color {
		return s
	}
	return col.Render(s)
}

// info prints a status line on stdout unless quiet.
func (c *console) info(col color.Color, format string, args ...any) {
	if c.quiet {
		return
	}
	fmt.Fprintln(c.stdout, c.paint(col, fmt.Sprintf(format, args...)))
}

// plain prints an uncoloured line on stdout unless quiet.
func (c *console) plain(format string, args ...any) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.stdout, format+"\n", args...)
}

// debug prints a line on stderr in verbose mode.
func (c *console) debug(format string, args ...any) {
	if !c.verbose {
		return
	}
	fmt.Fprintf(c.stderr, format+"\n", args...)
}

// warn prints a warning on stderr unless quiet.
func (c *console) warn(format string, args ...any) {
	if c.quiet {
		return
	}
	fmt.Fprintln(c.stderr, c.paint(color.Yellow, "warning: "+fmt.Sprintf(format, args...)))
}

// fail prints a failure on stderr, even when quiet.
func (c *console) fail(format string, args ...any) {
	fmt.Fprintln(c.stderr, c.paint(color.Red, fmt.Sprintf(format, args...)))
}

// libraryLog returns a writer for scanner progress.
// Complete lines starting with "warning: " go to stderr in yellow; other
// lines go to stdout. Quiet mode drops both.
func (c *console) libraryLog() io.Writer {
	return &lineRouter{c: c}
}

type lineRouter struct {
	mu  sync.Mutex
	c   *console
	buf bytes.Buffer
}

func (r *lineRouter) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf.Write(p)
	for {
		line, err := r.buf.ReadString('\n')
		if err != nil {
			// Keep the partial line for the next write.
			r.buf.Reset()
			r.buf.WriteString(line)
			break
		}
		r.route(strings.TrimSuffix(line, "\n"))
	}
	return len(p), nil
}

func (r *lineRouter) route(line string) {
	if msg, ok := strings.CutPrefix(line, "warning: "); ok {
		r.c.warn("%s", msg)
		return
	}
	r.c.plain("%s", line)
}

// whPerPage approximates the energy embodied in one printed A4 sheet.
const whPerPage = 50

// formatEnergy renders watt-hours as Wh, kWh or MWh.
func formatEnergy(wh int) string {
	switch {
	case wh < 1000:
		return fmt.Sprintf("%d Wh", wh)
	case wh < 1_000_000:
		return fmt.Sprintf("%.2f kWh", float64(wh)/1000)
	default:
		return fmt.Sprintf("%.2f MWh", float64(wh)/1_000_000)
	}
}

// energyMessage returns the savings line for pages, or "" for none.
func energyMessage(pages int) string {
	if pages <= 0 {
		return ""
	}
	return fmt.Sprintf("You just saved %s energy by not printing %d pages of paper!", formatEnergy(pages*whPerPage), pages)
}
