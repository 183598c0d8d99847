package scan2pdf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/term"
)

// ErrNoTerminal is returned by TerminalPrompt when input is not a terminal.
var ErrNoTerminal = errors.New("password prompt requires a terminal")

// CredentialSource supplies passwords for encrypted documents.
type CredentialSource interface {
	// Password asks for the password of path. attempt starts at 1.
	// An empty answer means the document should be skipped.
	Password(path string, attempt int) (string, error)
}

// PromptFunc adapts a function to CredentialSource.
type PromptFunc func(path string, attempt int) (string, error)

// Password implements CredentialSource.
func (f PromptFunc) Password(path string, attempt int) (string, error) {
	return f(path, attempt)
}

// NoPrompt never supplies a password, so encrypted documents that the
// supplied password cannot open are skipped.
var NoPrompt CredentialSource = PromptFunc(func(string, int) (string, error) {
	return "", nil
})

// Passwords answers with a fixed list, one entry per attempt, then gives up.
type Passwords []string

// Password implements CredentialSource.
func (p Passwords) Password(_ string, attempt int) (string, error) {
	if attempt < 1 || attempt > len(p) {
		return "", nil
	}
	return p[attempt-1], nil
}

// TerminalPrompt reads passwords from a terminal without echo.
type TerminalPrompt struct {
	In          *os.File  // defaults to os.Stdin
	Out         io.Writer // defaults to os.Stderr
	MaxAttempts int       // shown in the prompt when > 0
}

// Password implements CredentialSource.
func (p *TerminalPrompt) Password(path string, attempt int) (string, error) {
	in := p.In
	if in == nil {
		in = os.Stdin
	}
	out := p.Out
	if out == nil {
		out = os.Stderr
	}

	fd := int(in.Fd()) // #nosec G115 -- file descriptors fit in int
	if !term.IsTerminal(fd) {
		return "", ErrNoTerminal
	}

	if p.MaxAttempts > 0 {
		fmt.Fprintf(out, "Password for %s (attempt %d/%d, empty to skip): ", filepath.Base(path), attempt, p.MaxAttempts)
	} else {
		fmt.Fprintf(out, "Password for %s (empty to skip): ", filepath.Base(path))
	}
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

// IsInteractive reports whether f is a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) // #nosec G115 -- file descriptors fit in int
}
