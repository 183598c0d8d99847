package scan2pdf

import (
	"errors"
	"fmt"
)

// State is the position of a Resolver in its state machine.
type State int

// Resolver states.
const (
	StateUnresolved State = iota
	StateCandidateSupplied
	StateAwaitingInput
	StateAccepted
	StateAbandoned
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateCandidateSupplied:
		return "candidate-supplied"
	case StateAwaitingInput:
		return "awaiting-input"
	case StateAccepted:
		return "accepted"
	case StateAbandoned:
		return "abandoned"
	}
	return "unknown"
}

// Outcome is the result of the latest password attempt.
type Outcome int

// Attempt outcomes.
const (
	OutcomePending Outcome = iota
	OutcomeAccepted
	OutcomeRejected
	OutcomeAbandoned
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeAbandoned:
		return "abandoned"
	}
	return "unknown"
}

// PasswordAttempt records the interaction for one document.
type PasswordAttempt struct {
	Path     string
	Attempts int // interactive prompts shown
	Outcome  Outcome
	State    State
}

// Resolver finds a password that opens one document.
// It holds no state between documents; use a fresh Resolve call per document.
type Resolver struct {
	Supplied    string           // tried first, silently; "" probes for no encryption
	Source      CredentialSource // nil means NoPrompt
	MaxAttempts int              // interactive attempts; <= 0 means 3
}

// Resolve calls open with candidate passwords until one is accepted.
//
// open must return an error wrapping ErrWrongPassword when the password is
// rejected. Any other error is returned unchanged, since asking again
// cannot fix a broken file. On success the working password is returned.
// When the user gives an empty answer, the source fails, or the attempts
// run out, the error wraps ErrPasswordAbandoned.
func (r *Resolver) Resolve(path string, open func(password string) error) (string, *PasswordAttempt, error) {
	a := &PasswordAttempt{Path: path, State: StateUnresolved, Outcome: OutcomePending}

	if r.Supplied != "" {
		a.State = StateCandidateSupplied
	}
	err := open(r.Supplied)
	if err == nil {
		a.accept()
		return r.Supplied, a, nil
	}
	if !errors.Is(err, ErrWrongPassword) {
		return "", a, err
	}
	a.Outcome = OutcomeRejected

	src := r.Source
	if src == nil {
		src = NoPrompt
	}
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	for a.Attempts < maxAttempts {
		a.State = StateAwaitingInput
		a.Attempts++

		pw, err := src.Password(path, a.Attempts)
		if err != nil {
			a.abandon()
			return "", a, fmt.Errorf("%w: %s: %v", ErrPasswordAbandoned, path, err)
		}
		if pw == "" {
			a.abandon()
			return "", a, fmt.Errorf("%w: %s", ErrPasswordAbandoned, path)
		}

		err = open(pw)
		if err == nil {
			a.accept()
			return pw, a, nil
		}
		if !errors.Is(err, ErrWrongPassword) {
			return "", a, err
		}
		a.Outcome = OutcomeRejected
	}

	a.abandon()
	return "", a, fmt.Errorf("%w: %s: %d incorrect attempts", ErrPasswordAbandoned, path, a.Attempts)
}

func (a *PasswordAttempt) accept() {
	a.State = StateAccepted
	a.Outcome = OutcomeAccepted
}

func (a *PasswordAttempt) abandon() {
	a.State = StateAbandoned
	a.Outcome = OutcomeAbandoned
}
