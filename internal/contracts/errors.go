package contracts

import (
	"errors"
	"fmt"
)

// Error kinds of the gap-filling pipeline. Match with errors.Is.
var (
	// ErrConfiguration: insufficient drivers, unknown labels or invalid settings.
	// Fatal to the affected output only.
	ErrConfiguration = errors.New("configuration error")

	// ErrInsufficientData: guard skip. Not a failure; a sentinel record is appended.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrToolchainInvocation: expected artifact absent after the executable exited.
	ErrToolchainInvocation = errors.New("toolchain invocation failed")

	// ErrExhaustedWindow: autocomplete expansion covered the whole record
	// without reaching the threshold.
	ErrExhaustedWindow = errors.New("exhausted window")

	// ErrExitCodeMismatch: exit status disagrees with artifact presence.
	// Artifact presence still decides success.
	ErrExitCodeMismatch = errors.New("exit code disagrees with artifact")
)

// GapFillError carries an error kind with the output and window it concerns
type GapFillError struct {
	Kind   error
	Output string
	Window Window
	Err    error
}

// NewGapFillError creates a GapFillError
func NewGapFillError(kind error, output string, w Window, err error) *GapFillError {
	return &GapFillError{Kind: kind, Output: output, Window: w, Err: err}
}

func (e *GapFillError) Error() string {
	msg := fmt.Sprintf("%v: output %s, window %s", e.Kind, e.Output, e.Window)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *GapFillError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the pipeline error kind of err, or nil if it has none
func KindOf(err error) error {
	for _, kind := range []error{
		ErrConfiguration,
		ErrInsufficientData,
		ErrToolchainInvocation,
		ErrExhaustedWindow,
		ErrExitCodeMismatch,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
