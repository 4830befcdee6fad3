package toolchain

import (
	"errors"
	"io"
	"os/exec"
)

// Runner starts an executable and blocks until it exits
type Runner interface {
	// Run executes exe with a single argument in dir, sending stdout to out.
	// exitCode is -1 when the process could not be started.
	Run(exe, arg, dir string, out io.Writer) (exitCode int, err error)
}

// ExecRunner runs real processes via os/exec.
// No timeout and no cancellation: a started stage always runs to completion.
type ExecRunner struct{}

// Run implements Runner
func (ExecRunner) Run(exe, arg, dir string, out io.Writer) (int, error) {
	cmd := exec.Command(exe, arg)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), err
	}
	return -1, err
}
