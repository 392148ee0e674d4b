package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Result holds the captured output of one invocation. Succeeded derives from
// the exit status only.
type Result struct {
	Stdout    []byte
	Stderr    []byte
	ExitCode  int
	Succeeded bool
}

// StdoutString returns stdout with surrounding whitespace trimmed.
func (r *Result) StdoutString() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(string(r.Stdout))
}

// Executor runs a Spec. On a non-zero exit it returns the populated Result
// together with an *ExitError.
type Executor interface {
	Execute(ctx context.Context, spec Spec) (*Result, error)
}

// SpawnError reports that the process could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("starting %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitError reports that the process started but exited with failure status.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Command, e.ExitCode, e.Stderr)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Stderr extracts captured stderr from an *ExitError anywhere in err's chain.
func Stderr(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Stderr
	}
	return ""
}
