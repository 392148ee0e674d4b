package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultShell interprets ModeShell specs.
const DefaultShell = "sh"

// DefaultWaitDelay bounds how long Execute waits for output pipes to close
// after the context is done and the process has been killed.
const DefaultWaitDelay = time.Second

// Runner executes specs as local processes.
type Runner struct {
	// Shell interprets ModeShell scripts. Empty means DefaultShell.
	Shell string
	// Env, when non-nil, replaces the inherited process environment.
	Env []string
	// WaitDelay overrides DefaultWaitDelay when positive.
	WaitDelay time.Duration
}

// NewRunner returns a Runner using DefaultShell and the inherited environment.
func NewRunner() *Runner {
	return &Runner{Shell: DefaultShell}
}

func (r *Runner) Execute(ctx context.Context, spec Spec) (*Result, error) {
	cmd := r.build(ctx, spec)
	display := spec.String()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if spec.Stdin != nil {
		cmd.Stdin = bytes.NewReader(spec.Stdin)
	}

	slog.Debug("executing command", "mode", spec.Mode, "command", display, "stdinBytes", len(spec.Stdin))

	err := cmd.Run()
	result := &Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if err == nil {
		result.Succeeded = true
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		if cmd.ProcessState != nil {
			result.ExitCode = cmd.ProcessState.ExitCode()
		}
		slog.Debug("command cancelled", "command", display, "error", ctxErr)
		return result, &ExitError{
			Command:  display,
			ExitCode: result.ExitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      fmt.Errorf("%w: %w", ctxErr, err),
		}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		slog.Debug("command failed", "command", display, "exitCode", result.ExitCode)
		return result, &ExitError{
			Command:  display,
			ExitCode: result.ExitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}

	result.ExitCode = -1
	return result, &SpawnError{Command: display, Err: err}
}

func (r *Runner) build(ctx context.Context, spec Spec) *exec.Cmd {
	var cmd *exec.Cmd
	switch spec.Mode {
	case ModeShell:
		shell := r.Shell
		if shell == "" {
			shell = DefaultShell
		}
		cmd = exec.CommandContext(ctx, shell, "-c", spec.Script)
	default:
		cmd = exec.CommandContext(ctx, spec.Program, spec.Args...)
	}
	if r.Env != nil {
		cmd.Env = r.Env
	}
	cmd.WaitDelay = DefaultWaitDelay
	if r.WaitDelay > 0 {
		cmd.WaitDelay = r.WaitDelay
	}
	killProcessGroupOnCancel(cmd)
	return cmd
}
