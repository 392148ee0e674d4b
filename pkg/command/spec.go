// Package command runs external programs either directly with an argument
// vector or through a shell when piping between tools is unavoidable.
package command

import (
	"strings"

	"github.com/kballard/go-shellquote"
)

// Mode selects how a Spec is executed.
type Mode int

const (
	// ModeDirect runs Program with Args, no shell interpretation.
	ModeDirect Mode = iota
	// ModeShell hands Script to a shell.
	ModeShell
)

func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeShell:
		return "shell"
	default:
		return "unknown"
	}
}

// Spec is an immutable description of one external invocation. Build it with
// Direct or Shell.
type Spec struct {
	Mode    Mode
	Program string
	Args    []string
	Script  string
	Stdin   []byte
}

// Direct describes program invoked with args as-is.
func Direct(program string, args ...string) Spec {
	return Spec{Mode: ModeDirect, Program: program, Args: append([]string(nil), args...)}
}

// Shell describes a script interpreted by the shell. The caller owns quoting
// of every value interpolated into script; see Quote.
func Shell(script string) Spec {
	return Spec{Mode: ModeShell, Script: script}
}

// WithStdin returns a copy of s that feeds data to the process's stdin.
func (s Spec) WithStdin(data []byte) Spec {
	s.Stdin = append([]byte(nil), data...)
	return s
}

// Quote joins words into a single shell-safe string.
func Quote(words ...string) string {
	return shellquote.Join(words...)
}

// String renders s for display. Stdin is never included.
func (s Spec) String() string {
	if s.Mode == ModeShell {
		return s.Script
	}
	return strings.TrimSpace(Quote(append([]string{s.Program}, s.Args...)...))
}
