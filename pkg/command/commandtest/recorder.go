// Package commandtest provides a scripted command.Executor that records every
// invocation for assertions.
package commandtest

import (
	"context"
	"strings"
	"sync"

	"github.com/systemstart/secrets-bootstrap/pkg/command"
)

// Response is the canned outcome of a matched invocation.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// SpawnErr makes the invocation fail as if the program could not start.
	SpawnErr error
	// Hang blocks until the context is done, then fails like a killed process.
	Hang bool
}

type rule struct {
	prefix    string
	responses []Response
	served    int
}

func (r *rule) next() Response {
	i := r.served
	if i >= len(r.responses) {
		i = len(r.responses) - 1
	}
	r.served++
	return r.responses[i]
}

// Recorder is a command.Executor double. Unmatched invocations succeed with
// empty output.
type Recorder struct {
	mu    sync.Mutex
	rules []*rule
	calls []command.Spec
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{}
}

// On registers responses for invocations whose Line starts with prefix.
// Responses are served in order and the last one repeats. Rules registered
// later take precedence.
func (r *Recorder) On(prefix string, responses ...Response) *Recorder {
	if len(responses) == 0 {
		responses = []Response{{}}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, &rule{prefix: prefix, responses: responses})
	return r
}

// Line is the matching key of spec: program and args joined by spaces, or
// the script for shell specs.
func Line(spec command.Spec) string {
	if spec.Mode == command.ModeShell {
		return spec.Script
	}
	return strings.Join(append([]string{spec.Program}, spec.Args...), " ")
}

func (r *Recorder) Execute(ctx context.Context, spec command.Spec) (*command.Result, error) {
	resp := r.record(spec)
	line := Line(spec)

	if resp.Hang {
		<-ctx.Done()
		return &command.Result{ExitCode: -1}, &command.ExitError{
			Command:  line,
			ExitCode: -1,
			Stderr:   "signal: killed",
			Err:      ctx.Err(),
		}
	}
	if resp.SpawnErr != nil {
		return &command.Result{ExitCode: -1}, &command.SpawnError{Command: line, Err: resp.SpawnErr}
	}

	result := &command.Result{
		Stdout:   []byte(resp.Stdout),
		Stderr:   []byte(resp.Stderr),
		ExitCode: resp.ExitCode,
	}
	if resp.ExitCode != 0 {
		return result, &command.ExitError{Command: line, ExitCode: resp.ExitCode, Stderr: resp.Stderr}
	}
	result.Succeeded = true
	return result, nil
}

func (r *Recorder) record(spec command.Spec) Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, spec)

	line := Line(spec)
	for i := len(r.rules) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, r.rules[i].prefix) {
			return r.rules[i].next()
		}
	}
	return Response{}
}

// Calls returns every recorded spec in invocation order.
func (r *Recorder) Calls() []command.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]command.Spec(nil), r.calls...)
}

// Lines returns the Line of every recorded spec.
func (r *Recorder) Lines() []string {
	calls := r.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = Line(c)
	}
	return lines
}

// Count returns how many recorded invocations start with prefix.
func (r *Recorder) Count(prefix string) int {
	n := 0
	for _, line := range r.Lines() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

// Called reports whether any invocation starts with prefix.
func (r *Recorder) Called(prefix string) bool {
	return r.Count(prefix) > 0
}
