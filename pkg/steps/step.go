package steps

import (
	"context"

	"github.com/systemstart/secrets-bootstrap/pkg/api"
	"github.com/systemstart/secrets-bootstrap/pkg/command"
	"github.com/systemstart/secrets-bootstrap/pkg/config"
)

// StepContext provides the runtime context for a step. Config is resolved
// once before the first step and never changes afterwards.
type StepContext struct {
	Executor command.Executor
	Config   config.Config
	Settings *api.Settings
}

// Commands returns the executor with every invocation bounded by the
// configured command timeout.
func (sc StepContext) Commands() command.Executor {
	return command.WithTimeout(sc.Executor, sc.Settings.CommandTimeout)
}

// StepResult holds the outcome details of a step.
type StepResult struct {
	Detail       string
	Verification *VerificationReport // set by the verify step
}

// Step is the interface all pipeline steps implement.
type Step interface {
	Name() string
	// Required steps abort the pipeline on failure.
	Required() bool
	// Mutating steps change cluster state.
	Mutating() bool
	Run(ctx context.Context, sc StepContext) (*StepResult, error)
}
