package processing

import (
	"log/slog"
	"time"

	"github.com/systemstart/secrets-bootstrap/pkg/steps"
)

// StepStatus is the outcome of one pipeline step.
type StepStatus string

const (
	StatusSucceeded StepStatus = "succeeded"
	StatusFailed    StepStatus = "failed"
	StatusSkipped   StepStatus = "skipped"
)

// StepReport records what happened to one step.
type StepReport struct {
	Name     string
	Status   StepStatus
	Detail   string
	Duration time.Duration
	Err      error
}

// Report is the outcome of a bootstrap run. Err is set exactly when a
// required step failed, and FailedStep names it.
type Report struct {
	Steps        []StepReport
	FailedStep   string
	Err          error
	Verification *steps.VerificationReport
	Duration     time.Duration
}

// Succeeded reports whether every required step completed.
func (r *Report) Succeeded() bool {
	return r.Err == nil
}

// Step returns the report of the named step.
func (r *Report) Step(name string) (StepReport, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepReport{}, false
}

func (r *Report) add(s StepReport) {
	r.Steps = append(r.Steps, s)
}

func (r *Report) skip(name string) {
	r.add(StepReport{Name: name, Status: StatusSkipped})
}

// Log writes a one-line summary per step followed by the verification
// findings, if any.
func (r *Report) Log(logger *slog.Logger) {
	for _, s := range r.Steps {
		attrs := []any{"step", s.Name, "status", s.Status, "duration", s.Duration.Round(time.Millisecond)}
		if s.Detail != "" {
			attrs = append(attrs, "detail", s.Detail)
		}
		switch s.Status {
		case StatusFailed:
			logger.Error("step summary", append(attrs, "error", s.Err)...)
		case StatusSkipped:
			logger.Warn("step summary", attrs...)
		default:
			logger.Info("step summary", attrs...)
		}
	}

	if r.Verification != nil {
		r.Verification.Log(logger)
	}

	if r.Succeeded() {
		logger.Info("bootstrap succeeded", "duration", r.Duration.Round(time.Millisecond))
	} else {
		logger.Error("bootstrap failed", "step", r.FailedStep, "duration", r.Duration.Round(time.Millisecond))
	}
}
