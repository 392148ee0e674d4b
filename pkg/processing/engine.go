package processing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/systemstart/secrets-bootstrap/pkg/api"
	"github.com/systemstart/secrets-bootstrap/pkg/command"
	"github.com/systemstart/secrets-bootstrap/pkg/config"
	"github.com/systemstart/secrets-bootstrap/pkg/steps"
)

// StepConfig is the name of the configuration step that precedes the pipeline.
const StepConfig = "config"

// Orchestrator runs the bootstrap pipeline strictly in order.
type Orchestrator struct {
	Executor   command.Executor
	Settings   *api.Settings
	LoadConfig func() (config.Config, error)
	Steps      []steps.Step
}

// New creates an Orchestrator for the standard pipeline, reading its
// configuration through lookup.
func New(executor command.Executor, settings *api.Settings, lookup config.LookupFunc) *Orchestrator {
	return &Orchestrator{
		Executor: executor,
		Settings: settings,
		LoadConfig: func() (config.Config, error) {
			return config.Load(lookup)
		},
		Steps: steps.NewPipeline(),
	}
}

// Run loads the configuration once, then executes every step. The first
// required failure stops the pipeline; later steps are skipped, except
// non-required ones once every mutating step has completed.
func (o *Orchestrator) Run(ctx context.Context) *Report {
	start := time.Now()
	report := &Report{}
	defer func() { report.Duration = time.Since(start) }()

	slog.Info("running step", "step", StepConfig)
	cfgStart := time.Now()
	cfg, err := o.LoadConfig()
	if err != nil {
		o.fail(report, StepReport{Name: StepConfig, Duration: time.Since(cfgStart)}, err)
		for _, s := range o.Steps {
			report.skip(s.Name())
		}
		return report
	}
	report.add(StepReport{
		Name:     StepConfig,
		Status:   StatusSucceeded,
		Detail:   "namespace " + cfg.Namespace,
		Duration: time.Since(cfgStart),
	})
	slog.Info("configuration loaded", "namespace", cfg.Namespace, "credentials", cfg.Credentials)

	sc := steps.StepContext{
		Executor: o.Executor,
		Config:   cfg,
		Settings: o.Settings,
	}

	for _, step := range o.Steps {
		if report.Err != nil && (step.Required() || !o.mutationsCommitted(report)) {
			slog.Debug("skipping step", "step", step.Name())
			report.skip(step.Name())
			continue
		}
		o.runStep(ctx, report, step, sc)
	}

	return report
}

func (o *Orchestrator) runStep(ctx context.Context, report *Report, step steps.Step, sc steps.StepContext) {
	slog.Info("running step", "step", step.Name(), "required", step.Required())
	stepStart := time.Now()

	result, err := step.Run(ctx, sc)
	sr := StepReport{Name: step.Name(), Duration: time.Since(stepStart)}
	if result != nil {
		sr.Detail = result.Detail
		if result.Verification != nil {
			report.Verification = result.Verification
		}
	}

	if err != nil {
		if step.Required() {
			o.fail(report, sr, err)
			return
		}
		sr.Status = StatusFailed
		sr.Err = err
		report.add(sr)
		slog.Warn("optional step failed", "step", step.Name(), "error", err)
		return
	}

	sr.Status = StatusSucceeded
	report.add(sr)
	slog.Info("step succeeded", "step", step.Name(), "detail", sr.Detail, "duration", sr.Duration)
}

func (o *Orchestrator) fail(report *Report, sr StepReport, err error) {
	sr.Status = StatusFailed
	sr.Err = err
	report.add(sr)
	report.FailedStep = sr.Name
	report.Err = fmt.Errorf("step %q failed: %w", sr.Name, err)
	slog.Error("step failed", "step", sr.Name, "error", err)
}

func (o *Orchestrator) mutationsCommitted(report *Report) bool {
	for _, s := range o.Steps {
		if !s.Mutating() {
			continue
		}
		sr, ok := report.Step(s.Name())
		if !ok || sr.Status != StatusSucceeded {
			return false
		}
	}
	return true
}
