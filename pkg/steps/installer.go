package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/systemstart/secrets-bootstrap/pkg/api"
	"github.com/systemstart/secrets-bootstrap/pkg/command"
	"gopkg.in/yaml.v3"
)

// InstallOutcome tells whether EnsureOperatorInstalled changed the cluster.
type InstallOutcome string

const (
	AlreadyPresent InstallOutcome = "already-present"
	Installed      InstallOutcome = "installed"
)

// helm's own --timeout bounds the install; the process gets this much longer
// before it is killed.
const installGrace = 30 * time.Second

var (
	ErrInstallFailed  = errors.New("operator install failed")
	ErrInstallTimeout = errors.New("operator install timed out")
)

// InstallError carries the failing stage and helm's stderr. It matches
// ErrInstallFailed or ErrInstallTimeout with errors.Is.
type InstallError struct {
	Kind   error
	Stage  string
	Stderr string
	Err    error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("%v during %s: %s", e.Kind, e.Stage, failureDetail(e.Stderr, e.Err))
}

func (e *InstallError) Unwrap() []error { return []error{e.Kind, e.Err} }

// EnsureOperatorInstalled installs the operator chart unless its marker
// namespace exists and the release reports deployed. The presence check always
// runs before anything is mutated. Every command except the install itself is
// bounded by commandTimeout; the install is bounded by o.Timeout.
func EnsureOperatorInstalled(ctx context.Context, executor command.Executor, o api.OperatorSettings, commandTimeout time.Duration) (InstallOutcome, error) {
	bounded := command.WithTimeout(executor, commandTimeout)

	present, err := operatorPresent(ctx, bounded, o)
	if err != nil {
		return "", err
	}
	if present {
		slog.Info("operator already installed", "release", o.Release, "namespace", o.Namespace)
		return AlreadyPresent, nil
	}

	slog.Info("installing operator", "chart", o.Chart, "release", o.Release, "namespace", o.Namespace)

	if _, err := bounded.Execute(ctx, command.Direct("helm", "repo", "add", o.RepoName, o.RepoURL)); err != nil {
		return "", installError(ErrInstallFailed, "helm repo add", err)
	}
	if _, err := bounded.Execute(ctx, command.Direct("helm", "repo", "update")); err != nil {
		return "", installError(ErrInstallFailed, "helm repo update", err)
	}

	installCtx, cancel := context.WithTimeout(ctx, o.Timeout+installGrace)
	defer cancel()

	if _, err := executor.Execute(installCtx, command.Direct("helm", upgradeArgs(o)...)); err != nil {
		if isInstallTimeout(installCtx, err) {
			return "", installError(ErrInstallTimeout, "helm upgrade --install", err)
		}
		return "", installError(ErrInstallFailed, "helm upgrade --install", err)
	}

	slog.Info("operator installed", "release", o.Release)
	return Installed, nil
}

func upgradeArgs(o api.OperatorSettings) []string {
	args := []string{
		"upgrade", "--install", o.Release, o.Chart,
		"--namespace", o.Namespace,
		"--create-namespace",
		"--wait",
		"--timeout=" + o.Timeout.String(),
	}
	if o.Version != "" {
		args = append(args, "--version", o.Version)
	}
	for _, pair := range sortedPairs(o.Set) {
		args = append(args, "--set", pair)
	}
	return args
}

// helmStatus is the subset of `helm status -o yaml` inspected for health.
type helmStatus struct {
	Info struct {
		Status string `yaml:"status"`
	} `yaml:"info"`
}

func operatorPresent(ctx context.Context, executor command.Executor, o api.OperatorSettings) (bool, error) {
	result, err := executor.Execute(ctx, command.Direct(
		"kubectl", "get", "namespace", o.Namespace, "--no-headers", "--ignore-not-found"))
	if err != nil {
		return false, installError(ErrInstallFailed, "operator detection", err)
	}
	if result.StdoutString() == "" {
		return false, nil
	}

	result, err = executor.Execute(ctx, command.Direct(
		"helm", "status", o.Release, "--namespace", o.Namespace, "--output", "yaml"))
	if err != nil {
		slog.Warn("operator namespace exists without a healthy release", "namespace", o.Namespace, "stderr", command.Stderr(err))
		return false, nil
	}

	var status helmStatus
	if err := yaml.Unmarshal(result.Stdout, &status); err != nil {
		slog.Warn("could not parse helm status", "release", o.Release, "error", err)
		return false, nil
	}
	if status.Info.Status != "deployed" {
		slog.Warn("operator release not deployed", "release", o.Release, "status", status.Info.Status)
		return false, nil
	}
	return true, nil
}

func isInstallTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	stderr := command.Stderr(err)
	return strings.Contains(stderr, "timed out waiting for the condition") ||
		strings.Contains(stderr, "context deadline exceeded")
}

func installError(kind error, stage string, err error) *InstallError {
	return &InstallError{Kind: kind, Stage: stage, Stderr: command.Stderr(err), Err: err}
}

type installStep struct{}

// NewInstallStep creates the operator installation step.
func NewInstallStep() Step { return installStep{} }

func (installStep) Name() string   { return StepInstall }
func (installStep) Required() bool { return true }
func (installStep) Mutating() bool { return true }

func (installStep) Run(ctx context.Context, sc StepContext) (*StepResult, error) {
	outcome, err := EnsureOperatorInstalled(ctx, sc.Executor, sc.Settings.Operator, sc.Settings.CommandTimeout)
	if err != nil {
		return nil, err
	}
	return &StepResult{Detail: string(outcome)}, nil
}
