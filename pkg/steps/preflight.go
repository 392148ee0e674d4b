package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/systemstart/secrets-bootstrap/pkg/command"
)

// ErrClusterUnreachable is returned when the read-only cluster check fails.
var ErrClusterUnreachable = errors.New("kubectl not configured or cluster unreachable")

// CheckCluster runs `kubectl cluster-info`. It never mutates the cluster.
func CheckCluster(ctx context.Context, executor command.Executor) error {
	result, err := executor.Execute(ctx, command.Direct("kubectl", "cluster-info"))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrClusterUnreachable, err)
	}
	slog.Debug("cluster reachable", "clusterInfo", firstLine(result.StdoutString()))
	return nil
}

type preflightStep struct{}

// NewPreflightStep creates the cluster reachability step.
func NewPreflightStep() Step { return preflightStep{} }

func (preflightStep) Name() string   { return StepPreflight }
func (preflightStep) Required() bool { return true }
func (preflightStep) Mutating() bool { return false }

func (preflightStep) Run(ctx context.Context, sc StepContext) (*StepResult, error) {
	if err := CheckCluster(ctx, sc.Commands()); err != nil {
		return nil, err
	}
	return &StepResult{Detail: "cluster reachable"}, nil
}
