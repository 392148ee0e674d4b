package command

import (
	"context"
	"time"
)

type boundedExecutor struct {
	next    Executor
	timeout time.Duration
}

// WithTimeout returns an Executor that gives every invocation its own
// deadline of d on top of the caller's context. A non-positive d returns
// executor unchanged.
func WithTimeout(executor Executor, d time.Duration) Executor {
	if d <= 0 {
		return executor
	}
	return boundedExecutor{next: executor, timeout: d}
}

func (b boundedExecutor) Execute(ctx context.Context, spec Spec) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.Execute(ctx, spec)
}
