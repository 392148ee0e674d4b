package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/siderolabs/go-retry/retry"
	"github.com/systemstart/secrets-bootstrap/pkg/api"
	"github.com/systemstart/secrets-bootstrap/pkg/command"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

var (
	// ErrWaitTimeout means the cluster answered but never reported the
	// condition within the timeout.
	ErrWaitTimeout = errors.New("timed out waiting for sync condition")
	// ErrPollFailed means the condition could not be checked at all.
	ErrPollFailed = errors.New("sync condition poll failed")
)

// SyncCondition describes what WaitForSync polls for.
type SyncCondition struct {
	Kind      string
	Name      string
	Namespace string
	Condition string
	Timeout   time.Duration
	Interval  time.Duration
}

// NewSyncCondition builds the condition for namespace from settings.
func NewSyncCondition(s api.SyncSettings, namespace string) SyncCondition {
	return SyncCondition{
		Kind:      s.Kind,
		Name:      s.Name,
		Namespace: namespace,
		Condition: s.Condition,
		Timeout:   s.Timeout,
		Interval:  s.Interval,
	}
}

// Resource is the kubectl resource reference, e.g. externalsecret/postgres-secrets.
func (c SyncCondition) Resource() string {
	return c.Kind + "/" + c.Name
}

// WaitTimeoutError matches ErrWaitTimeout with errors.Is.
type WaitTimeoutError struct {
	Resource   string
	Condition  string
	Elapsed    time.Duration
	LastReason string
}

func (e *WaitTimeoutError) Error() string {
	msg := fmt.Sprintf("%v: %s not %s after %s", ErrWaitTimeout, e.Resource, e.Condition, e.Elapsed.Round(time.Millisecond))
	if e.LastReason != "" {
		msg += " (last reason: " + e.LastReason + ")"
	}
	return msg
}

func (e *WaitTimeoutError) Unwrap() error { return ErrWaitTimeout }

// PollError matches ErrPollFailed with errors.Is.
type PollError struct {
	Resource string
	Stderr   string
	Err      error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("%v for %s: %s", ErrPollFailed, e.Resource, failureDetail(e.Stderr, e.Err))
}

func (e *PollError) Unwrap() []error { return []error{ErrPollFailed, e.Err} }

// conditionedResource is the part of any status-bearing object we read.
type conditionedResource struct {
	Metadata metav1.ObjectMeta `json:"metadata"`
	Status   struct {
		Conditions []metav1.Condition `json:"conditions"`
	} `json:"status"`
}

type observation struct {
	present bool
	ready   bool
	reason  string
}

// WaitForSync polls the resource every Interval until its condition is True,
// the Timeout elapses, or a poll itself fails. The timeout also bounds every
// in-flight poll.
func WaitForSync(ctx context.Context, executor command.Executor, c SyncCondition) error {
	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var (
		pollErr error
		last    observation
		polls   int
	)

	err := retry.Constant(c.Timeout, retry.WithUnits(c.Interval)).
		RetryWithContext(waitCtx, func(ctx context.Context) error {
			polls++
			obs, err := pollCondition(ctx, executor, c)
			if err != nil {
				if waitCtx.Err() != nil {
					return retry.ExpectedError(err)
				}
				pollErr = err
				return err
			}

			last = obs
			if obs.ready {
				return nil
			}
			slog.Debug("sync condition pending", "resource", c.Resource(), "present", obs.present, "reason", obs.reason)
			return retry.ExpectedError(fmt.Errorf("%s not yet %s", c.Resource(), c.Condition))
		})

	elapsed := time.Since(start)

	switch {
	case pollErr != nil:
		return &PollError{Resource: c.Resource(), Stderr: command.Stderr(pollErr), Err: pollErr}
	case err == nil:
		slog.Info("sync condition met", "resource", c.Resource(), "condition", c.Condition, "elapsed", elapsed, "polls", polls)
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("waiting for %s: %w", c.Resource(), ctx.Err())
	default:
		reason := last.reason
		if !last.present {
			reason = "resource not found"
		}
		return &WaitTimeoutError{Resource: c.Resource(), Condition: c.Condition, Elapsed: elapsed, LastReason: reason}
	}
}

func pollCondition(ctx context.Context, executor command.Executor, c SyncCondition) (observation, error) {
	result, err := executor.Execute(ctx, command.Direct(
		"kubectl", "get", c.Resource(), "-n", c.Namespace, "--ignore-not-found", "-o", "json"))
	if err != nil {
		return observation{}, err
	}
	if len(result.StdoutString()) == 0 {
		return observation{}, nil
	}

	var obj conditionedResource
	if err := yaml.Unmarshal(result.Stdout, &obj); err != nil {
		return observation{}, fmt.Errorf("decoding %s: %w", c.Resource(), err)
	}

	obs := observation{present: true}
	if cond := meta.FindStatusCondition(obj.Status.Conditions, c.Condition); cond != nil {
		obs.ready = cond.Status == metav1.ConditionTrue
		obs.reason = cond.Reason
	}
	return obs, nil
}

type waitStep struct{}

// NewWaitStep creates the sync condition step.
func NewWaitStep() Step { return waitStep{} }

func (waitStep) Name() string   { return StepWait }
func (waitStep) Required() bool { return true }
func (waitStep) Mutating() bool { return false }

func (waitStep) Run(ctx context.Context, sc StepContext) (*StepResult, error) {
	c := NewSyncCondition(sc.Settings.Sync, sc.Config.Namespace)
	slog.Info("waiting for secrets synchronization", "resource", c.Resource(), "condition", c.Condition, "timeout", c.Timeout)
	if err := WaitForSync(ctx, sc.Executor, c); err != nil {
		return nil, err
	}
	return &StepResult{Detail: fmt.Sprintf("%s %s", c.Resource(), c.Condition)}, nil
}
