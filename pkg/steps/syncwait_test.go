package steps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/systemstart/secrets-bootstrap/pkg/api"
	"github.com/systemstart/secrets-bootstrap/pkg/command/commandtest"
)

const syncPoll = "kubectl get externalsecret/postgres-secrets -n demo"

func conditionJSON(status, reason string) string {
	return `{"apiVersion":"external-secrets.io/v1beta1","kind":"ExternalSecret",` +
		`"metadata":{"name":"postgres-secrets","namespace":"demo"},` +
		`"status":{"conditions":[{"type":"Ready","status":"` + status + `","reason":"` + reason + `",` +
		`"message":"","lastTransitionTime":"2026-01-01T00:00:00Z"}]}}`
}

var (
	syncReady   = commandtest.Response{Stdout: conditionJSON("True", "SecretSynced")}
	syncPending = commandtest.Response{Stdout: conditionJSON("False", "SecretSyncedError")}
)

func testSyncCondition() SyncCondition {
	return SyncCondition{
		Kind:      "externalsecret",
		Name:      "postgres-secrets",
		Namespace: "demo",
		Condition: "Ready",
		Timeout:   200 * time.Millisecond,
		Interval:  10 * time.Millisecond,
	}
}

func TestNewSyncCondition(t *testing.T) {
	c := NewSyncCondition(api.DefaultSettings().Sync, "demo")
	if c.Resource() != "externalsecret/postgres-secrets" {
		t.Errorf("resource = %q", c.Resource())
	}
	if c.Namespace != "demo" || c.Condition != "Ready" || c.Timeout != 300*time.Second || c.Interval != 5*time.Second {
		t.Errorf("unexpected condition %+v", c)
	}
}

func TestWaitForSync_Ready(t *testing.T) {
	rec := commandtest.New().On(syncPoll, syncReady)

	if err := WaitForSync(context.Background(), rec, testSyncCondition()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Lines(); len(got) != 1 || got[0] != syncPoll+" --ignore-not-found -o json" {
		t.Errorf("commands = %q", got)
	}
}

func TestWaitForSync_EventuallyReady(t *testing.T) {
	rec := commandtest.New().On(syncPoll,
		commandtest.Response{}, // not created yet
		syncPending,
		syncReady,
	)

	if err := WaitForSync(context.Background(), rec, testSyncCondition()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := rec.Count(syncPoll); n != 3 {
		t.Errorf("polls = %d, want 3", n)
	}
}

func TestWaitForSync_Timeout(t *testing.T) {
	rec := commandtest.New().On(syncPoll, syncPending)

	err := WaitForSync(context.Background(), rec, testSyncCondition())
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout, got %v", err)
	}
	if errors.Is(err, ErrPollFailed) {
		t.Error("timeout must be distinguishable from poll failure")
	}

	var timeoutErr *WaitTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *WaitTimeoutError, got %T", err)
	}
	if timeoutErr.LastReason != "SecretSyncedError" {
		t.Errorf("last reason = %q", timeoutErr.LastReason)
	}
	if rec.Count(syncPoll) < 2 {
		t.Errorf("expected repeated polling, got %d polls", rec.Count(syncPoll))
	}
}

func TestWaitForSync_ResourceNeverAppears(t *testing.T) {
	rec := commandtest.New()

	err := WaitForSync(context.Background(), rec, testSyncCondition())
	var timeoutErr *WaitTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *WaitTimeoutError, got %v", err)
	}
	if timeoutErr.LastReason != "resource not found" {
		t.Errorf("last reason = %q", timeoutErr.LastReason)
	}
}

func TestWaitForSync_PollFailure(t *testing.T) {
	rec := commandtest.New().On(syncPoll, commandtest.Response{
		ExitCode: 1,
		Stderr:   "Unable to connect to the server: dial tcp 10.0.0.1:6443: i/o timeout",
	})

	err := WaitForSync(context.Background(), rec, testSyncCondition())
	if !errors.Is(err, ErrPollFailed) {
		t.Fatalf("expected ErrPollFailed, got %v", err)
	}
	if errors.Is(err, ErrWaitTimeout) {
		t.Error("poll failure must not match ErrWaitTimeout")
	}
	if n := rec.Count(syncPoll); n != 1 {
		t.Errorf("polls = %d, want 1", n)
	}
}

func TestWaitForSync_HungPollTimesOut(t *testing.T) {
	rec := commandtest.New().On(syncPoll, commandtest.Response{Hang: true})

	c := testSyncCondition()
	c.Timeout = 50 * time.Millisecond

	start := time.Now()
	err := WaitForSync(context.Background(), rec, c)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("wait was not bounded by its timeout: %s", elapsed)
	}
}

func TestWaitForSync_Cancelled(t *testing.T) {
	rec := commandtest.New().On(syncPoll, syncPending)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitForSync(ctx, rec, testSyncCondition())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaitStep_Run(t *testing.T) {
	rec := commandtest.New().On(syncPoll, syncReady)
	result, err := NewWaitStep().Run(context.Background(), testStepContext(rec))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Detail != "externalsecret/postgres-secrets Ready" {
		t.Errorf("detail = %q", result.Detail)
	}
}
