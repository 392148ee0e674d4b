package processing

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/systemstart/secrets-bootstrap/pkg/steps"
)

func TestReport_Step(t *testing.T) {
	r := &Report{}
	r.add(StepReport{Name: "a", Status: StatusSucceeded})
	r.skip("b")

	if sr, ok := r.Step("b"); !ok || sr.Status != StatusSkipped {
		t.Errorf("Step(b) = %+v, %v", sr, ok)
	}
	if _, ok := r.Step("missing"); ok {
		t.Error("unexpected step found")
	}
	if !r.Succeeded() {
		t.Error("report without error should succeed")
	}
}

func TestReport_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := &Report{
		Steps: []StepReport{
			{Name: StepConfig, Status: StatusSucceeded, Detail: "namespace demo", Duration: time.Millisecond},
			{Name: steps.StepWait, Status: StatusFailed, Err: errors.New("timed out")},
			{Name: steps.StepVerify, Status: StatusSucceeded},
		},
		FailedStep: steps.StepWait,
		Err:        errors.New(`step "wait-for-sync" failed: timed out`),
		Verification: &steps.VerificationReport{
			ListKind: "externalsecrets",
			Secret:   steps.SecretSummary{Name: "postgres-secrets", Keys: []steps.SecretKey{{Name: "POSTGRES_PASSWORD", Length: 12}}},
			Problems: []string{"secret postgres-secrets not found in namespace demo"},
		},
	}
	r.Log(logger)

	out := buf.String()
	for _, want := range []string{
		"step=config status=succeeded",
		"step=wait-for-sync status=failed",
		"POSTGRES_PASSWORD(12)",
		"verification finding",
		"bootstrap failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
