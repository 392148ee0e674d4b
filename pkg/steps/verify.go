package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/systemstart/secrets-bootstrap/pkg/api"
	"github.com/systemstart/secrets-bootstrap/pkg/command"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	"sigs.k8s.io/yaml"
)

// ResourceState is the observed sync state of one listed resource.
type ResourceState struct {
	Name    string
	Ready   bool
	Reason  string
	Message string
}

// SecretKey describes one data entry of the target secret. The value itself
// is never read into the report.
type SecretKey struct {
	Name   string
	Length int
}

// SecretSummary is what the verifier found about the synchronized secret.
type SecretSummary struct {
	Name    string
	Present bool
	Listing string
	Keys    []SecretKey
}

// VerificationReport is the best-effort final state of the namespace.
// Problems lists everything expected but not found.
type VerificationReport struct {
	Namespace string
	ListKind  string
	Resources []ResourceState
	Secret    SecretSummary
	Describe  string
	Problems  []string
}

// Healthy reports whether verification found nothing missing.
func (r *VerificationReport) Healthy() bool {
	return len(r.Problems) == 0
}

func (r *VerificationReport) problem(format string, args ...any) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

// Log writes the report as structured records.
func (r *VerificationReport) Log(logger *slog.Logger) {
	for _, res := range r.Resources {
		logger.Info("verified resource", "kind", r.ListKind, "name", res.Name, "ready", res.Ready, "reason", res.Reason)
	}
	keys := make([]string, 0, len(r.Secret.Keys))
	for _, k := range r.Secret.Keys {
		keys = append(keys, fmt.Sprintf("%s(%d)", k.Name, k.Length))
	}
	logger.Info("verified target", "name", r.Secret.Name, "present", r.Secret.Present, "keys", keys)
	for _, p := range r.Problems {
		logger.Warn("verification finding", "problem", p)
	}
}

// Verify queries the namespace for the listed resources, the target secret
// and a description of the sync resource. It never fails; every query error,
// including a query exceeding the command timeout, becomes a Problems entry.
func Verify(ctx context.Context, executor command.Executor, namespace string, s *api.Settings) *VerificationReport {
	executor = command.WithTimeout(executor, s.CommandTimeout)
	report := &VerificationReport{
		Namespace: namespace,
		ListKind:  s.Verify.ListKind,
		Secret:    SecretSummary{Name: s.Verify.TargetSecret},
	}

	verifyResources(ctx, executor, report, s.Sync.Condition)
	verifySecretListing(ctx, executor, report)
	verifySecret(ctx, executor, report)

	c := NewSyncCondition(s.Sync, namespace)
	result, err := executor.Execute(ctx, command.Direct("kubectl", "describe", c.Resource(), "-n", namespace))
	if err != nil {
		report.problem("describe %s: %s", c.Resource(), errDetail(err))
	} else {
		report.Describe = string(result.Stdout)
	}

	return report
}

func verifyResources(ctx context.Context, executor command.Executor, report *VerificationReport, condition string) {
	result, err := executor.Execute(ctx, command.Direct(
		"kubectl", "get", report.ListKind, "-n", report.Namespace, "-o", "json"))
	if err != nil {
		report.problem("listing %s: %s", report.ListKind, errDetail(err))
		return
	}

	var list struct {
		Items []conditionedResource `json:"items"`
	}
	if err := yaml.Unmarshal(result.Stdout, &list); err != nil {
		report.problem("decoding %s list: %v", report.ListKind, err)
		return
	}

	if len(list.Items) == 0 {
		report.problem("no %s found in namespace %s", report.ListKind, report.Namespace)
		return
	}

	for _, item := range list.Items {
		state := ResourceState{
			Name:  item.Metadata.Name,
			Ready: meta.IsStatusConditionTrue(item.Status.Conditions, condition),
		}
		if cond := meta.FindStatusCondition(item.Status.Conditions, condition); cond != nil {
			state.Reason = cond.Reason
			state.Message = cond.Message
		}
		if !state.Ready {
			report.problem("%s %s is not %s", report.ListKind, state.Name, condition)
		}
		report.Resources = append(report.Resources, state)
	}
}

// verifySecretListing reproduces `kubectl get secrets | grep <name>`, the one
// place where piping between tools is wanted. Every value is shell-quoted.
func verifySecretListing(ctx context.Context, executor command.Executor, report *VerificationReport) {
	script := command.Quote("kubectl", "get", "secrets", "-n", report.Namespace) +
		" | " + command.Quote("grep", "-F", "--", report.Secret.Name)

	result, err := executor.Execute(ctx, command.Shell(script))
	if err != nil {
		var exitErr *command.ExitError
		// grep exits 1 when nothing matched; verifySecret reports the absence.
		if errors.As(err, &exitErr) && exitErr.ExitCode == 1 {
			return
		}
		report.problem("listing secrets: %s", errDetail(err))
		return
	}
	report.Secret.Listing = result.StdoutString()
}

func verifySecret(ctx context.Context, executor command.Executor, report *VerificationReport) {
	result, err := executor.Execute(ctx, command.Direct(
		"kubectl", "get", "secret", report.Secret.Name, "-n", report.Namespace, "--ignore-not-found", "-o", "json"))
	if err != nil {
		report.problem("reading secret %s: %s", report.Secret.Name, errDetail(err))
		return
	}
	if result.StdoutString() == "" {
		report.problem("secret %s not found in namespace %s", report.Secret.Name, report.Namespace)
		return
	}

	var secret corev1.Secret
	if err := yaml.Unmarshal(result.Stdout, &secret); err != nil {
		report.problem("decoding secret %s: %v", report.Secret.Name, err)
		return
	}

	report.Secret.Present = true
	for name, value := range secret.Data {
		report.Secret.Keys = append(report.Secret.Keys, SecretKey{Name: name, Length: len(value)})
	}
	sort.Slice(report.Secret.Keys, func(i, j int) bool {
		return report.Secret.Keys[i].Name < report.Secret.Keys[j].Name
	})
	if len(report.Secret.Keys) == 0 {
		report.problem("secret %s has no data", report.Secret.Name)
	}
}

func errDetail(err error) string {
	return failureDetail(command.Stderr(err), err)
}

type verifyStep struct{}

// NewVerifyStep creates the non-fatal verification step.
func NewVerifyStep() Step { return verifyStep{} }

func (verifyStep) Name() string   { return StepVerify }
func (verifyStep) Required() bool { return false }
func (verifyStep) Mutating() bool { return false }

func (verifyStep) Run(ctx context.Context, sc StepContext) (*StepResult, error) {
	report := Verify(ctx, sc.Executor, sc.Config.Namespace, sc.Settings)
	detail := "no problems found"
	if !report.Healthy() {
		detail = fmt.Sprintf("%d problem(s) found", len(report.Problems))
	}
	return &StepResult{Detail: detail, Verification: report}, nil
}
