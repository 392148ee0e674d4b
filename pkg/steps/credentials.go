package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/systemstart/secrets-bootstrap/pkg/api"
	"github.com/systemstart/secrets-bootstrap/pkg/command"
	"github.com/systemstart/secrets-bootstrap/pkg/config"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

var (
	ErrSecretApplyFailed = errors.New("credential secret apply failed")
	ErrLabelApplyFailed  = errors.New("credential secret label failed")
)

// ProvisionError matches ErrSecretApplyFailed or ErrLabelApplyFailed with
// errors.Is and carries kubectl's stderr.
type ProvisionError struct {
	Kind   error
	Secret string
	Stderr string
	Err    error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("%v for %s: %s", e.Kind, e.Secret, failureDetail(e.Stderr, e.Err))
}

func (e *ProvisionError) Unwrap() []error { return []error{e.Kind, e.Err} }

// SecretManifest renders the credential Secret. Identical input yields
// identical bytes, so re-applying it is a no-op.
func SecretManifest(creds config.Credentials, namespace string, c api.CredentialSettings) ([]byte, error) {
	secret := corev1.Secret{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      c.SecretName,
			Namespace: namespace,
		},
		Type: corev1.SecretTypeOpaque,
		Data: map[string][]byte{
			c.AccessKeyField: []byte(creds.AccessKey),
			c.SecretKeyField: []byte(creds.SecretKey),
		},
	}
	return yaml.Marshal(secret)
}

// ProvisionCredentials applies the credential Secret through stdin, so the
// key material never appears in a process argument list, then labels it for
// the webhook provider with --overwrite.
func ProvisionCredentials(ctx context.Context, executor command.Executor, creds config.Credentials, namespace string, c api.CredentialSettings) error {
	manifest, err := SecretManifest(creds, namespace, c)
	if err != nil {
		return &ProvisionError{Kind: ErrSecretApplyFailed, Secret: c.SecretName, Err: fmt.Errorf("rendering secret: %w", err)}
	}

	slog.Info("applying credential secret", "target", c.SecretName, "namespace", namespace, "credentials", creds)

	apply := command.Direct("kubectl", "apply", "-f", "-").WithStdin(manifest)
	result, err := executor.Execute(ctx, apply)
	if err != nil {
		return &ProvisionError{Kind: ErrSecretApplyFailed, Secret: c.SecretName, Stderr: command.Stderr(err), Err: err}
	}
	slog.Debug("kubectl apply", "output", result.StdoutString())

	args := append([]string{"label", "secret", c.SecretName, "-n", namespace}, sortedPairs(c.Labels)...)
	args = append(args, "--overwrite")
	if _, err := executor.Execute(ctx, command.Direct("kubectl", args...)); err != nil {
		return &ProvisionError{Kind: ErrLabelApplyFailed, Secret: c.SecretName, Stderr: command.Stderr(err), Err: err}
	}

	slog.Info("credential secret labelled", "target", c.SecretName, "labels", sortedPairs(c.Labels))
	return nil
}

type provisionStep struct{}

// NewProvisionStep creates the credential secret step.
func NewProvisionStep() Step { return provisionStep{} }

func (provisionStep) Name() string   { return StepProvision }
func (provisionStep) Required() bool { return true }
func (provisionStep) Mutating() bool { return true }

func (provisionStep) Run(ctx context.Context, sc StepContext) (*StepResult, error) {
	c := sc.Settings.Credentials
	if err := ProvisionCredentials(ctx, sc.Commands(), sc.Config.Credentials, sc.Config.Namespace, c); err != nil {
		return nil, err
	}
	return &StepResult{Detail: fmt.Sprintf("secret/%s applied", c.SecretName)}, nil
}
