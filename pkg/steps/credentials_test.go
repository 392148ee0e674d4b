package steps

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/systemstart/secrets-bootstrap/pkg/api"
	"github.com/systemstart/secrets-bootstrap/pkg/command/commandtest"
	"github.com/systemstart/secrets-bootstrap/pkg/config"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/yaml"
)

var testCreds = config.Credentials{AccessKey: testAccessKey, SecretKey: testSecretKey}

func TestSecretManifest(t *testing.T) {
	c := api.DefaultSettings().Credentials

	manifest, err := SecretManifest(testCreds, "demo", c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var secret corev1.Secret
	if err := yaml.Unmarshal(manifest, &secret); err != nil {
		t.Fatalf("manifest is not a valid secret: %v", err)
	}
	if secret.Kind != "Secret" || secret.Name != "scaleway-credentials" || secret.Namespace != "demo" {
		t.Errorf("unexpected identity: %s %s/%s", secret.Kind, secret.Namespace, secret.Name)
	}
	if secret.Type != corev1.SecretTypeOpaque {
		t.Errorf("type = %q", secret.Type)
	}
	if string(secret.Data["access-key"]) != testAccessKey {
		t.Errorf("access-key = %q", secret.Data["access-key"])
	}
	if string(secret.Data["secret-key"]) != testSecretKey {
		t.Errorf("secret-key = %q", secret.Data["secret-key"])
	}

	again, err := SecretManifest(testCreds, "demo", c)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(manifest, again) {
		t.Error("manifest rendering is not deterministic")
	}
}

func TestProvisionCredentials(t *testing.T) {
	rec := commandtest.New()
	c := api.DefaultSettings().Credentials

	if err := ProvisionCredentials(context.Background(), rec, testCreds, "demo", c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := rec.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 commands, got %v", rec.Lines())
	}
	if got := commandtest.Line(calls[0]); got != "kubectl apply -f -" {
		t.Errorf("apply command = %q", got)
	}
	want, _ := SecretManifest(testCreds, "demo", c)
	if !bytes.Equal(calls[0].Stdin, want) {
		t.Errorf("apply stdin:\n%s\nwant:\n%s", calls[0].Stdin, want)
	}
	if got := commandtest.Line(calls[1]); got != "kubectl label secret scaleway-credentials -n demo external-secrets.io/type=webhook --overwrite" {
		t.Errorf("label command = %q", got)
	}
}

func TestProvisionCredentials_Idempotent(t *testing.T) {
	rec := commandtest.New()
	c := api.DefaultSettings().Credentials

	for range 2 {
		if err := ProvisionCredentials(context.Background(), rec, testCreds, "demo", c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	calls := rec.Calls()
	if len(calls) != 4 {
		t.Fatalf("expected 4 commands, got %d", len(calls))
	}
	for i := range 2 {
		if commandtest.Line(calls[i]) != commandtest.Line(calls[i+2]) {
			t.Errorf("run 2 command %d differs: %q vs %q", i, commandtest.Line(calls[i]), commandtest.Line(calls[i+2]))
		}
		if !bytes.Equal(calls[i].Stdin, calls[i+2].Stdin) {
			t.Errorf("run 2 stdin %d differs", i)
		}
	}
}

func TestProvisionCredentials_KeysNeverInArguments(t *testing.T) {
	rec := commandtest.New()
	if err := ProvisionCredentials(context.Background(), rec, testCreds, "demo", api.DefaultSettings().Credentials); err != nil {
		t.Fatal(err)
	}
	for _, line := range rec.Lines() {
		if strings.Contains(line, testSecretKey) || strings.Contains(line, testAccessKey) {
			t.Errorf("credential leaked into command line %q", line)
		}
	}
}

func TestProvisionCredentials_Failures(t *testing.T) {
	tests := []struct {
		name        string
		prefix      string
		want        error
		labelCalled bool
	}{
		{"apply", "kubectl apply", ErrSecretApplyFailed, false},
		{"label", "kubectl label", ErrLabelApplyFailed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := commandtest.New().On(tt.prefix, commandtest.Response{
				ExitCode: 1,
				Stderr:   `Error from server (Forbidden): secrets is forbidden`,
			})

			err := ProvisionCredentials(context.Background(), rec, testCreds, "demo", api.DefaultSettings().Credentials)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !strings.Contains(err.Error(), "Forbidden") {
				t.Errorf("error should carry stderr, got %q", err)
			}
			if strings.Contains(err.Error(), testSecretKey) {
				t.Error("error leaks the secret key")
			}
			if rec.Called("kubectl label") != tt.labelCalled {
				t.Errorf("label called = %v, want %v", rec.Called("kubectl label"), tt.labelCalled)
			}
		})
	}
}

func TestProvisionStep_Run(t *testing.T) {
	rec := commandtest.New()
	result, err := NewProvisionStep().Run(context.Background(), testStepContext(rec))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Detail != "secret/scaleway-credentials applied" {
		t.Errorf("detail = %q", result.Detail)
	}
}
