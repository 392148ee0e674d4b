package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func lookupFrom(env map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

func fullEnv() map[string]string {
	return map[string]string{
		EnvAccessKey: "SCWXXXXXXXXXXXXXXXXX",
		EnvSecretKey: "11111111-2222-3333-4444-555555555555",
		EnvNamespace: "banana",
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load(lookupFrom(fullEnv()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Namespace != "banana" {
		t.Errorf("namespace = %q", cfg.Namespace)
	}
	if cfg.Credentials.AccessKey != "SCWXXXXXXXXXXXXXXXXX" {
		t.Errorf("access key not loaded")
	}
	if cfg.Credentials.SecretKey != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("secret key not loaded")
	}
}

func TestLoad_Missing(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]string)
		missing string
	}{
		{"no access key", func(e map[string]string) { delete(e, EnvAccessKey) }, EnvAccessKey},
		{"no secret key", func(e map[string]string) { delete(e, EnvSecretKey) }, EnvSecretKey},
		{"no namespace", func(e map[string]string) { delete(e, EnvNamespace) }, EnvNamespace},
		{"blank namespace", func(e map[string]string) { e[EnvNamespace] = "  " }, EnvNamespace},
		{"empty secret", func(e map[string]string) { e[EnvSecretKey] = "" }, EnvSecretKey},
		{"first missing wins", func(e map[string]string) { delete(e, EnvSecretKey); delete(e, EnvNamespace) }, EnvSecretKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := fullEnv()
			tt.mutate(env)

			_, err := Load(lookupFrom(env))
			var missing *MissingError
			if !errors.As(err, &missing) {
				t.Fatalf("expected *MissingError, got %v", err)
			}
			if missing.Name != tt.missing {
				t.Errorf("missing = %q, want %q", missing.Name, tt.missing)
			}
		})
	}
}

func TestLoad_InvalidNamespace(t *testing.T) {
	env := fullEnv()
	env[EnvNamespace] = "Not_A_Namespace"

	_, err := Load(lookupFrom(env))
	var invalid *InvalidError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidError, got %v", err)
	}
	if invalid.Name != EnvNamespace {
		t.Errorf("name = %q", invalid.Name)
	}
}

func TestCredentials_NeverPrintsValues(t *testing.T) {
	creds := Credentials{AccessKey: "AKIDVALUE", SecretKey: "SECRETVALUE"}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("loaded", "credentials", creds)

	outputs := []string{
		fmt.Sprint(creds),
		fmt.Sprintf("%v", creds),
		fmt.Sprintf("%+v", creds),
		fmt.Sprintf("%#v", creds),
		buf.String(),
	}
	for _, out := range outputs {
		if strings.Contains(out, "AKIDVALUE") || strings.Contains(out, "SECRETVALUE") {
			t.Errorf("credential leaked: %s", out)
		}
	}
	if !strings.Contains(buf.String(), `"secretKeyLength":11`) {
		t.Errorf("expected length in log output: %s", buf.String())
	}
}
