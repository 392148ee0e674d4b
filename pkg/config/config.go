// Package config resolves the required bootstrap inputs from the process
// environment exactly once.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/systemstart/secrets-bootstrap/pkg/redact"
	"k8s.io/apimachinery/pkg/util/validation"
)

const (
	EnvAccessKey = "SCW_ACCESS_KEY_ID"
	EnvSecretKey = "SCW_SECRET_ACCESS_KEY"
	EnvNamespace = "K8S_NAMESPACE"
)

// Required lists the environment variables Load needs, in the order they are
// checked.
var Required = []string{EnvAccessKey, EnvSecretKey, EnvNamespace}

// LookupFunc resolves an environment variable; os.LookupEnv satisfies it.
type LookupFunc func(string) (string, bool)

// Credentials is the cloud key pair materialized into the cluster. Its String
// and LogValue only ever expose lengths.
type Credentials struct {
	AccessKey string
	SecretKey string
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{AccessKey: %s, SecretKey: %s}", redact.Mask(c.AccessKey), redact.Mask(c.SecretKey))
}

// GoString keeps %#v from printing the raw fields.
func (c Credentials) GoString() string { return c.String() }

func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("accessKeyLength", len(c.AccessKey)),
		slog.Int("secretKeyLength", len(c.SecretKey)),
	)
}

// Config is the validated input of a bootstrap run.
type Config struct {
	Credentials Credentials
	Namespace   string
}

// MissingError reports an absent or empty required variable.
type MissingError struct {
	Name string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing environment variable: %s", e.Name)
}

// InvalidError reports a present variable with an unusable value.
type InvalidError struct {
	Name    string
	Reasons []string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid environment variable %s: %s", e.Name, strings.Join(e.Reasons, "; "))
}

// Load reads every required variable and fails on the first one missing.
func Load(lookup LookupFunc) (Config, error) {
	values := make(map[string]string, len(Required))
	for _, name := range Required {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			return Config{}, &MissingError{Name: name}
		}
		values[name] = v
	}

	namespace := strings.TrimSpace(values[EnvNamespace])
	if errs := validation.IsDNS1123Label(namespace); len(errs) > 0 {
		return Config{}, &InvalidError{Name: EnvNamespace, Reasons: errs}
	}

	return Config{
		Credentials: Credentials{
			AccessKey: values[EnvAccessKey],
			SecretKey: values[EnvSecretKey],
		},
		Namespace: namespace,
	}, nil
}
