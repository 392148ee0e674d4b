package api

import "time"

const (
	DefaultOperatorRepoName  = "external-secrets"
	DefaultOperatorRepoURL   = "https://charts.external-secrets.io"
	DefaultOperatorChart     = "external-secrets/external-secrets"
	DefaultOperatorRelease   = "external-secrets"
	DefaultOperatorNamespace = "external-secrets-system"
	DefaultInstallTimeout    = 300 * time.Second

	DefaultCredentialSecret = "scaleway-credentials"
	DefaultAccessKeyField   = "access-key"
	DefaultSecretKeyField   = "secret-key"
	WebhookTypeLabel        = "external-secrets.io/type"
	WebhookTypeValue        = "webhook"

	DefaultManifestDir = "k8s"

	DefaultSyncKind      = "externalsecret"
	DefaultSyncName      = "postgres-secrets"
	DefaultSyncCondition = "Ready"
	DefaultSyncTimeout   = 300 * time.Second
	DefaultSyncInterval  = 5 * time.Second

	DefaultVerifyListKind = "externalsecrets"

	// DefaultCommandTimeout bounds every kubectl/helm invocation outside the
	// helm install and the sync poll, which have their own timeouts.
	DefaultCommandTimeout = 60 * time.Second
)

var (
	// DefaultManifestInclude matches top-level manifests, the files
	// `kubectl apply -f <dir>` picks up.
	DefaultManifestInclude = []string{"*.yaml", "*.yml", "*.json"}
	// RecursiveManifestInclude is used when manifests.recursive is set.
	RecursiveManifestInclude = []string{"**/*.yaml", "**/*.yml", "**/*.json"}
)

// Settings is the bootstrap settings file format. Every field has a default,
// so the file is optional.
type Settings struct {
	Operator    OperatorSettings   `yaml:"operator"`
	Credentials CredentialSettings `yaml:"credentials"`
	Manifests   ManifestSettings   `yaml:"manifests"`
	Sync        SyncSettings       `yaml:"sync"`
	Verify      VerifySettings     `yaml:"verify"`

	CommandTimeout time.Duration `yaml:"commandTimeout"`

	// Set by the loader, not from YAML.
	FilePath string `yaml:"-"`
}

// OperatorSettings configures the helm release of the secrets operator.
type OperatorSettings struct {
	RepoName  string            `yaml:"repoName"`
	RepoURL   string            `yaml:"repoURL"`
	Chart     string            `yaml:"chart"`
	Release   string            `yaml:"release"`
	Namespace string            `yaml:"namespace"`
	Version   string            `yaml:"version"`
	Timeout   time.Duration     `yaml:"timeout"`
	Set       map[string]string `yaml:"set"`
}

// CredentialSettings configures the cluster secret holding the cloud keys.
type CredentialSettings struct {
	SecretName     string            `yaml:"secretName"`
	AccessKeyField string            `yaml:"accessKeyField"`
	SecretKeyField string            `yaml:"secretKeyField"`
	Labels         map[string]string `yaml:"labels"`
}

// ManifestSettings configures the manifest directory applied to the cluster.
// Include selects the files counted as manifests and, with Render, the files
// rendered as templates.
type ManifestSettings struct {
	Dir       string         `yaml:"dir"`
	Kustomize bool           `yaml:"kustomize"`
	Recursive bool           `yaml:"recursive"`
	Render    bool           `yaml:"render"`
	Include   []string       `yaml:"include"`
	Values    map[string]any `yaml:"values"`
}

// SyncSettings names the resource whose condition gates success.
type SyncSettings struct {
	Kind      string        `yaml:"kind"`
	Name      string        `yaml:"name"`
	Condition string        `yaml:"condition"`
	Timeout   time.Duration `yaml:"timeout"`
	Interval  time.Duration `yaml:"interval"`
}

// VerifySettings configures the post-run diagnostics.
type VerifySettings struct {
	ListKind     string `yaml:"listKind"`
	TargetSecret string `yaml:"targetSecret"`
}

// DefaultSettings reproduces the stock External Secrets Operator setup for
// Scaleway credentials.
func DefaultSettings() *Settings {
	return &Settings{
		Operator: OperatorSettings{
			RepoName:  DefaultOperatorRepoName,
			RepoURL:   DefaultOperatorRepoURL,
			Chart:     DefaultOperatorChart,
			Release:   DefaultOperatorRelease,
			Namespace: DefaultOperatorNamespace,
			Timeout:   DefaultInstallTimeout,
		},
		Credentials: CredentialSettings{
			SecretName:     DefaultCredentialSecret,
			AccessKeyField: DefaultAccessKeyField,
			SecretKeyField: DefaultSecretKeyField,
			Labels:         map[string]string{WebhookTypeLabel: WebhookTypeValue},
		},
		Manifests: ManifestSettings{
			Dir: DefaultManifestDir,
		},
		Sync: SyncSettings{
			Kind:      DefaultSyncKind,
			Name:      DefaultSyncName,
			Condition: DefaultSyncCondition,
			Timeout:   DefaultSyncTimeout,
			Interval:  DefaultSyncInterval,
		},
		Verify: VerifySettings{
			ListKind:     DefaultVerifyListKind,
			TargetSecret: DefaultSyncName,
		},
		CommandTimeout: DefaultCommandTimeout,
	}
}

// ManifestInclude returns the include globs, falling back to the defaults.
func (m ManifestSettings) ManifestInclude() []string {
	switch {
	case len(m.Include) > 0:
		return m.Include
	case m.Recursive:
		return RecursiveManifestInclude
	default:
		return DefaultManifestInclude
	}
}
