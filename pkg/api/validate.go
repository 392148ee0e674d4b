package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"k8s.io/apimachinery/pkg/util/validation"
)

// Validate checks the settings for errors. All problems are reported at once.
func (s *Settings) Validate() error {
	var errs []error
	if s.CommandTimeout <= 0 {
		errs = append(errs, errors.New("commandTimeout must be positive"))
	}
	errs = append(errs,
		s.Operator.validate(),
		s.Credentials.validate(),
		s.Manifests.validate(),
		s.Sync.validate(),
		s.Verify.validate(),
	)
	return errors.Join(errs...)
}

func (o OperatorSettings) validate() error {
	var errs []error
	for field, v := range map[string]string{
		"repoName": o.RepoName,
		"repoURL":  o.RepoURL,
		"chart":    o.Chart,
		"release":  o.Release,
	} {
		if v == "" {
			errs = append(errs, fmt.Errorf("operator.%s is required", field))
		}
	}
	errs = append(errs, dnsLabel("operator.namespace", o.Namespace))
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("operator.timeout must be positive"))
	}
	return sortedJoin(errs)
}

func (c CredentialSettings) validate() error {
	var errs []error
	errs = append(errs, dnsSubdomain("credentials.secretName", c.SecretName))
	for field, key := range map[string]string{
		"accessKeyField": c.AccessKeyField,
		"secretKeyField": c.SecretKeyField,
	} {
		if msgs := validation.IsConfigMapKey(key); len(msgs) > 0 {
			errs = append(errs, fmt.Errorf("credentials.%s %q: %s", field, key, strings.Join(msgs, "; ")))
		}
	}
	if c.AccessKeyField == c.SecretKeyField {
		errs = append(errs, fmt.Errorf("credentials.accessKeyField and credentials.secretKeyField must differ"))
	}
	if len(c.Labels) == 0 {
		errs = append(errs, fmt.Errorf("credentials.labels must name at least one label"))
	}
	for k, v := range c.Labels {
		if msgs := validation.IsQualifiedName(k); len(msgs) > 0 {
			errs = append(errs, fmt.Errorf("credentials.labels key %q: %s", k, strings.Join(msgs, "; ")))
		}
		if msgs := validation.IsValidLabelValue(v); len(msgs) > 0 {
			errs = append(errs, fmt.Errorf("credentials.labels[%q] value %q: %s", k, v, strings.Join(msgs, "; ")))
		}
	}
	return sortedJoin(errs)
}

func (m ManifestSettings) validate() error {
	var errs []error
	if m.Dir == "" {
		errs = append(errs, fmt.Errorf("manifests.dir is required"))
	}
	if m.Kustomize && m.Render {
		errs = append(errs, fmt.Errorf("manifests.render cannot be combined with manifests.kustomize"))
	}
	if m.Kustomize && m.Recursive {
		errs = append(errs, fmt.Errorf("manifests.recursive cannot be combined with manifests.kustomize"))
	}
	for _, pattern := range m.Include {
		if !doublestar.ValidatePattern(pattern) {
			errs = append(errs, fmt.Errorf("manifests: invalid glob %q", pattern))
		}
	}
	return errors.Join(errs...)
}

func (s SyncSettings) validate() error {
	var errs []error
	if s.Kind == "" {
		errs = append(errs, fmt.Errorf("sync.kind is required"))
	}
	errs = append(errs, dnsSubdomain("sync.name", s.Name))
	if s.Condition == "" {
		errs = append(errs, fmt.Errorf("sync.condition is required"))
	}
	if s.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("sync.timeout must be positive"))
	}
	if s.Interval <= 0 {
		errs = append(errs, fmt.Errorf("sync.interval must be positive"))
	} else if s.Interval >= s.Timeout && s.Timeout > 0 {
		errs = append(errs, fmt.Errorf("sync.interval (%s) must be shorter than sync.timeout (%s)", s.Interval, s.Timeout))
	}
	return errors.Join(errs...)
}

func (v VerifySettings) validate() error {
	var errs []error
	if v.ListKind == "" {
		errs = append(errs, fmt.Errorf("verify.listKind is required"))
	}
	errs = append(errs, dnsSubdomain("verify.targetSecret", v.TargetSecret))
	return errors.Join(errs...)
}

func dnsLabel(field, value string) error {
	if msgs := validation.IsDNS1123Label(value); len(msgs) > 0 {
		return fmt.Errorf("%s %q: %s", field, value, strings.Join(msgs, "; "))
	}
	return nil
}

func dnsSubdomain(field, value string) error {
	if msgs := validation.IsDNS1123Subdomain(value); len(msgs) > 0 {
		return fmt.Errorf("%s %q: %s", field, value, strings.Join(msgs, "; "))
	}
	return nil
}

// sortedJoin keeps messages stable when they were collected from a map.
func sortedJoin(errs []error) error {
	var kept []error
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Error() < kept[j].Error() })
	return errors.Join(kept...)
}
