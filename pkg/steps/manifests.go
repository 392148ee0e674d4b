package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/systemstart/secrets-bootstrap/pkg/api"
	"github.com/systemstart/secrets-bootstrap/pkg/command"
)

// ErrApplyFailed is returned when the manifest directory cannot be applied.
var ErrApplyFailed = errors.New("manifest apply failed")

// DeployError matches ErrApplyFailed with errors.Is.
type DeployError struct {
	Dir    string
	Stderr string
	Err    error
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("%v for %s: %s", ErrApplyFailed, e.Dir, failureDetail(e.Stderr, e.Err))
}

func (e *DeployError) Unwrap() []error { return []error{ErrApplyFailed, e.Err} }

var kustomizationFiles = []string{"kustomization.yaml", "kustomization.yml", "Kustomization"}

// DeployManifests applies the manifest directory into namespace with a single
// kubectl invocation and returns the number of manifests found. With Render
// set, the directory is first rendered into a temporary copy using data.
func DeployManifests(ctx context.Context, executor command.Executor, m api.ManifestSettings, namespace string, data map[string]any) (int, error) {
	files, err := checkManifestDir(m)
	if err != nil {
		return 0, &DeployError{Dir: m.Dir, Err: err}
	}

	dir := m.Dir
	if m.Render {
		tmp, err := os.MkdirTemp("", "eso-manifests-")
		if err != nil {
			return 0, &DeployError{Dir: m.Dir, Err: fmt.Errorf("creating render directory: %w", err)}
		}
		defer func() {
			if rmErr := os.RemoveAll(tmp); rmErr != nil {
				slog.Warn("failed to remove render directory", "path", tmp, "error", rmErr)
			}
		}()

		if err := renderTree(m.Dir, tmp, files, data); err != nil {
			return 0, &DeployError{Dir: m.Dir, Err: err}
		}
		dir = tmp
	}

	slog.Info("applying manifests", "dir", m.Dir, "namespace", namespace, "count", len(files), "kustomize", m.Kustomize, "rendered", m.Render)

	result, err := executor.Execute(ctx, command.Direct("kubectl", applyArgs(m, dir, namespace)...))
	if err != nil {
		return 0, &DeployError{Dir: m.Dir, Stderr: command.Stderr(err), Err: err}
	}
	slog.Debug("kubectl apply", "output", result.StdoutString())

	return len(files), nil
}

func applyArgs(m api.ManifestSettings, dir, namespace string) []string {
	if m.Kustomize {
		return []string{"apply", "-k", dir, "-n", namespace}
	}
	args := []string{"apply", "-f", dir, "-n", namespace}
	if m.Recursive {
		args = append(args, "--recursive")
	}
	return args
}

func checkManifestDir(m api.ManifestSettings) ([]string, error) {
	st, err := os.Stat(m.Dir)
	if err != nil {
		return nil, fmt.Errorf("checking manifest directory: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("manifest path %s is not a directory", m.Dir)
	}

	if m.Kustomize {
		for _, name := range kustomizationFiles {
			if _, err := os.Stat(filepath.Join(m.Dir, name)); err == nil {
				return []string{name}, nil
			}
		}
		return nil, fmt.Errorf("no kustomization file in %s", m.Dir)
	}

	files, err := DiscoverManifests(m.Dir, m.ManifestInclude())
	if err != nil {
		return nil, fmt.Errorf("discovering manifests: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no manifests found in %s", m.Dir)
	}
	return files, nil
}

// TemplateData is what rendered manifests see: user values with the run's
// namespace and resource names laid over them.
func TemplateData(sc StepContext) map[string]any {
	return MergeValues(sc.Settings.Manifests.Values, map[string]any{
		"namespace":         sc.Config.Namespace,
		"credentialsSecret": sc.Settings.Credentials.SecretName,
		"syncName":          sc.Settings.Sync.Name,
	})
}

type deployStep struct{}

// NewDeployStep creates the manifest apply step.
func NewDeployStep() Step { return deployStep{} }

func (deployStep) Name() string   { return StepDeploy }
func (deployStep) Required() bool { return true }
func (deployStep) Mutating() bool { return true }

func (deployStep) Run(ctx context.Context, sc StepContext) (*StepResult, error) {
	n, err := DeployManifests(ctx, sc.Commands(), sc.Settings.Manifests, sc.Config.Namespace, TemplateData(sc))
	if err != nil {
		return nil, err
	}
	return &StepResult{Detail: fmt.Sprintf("%d manifest(s) applied", n)}, nil
}
