package steps

import (
	"bytes"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/bmatcuk/doublestar/v4"
)

// DiscoverManifests returns the files under dir matching include, relative to
// dir, sorted and without directories.
func DiscoverManifests(dir string, include []string) ([]string, error) {
	fsys := os.DirFS(dir)
	var files []string
	for _, pattern := range include {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// MergeValues performs a shallow merge of overrides over values.
func MergeValues(values, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(values)+len(overrides))
	maps.Copy(merged, values)
	maps.Copy(merged, overrides)
	return merged
}

// renderTree copies src into the empty directory dst and renders every file
// in files (relative to src) as a sprig template with data.
func renderTree(src, dst string, files []string, data map[string]any) error {
	if err := os.CopyFS(dst, os.DirFS(src)); err != nil {
		return fmt.Errorf("copying tree: %w", err)
	}
	for _, file := range files {
		if err := renderFile(filepath.Join(dst, file), data); err != nil {
			return fmt.Errorf("rendering %s: %w", file, err)
		}
	}
	return nil
}

func renderFile(path string, data map[string]any) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tmpl, err := template.New(filepath.Base(path)).
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Parse(string(content))
	if err != nil {
		return fmt.Errorf("parsing template: %w", err)
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return fmt.Errorf("executing template: %w", err)
	}
	if err := os.WriteFile(path, out.Bytes(), 0o600); err != nil {
		return err
	}
	slog.Debug("manifest rendered", "file", path)
	return nil
}
