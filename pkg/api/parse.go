package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadSettings reads a settings file over DefaultSettings and validates the
// result. An empty filename yields the validated defaults.
func LoadSettings(filename string) (*Settings, error) {
	s := DefaultSettings()
	if filename == "" {
		return s, s.Validate()
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	s.FilePath = absPath

	if !filepath.IsAbs(s.Manifests.Dir) {
		s.Manifests.Dir = filepath.Join(filepath.Dir(absPath), s.Manifests.Dir)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validating settings %s: %w", filename, err)
	}

	return s, nil
}
