package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

// Backend persists raw config values under their dotted key names.
type Backend interface {
	Get(key string) (val string, ok bool, err error)
	Set(key, val string) error
}

// FilePath returns the location of the persistent config file.
func FilePath() string {
	return filepath.Join(configDir(), configFileName)
}

func configDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		if dir, err = os.UserConfigDir(); err != nil {
			dir = "."
		}
	}
	return filepath.Join(dir, "supportpilot")
}

// fileBackend keeps values in a flat YAML mapping such as
//
//	server.port: 4100
//	llm.provider: ollama
type fileBackend struct {
	path   string
	values map[string]string
}

// openFileBackend reads path. A missing file is an empty config.
func openFileBackend(path string) (*fileBackend, error) {
	b := &fileBackend{path: path, values: map[string]string{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &b.values); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if b.values == nil {
		b.values = map[string]string{}
	}
	return b, nil
}

func (b *fileBackend) Get(key string) (string, bool, error) {
	v, ok := b.values[key]
	return v, ok, nil
}

// Set stores val and rewrites the whole file.
func (b *fileBackend) Set(key, val string) error {
	b.values[key] = val

	data, err := yaml.Marshal(b.values)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return os.WriteFile(b.path, data, 0o600)
}
