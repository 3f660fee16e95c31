//go:build !darwin

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

func secretsFilePath() string {
	return filepath.Join(configDir(), "secrets.yaml")
}

func secretHint() string {
	return " or the llm_api_key entry of " + secretsFilePath()
}

// platformSecrets reads a flat YAML mapping of secret names to values.
type platformSecrets struct{}

func (platformSecrets) Secret(name string) (string, error) {
	data, err := os.ReadFile(secretsFilePath())
	if err != nil {
		return "", err
	}
	var secrets map[string]string
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return "", fmt.Errorf("parsing secrets file: %w", err)
	}
	v, ok := secrets[name]
	if !ok {
		return "", fmt.Errorf("secret %q not set", name)
	}
	return v, nil
}
