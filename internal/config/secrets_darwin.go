//go:build darwin

package config

import (
	"os/exec"
	"strings"
)

const keychainService = "supportpilot"

func secretHint() string {
	return " or the macOS Keychain (service " + keychainService + ", account llm_api_key)"
}

// platformSecrets reads generic passwords from the login Keychain.
type platformSecrets struct{}

func (platformSecrets) Secret(name string) (string, error) {
	out, err := exec.Command("security", "find-generic-password", "-s", keychainService, "-a", name, "-w").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
