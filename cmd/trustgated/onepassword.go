package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadOnePasswordVaults reads a YAML file mapping tenant_id to the
// 1Password vault ID credentials for that tenant live in.
func loadOnePasswordVaults(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading 1password vaults file: %w", err)
	}
	var vaults map[string]string
	if err := yaml.Unmarshal(data, &vaults); err != nil {
		return nil, fmt.Errorf("parsing 1password vaults file: %w", err)
	}
	return vaults, nil
}
