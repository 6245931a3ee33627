package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of the policy config file: a default
// policy plus per-tenant overrides.
type fileConfig struct {
	Default Policy            `yaml:"default"`
	Tenants map[string]Policy `yaml:"tenants"`
}

// LoadConfigFile reads and validates the policy config file at path,
// returning the per-tenant policies and the default policy ready for
// NewEngine.
func LoadConfigFile(path string) (map[string]Policy, Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Policy{}, fmt.Errorf("reading policy config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, Policy{}, fmt.Errorf("parsing policy config: %w", err)
	}

	if errs := ValidateConfig(fc.Tenants, fc.Default); len(errs) > 0 {
		return nil, Policy{}, fmt.Errorf("invalid policy config: %v", errs)
	}
	return fc.Tenants, fc.Default, nil
}
