package session

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadEnrollmentsFile reads a YAML file mapping tenant_id to the
// hex-encoded sha256 digest of that tenant's enrollment secret, ready for
// NewManager.
func LoadEnrollmentsFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading enrollment secrets: %w", err)
	}

	var digests map[string]string
	if err := yaml.Unmarshal(data, &digests); err != nil {
		return nil, fmt.Errorf("parsing enrollment secrets: %w", err)
	}
	return digests, nil
}
