package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/byteness/trustgate/policy"
)

// ValidateEnrollments checks a tenant_id -> sha256 hex digest map.
func ValidateEnrollments(content []byte, source string) *ValidationResult {
	result := newResult(KindEnrollment, source)
	if len(content) == 0 {
		result.addError("", "empty configuration", "provide a JSON object of tenant_id to sha256 hex digest")
		return result
	}

	var raw map[string]string
	if err := json.Unmarshal(content, &raw); err != nil {
		result.addError("", fmt.Sprintf("invalid JSON: %v", err), "check the file is a flat JSON object of strings")
		return result
	}
	if len(raw) == 0 {
		result.addWarning("", "no tenants enrolled", "add at least one tenant_id before starting the gateway")
	}
	for tenant, digest := range raw {
		loc := fmt.Sprintf("%q", tenant)
		if tenant == "" {
			result.addError(loc, "tenant_id must not be empty", "")
			continue
		}
		if len(digest) != 64 {
			result.addError(loc, fmt.Sprintf("digest has %d characters, want 64", len(digest)), "use the hex-encoded sha256 of the enrollment secret")
			continue
		}
		if _, err := hex.DecodeString(digest); err != nil {
			result.addError(loc, "digest is not valid hex", "")
		}
	}
	return result
}

// ValidateCredentials checks a "tenant:selector" -> field map map.
func ValidateCredentials(content []byte, source string) *ValidationResult {
	result := newResult(KindCredential, source)
	if len(content) == 0 {
		result.addError("", "empty configuration", `provide a JSON object of "tenant:selector" to a field map`)
		return result
	}

	var raw map[string]map[string]string
	if err := json.Unmarshal(content, &raw); err != nil {
		result.addError("", fmt.Sprintf("invalid JSON: %v", err), `check the file shape is {"tenant:selector": {field: value}}`)
		return result
	}
	for key, fields := range raw {
		loc := fmt.Sprintf("%q", key)
		if len(fields) == 0 {
			result.addWarning(loc, "bundle has no fields", "remove the entry or add at least one field")
		}
	}
	return result
}

// ValidatePolicies checks a tenant_id -> policy.Policy map.
func ValidatePolicies(content []byte, source string) *ValidationResult {
	result := newResult(KindPolicy, source)
	if len(content) == 0 {
		result.addError("", "empty configuration", "provide a JSON object of tenant_id to policy")
		return result
	}

	var raw map[string]policy.Policy
	if err := json.Unmarshal(content, &raw); err != nil {
		result.addError("", fmt.Sprintf("invalid JSON: %v", err), "check mode is \"strict\" or \"cautious\" and exceptions parse as objects")
		return result
	}
	if _, ok := raw["default"]; !ok {
		result.addWarning("", `no "default" tenant policy configured`, `add a "default" entry so unknown tenants have a defined posture`)
	}
	for tenant, p := range raw {
		loc := fmt.Sprintf("%q", tenant)
		if err := p.Validate(); err != nil {
			result.addError(loc, err.Error(), `mode must be "strict" or "cautious"; exception paths must be valid globs`)
		}
	}
	return result
}

// ValidateFile reads path and validates it as kind.
func ValidateFile(kind Kind, path string) (*ValidationResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		result := newResult(kind, path)
		result.addError("", fmt.Sprintf("failed to read file: %v", err), "verify the file path exists and is readable")
		return result, err
	}

	switch kind {
	case KindEnrollment:
		return ValidateEnrollments(content, path), nil
	case KindCredential:
		return ValidateCredentials(content, path), nil
	case KindPolicy:
		return ValidatePolicies(content, path), nil
	default:
		result := newResult(kind, path)
		result.addError("", fmt.Sprintf("unknown config kind: %s", kind), "")
		return result, fmt.Errorf("unknown config kind: %s", kind)
	}
}
