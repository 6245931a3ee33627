package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func writePolicyConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writePolicyConfig(t, `
default:
  mode: strict
tenants:
  acme:
    mode: cautious
    exceptions:
      - provider: github
        methods: [GET]
`)

	tenants, def, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if def.Mode != ModeStrict {
		t.Errorf("default mode = %q, want strict", def.Mode)
	}
	acme, ok := tenants["acme"]
	if !ok || acme.Mode != ModeCautious {
		t.Fatalf("tenants[acme] = %+v, ok=%v", acme, ok)
	}
}

func TestLoadConfigFile_InvalidMode(t *testing.T) {
	path := writePolicyConfig(t, "default:\n  mode: yolo\n")

	if _, _, err := LoadConfigFile(path); err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

func TestLoadConfigFile_MissingFile(t *testing.T) {
	if _, _, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
