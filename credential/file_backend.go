package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileBackend serves credential bundles from a static JSON file keyed by
// "tenant:selector" — the local-dev and CI path when no cloud secret
// manager is configured.
type FileBackend struct {
	bundles map[string]Bundle
}

// NewFileBackend loads path's JSON object ({"tenant:selector": {"field":
// "value", ...}, ...}) into a FileBackend.
func NewFileBackend(path string) (*FileBackend, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	var raw map[string]map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}

	bundles := make(map[string]Bundle, len(raw))
	for key, fields := range raw {
		bundles[key] = Bundle{Fields: fields}
	}
	return &FileBackend{bundles: bundles}, nil
}

// Fetch implements Backend.
func (f *FileBackend) Fetch(_ context.Context, tenant, selector string) (Bundle, error) {
	bundle, ok := f.bundles[tenant+":"+selector]
	if !ok {
		return Bundle{}, ErrNotFound
	}
	return bundle.Clone(), nil
}
