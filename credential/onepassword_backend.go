package credential

import (
	"context"
	"fmt"

	"github.com/1Password/connect-sdk-go/connect"
)

// OnePasswordBackend resolves selector as an item title within a fixed
// vault per tenant, using the 1Password Connect API. Every field on the
// matched item becomes a Bundle field.
type OnePasswordBackend struct {
	client        connect.Client
	vaultByTenant map[string]string
}

func NewOnePasswordBackend(client connect.Client, vaultByTenant map[string]string) *OnePasswordBackend {
	return &OnePasswordBackend{client: client, vaultByTenant: vaultByTenant}
}

func (backend *OnePasswordBackend) Fetch(ctx context.Context, tenant, selector string) (Bundle, error) {
	vaultID, ok := backend.vaultByTenant[tenant]
	if !ok {
		return Bundle{}, fmt.Errorf("no 1password vault configured for tenant %q", tenant)
	}

	item, err := backend.client.GetItemByTitle(selector, vaultID)
	if err != nil {
		return Bundle{}, fmt.Errorf("1password fetch %q/%q: %w", tenant, selector, err)
	}

	fields := make(map[string]string, len(item.Fields))
	for _, f := range item.Fields {
		if f.Label == "" {
			continue
		}
		fields[f.Label] = f.Value
	}
	return Bundle{Fields: fields}, nil
}
