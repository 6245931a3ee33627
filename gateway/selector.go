package gateway

import (
	"strings"

	"github.com/byteness/trustgate/gatewayerr"
)

// splitSelector parses a "<tenant>:<provider>:<name>" credential selector
// (the X-Creds header value, or the /credentials/fetch body field) into the
// tenant prefix and the remaining "<provider>:<name>" string the broker
// caches under "{tenant}:{selector}".
func splitSelector(raw string) (tenant, selector string, err error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", gatewayerr.BadRequest("malformed credential selector", "selector must be \"<tenant>:<provider>:<name>\"", nil)
	}
	return parts[0], parts[1], nil
}
