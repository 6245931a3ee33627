package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/byteness/trustgate/gatewayerr"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// decodeJSON reads a single JSON object from the request body into dst,
// rejecting unknown fields, trailing data, and bodies over maxBodyBytes.
func decodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return gatewayerr.BadRequest("request body too large", "keep the body under 1 MiB", err)
		case errors.Is(err, io.EOF):
			return gatewayerr.BadRequest("request body is empty", "", err)
		default:
			return gatewayerr.BadRequest("invalid JSON body", err.Error(), err)
		}
	}
	if dec.More() {
		return gatewayerr.BadRequest("request body must contain a single JSON object", "", nil)
	}
	return nil
}
