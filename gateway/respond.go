package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/byteness/trustgate/gatewayerr"
)

// Respond writes v as a JSON body with the given status code.
func Respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON envelope returned for every error response. It
// never carries credential material, raw upstream bodies, or stack traces.
type errorBody struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	Suggestion string `json:"suggestion,omitempty"`
}

// RespondError maps err to the gatewayerr taxonomy (defaulting to a
// redacted 500 for anything outside it) and writes the JSON error
// envelope.
func RespondError(w http.ResponseWriter, err error) {
	ge, ok := gatewayerr.As(err)
	if !ok {
		Respond(w, http.StatusInternalServerError, errorBody{
			Error: "internal error",
			Code:  "INTERNAL_ERROR",
		})
		return
	}
	Respond(w, ge.HTTPStatus(), errorBody{
		Error:      ge.Error(),
		Code:       ge.Code(),
		Suggestion: ge.Suggestion(),
	})
}
