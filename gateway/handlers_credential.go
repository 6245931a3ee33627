package gateway

import (
	"errors"
	"net/http"

	"github.com/byteness/trustgate/credential"
	"github.com/byteness/trustgate/gatewayerr"
)

type credentialsFetchRequest struct {
	Selector string `json:"selector"`
}

func (s *Server) handleCredentialsFetch(w http.ResponseWriter, r *http.Request) {
	var req credentialsFetchRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	if req.Selector == "" {
		RespondError(w, gatewayerr.BadRequest("selector is required", "", nil))
		return
	}

	tenant, selector, err := splitSelector(req.Selector)
	if err != nil {
		RespondError(w, err)
		return
	}
	if tenant != tenantFromContext(r.Context()) {
		RespondError(w, gatewayerr.AuthError("selector tenant does not match session", "fetch credentials scoped to your own tenant", nil))
		return
	}

	bundle, err := s.credentials.Get(r.Context(), tenant, selector)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			RespondError(w, gatewayerr.NotFound("no credential bundle for this selector", "check the selector and the configured backends", err))
			return
		}
		RespondError(w, gatewayerr.ConfigError("credential resolution failed", "", err))
		return
	}
	Respond(w, http.StatusOK, bundle)
}
