package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/byteness/trustgate/approval"
	"github.com/byteness/trustgate/gatewayerr"
)

// approvalRequest accepts both shapes the external interface supports: the
// wrapper contract's {command, args, classification} and the proxy path's
// richer {provider, method, path, classification}. SourceRequestID lets a
// caller correlate the approval with its own admission record.
type approvalRequest struct {
	SourceRequestID string `json:"source_request_id,omitempty"`
	Provider        string `json:"provider,omitempty"`
	Method          string `json:"method,omitempty"`
	Path            string `json:"path,omitempty"`
	Command         string `json:"command,omitempty"`
	Args            string `json:"args,omitempty"`
	Classification  string `json:"classification,omitempty"`
}

func (s *Server) handleApprovalRequest(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	tenant := tenantFromContext(r.Context())
	details := approval.Details{
		Provider:       req.Provider,
		Method:         req.Method,
		Path:           req.Path,
		Command:        req.Command,
		Args:           req.Args,
		Classification: req.Classification,
	}
	rec := s.approvals.Request(tenant, req.SourceRequestID, details)
	s.refreshPendingApprovals()
	s.audit.LogApproval(approvalCreatedEntry(rec))
	Respond(w, http.StatusCreated, rec)
}

func (s *Server) handleApprovalDecide(status approval.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rec, err := s.approvals.Decide(id, status, decider(r))
		if err != nil {
			if err == approval.ErrNotFound {
				RespondError(w, gatewayerr.NotFound("approval not found", "", err))
				return
			}
			RespondError(w, gatewayerr.PolicyDenied("approval already decided", "a decision was already recorded for this id", err))
			return
		}
		s.refreshPendingApprovals()
		s.audit.LogApproval(approvalDecidedEntry(rec))
		Respond(w, http.StatusOK, map[string]string{"status": string(rec.Status)})
	}
}

// handleApprovalList lists every approval record for the caller's tenant,
// most useful to an operator CLI deciding what's outstanding. It is a
// cross-session view, not part of the admission hot path.
func (s *Server) handleApprovalList(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromContext(r.Context())
	all := s.approvals.List()
	out := make([]approval.Record, 0, len(all))
	for _, rec := range all {
		if rec.TenantID == tenant {
			out = append(out, rec)
		}
	}
	Respond(w, http.StatusOK, out)
}

func (s *Server) handleApprovalStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, ok := s.approvals.Status(id)
	if !ok {
		RespondError(w, gatewayerr.NotFound("approval not found", "", nil))
		return
	}
	Respond(w, http.StatusOK, rec)
}

// decider identifies the human making an approval decision. It falls back
// to a generic label when the caller doesn't supply one, since per-user
// RBAC is out of scope (tenant-level only).
func decider(r *http.Request) string {
	if d := r.Header.Get("X-Decider"); d != "" {
		return d
	}
	return "unknown"
}
