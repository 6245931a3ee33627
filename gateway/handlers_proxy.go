package gateway

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/byteness/trustgate/approval"
	"github.com/byteness/trustgate/credential"
	"github.com/byteness/trustgate/gatewayerr"
	"github.com/byteness/trustgate/logging"
	"github.com/byteness/trustgate/policy"
)

// handleProxy implements the composed admission pipeline for
// /api/v1/proxy/*: classify, gate on policy, fetch credentials, forward,
// and log the outcome as one decision entry regardless of how it ends.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	tenant := tenantFromContext(r.Context())
	provider := r.Header.Get("X-Provider")
	credsSelector := r.Header.Get("X-Creds")
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/proxy")

	logCtx := logging.DecisionContext{
		RequestID: RequestIDFromContext(r.Context()),
		TenantID:  tenant,
		Provider:  provider,
		Method:    r.Method,
		Path:      path,
	}

	classification := policy.ClassifyHTTP(r.Method)
	logCtx.Classification = classification.String()

	requiresApproval := s.policies.RequiresApproval(tenant, classification, provider, r.Method, path)
	logCtx.RequiresApproval = requiresApproval

	if requiresApproval {
		rec := s.approvals.Request(tenant, logCtx.RequestID, approvalDetailsForProxy(provider, r.Method, path, classification))
		logCtx.ApprovalID = rec.ID
		s.refreshPendingApprovals()
		s.audit.LogApproval(approvalCreatedEntry(rec))

		waitStart := time.Now()
		approved, err := s.approvals.Wait(r.Context(), rec.ID, s.approvalWaitTimeout)
		s.metrics.ApprovalWaitDuration.Observe(time.Since(waitStart).Seconds())
		s.refreshPendingApprovals()
		if err != nil || !approved {
			gerr := gatewayerr.PolicyDenied("write denied or not approved in time", "request approval again or contact the tenant's approver", err)
			s.finishDecision(w, logCtx, start, gerr)
			return
		}
	}

	var bundle *credential.Bundle
	if credsSelector != "" {
		credTenant, selector, err := splitSelector(credsSelector)
		if err != nil {
			s.finishDecision(w, logCtx, start, err)
			return
		}
		b, err := s.credentials.Get(r.Context(), credTenant, selector)
		if err != nil {
			var gerr error
			if errors.Is(err, credential.ErrNotFound) {
				gerr = gatewayerr.ConfigError("requested credential selector could not be resolved", "check the selector and configured backends", err)
			} else {
				gerr = gatewayerr.ConfigError("credential resolution failed", "", err)
			}
			s.finishDecision(w, logCtx, start, gerr)
			return
		}
		bundle = &b
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.finishDecision(w, logCtx, start, gatewayerr.BadRequest("could not read request body", "", err))
		return
	}

	resp, err := s.forward.Forward(r.Context(), r.Method, path, r.Header, body, bundle, provider)
	if err != nil {
		s.finishDecision(w, logCtx, start, err)
		return
	}

	for k, v := range resp.Header {
		for _, vv := range v {
			w.Header().Add(k, vv)
		}
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)

	logCtx.StatusCode = resp.StatusCode
	s.finishLog(logCtx, start)
	s.metrics.RequestsTotal.WithLabelValues(logCtx.Classification, statusBucket(resp.StatusCode)).Inc()
}

func approvalDetailsForProxy(provider, method, path string, classification policy.Classification) approval.Details {
	return approval.Details{
		Provider:       provider,
		Method:         method,
		Path:           path,
		Classification: classification.String(),
	}
}

// finishDecision writes the error response, completes the decision log
// entry, and records the metric — the single exit path for every failure
// in the proxy pipeline so no branch forgets to log.
func (s *Server) finishDecision(w http.ResponseWriter, logCtx logging.DecisionContext, start time.Time, err error) {
	ge, ok := gatewayerr.As(err)
	status := http.StatusInternalServerError
	code := ""
	if ok {
		status = ge.HTTPStatus()
		code = ge.Code()
	}
	logCtx.StatusCode = status
	logCtx.ErrorCode = code
	s.finishLog(logCtx, start)
	s.metrics.RequestsTotal.WithLabelValues(logCtx.Classification, statusBucket(status)).Inc()
	RespondError(w, err)
}

func (s *Server) finishLog(logCtx logging.DecisionContext, start time.Time) {
	logCtx.Latency = time.Since(start)
	s.audit.LogDecision(logging.NewDecisionLogEntry(logCtx))
}

func statusBucket(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
