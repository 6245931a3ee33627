package logging

import "time"

// DecisionLogEntry captures one Gateway Request Record's outcome. Credential
// values are never included, at any log level.
type DecisionLogEntry struct {
	Timestamp        string `json:"timestamp"`
	RequestID        string `json:"request_id"`
	TenantID         string `json:"tenant_id"`
	Provider         string `json:"provider,omitempty"`
	Method           string `json:"method"`
	Path             string `json:"path,omitempty"`
	Classification   string `json:"classification"`
	RequiresApproval bool   `json:"requires_approval"`
	ApprovalID       string `json:"approval_id,omitempty"`
	StatusCode       int    `json:"status_code"`
	LatencyMillis    int64  `json:"latency_ms"`
	ErrorCode        string `json:"error_code,omitempty"`
}

// DecisionContext is the admission outcome NewDecisionLogEntry renders into
// a log line.
type DecisionContext struct {
	RequestID        string
	TenantID         string
	Provider         string
	Method           string
	Path             string
	Classification   string
	RequiresApproval bool
	ApprovalID       string
	StatusCode       int
	Latency          time.Duration
	ErrorCode        string
}

// NewDecisionLogEntry renders a completed admission into its audit line.
func NewDecisionLogEntry(ctx DecisionContext) DecisionLogEntry {
	return DecisionLogEntry{
		Timestamp:        time.Now().UTC().Format(time.RFC3339Nano),
		RequestID:        ctx.RequestID,
		TenantID:         ctx.TenantID,
		Provider:         ctx.Provider,
		Method:           ctx.Method,
		Path:             ctx.Path,
		Classification:   ctx.Classification,
		RequiresApproval: ctx.RequiresApproval,
		ApprovalID:       ctx.ApprovalID,
		StatusCode:       ctx.StatusCode,
		LatencyMillis:    ctx.Latency.Milliseconds(),
		ErrorCode:        ctx.ErrorCode,
	}
}
