package logging

import (
	"time"

	"github.com/byteness/trustgate/approval"
	"github.com/byteness/trustgate/notification"
)

// ApprovalLogEntry captures one approval lifecycle event: created,
// approved, denied, or expired.
type ApprovalLogEntry struct {
	Timestamp      string `json:"timestamp"`
	Event          string `json:"event"`
	ApprovalID     string `json:"approval_id"`
	TenantID       string `json:"tenant_id"`
	Status         string `json:"status"`
	Actor          string `json:"actor"`
	Provider       string `json:"provider,omitempty"`
	Classification string `json:"classification,omitempty"`
}

// NewApprovalLogEntry renders a notification.Event into its audit line.
func NewApprovalLogEntry(event *notification.Event) ApprovalLogEntry {
	rec := event.Approval
	return ApprovalLogEntry{
		Timestamp:      event.Timestamp.UTC().Format(time.RFC3339Nano),
		Event:          event.Type.String(),
		ApprovalID:     rec.ID,
		TenantID:       rec.TenantID,
		Status:         rec.Status.String(),
		Actor:          event.Actor,
		Provider:       rec.Details.Provider,
		Classification: rec.Details.Classification,
	}
}

// DecidedByHuman reports whether rec's decision came from an explicit
// actor rather than the sweeper expiring it.
func DecidedByHuman(rec approval.Record) bool {
	return rec.Status != approval.StatusExpired && rec.DecidedBy != ""
}
