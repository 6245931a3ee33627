// Package notification provides event types and a pluggable delivery
// interface for the gateway's approval lifecycle. It fans out
// approval.created, approval.approved, approval.denied and
// approval.expired events to whatever backends are configured (webhook,
// Slack, or both) without ever blocking the Approval Orchestrator that
// raises them.
package notification

import (
	"time"

	"github.com/byteness/trustgate/approval"
)

// EventType identifies an approval lifecycle transition.
type EventType string

const (
	EventApprovalCreated  EventType = "approval.created"
	EventApprovalApproved EventType = "approval.approved"
	EventApprovalDenied   EventType = "approval.denied"
	EventApprovalExpired  EventType = "approval.expired"
)

// IsValid reports whether t is a known event type.
func (t EventType) IsValid() bool {
	switch t {
	case EventApprovalCreated, EventApprovalApproved, EventApprovalDenied, EventApprovalExpired:
		return true
	}
	return false
}

func (t EventType) String() string { return string(t) }

// Event is a single approval lifecycle notification. It carries a plain
// copy of the approval record rather than a pointer so that delivery
// backends cannot observe (or race on) later mutations.
type Event struct {
	Type      EventType       `json:"type"`
	Approval  approval.Record `json:"approval"`
	Timestamp time.Time       `json:"timestamp"`
	Actor     string          `json:"actor,omitempty"`
}

func newEvent(t EventType, rec approval.Record, actor string) *Event {
	return &Event{Type: t, Approval: rec, Timestamp: time.Now(), Actor: actor}
}
