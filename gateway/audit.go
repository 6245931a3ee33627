package gateway

import (
	"time"

	"github.com/byteness/trustgate/approval"
	"github.com/byteness/trustgate/logging"
	"github.com/byteness/trustgate/notification"
)

func approvalCreatedEntry(rec approval.Record) logging.ApprovalLogEntry {
	return logging.NewApprovalLogEntry(&notification.Event{
		Type:      notification.EventApprovalCreated,
		Approval:  rec,
		Timestamp: time.Now(),
	})
}

func approvalDecidedEntry(rec approval.Record) logging.ApprovalLogEntry {
	t := notification.EventApprovalApproved
	if rec.Status == approval.StatusDenied {
		t = notification.EventApprovalDenied
	}
	return logging.NewApprovalLogEntry(&notification.Event{
		Type:      t,
		Approval:  rec,
		Timestamp: time.Now(),
		Actor:     rec.DecidedBy,
	})
}
