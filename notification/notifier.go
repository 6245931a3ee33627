package notification

import (
	"context"
	"log/slog"

	"github.com/byteness/trustgate/approval"
)

// Notifier delivers a notification.Event to some backend (webhook, Slack,
// ...). Delivery failures are the caller's to log; the Approval
// Orchestrator never waits on or fails because of them.
type Notifier interface {
	Notify(ctx context.Context, event *Event) error
}

// Adapter satisfies approval.Notifier by turning each orchestrator callback
// into an Event and fanning it out to every configured backend. It is the
// only point of contact between the approval and notification packages,
// and it depends on approval only for the Record type — approval itself
// never imports notification.
//
// Fan-out lives here rather than in a separate multi-notifier type: nothing
// else ever addresses a group of backends as a single Notifier, so a
// standalone composite would exist only to be immediately wrapped by this
// one.
type Adapter struct {
	backends []Notifier
	logger   *slog.Logger
}

// NewAdapter builds an Adapter over backends, dropping nil entries (a
// backend newNotifier disabled after a construction error). logger
// defaults to slog.Default() when nil. With zero backends, every NotifyX
// call is a no-op.
func NewAdapter(logger *slog.Logger, backends ...Notifier) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	filtered := make([]Notifier, 0, len(backends))
	for _, b := range backends {
		if b != nil {
			filtered = append(filtered, b)
		}
	}
	return &Adapter{backends: filtered, logger: logger}
}

// deliver fans event out to every backend. A backend's failure to deliver
// is logged, not returned: the orchestrator callbacks this feeds
// (NotifyCreated, NotifyDecided, NotifyExpired) are fire-and-forget by
// contract, and a delivery failure here must not look like a dropped
// approval in the logs — it gets its own line instead of vanishing into an
// error nobody reads.
func (a *Adapter) deliver(ctx context.Context, event *Event) {
	for _, b := range a.backends {
		if err := b.Notify(ctx, event); err != nil {
			a.logger.Warn("notification delivery failed",
				"event_type", event.Type.String(),
				"approval_id", event.Approval.ID,
				"tenant_id", event.Approval.TenantID,
				"error", err)
		}
	}
}

func (a *Adapter) NotifyCreated(ctx context.Context, rec approval.Record) {
	a.deliver(ctx, newEvent(EventApprovalCreated, rec, ""))
}

func (a *Adapter) NotifyDecided(ctx context.Context, rec approval.Record, actor string) {
	t := EventApprovalApproved
	if rec.Status == approval.StatusDenied {
		t = EventApprovalDenied
	}
	a.deliver(ctx, newEvent(t, rec, actor))
}

func (a *Adapter) NotifyExpired(ctx context.Context, rec approval.Record) {
	a.deliver(ctx, newEvent(EventApprovalExpired, rec, "system"))
}
