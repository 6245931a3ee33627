package approval

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an approval id is unknown.
var ErrNotFound = errors.New("approval not found")

// ErrAlreadyDecided is returned when Decide is called on a record that has
// already reached a terminal state.
var ErrAlreadyDecided = errors.New("approval already decided")

// Notifier is the subset of notification.Notifier the orchestrator depends
// on, declared locally to avoid an import cycle (notification events
// describe approvals, so notification cannot import this package back).
type Notifier interface {
	NotifyCreated(ctx context.Context, rec Record)
	NotifyDecided(ctx context.Context, rec Record, actor string)
	NotifyExpired(ctx context.Context, rec Record)
}

// Orchestrator is the Approval Orchestrator (component D).
type Orchestrator struct {
	table    *table
	notifier Notifier
	mirror   Mirror
	ttl      time.Duration
	now      func() time.Time
}

// New creates an Orchestrator. notifier may be nil, in which case
// notifications are skipped entirely (still best-effort, just a no-op).
func New(notifier Notifier, ttl time.Duration) *Orchestrator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Orchestrator{
		table:    newTable(),
		notifier: notifier,
		ttl:      ttl,
		now:      time.Now,
	}
}

// NewWithMirror is New plus a Mirror, letting Status and List see records
// created on other gateway replicas (see Mirror's doc comment).
func NewWithMirror(notifier Notifier, ttl time.Duration, mirror Mirror) *Orchestrator {
	o := New(notifier, ttl)
	o.mirror = mirror
	return o
}

func (o *Orchestrator) mirrorSave(rec Record) {
	if o.mirror != nil {
		go o.mirror.Save(context.Background(), rec)
	}
}

// Request creates a new PENDING approval record and fires a best-effort,
// non-blocking notification. A failure to notify never blocks or fails the
// approval itself.
func (o *Orchestrator) Request(tenant, sourceRequestID string, details Details) Record {
	now := o.now()
	rec := Record{
		ID:              NewID(),
		TenantID:        tenant,
		SourceRequestID: sourceRequestID,
		Status:          StatusPending,
		CreatedAt:       now,
		ExpiresAt:       now.Add(o.ttl),
		Details:         details,
	}
	o.table.put(rec.ID, newRendezvous(rec))
	o.mirrorSave(rec)

	if o.notifier != nil {
		go o.notifier.NotifyCreated(context.Background(), rec)
	}
	return rec
}

// Decide transitions a PENDING record to APPROVED or DENIED and signals its
// rendezvous. status must be StatusApproved or StatusDenied. Deciding an
// already-terminal record is rejected with ErrAlreadyDecided and leaves it
// unchanged — the second decision is a no-op, not an overwrite.
func (o *Orchestrator) Decide(id string, status Status, decider string) (Record, error) {
	if status != StatusApproved && status != StatusDenied {
		return Record{}, errors.New("status must be approved or denied")
	}
	rv, ok := o.table.get(id)
	if !ok {
		return Record{}, ErrNotFound
	}

	decidedAt := o.now()
	rec, transitioned := rv.transition(status, decider, func() Record {
		r := rv.record
		r.Status = status
		r.DecidedBy = decider
		r.DecidedAt = decidedAt
		return r
	})
	if !transitioned {
		return rec, ErrAlreadyDecided
	}
	o.mirrorSave(rec)

	if o.notifier != nil {
		go o.notifier.NotifyDecided(context.Background(), rec, decider)
	}
	return rec, nil
}

// Wait blocks until id leaves PENDING, ctx is cancelled, or timeout elapses,
// whichever comes first. It returns true iff the final state is APPROVED.
// On timeout it transitions the record to EXPIRED itself, so the caller and
// any other concurrent waiter converge on the same terminal outcome. A
// context cancellation (client disconnect) returns false without mutating
// the record: an eventual decision must still be recorded and auditable.
//
// Because rv.done is a channel closed exactly once on terminal transition,
// a Wait that registers its select before Decide runs and one that
// registers after both observe the close — there is no window where a
// waiter can park forever.
func (o *Orchestrator) Wait(ctx context.Context, id string, timeout time.Duration) (bool, error) {
	rv, ok := o.table.get(id)
	if !ok {
		return false, ErrNotFound
	}

	if rec := rv.snapshot(); rec.Status.IsTerminal() {
		return rec.Status == StatusApproved, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-rv.done:
		return rv.snapshot().Status == StatusApproved, nil
	case <-timer.C:
		rv.transition(StatusExpired, "", func() Record {
			r := rv.record
			r.Status = StatusExpired
			r.DecidedAt = o.now()
			return r
		})
		o.mirrorSave(rv.snapshot())
		if o.notifier != nil {
			go o.notifier.NotifyExpired(context.Background(), rv.snapshot())
		}
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// List returns a snapshot of every approval record the orchestrator
// currently holds, in no particular order. Intended for an operator-facing
// listing (trustgatectl) rather than the hot admission path. When a Mirror
// is configured, records created on other replicas are merged in, the
// local copy winning on conflict since it is the more recent one this
// process has observed.
func (o *Orchestrator) List() []Record {
	all := o.table.all()
	out := make(map[string]Record, len(all))
	for _, rv := range all {
		rec := rv.snapshot()
		out[rec.ID] = rec
	}

	if o.mirror != nil {
		for _, rec := range o.mirror.All(context.Background()) {
			if _, ok := out[rec.ID]; !ok {
				out[rec.ID] = rec
			}
		}
	}

	result := make([]Record, 0, len(out))
	for _, rec := range out {
		result = append(result, rec)
	}
	return result
}

// Status returns a snapshot of the record, or (Record{}, false) if id is
// unknown to this replica and to the Mirror, if any.
func (o *Orchestrator) Status(id string) (Record, bool) {
	rv, ok := o.table.get(id)
	if ok {
		return rv.snapshot(), true
	}
	if o.mirror != nil {
		return o.mirror.Load(context.Background(), id)
	}
	return Record{}, false
}

// SweepExpired transitions every still-PENDING record whose TTL has passed
// to EXPIRED and signals its rendezvous, unblocking any remaining waiters.
// It returns the number of records expired.
func (o *Orchestrator) SweepExpired() int {
	now := o.now()
	n := 0
	for _, rv := range o.table.all() {
		rec := rv.snapshot()
		if rec.Status != StatusPending || !now.After(rec.ExpiresAt) {
			continue
		}
		_, transitioned := rv.transition(StatusExpired, "", func() Record {
			r := rv.record
			r.Status = StatusExpired
			r.DecidedAt = now
			return r
		})
		if transitioned {
			n++
			o.mirrorSave(rv.snapshot())
			if o.notifier != nil {
				go o.notifier.NotifyExpired(context.Background(), rv.snapshot())
			}
		}
	}
	return n
}
