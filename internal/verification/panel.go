package verification

import (
	"context"
	"errors"
	"sync"
	"time"

	"merosamaj.org/internal/session"
)

// Entry is a record as shown on the review panel.
type Entry struct {
	Record
	CanApprove bool `json:"can_approve"`
	InFlight   bool `json:"in_flight"`
}

// Snapshot is the panel's current view.
type Snapshot struct {
	Pending  []Entry   `json:"pending"`
	Approved []Entry   `json:"approved"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Panel keeps the pending and approved lists in memory. Open fetches both
// lists; after a successful transition the affected entry is moved locally
// instead of refetching. Each record can have at most one mutation in flight.
type Panel struct {
	svc *Service
	now func() time.Time

	mu       sync.Mutex
	loaded   bool
	loadedAt time.Time
	pending  []Record
	approved []Record
	inFlight map[string]Status
}

// NewPanel builds a panel over svc.
func NewPanel(svc *Service) *Panel {
	return &Panel{svc: svc, now: time.Now, inFlight: make(map[string]Status)}
}

// Open fetches both lists and returns the fresh view. Every visit to the
// review page opens the panel.
func (p *Panel) Open(ctx context.Context, actor session.State) (Snapshot, error) {
	if err := p.load(ctx, actor); err != nil {
		return Snapshot{}, err
	}
	return p.Snapshot(actor)
}

// Snapshot returns the lists as they stand locally, without querying.
func (p *Panel) Snapshot(actor session.State) (Snapshot, error) {
	if err := authorize(actor); err != nil {
		return Snapshot{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Pending:  p.entries(p.pending),
		Approved: p.entries(p.approved),
		LoadedAt: p.loadedAt,
	}, nil
}

func (p *Panel) load(ctx context.Context, actor session.State) error {
	pending, err := p.svc.Pending(ctx, actor)
	if err != nil {
		return err
	}
	approved, err := p.svc.Approved(ctx, actor)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.pending = pending
	p.approved = approved
	p.loaded = true
	p.loadedAt = p.now().UTC()
	p.mu.Unlock()
	return nil
}

func (p *Panel) entries(recs []Record) []Entry {
	out := make([]Entry, 0, len(recs))
	for _, r := range recs {
		_, busy := p.inFlight[r.UserID]
		out = append(out, Entry{Record: r, CanApprove: r.CanApprove(), InFlight: busy})
	}
	return out
}

// Approve approves id and moves it from pending to approved.
func (p *Panel) Approve(ctx context.Context, actor session.State, id string) (Record, error) {
	return p.mutate(id, StatusApproved, func() (Record, error) { return p.svc.Approve(ctx, actor, id) })
}

// Reject rejects id and drops it from pending.
func (p *Panel) Reject(ctx context.Context, actor session.State, id string) (Record, error) {
	return p.mutate(id, StatusRejected, func() (Record, error) { return p.svc.Reject(ctx, actor, id) })
}

// Revoke revokes id and drops it from approved.
func (p *Panel) Revoke(ctx context.Context, actor session.State, id string) (Record, error) {
	return p.mutate(id, StatusRevoked, func() (Record, error) { return p.svc.Revoke(ctx, actor, id) })
}

func (p *Panel) mutate(id string, to Status, call func() (Record, error)) (Record, error) {
	p.mu.Lock()
	if _, busy := p.inFlight[id]; busy {
		p.mu.Unlock()
		return Record{}, ErrInFlight
	}
	p.inFlight[id] = to
	p.mu.Unlock()

	rec, err := call()

	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, id)
	// A failed role write still leaves the new status stored, so the entry
	// moves like a success; Reconcile repairs the role.
	if err != nil && !errors.Is(err, ErrRoleNotUpdated) {
		return rec, err
	}
	if p.loaded {
		p.move(id, to, rec)
	}
	return rec, err
}

func (p *Panel) move(id string, to Status, rec Record) {
	switch to {
	case StatusApproved:
		p.pending = without(p.pending, id)
		p.approved = append(without(p.approved, id), rec)
		SortByOrgName(p.approved)
	case StatusRejected:
		p.pending = without(p.pending, id)
	case StatusRevoked:
		p.approved = without(p.approved, id)
	}
}

func without(recs []Record, id string) []Record {
	out := recs[:0:0]
	for _, r := range recs {
		if r.UserID != id {
			out = append(out, r)
		}
	}
	return out
}
