package verification

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"merosamaj.org/internal/obs"
	"merosamaj.org/internal/profile"
	"merosamaj.org/internal/session"
	"merosamaj.org/internal/store"
	"merosamaj.org/internal/stream"
)

var (
	// ErrForbidden is returned when the acting session is not a superadmin.
	ErrForbidden = errors.New("verification: superadmin role required")
	// ErrInvalidTransition is returned for any edge outside the state machine.
	ErrInvalidTransition = errors.New("verification: transition not permitted")
	// ErrRoleNotUpdated is returned when the status write succeeded but the
	// role write after it failed. The returned record carries the new status.
	ErrRoleNotUpdated = errors.New("verification: status saved but role not updated")
	// ErrInFlight is returned while another mutation of the same record is running.
	ErrInFlight = errors.New("verification: record update already in progress")
)

// RoleStore is the slice of the profile store the service mutates.
type RoleStore interface {
	Profile(ctx context.Context, id string) (profile.Profile, error)
	SetRole(ctx context.Context, id string, role profile.Role) error
}

// Invalidator drops cached session data for an identity.
type Invalidator interface {
	Invalidate(ctx context.Context, id string) error
}

// Publisher announces profile changes.
type Publisher interface {
	Publish(evt stream.Event)
}

// Service performs verification transitions. Every call checks that the
// acting session holds the superadmin role.
type Service struct {
	records  Store
	profiles RoleStore
	cache    Invalidator
	events   Publisher
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithInvalidator drops cached roles after a role write.
func WithInvalidator(inv Invalidator) ServiceOption {
	return func(s *Service) { s.cache = inv }
}

// WithPublisher announces profile_changed after a role write.
func WithPublisher(pub Publisher) ServiceOption {
	return func(s *Service) { s.events = pub }
}

// NewService builds a Service.
func NewService(records Store, profiles RoleStore, opts ...ServiceOption) *Service {
	s := &Service{records: records, profiles: profiles}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func authorize(actor session.State) error {
	if !actor.Is(profile.RoleSuperadmin) {
		return ErrForbidden
	}
	return nil
}

// Pending lists records awaiting review in storage order.
func (s *Service) Pending(ctx context.Context, actor session.State) ([]Record, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	recs, err := s.records.OrganizationsByStatus(ctx, StatusPending)
	if err != nil {
		return nil, store.Persistence("list pending organizations", err)
	}
	return recs, nil
}

// Approved lists approved records ordered by organization name.
func (s *Service) Approved(ctx context.Context, actor session.State) ([]Record, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	recs, err := s.records.OrganizationsByStatus(ctx, StatusApproved)
	if err != nil {
		return nil, store.Persistence("list approved organizations", err)
	}
	SortByOrgName(recs)
	return recs, nil
}

// SortByOrgName orders records by organization name ascending.
func SortByOrgName(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].OrgName != recs[j].OrgName {
			return recs[i].OrgName < recs[j].OrgName
		}
		return recs[i].UserID < recs[j].UserID
	})
}

// Approve marks the record approved and then grants the ngo role. The
// writes are not atomic; if the role write fails the record stays
// approved and Reconcile repairs the role later.
func (s *Service) Approve(ctx context.Context, actor session.State, id string) (Record, error) {
	return s.transition(ctx, actor, id, StatusApproved)
}

// Reject marks a pending record rejected. The role is left unset.
func (s *Service) Reject(ctx context.Context, actor session.State, id string) (Record, error) {
	return s.transition(ctx, actor, id, StatusRejected)
}

// Revoke marks an approved record revoked and clears the role.
func (s *Service) Revoke(ctx context.Context, actor session.State, id string) (Record, error) {
	return s.transition(ctx, actor, id, StatusRevoked)
}

func (s *Service) transition(ctx context.Context, actor session.State, id string, to Status) (Record, error) {
	if err := authorize(actor); err != nil {
		obs.ObserveTransition(string(to), "forbidden")
		return Record{}, err
	}
	rec, err := s.records.Organization(ctx, id)
	if err != nil {
		obs.ObserveTransition(string(to), "failed")
		if errors.Is(err, store.ErrNotFound) {
			return Record{}, err
		}
		return Record{}, store.Persistence("load organization", err)
	}
	if !CanTransition(rec.Status, to) {
		obs.ObserveTransition(string(to), "invalid")
		return rec, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, rec.Status, to)
	}
	if err := s.records.SetVerificationStatus(ctx, id, rec.Status, to); err != nil {
		if errors.Is(err, store.ErrConflict) {
			obs.ObserveTransition(string(to), "invalid")
			return rec, fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, id)
		}
		obs.ObserveTransition(string(to), "failed")
		return rec, store.Persistence("set verification status", err)
	}
	rec.Status = to

	if role, ok := roleAfter(to); ok {
		if err := s.profiles.SetRole(ctx, id, role); err != nil {
			obs.Error("verification status written but role not updated", map[string]any{
				"identity_id": id,
				"status":      string(to),
				"err":         err,
			})
			obs.ObserveTransition(string(to), "partial")
			return rec, fmt.Errorf("%w: %w", ErrRoleNotUpdated, store.Persistence("set role", err))
		}
		s.roleChanged(ctx, id)
	}
	obs.ObserveTransition(string(to), "ok")
	return rec, nil
}

// roleAfter is the role a profile must hold once its record reaches status.
func roleAfter(status Status) (profile.Role, bool) {
	switch status {
	case StatusApproved:
		return profile.RoleNGO, true
	case StatusRevoked:
		return profile.RoleNone, true
	}
	return profile.RoleNone, false
}

func (s *Service) roleChanged(ctx context.Context, id string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			obs.Warn("role cache invalidation failed", map[string]any{"identity_id": id, "err": err})
		}
	}
	if s.events != nil {
		s.events.Publish(stream.Event{IdentityID: id, Kind: stream.KindProfileChanged})
	}
}

// ReconcileReport summarizes a reconciliation pass.
type ReconcileReport struct {
	Checked int      `json:"checked"`
	Fixed   []string `json:"fixed"`
	Missing []string `json:"missing"`
}

// Reconcile derives each profile's role from its record's status and
// repairs drift left by an interrupted approval or revocation. Approved
// records get the ngo role; an ngo role on any other record is cleared.
// Superadmin profiles are never touched.
func (s *Service) Reconcile(ctx context.Context, actor session.State) (ReconcileReport, error) {
	if err := authorize(actor); err != nil {
		return ReconcileReport{}, err
	}
	report := ReconcileReport{Fixed: []string{}, Missing: []string{}}
	for _, status := range []Status{StatusApproved, StatusPending, StatusRejected, StatusRevoked} {
		recs, err := s.records.OrganizationsByStatus(ctx, status)
		if err != nil {
			return report, store.Persistence("list organizations", err)
		}
		for _, rec := range recs {
			report.Checked++
			p, err := s.profiles.Profile(ctx, rec.UserID)
			if errors.Is(err, store.ErrNotFound) {
				report.Missing = append(report.Missing, rec.UserID)
				continue
			}
			if err != nil {
				return report, store.Persistence("load profile", err)
			}
			want, drift := expectedRole(status, p.Role)
			if !drift {
				continue
			}
			if err := s.profiles.SetRole(ctx, rec.UserID, want); err != nil {
				return report, store.Persistence("set role", err)
			}
			s.roleChanged(ctx, rec.UserID)
			report.Fixed = append(report.Fixed, rec.UserID)
		}
	}
	if len(report.Fixed) > 0 {
		obs.Info("verification roles reconciled", map[string]any{"fixed": len(report.Fixed), "checked": report.Checked})
	}
	return report, nil
}

func expectedRole(status Status, have profile.Role) (profile.Role, bool) {
	if have == profile.RoleSuperadmin {
		return have, false
	}
	if status == StatusApproved {
		return profile.RoleNGO, have != profile.RoleNGO
	}
	return profile.RoleNone, have == profile.RoleNGO
}
