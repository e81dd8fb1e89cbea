// Package memory is an in-process implementation of every store interface,
// used by tests and by DSN-less development runs.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"merosamaj.org/internal/donation"
	"merosamaj.org/internal/identity"
	"merosamaj.org/internal/profile"
	"merosamaj.org/internal/store"
	"merosamaj.org/internal/verification"
)

var (
	_ identity.AccountStore = (*Store)(nil)
	_ profile.Store         = (*Store)(nil)
	_ verification.Store    = (*Store)(nil)
	_ donation.Store        = (*Store)(nil)
)

// Store keeps all collections in maps guarded by one RWMutex. Writes to the
// same key are last-write-wins.
type Store struct {
	mu        sync.RWMutex
	accounts  map[string]identity.Account
	byEmail   map[string]string
	profiles  map[string]profile.Profile
	orgs      map[string]verification.Record
	orgOrder  []string
	donations []donation.FoodDonation
}

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts: make(map[string]identity.Account),
		byEmail:  make(map[string]string),
		profiles: make(map[string]profile.Profile),
		orgs:     make(map[string]verification.Record),
	}
}

func (s *Store) CreateAccount(_ context.Context, acc identity.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(acc.Email)
	if _, ok := s.byEmail[email]; ok {
		return store.ErrConflict
	}
	if _, ok := s.accounts[acc.ID]; ok {
		return store.ErrConflict
	}
	s.accounts[acc.ID] = acc
	s.byEmail[email] = acc.ID
	return nil
}

func (s *Store) AccountByID(_ context.Context, id string) (identity.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return identity.Account{}, store.ErrNotFound
	}
	return acc, nil
}

func (s *Store) AccountByEmail(_ context.Context, email string) (identity.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return identity.Account{}, store.ErrNotFound
	}
	return s.accounts[id], nil
}

func (s *Store) SetDisplayName(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	acc.DisplayName = name
	s.accounts[id] = acc
	return nil
}

func (s *Store) RevokeSessions(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	acc.Generation++
	s.accounts[id] = acc
	return nil
}

func (s *Store) PutProfile(_ context.Context, p profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
	return nil
}

func (s *Store) Profile(_ context.Context, id string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return profile.Profile{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) SetRole(_ context.Context, id string, role profile.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Role = role
	s.profiles[id] = p
	return nil
}

func (s *Store) PutOrganization(_ context.Context, rec verification.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[rec.UserID]; !ok {
		s.orgOrder = append(s.orgOrder, rec.UserID)
	}
	rec.FocusAreas = slices.Clone(rec.FocusAreas)
	s.orgs[rec.UserID] = rec
	return nil
}

func (s *Store) Organization(_ context.Context, id string) (verification.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.orgs[id]
	if !ok {
		return verification.Record{}, store.ErrNotFound
	}
	rec.FocusAreas = slices.Clone(rec.FocusAreas)
	return rec, nil
}

func (s *Store) OrganizationsByStatus(_ context.Context, status verification.Status) ([]verification.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []verification.Record
	for _, id := range s.orgOrder {
		rec := s.orgs[id]
		if rec.Status != status {
			continue
		}
		rec.FocusAreas = slices.Clone(rec.FocusAreas)
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) SetVerificationStatus(_ context.Context, id string, from, to verification.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.orgs[id]
	if !ok || rec.Status != from {
		return store.ErrConflict
	}
	rec.Status = to
	s.orgs[id] = rec
	return nil
}

func (s *Store) CreateFoodDonation(_ context.Context, d donation.FoodDonation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.donations {
		if existing.ID == d.ID {
			return store.ErrConflict
		}
	}
	s.donations = append(s.donations, d)
	return nil
}

func (s *Store) FoodDonations(_ context.Context, status string, limit int) ([]donation.FoodDonation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []donation.FoodDonation
	for _, d := range s.donations {
		if status != "" && d.Status != status {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
