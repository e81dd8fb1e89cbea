package session

import (
	"context"
	"errors"

	"merosamaj.org/internal/identity"
	"merosamaj.org/internal/obs"
	"merosamaj.org/internal/profile"
	"merosamaj.org/internal/store"
)

// ProfileReader loads the users/{identityId} document.
type ProfileReader interface {
	Profile(ctx context.Context, id string) (profile.Profile, error)
}

// CachedProfile is the slice of a profile the resolver needs.
type CachedProfile struct {
	Name string       `json:"name"`
	Role profile.Role `json:"role"`
}

// Cache short-circuits profile reads. Implementations must be safe for
// concurrent use; errors are logged and treated as misses.
type Cache interface {
	Get(ctx context.Context, id string) (CachedProfile, bool, error)
	Put(ctx context.Context, id string, p CachedProfile) error
	Invalidate(ctx context.Context, id string) error
}

// Resolver maps an identity to a session State.
type Resolver struct {
	profiles ProfileReader
	cache    Cache
}

// NewResolver builds a resolver; cache may be nil.
func NewResolver(profiles ProfileReader, cache Cache) *Resolver {
	return &Resolver{profiles: profiles, cache: cache}
}

// Resolve never fails: a missing or unreadable profile yields an
// authenticated session without a role.
func (r *Resolver) Resolve(ctx context.Context, ident *identity.Identity) State {
	if ident == nil {
		obs.ObserveSession("anonymous")
		return Anonymous()
	}
	who := *ident
	st := State{Identity: &who, Name: who.DisplayName}

	if r.cache != nil {
		cached, ok, err := r.cache.Get(ctx, who.ID)
		if err != nil {
			obs.Warn("session cache read failed", map[string]any{"identity_id": who.ID, "err": err})
		} else if ok {
			obs.ObserveSession("cached")
			return withProfile(st, cached)
		}
	}

	p, err := r.profiles.Profile(ctx, who.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		obs.Warn("profile not found for identity", map[string]any{"identity_id": who.ID})
		obs.ObserveSession("missing")
		return st
	case err != nil:
		obs.Error("profile read failed", map[string]any{"identity_id": who.ID, "err": err})
		obs.ObserveSession("failed")
		return st
	}

	cp := CachedProfile{Name: p.Name, Role: profile.ParseRole(string(p.Role))}
	if r.cache != nil {
		if err := r.cache.Put(ctx, who.ID, cp); err != nil {
			obs.Warn("session cache write failed", map[string]any{"identity_id": who.ID, "err": err})
		}
	}
	obs.ObserveSession("profile")
	return withProfile(st, cp)
}

// Invalidate drops any cached profile for id.
func (r *Resolver) Invalidate(ctx context.Context, id string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Invalidate(ctx, id)
}

func withProfile(st State, p CachedProfile) State {
	st.Role = profile.ParseRole(string(p.Role))
	if p.Name != "" {
		st.Name = p.Name
	}
	return st
}
