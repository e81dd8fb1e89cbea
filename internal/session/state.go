// Package session turns an identity into the normalized {identity, role,
// loading} tuple the rest of the service gates on.
package session

import (
	"context"

	"merosamaj.org/internal/identity"
	"merosamaj.org/internal/profile"
)

// State is the published session tuple. Readers never mutate it.
type State struct {
	Identity *identity.Identity `json:"identity"`
	Name     string             `json:"name,omitempty"`
	Role     profile.Role       `json:"role"`
	Loading  bool               `json:"loading"`
}

// Anonymous is the resolved state with no identity.
func Anonymous() State {
	return State{}
}

// Pending is the state before the first resolution completes.
func Pending() State {
	return State{Loading: true}
}

// Authenticated reports whether an identity is present.
func (s State) Authenticated() bool {
	return s.Identity != nil
}

// IdentityID returns the identity id or "".
func (s State) IdentityID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.ID
}

// Is reports whether the session holds exactly role.
func (s State) Is(role profile.Role) bool {
	return !s.Loading && s.Identity != nil && role != profile.RoleNone && s.Role == role
}

type stateKey struct{}

// WithState attaches the resolved session to ctx.
func WithState(ctx context.Context, st State) context.Context {
	return context.WithValue(ctx, stateKey{}, st)
}

// FromContext returns the session attached to ctx; anonymous when absent.
func FromContext(ctx context.Context) (State, bool) {
	if ctx == nil {
		return Anonymous(), false
	}
	st, ok := ctx.Value(stateKey{}).(State)
	if !ok {
		return Anonymous(), false
	}
	return st, true
}
