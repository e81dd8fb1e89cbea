// Package profile models the per-identity user profile document
// (users/{identityId}) and its role field.
package profile

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Role governs which views an identity can reach. RoleNone is the unset role.
type Role string

const (
	RoleNone       Role = ""
	RoleVolunteer  Role = "volunteer"
	RoleNGO        Role = "ngo"
	RoleSuperadmin Role = "superadmin"
)

// ParseRole normalizes a stored role value. Anything outside the known set,
// including an empty or missing value, resolves to RoleNone.
func ParseRole(raw string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleVolunteer, RoleNGO, RoleSuperadmin:
		return r
	default:
		return RoleNone
	}
}

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	return ParseRole(string(r)) == r && r != RoleNone
}

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}

// MarshalJSON renders RoleNone as null, matching the stored document shape.
func (r Role) MarshalJSON() ([]byte, error) {
	if r == RoleNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

// UnmarshalJSON accepts null or a role string; unknown values become RoleNone.
func (r *Role) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = RoleNone
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = ParseRole(raw)
	return nil
}

// Profile is the users/{identityId} document.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists profiles. One profile exists per identity id.
type Store interface {
	// PutProfile creates or replaces the profile keyed by p.ID.
	PutProfile(ctx context.Context, p Profile) error
	// Profile returns store.ErrNotFound when no profile exists.
	Profile(ctx context.Context, id string) (Profile, error)
	// SetRole updates only the role field; store.ErrNotFound when missing.
	SetRole(ctx context.Context, id string, role Role) error
}
