package guard

import (
	"testing"

	"merosamaj.org/internal/identity"
	"merosamaj.org/internal/profile"
	"merosamaj.org/internal/session"
)

func signedIn(role profile.Role) session.State {
	return session.State{Identity: &identity.Identity{ID: "u1", Email: "u1@example.org"}, Role: role}
}

func TestAuthGuard(t *testing.T) {
	tests := []struct {
		name  string
		state session.State
		want  Decision
	}{
		{"loading", session.Pending(), Decision{Outcome: Wait, Placeholder: LoadingUser}},
		{"anonymous", session.Anonymous(), Decision{Outcome: Redirect, Location: LoginPath, Replace: true}},
		{"roleless", signedIn(profile.RoleNone), Decision{Outcome: Render}},
		{"volunteer", signedIn(profile.RoleVolunteer), Decision{Outcome: Render}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := (Auth{}).Check(tc.state); got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestRoleGuard(t *testing.T) {
	g := Role{Required: profile.RoleSuperadmin}
	if d := g.Check(session.Pending()); d.Outcome != Wait || d.Placeholder != VerifyingAccess {
		t.Fatalf("loading: %+v", d)
	}
	for _, role := range []profile.Role{profile.RoleNone, profile.RoleVolunteer, profile.RoleNGO} {
		if d := g.Check(signedIn(role)); d.Outcome != Redirect || d.Location != HomePath {
			t.Fatalf("role %q: %+v", role, d)
		}
	}
	if d := g.Check(signedIn(profile.RoleSuperadmin)); !d.Allowed() {
		t.Fatalf("superadmin denied: %+v", d)
	}
	if d := (Role{}).Check(signedIn(profile.RoleNone)); d.Allowed() {
		t.Fatalf("empty required role must never match")
	}
}

func TestRouteScenarios(t *testing.T) {
	tests := []struct {
		path     string
		state    session.State
		outcome  Outcome
		location string
	}{
		{"/dashboard", session.Anonymous(), Redirect, LoginPath},
		{"/dashboard", signedIn(profile.RoleNone), Render, ""},
		{"/superadmin/verify-ngos", signedIn(profile.RoleVolunteer), Redirect, HomePath},
		{"/superadmin/verify-ngos", signedIn(profile.RoleSuperadmin), Render, ""},
		{"/superadmin/verify-ngos", session.Anonymous(), Redirect, LoginPath},
		{"/superadmin/verify-ngos/", signedIn(profile.RoleSuperadmin), Render, ""},
		{"/organizations", session.Anonymous(), Render, ""},
		{"/donate", session.Pending(), Wait, ""},
	}
	for _, tc := range tests {
		route, ok := Lookup(tc.path)
		if !ok {
			t.Fatalf("%s: route not found", tc.path)
		}
		d := Decide(tc.state, route.Guards...)
		if d.Outcome != tc.outcome || d.Location != tc.location {
			t.Fatalf("%s: got %s %q, want %s %q", tc.path, d.Outcome, d.Location, tc.outcome, tc.location)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	for _, p := range []string{"/issues/42", "/admin", "/superadmin"} {
		if _, ok := Lookup(p); ok {
			t.Fatalf("%s should not resolve", p)
		}
	}
	if r, ok := Lookup(""); !ok || r.View != "home" {
		t.Fatalf("empty path should resolve to home")
	}
}
