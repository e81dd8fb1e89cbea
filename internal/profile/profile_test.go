package profile

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"volunteer":   RoleVolunteer,
		" NGO ":       RoleNGO,
		"superadmin":  RoleSuperadmin,
		"":            RoleNone,
		"admin":       RoleNone,
		"super admin": RoleNone,
	}
	for in, want := range cases {
		if got := ParseRole(in); got != want {
			t.Fatalf("ParseRole(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRoleValid(t *testing.T) {
	if RoleNone.Valid() {
		t.Fatal("RoleNone must not be valid")
	}
	if !RoleNGO.Valid() {
		t.Fatal("RoleNGO must be valid")
	}
	if Role("NGO").Valid() {
		t.Fatal("non-canonical spelling must not be valid")
	}
}

func TestRoleJSON(t *testing.T) {
	data, err := json.Marshal(Profile{ID: "u1", Role: RoleNone})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"role":null`) {
		t.Fatalf("expected null role, got %s", data)
	}
	var p Profile
	if err := json.Unmarshal([]byte(`{"id":"u2","role":"hacker"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Role != RoleNone {
		t.Fatalf("unknown role should resolve to none, got %q", p.Role)
	}
	if err := json.Unmarshal([]byte(`{"id":"u3","role":"ngo"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Role != RoleNGO {
		t.Fatalf("expected ngo, got %q", p.Role)
	}
}
