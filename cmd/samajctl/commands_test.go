package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"merosamaj.org/internal/identity"
	"merosamaj.org/internal/profile"
	"merosamaj.org/internal/store/memory"
	"merosamaj.org/internal/verification"
)

type recordingCache struct{ ids []string }

func (c *recordingCache) Invalidate(_ context.Context, id string) error {
	c.ids = append(c.ids, id)
	return nil
}

func seedAccount(t *testing.T, mem *memory.Store, id, email string) {
	t.Helper()
	err := mem.CreateAccount(context.Background(), identity.Account{
		Identity: identity.Identity{ID: id, Email: email, DisplayName: "Operator"},
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func TestGrantSuperadminCreatesMissingProfile(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	seedAccount(t, mem, "u1", "ops@merosamaj.org")
	cache := &recordingCache{}
	e := &env{store: mem, cache: cache, out: &bytes.Buffer{}}

	id, err := grantSuperadmin(ctx, e, " OPS@merosamaj.org ", time.Now())
	if err != nil {
		t.Fatalf("grantSuperadmin: %v", err)
	}
	p, err := mem.Profile(ctx, id)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.Role != profile.RoleSuperadmin || p.Name != "Operator" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if len(cache.ids) != 1 || cache.ids[0] != "u1" {
		t.Fatalf("expected cache invalidation, got %v", cache.ids)
	}
}

func TestGrantSuperadminUnknownEmail(t *testing.T) {
	e := &env{store: memory.New(), out: &bytes.Buffer{}}
	if _, err := grantSuperadmin(context.Background(), e, "nobody@example.org", time.Now()); err == nil {
		t.Fatal("expected error for unknown email")
	}
}

func TestListAndReconcile(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	if err := mem.PutProfile(ctx, profile.Profile{ID: "n1", Name: "River Trust"}); err != nil {
		t.Fatal(err)
	}
	if err := mem.PutOrganization(ctx, verification.Record{
		UserID:      "n1",
		OrgName:     "River Trust",
		Status:      verification.StatusApproved,
		DocumentURL: "https://docs.example/n1",
	}); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	e := &env{store: mem, out: &out}

	if err := runListNGOs(ctx, e, []string{"--status", "approved"}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out.String(), "River Trust") {
		t.Fatalf("listing missing record:\n%s", out.String())
	}
	if err := runListNGOs(ctx, e, []string{"-s", "bogus"}); err == nil {
		t.Fatal("expected error for unknown status")
	}

	out.Reset()
	if err := runReconcile(ctx, e, nil); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !strings.Contains(out.String(), "fixed n1") {
		t.Fatalf("expected n1 to be fixed:\n%s", out.String())
	}
	p, _ := mem.Profile(ctx, "n1")
	if p.Role != profile.RoleNGO {
		t.Fatalf("approved record must grant ngo role, got %s", p.Role)
	}
}
