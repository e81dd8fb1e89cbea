package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"merosamaj.org/internal/identity"
	"merosamaj.org/internal/store/memory"
	"merosamaj.org/internal/stream"
)

type recorder struct{ events []stream.Event }

func (r *recorder) Publish(evt stream.Event) { r.events = append(r.events, evt) }

func newProvider(t *testing.T, opts ...identity.Option) (*identity.Provider, *recorder) {
	t.Helper()
	rec := &recorder{}
	base := []identity.Option{
		identity.WithSecret("test-secret"),
		identity.WithHashCost(bcrypt.MinCost),
		identity.WithPublisher(rec),
	}
	p, err := identity.NewProvider(memory.New(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p, rec
}

func TestCreateAccountAndSignIn(t *testing.T) {
	ctx := context.Background()
	p, rec := newProvider(t)

	ident, err := p.CreateAccount(ctx, "  Asha@Example.org ", "secret12")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if ident.Email != "asha@example.org" {
		t.Fatalf("expected normalized email, got %q", ident.Email)
	}
	if err := p.UpdateDisplayName(ctx, ident.ID, "Asha"); err != nil {
		t.Fatalf("UpdateDisplayName: %v", err)
	}

	tok, signedIn, err := p.SignIn(ctx, "asha@example.org", "secret12")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if signedIn.ID != ident.ID || signedIn.DisplayName != "Asha" {
		t.Fatalf("unexpected identity %+v", signedIn)
	}

	got, err := p.Authenticate(ctx, tok.Value)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != ident.ID {
		t.Fatalf("token subject mismatch: %s", got.ID)
	}
	if len(rec.events) != 2 || rec.events[0].Kind != stream.KindSignedIn {
		t.Fatalf("expected two sign-in events, got %+v", rec.events)
	}
}

func TestCreateAccountProviderCodes(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)
	if _, err := p.CreateAccount(ctx, "dup@example.org", "secret12"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	cases := []struct {
		name     string
		email    string
		password string
		code     string
	}{
		{"duplicate", "DUP@example.org", "secret12", identity.CodeEmailAlreadyInUse},
		{"weak", "new@example.org", "123", identity.CodeWeakPassword},
		{"bad email", "not an email", "secret12", identity.CodeInvalidEmail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.CreateAccount(ctx, tc.email, tc.password)
			code, ok := identity.ProviderCode(err)
			if !ok || code != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestSignInRejectsWrongPassword(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)
	if _, err := p.CreateAccount(ctx, "a@example.org", "secret12"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	for _, pw := range []string{"wrong", ""} {
		_, _, err := p.SignIn(ctx, "a@example.org", pw)
		if code, _ := identity.ProviderCode(err); code != identity.CodeInvalidCredential {
			t.Fatalf("expected invalid credential, got %v", err)
		}
	}
	_, _, err := p.SignIn(ctx, "missing@example.org", "secret12")
	if code, _ := identity.ProviderCode(err); code != identity.CodeInvalidCredential {
		t.Fatalf("expected invalid credential for unknown user, got %v", err)
	}
}

func TestSignOutRevokesIssuedTokens(t *testing.T) {
	ctx := context.Background()
	p, rec := newProvider(t)
	ident, err := p.CreateAccount(ctx, "ravi@example.org", "secret12")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	old, _, err := p.SignIn(ctx, "ravi@example.org", "secret12")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	if err := p.SignOut(ctx, ident.ID); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := p.Authenticate(ctx, old.Value); !errors.Is(err, identity.ErrInvalidToken) {
		t.Fatalf("token from before sign-out must be refused, got %v", err)
	}
	if last := rec.events[len(rec.events)-1]; last.Kind != stream.KindSignedOut {
		t.Fatalf("expected sign-out event, got %+v", last)
	}

	fresh, _, err := p.SignIn(ctx, "ravi@example.org", "secret12")
	if err != nil {
		t.Fatalf("SignIn again: %v", err)
	}
	if _, err := p.Authenticate(ctx, fresh.Value); err != nil {
		t.Fatalf("new token should authenticate: %v", err)
	}
	if err := p.SignOut(ctx, "no-such-account"); err != nil {
		t.Fatalf("sign-out of unknown account: %v", err)
	}
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	p, _ := newProvider(t, identity.WithClock(func() time.Time { return now }), identity.WithTokenTTL(time.Minute))
	ident, err := p.CreateAccount(ctx, "t@example.org", "secret12")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	tok, err := p.Issue(ident)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := p.Verify(tok.Value); err != nil {
		t.Fatalf("Verify fresh token: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := p.Verify(tok.Value); !errors.Is(err, identity.ErrInvalidToken) {
		t.Fatalf("expected expired token to be invalid, got %v", err)
	}

	other, _ := newProvider(t, identity.WithSecret("other-secret"))
	foreign, err := other.Issue(ident)
	if err != nil {
		t.Fatalf("Issue foreign: %v", err)
	}
	now = time.Now()
	if _, err := p.Verify(foreign.Value); !errors.Is(err, identity.ErrInvalidToken) {
		t.Fatalf("expected foreign token to be invalid, got %v", err)
	}
}

func TestIssueWithoutSecret(t *testing.T) {
	p, err := identity.NewProvider(memory.New())
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if p.SupportsTokens() {
		t.Fatal("expected tokens disabled")
	}
	if _, err := p.Issue(identity.Identity{ID: "x"}); !errors.Is(err, identity.ErrTokensDisabled) {
		t.Fatalf("expected ErrTokensDisabled, got %v", err)
	}
}
