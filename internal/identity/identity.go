// Package identity is the service's identity provider: email/password
// accounts, signed session tokens and sign-in/sign-out notifications.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Identity is an authenticated end user as seen by the rest of the service.
// It is owned by the provider and read-only elsewhere.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	// Generation is the account's session generation. Tokens carry it and
	// stop authenticating once sign-out moves the account past it.
	Generation int64 `json:"-"`
}

// Account is the provider-side credential record behind an Identity.
type Account struct {
	Identity
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccountStore persists accounts. CreateAccount returns store.ErrConflict on
// a duplicate email; lookups return store.ErrNotFound.
type AccountStore interface {
	CreateAccount(ctx context.Context, acc Account) error
	AccountByID(ctx context.Context, id string) (Account, error)
	AccountByEmail(ctx context.Context, email string) (Account, error)
	SetDisplayName(ctx context.Context, id, name string) error
	// RevokeSessions advances the account's session generation.
	RevokeSessions(ctx context.Context, id string) error
}

// Provider error codes surfaced to callers.
const (
	CodeEmailAlreadyInUse = "auth/email-already-in-use"
	CodeWeakPassword      = "auth/weak-password"
	CodeInvalidEmail      = "auth/invalid-email"
	CodeInvalidCredential = "auth/invalid-credential"
	CodeUserNotFound      = "auth/user-not-found"
)

// ProviderError is a failure reported by the identity provider with a stable code.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// ProviderCode extracts the provider code from err, if any.
func ProviderCode(err error) (string, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return "", false
}

var (
	ErrInvalidToken   = errors.New("identity: invalid token")
	ErrTokensDisabled = errors.New("identity: token secret is not configured")
)
