package identity

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"merosamaj.org/internal/ids"
	"merosamaj.org/internal/store"
	"merosamaj.org/internal/stream"
)

const (
	defaultTokenTTL       = 24 * time.Hour
	defaultMinPasswordLen = 6
)

// Publisher receives identity state changes.
type Publisher interface {
	Publish(evt stream.Event)
}

// Provider creates accounts, authenticates credentials and issues tokens.
type Provider struct {
	accounts       AccountStore
	events         Publisher
	secret         []byte
	issuer         string
	tokenTTL       time.Duration
	minPasswordLen int
	hashCost       int
	now            func() time.Time
}

// Option configures Provider behavior.
type Option func(*Provider) error

// WithSecret enables HS256 session tokens.
func WithSecret(secret string) Option {
	return func(p *Provider) error {
		if s := strings.TrimSpace(secret); s != "" {
			p.secret = []byte(s)
		}
		return nil
	}
}

// WithTokenTTL configures session token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(p *Provider) error {
		if ttl > 0 {
			p.tokenTTL = ttl
		}
		return nil
	}
}

// WithMinPasswordLength sets the weak-password threshold.
func WithMinPasswordLength(n int) Option {
	return func(p *Provider) error {
		if n < 1 {
			return errors.New("identity: minimum password length must be positive")
		}
		p.minPasswordLen = n
		return nil
	}
}

// WithPublisher routes sign-in/sign-out notifications to pub.
func WithPublisher(pub Publisher) Option {
	return func(p *Provider) error {
		p.events = pub
		return nil
	}
}

// WithHashCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func WithHashCost(cost int) Option {
	return func(p *Provider) error {
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return errors.New("identity: bcrypt cost out of range")
		}
		p.hashCost = cost
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(p *Provider) error {
		if fn != nil {
			p.now = fn
		}
		return nil
	}
}

// NewProvider constructs a Provider over accounts.
func NewProvider(accounts AccountStore, opts ...Option) (*Provider, error) {
	if accounts == nil {
		return nil, errors.New("identity: account store is required")
	}
	p := &Provider{
		accounts:       accounts,
		issuer:         tokenIssuer,
		tokenTTL:       defaultTokenTTL,
		minPasswordLen: defaultMinPasswordLen,
		hashCost:       bcrypt.DefaultCost,
		now:            time.Now,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// CreateAccount registers a new email/password account. The new identity is
// considered signed in, as with a hosted provider.
func (p *Provider) CreateAccount(ctx context.Context, email, password string) (Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Identity{}, err
	}
	if len(password) < p.minPasswordLen {
		return Identity{}, &ProviderError{Code: CodeWeakPassword, Message: "Password should be at least " + strconv.Itoa(p.minPasswordLen) + " characters"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.hashCost)
	if err != nil {
		return Identity{}, err
	}
	now := p.now().UTC()
	acc := Account{
		Identity:     Identity{ID: ids.NewAt(now), Email: email},
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.accounts.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Identity{}, &ProviderError{Code: CodeEmailAlreadyInUse, Message: "The email address is already in use by another account."}
		}
		return Identity{}, store.Persistence("create account", err)
	}
	p.publish(acc.ID, stream.KindSignedIn)
	return acc.Identity, nil
}

// UpdateDisplayName sets the account's display name.
func (p *Provider) UpdateDisplayName(ctx context.Context, id, name string) error {
	if err := p.accounts.SetDisplayName(ctx, id, strings.TrimSpace(name)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &ProviderError{Code: CodeUserNotFound, Message: "There is no user record corresponding to this identifier."}
		}
		return store.Persistence("update display name", err)
	}
	return nil
}

// SignIn checks credentials and issues a session token.
func (p *Provider) SignIn(ctx context.Context, email, password string) (Token, Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	acc, err := p.accounts.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Token{}, Identity{}, invalidCredential()
		}
		return Token{}, Identity{}, store.Persistence("load account", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return Token{}, Identity{}, invalidCredential()
	}
	tok, err := p.Issue(acc.Identity)
	if err != nil {
		return Token{}, Identity{}, err
	}
	p.publish(acc.ID, stream.KindSignedIn)
	return tok, acc.Identity, nil
}

// SignOut ends every session of id: tokens issued before the call stop
// authenticating, and subscribers see the identity leave.
func (p *Provider) SignOut(ctx context.Context, id string) error {
	if err := p.accounts.RevokeSessions(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return store.Persistence("revoke sessions", err)
	}
	p.publish(id, stream.KindSignedOut)
	return nil
}

// Lookup returns the current identity for id, or nil when the account is gone.
func (p *Provider) Lookup(ctx context.Context, id string) (*Identity, error) {
	acc, err := p.accounts.AccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, store.Persistence("load account", err)
	}
	ident := acc.Identity
	return &ident, nil
}

// Authenticate verifies token and returns the identity it names with a fresh
// display name. Tokens issued before the account's last sign-out are refused.
func (p *Provider) Authenticate(ctx context.Context, token string) (Identity, error) {
	claims, err := p.Verify(token)
	if err != nil {
		return Identity{}, err
	}
	ident, err := p.Lookup(ctx, claims.Subject)
	if err != nil {
		return Identity{}, err
	}
	if ident == nil || ident.Generation != claims.Generation {
		return Identity{}, ErrInvalidToken
	}
	return *ident, nil
}

func (p *Provider) publish(id string, kind stream.Kind) {
	if p.events == nil {
		return
	}
	p.events.Publish(stream.Event{IdentityID: id, Kind: kind, At: p.now().UTC()})
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &ProviderError{Code: CodeInvalidEmail, Message: "The email address is badly formatted."}
	}
	return email, nil
}

func invalidCredential() error {
	return &ProviderError{Code: CodeInvalidCredential, Message: "The supplied credentials are incorrect."}
}
