package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "merosamaj"

// Token is a signed session credential.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims represents JWT claims carried by session tokens.
type Claims struct {
	Email      string `json:"email"`
	Generation int64  `json:"gen"`
	jwt.RegisteredClaims
}

// SupportsTokens reports whether a signing secret is configured.
func (p *Provider) SupportsTokens() bool {
	return len(p.secret) > 0
}

// Issue signs a session token for ident.
func (p *Provider) Issue(ident Identity) (Token, error) {
	if !p.SupportsTokens() {
		return Token{}, ErrTokensDisabled
	}
	if strings.TrimSpace(ident.ID) == "" {
		return Token{}, fmt.Errorf("identity: subject is required")
	}
	now := p.now().UTC()
	exp := now.Add(p.tokenTTL)
	claims := Claims{
		Email:      ident.Email,
		Generation: ident.Generation,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   ident.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Verify checks the signature, issuer and lifetime of a session token.
func (p *Provider) Verify(token string) (*Claims, error) {
	if !p.SupportsTokens() {
		return nil, ErrTokensDisabled
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	},
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(5*time.Second),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
