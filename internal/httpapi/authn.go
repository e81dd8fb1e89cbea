package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"merosamaj.org/internal/identity"
	"merosamaj.org/internal/obs"
	"merosamaj.org/internal/profile"
	"merosamaj.org/internal/session"
)

const (
	authHeader    = "Authorization"
	bearer        = "Bearer "
	sessionCookie = "samaj_session"
)

var errNoToken = errors.New("missing bearer token")

// withSession resolves the caller's session once per request. A bad bearer
// token is rejected; a stale cookie just yields an anonymous session.
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || a.identity == nil || !a.identity.SupportsTokens() {
			next.ServeHTTP(w, r.WithContext(session.WithState(r.Context(), session.Anonymous())))
			return
		}

		token, fromHeader, err := requestToken(r)
		if err != nil && !errors.Is(err, errNoToken) {
			unauthorized(w, r, err.Error())
			return
		}

		st := session.Anonymous()
		if token != "" {
			ident, err := a.identity.Authenticate(r.Context(), token)
			switch {
			case err == nil:
				st = a.resolver.Resolve(r.Context(), &ident)
			case errors.Is(err, identity.ErrInvalidToken):
				if fromHeader {
					unauthorized(w, r, "invalid token")
					return
				}
				http.SetCookie(w, a.expiredCookie())
			default:
				obs.Error("authentication failed", map[string]any{
					"request_id": RequestIDFromContext(r.Context()),
					"err":        err,
				})
				writeError(w, r, http.StatusInternalServerError, "authentication error")
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(session.WithState(r.Context(), st)))
	})
}

// RequireAuth answers 401 unless the request carries an identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !currentSession(r).Authenticated() {
			unauthorized(w, r, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole answers 401 without an identity and 403 when the resolved
// role is not exactly role.
func RequireRole(role profile.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := currentSession(r)
			if !st.Authenticated() {
				unauthorized(w, r, "authentication required")
				return
			}
			if !st.Is(role) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="merosamaj", error="insufficient_scope"`)
				writeError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="merosamaj"`)
	writeError(w, r, http.StatusUnauthorized, msg)
}

// requestToken prefers the Authorization header over the session cookie.
func requestToken(r *http.Request) (token string, fromHeader bool, err error) {
	if h := r.Header.Get(authHeader); strings.TrimSpace(h) != "" {
		token, err := extractBearerToken(h)
		return token, true, err
	}
	if c, err := r.Cookie(sessionCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value), false, nil
	}
	return "", false, errNoToken
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errNoToken
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errNoToken
	}
	return token, nil
}

func (a *API) sessionCookie(tok identity.Token) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    tok.Value,
		Path:     "/",
		Expires:  tok.ExpiresAt,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (a *API) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}
