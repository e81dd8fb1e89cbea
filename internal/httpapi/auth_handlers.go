package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"merosamaj.org/internal/audit"
	"merosamaj.org/internal/identity"
	"merosamaj.org/internal/obs"
	"merosamaj.org/internal/profile"
	"merosamaj.org/internal/registration"
	"merosamaj.org/internal/session"
	"merosamaj.org/internal/store"
)

// registerRequest is the flat registration form. Organization fields are
// read only when role is "ngo".
type registerRequest struct {
	registration.Credentials
	Role string `json:"role"`
	registration.Organization
}

func (req registerRequest) toRequest() registration.Request {
	out := registration.Request{Credentials: req.Credentials}
	switch profile.ParseRole(req.Role) {
	case profile.RoleVolunteer:
		out.Applicant = registration.Volunteer{}
	case profile.RoleNGO:
		out.Applicant = req.Organization
	}
	return out
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Session   session.State `json:"session"`
	Token     string        `json:"token,omitempty"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	Redirect  string        `json:"redirect,omitempty"`
	Message   string        `json:"message,omitempty"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.registration == nil {
		writeError(w, r, http.StatusServiceUnavailable, "registration unavailable")
		return
	}
	var body registerRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.registration.Register(r.Context(), body.toRequest())
	if err != nil {
		handleRegistrationError(w, r, err)
		return
	}

	st := a.resolver.Resolve(r.Context(), &res.Identity)
	ctx := session.WithState(r.Context(), st)
	fields := map[string]any{
		"identity_id": res.Identity.ID,
		"role":        res.Profile.Role.String(),
	}
	if res.Organization != nil {
		fields["org_name"] = res.Organization.OrgName
		fields["verification_status"] = string(res.Organization.Status)
	}
	_ = audit.LogEvent(ctx, "registration.completed", fields)

	resp := sessionResponse{Session: st, Redirect: res.Redirect, Message: res.Message()}
	if a.identity != nil && a.identity.SupportsTokens() {
		tok, err := a.identity.Issue(res.Identity)
		if err != nil {
			obs.Error("token issue after registration failed", map[string]any{
				"identity_id": res.Identity.ID,
				"err":         err,
			})
		} else {
			http.SetCookie(w, a.sessionCookie(tok))
			resp.Token = tok.Value
			resp.ExpiresAt = &tok.ExpiresAt
		}
	}
	w.Header().Set("Location", res.Redirect)
	writeJSON(w, http.StatusCreated, resp)
}

func handleRegistrationError(w http.ResponseWriter, r *http.Request, err error) {
	msg := registration.FriendlyMessage(err)
	var verr *registration.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      msg,
			"code":       verr.Code,
			"field":      verr.Field,
			"request_id": RequestIDFromContext(r.Context()),
		})
		return
	}
	if code, ok := identity.ProviderCode(err); ok {
		status := http.StatusBadRequest
		if code == identity.CodeEmailAlreadyInUse {
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]any{
			"error":      msg,
			"code":       code,
			"request_id": RequestIDFromContext(r.Context()),
		})
		return
	}
	obs.Error("registration failed", map[string]any{
		"request_id": RequestIDFromContext(r.Context()),
		"err":        err,
	})
	writeError(w, r, http.StatusInternalServerError, msg)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.identity == nil || !a.identity.SupportsTokens() {
		writeError(w, r, http.StatusServiceUnavailable, "sign-in unavailable")
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	tok, ident, err := a.identity.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		var perr *identity.ProviderError
		switch {
		case errors.As(err, &perr):
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error":      perr.Message,
				"code":       perr.Code,
				"request_id": RequestIDFromContext(r.Context()),
			})
		case store.IsPersistence(err):
			obs.Error("sign-in failed", map[string]any{"err": err})
			writeError(w, r, http.StatusInternalServerError, "sign-in failed")
		default:
			writeError(w, r, http.StatusInternalServerError, "sign-in failed")
		}
		return
	}

	st := a.resolver.Resolve(r.Context(), &ident)
	_ = audit.LogEvent(session.WithState(r.Context(), st), "auth.signed_in", map[string]any{
		"identity_id": ident.ID,
	})
	http.SetCookie(w, a.sessionCookie(tok))
	writeJSON(w, http.StatusOK, sessionResponse{
		Session:   st,
		Token:     tok.Value,
		ExpiresAt: &tok.ExpiresAt,
		Redirect:  "/",
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	st := currentSession(r)
	if st.Authenticated() && a.identity != nil {
		if err := a.identity.SignOut(r.Context(), st.IdentityID()); err != nil {
			obs.Error("sign out failed", map[string]any{
				"identity_id": st.IdentityID(),
				"error":       err.Error(),
			})
			http.SetCookie(w, a.expiredCookie())
			writeError(w, r, http.StatusInternalServerError, "sign out failed")
			return
		}
		_ = audit.LogEvent(r.Context(), "auth.signed_out", map[string]any{
			"identity_id": st.IdentityID(),
		})
	}
	http.SetCookie(w, a.expiredCookie())
	w.WriteHeader(http.StatusNoContent)
}
