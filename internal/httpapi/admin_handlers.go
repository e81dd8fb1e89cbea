package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"merosamaj.org/internal/audit"
	"merosamaj.org/internal/ids"
	"merosamaj.org/internal/obs"
	"merosamaj.org/internal/store"
	"merosamaj.org/internal/verification"
)

// handleNGOs opens the review panel, fetching both lists.
func (a *API) handleNGOs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.panel == nil {
		writeError(w, r, http.StatusServiceUnavailable, "verification unavailable")
		return
	}
	snap, err := a.panel.Open(r.Context(), currentSession(r))
	if err != nil {
		handleVerificationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleNGOScoped routes /v1/admin/ngos/{id}/{approve|reject|revoke} and
// /v1/admin/ngos/reconcile.
func (a *API) handleNGOScoped(w http.ResponseWriter, r *http.Request) {
	if a.panel == nil || a.verification == nil {
		writeError(w, r, http.StatusServiceUnavailable, "verification unavailable")
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/ngos/"), "/")
	parts := strings.Split(rest, "/")

	if len(parts) == 1 && parts[0] == "reconcile" {
		a.handleReconcile(w, r)
		return
	}
	if len(parts) != 2 || !ids.Valid(parts[0]) {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	id, action := parts[0], parts[1]
	actor := currentSession(r)
	var (
		rec verification.Record
		err error
	)
	switch action {
	case "approve":
		rec, err = a.panel.Approve(r.Context(), actor, id)
	case "reject":
		rec, err = a.panel.Reject(r.Context(), actor, id)
	case "revoke":
		rec, err = a.panel.Revoke(r.Context(), actor, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	fields := map[string]any{"org_id": id, "action": action}
	if err != nil {
		fields["error"] = err.Error()
		_ = audit.LogEvent(r.Context(), "verification."+action+".failed", fields)
		handleVerificationError(w, r, err)
		return
	}
	fields["org_name"] = rec.OrgName
	fields["status"] = string(rec.Status)
	_ = audit.LogEvent(r.Context(), "verification."+action, fields)
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	report, err := a.verification.Reconcile(r.Context(), currentSession(r))
	if err != nil {
		handleVerificationError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "verification.reconcile", map[string]any{
		"checked": report.Checked,
		"fixed":   report.Fixed,
		"missing": report.Missing,
	})
	writeJSON(w, http.StatusOK, report)
}

func handleVerificationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, verification.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "organization not found")
	case errors.Is(err, verification.ErrInvalidTransition), errors.Is(err, verification.ErrInFlight):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		obs.Error("verification request failed", map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
			"err":        err,
		})
		writeError(w, r, http.StatusInternalServerError, "verification update failed")
	}
}
