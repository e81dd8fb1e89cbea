package httpapi

import (
	"net/http"

	"merosamaj.org/internal/guard"
	"merosamaj.org/internal/session"
)

type pageResponse struct {
	Path    string        `json:"path"`
	View    string        `json:"view"`
	Session session.State `json:"session"`
}

// handlePage runs the view table's guards for the caller's session.
// Allowed views answer 200 with the view name, redirects answer 303 and a
// session still resolving answers 202 with the placeholder text.
func (a *API) handlePage(w http.ResponseWriter, r *http.Request) {
	route, ok := guard.Lookup(r.URL.Path)
	if !ok {
		writeError(w, r, http.StatusNotFound, "page not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, r, http.MethodGet, http.MethodHead)
		return
	}

	st := currentSession(r)
	d := guard.Decide(st, route.Guards...)
	switch d.Outcome {
	case guard.Wait:
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusAccepted, d)
	case guard.Redirect:
		w.Header().Set("Location", d.Location)
		writeJSON(w, http.StatusSeeOther, d)
	default:
		writeJSON(w, http.StatusOK, pageResponse{Path: route.Path, View: route.View, Session: st})
	}
}
