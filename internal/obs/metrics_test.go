package obs

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                     "/",
		"/metrics":                             "/metrics",
		"/v1/admin/ngos":                       "/v1/admin/ngos",
		"/v1/admin/ngos/01HZX/approve":         "/v1/admin/ngos/:id/approve",
		"/v1/admin/ngos/01HZX/revoke?force=1":  "/v1/admin/ngos/:id/revoke",
		"/v1/admin/ngos/reconcile":             "/v1/admin/ngos/reconcile",
		"/v1/admin/ngos/01HZX/extra":           "/v1/admin/ngos/01HZX/extra",
		"/uploads/foodDonations/u1/1_rice.jpg": "/uploads/*",
		"/dashboard":                           "/dashboard",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentPassesStatusThrough(t *testing.T) {
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/session", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
}

func TestLogWritesJSONLine(t *testing.T) {
	l := Logger()
	orig := l.Writer()
	var buf bytes.Buffer
	l.SetOutput(&buf)
	defer l.SetOutput(orig)

	Warn("profile read failed", map[string]any{"identity_id": "u1", "err": errors.New("boom"), "msg": "ignored"})

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["level"] != "warn" || entry["msg"] != "profile read failed" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["err"] != "boom" {
		t.Fatalf("expected error rendered as string, got %v", entry["err"])
	}
}
