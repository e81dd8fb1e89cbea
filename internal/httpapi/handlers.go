package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"merosamaj.org/internal/donation"
	"merosamaj.org/internal/identity"
	"merosamaj.org/internal/obs"
	"merosamaj.org/internal/profile"
	"merosamaj.org/internal/registration"
	"merosamaj.org/internal/session"
	"merosamaj.org/internal/stream"
	"merosamaj.org/internal/verification"
)

const (
	serviceName   = "samaj-api"
	authBodyLimit = 64 << 10
)

// Pinger is anything the readiness probe can ping besides the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe checks the backing stores. Nil members are skipped.
type ReadyProbe struct {
	DB    *sql.DB
	Cache Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Cache != nil {
		if err := rp.Cache.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Services are the domain components the HTTP layer drives.
type Services struct {
	Identity     *identity.Provider
	Resolver     *session.Resolver
	Hub          *stream.Hub
	Registration *registration.Workflow
	Verification *verification.Service
	Panel        *verification.Panel
	Intake       *donation.Intake
	// Uploads serves stored blobs; it is mounted under the uploads path
	// with the prefix stripped.
	Uploads http.Handler
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	build      obs.Build

	identity     *identity.Provider
	resolver     *session.Resolver
	hub          *stream.Hub
	registration *registration.Workflow
	verification *verification.Service
	panel        *verification.Panel
	intake       *donation.Intake
	uploads      http.Handler

	rateBurst      int
	ratePerSec     float64
	allowedOrigins []string
	maxUploadBytes int64
	uploadsPath    string
	secureCookies  bool
	now            func() time.Time
}

// Option tunes the API before routes are registered.
type Option func(*API)

// WithRateLimit sets the per-IP token bucket for auth and intake routes.
func WithRateLimit(burst int, perSec float64) Option {
	return func(a *API) {
		if burst > 0 && perSec > 0 {
			a.rateBurst = burst
			a.ratePerSec = perSec
		}
	}
}

// WithAllowedOrigins sets the CORS allow list.
func WithAllowedOrigins(origins []string) Option {
	return func(a *API) { a.allowedOrigins = origins }
}

// WithMaxUploadBytes caps multipart food submissions.
func WithMaxUploadBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxUploadBytes = n
		}
	}
}

// WithUploadsPath sets where stored blobs are served.
func WithUploadsPath(p string) Option {
	return func(a *API) {
		p = "/" + strings.Trim(p, "/")
		if p != "/" {
			a.uploadsPath = p
		}
	}
}

// WithBuild reports b on /v1/info.
func WithBuild(b obs.Build) Option {
	return func(a *API) {
		a.build = b
		a.version = b.Version
	}
}

// WithSecureCookies marks the session cookie Secure.
func WithSecureCookies(on bool) Option {
	return func(a *API) { a.secureCookies = on }
}

func New(rp ReadyProbe, version string, svc Services, opts ...Option) *API {
	a := &API{
		mux:            http.NewServeMux(),
		readyProbe:     rp,
		version:        version,
		build:          obs.Build{Version: version},
		identity:       svc.Identity,
		resolver:       svc.Resolver,
		hub:            svc.Hub,
		registration:   svc.Registration,
		verification:   svc.Verification,
		panel:          svc.Panel,
		intake:         svc.Intake,
		uploads:        svc.Uploads,
		rateBurst:      20,
		ratePerSec:     10,
		maxUploadBytes: 5 << 20,
		uploadsPath:    "/uploads",
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	limited := func(h http.HandlerFunc) http.Handler {
		return RateLimit(h, a.rateBurst, a.ratePerSec)
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	// identity
	a.mux.Handle("/v1/auth/register", MaxBodyBytes(limited(a.handleRegister), authBodyLimit))
	a.mux.Handle("/v1/auth/login", MaxBodyBytes(limited(a.handleLogin), authBodyLimit))
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)

	// session
	a.mux.HandleFunc("/v1/session", a.handleSession)
	a.mux.HandleFunc("/v1/session/stream", a.Stream)
	a.mux.HandleFunc("/v1/session/ws", a.handleSessionSocket)

	// verification panel
	superadmin := RequireRole(profile.RoleSuperadmin)
	a.mux.Handle("/v1/admin/ngos", superadmin(http.HandlerFunc(a.handleNGOs)))
	a.mux.Handle("/v1/admin/ngos/", superadmin(http.HandlerFunc(a.handleNGOScoped)))

	// donations
	a.mux.Handle("/v1/donations/food", RequireAuth(limited(a.handleFoodDonations)))
	a.mux.Handle("/v1/donations/money", RequireAuth(limited(a.handleMoneyDonation)))

	if a.uploads != nil {
		a.mux.Handle(a.uploadsPath+"/", http.StripPrefix(a.uploadsPath, a.uploads))
	}

	// guarded pages; unknown paths are 404
	a.mux.HandleFunc("/", a.handlePage)

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withSession(h)
	h = obs.Instrument(h)
	h = CORS(a.allowedOrigins)(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	return RequestID(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"name":    serviceName,
		"time":    a.now().UTC().Format(time.RFC3339),
		"version": a.version,
	}
	if a.build.Commit != "" {
		info["commit"] = a.build.Commit
		info["go_version"] = a.build.GoVersion
	}
	writeJSON(w, http.StatusOK, info)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// currentSession is the state attached by withSession.
func currentSession(r *http.Request) session.State {
	st, _ := session.FromContext(r.Context())
	return st
}
