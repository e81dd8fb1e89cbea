package registration

import (
	"context"
	"errors"
	"strings"
	"time"

	"merosamaj.org/internal/identity"
	"merosamaj.org/internal/obs"
	"merosamaj.org/internal/profile"
	"merosamaj.org/internal/store"
	"merosamaj.org/internal/stream"
	"merosamaj.org/internal/verification"
)

// Accounts is the identity provider surface registration needs.
type Accounts interface {
	CreateAccount(ctx context.Context, email, password string) (identity.Identity, error)
	UpdateDisplayName(ctx context.Context, id, name string) error
}

// ProfileWriter writes users/{identityId}.
type ProfileWriter interface {
	PutProfile(ctx context.Context, p profile.Profile) error
}

// OrganizationWriter writes ngo_profiles/{identityId}.
type OrganizationWriter interface {
	PutOrganization(ctx context.Context, rec verification.Record) error
}

// Publisher announces profile changes.
type Publisher interface {
	Publish(evt stream.Event)
}

// Request is one submission.
type Request struct {
	Credentials
	Applicant Applicant
}

// Result describes what was created. Organization is nil for volunteers.
type Result struct {
	Identity     identity.Identity    `json:"identity"`
	Profile      profile.Profile      `json:"profile"`
	Organization *verification.Record `json:"organization,omitempty"`
	Redirect     string               `json:"redirect"`
}

// Workflow runs the registration procedure. Steps are sequential and a
// failure after account creation is not rolled back.
type Workflow struct {
	accounts Accounts
	profiles ProfileWriter
	orgs     OrganizationWriter
	events   Publisher
	now      func() time.Time
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithPublisher announces profile_changed after the profile write.
func WithPublisher(pub Publisher) Option {
	return func(w *Workflow) { w.events = pub }
}

// WithClock overrides the timestamp source.
func WithClock(fn func() time.Time) Option {
	return func(w *Workflow) {
		if fn != nil {
			w.now = fn
		}
	}
}

// NewWorkflow wires the workflow to its collaborators.
func NewWorkflow(accounts Accounts, profiles ProfileWriter, orgs OrganizationWriter, opts ...Option) *Workflow {
	w := &Workflow{accounts: accounts, profiles: profiles, orgs: orgs, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Validate checks a request without side effects.
func Validate(req Request) error {
	if req.Password != req.ConfirmPassword {
		return &ValidationError{Code: PasswordMismatch, Field: "confirmPassword"}
	}
	if strings.TrimSpace(req.Name) == "" {
		return &ValidationError{Code: MissingRequiredField, Field: "name"}
	}
	if strings.TrimSpace(req.Email) == "" {
		return &ValidationError{Code: MissingRequiredField, Field: "email"}
	}
	if req.Applicant == nil {
		return &ValidationError{Code: MissingRequiredField, Field: "role"}
	}
	return req.Applicant.validate()
}

// Register validates req and then creates the account, display name,
// profile and, for organizations, the pending verification record.
func (w *Workflow) Register(ctx context.Context, req Request) (Result, error) {
	role := "unknown"
	if req.Applicant != nil {
		role = req.Applicant.role().String()
	}
	res, err := w.register(ctx, req)
	obs.ObserveRegistration(role, outcome(err))
	return res, err
}

func (w *Workflow) register(ctx context.Context, req Request) (Result, error) {
	if err := Validate(req); err != nil {
		return Result{}, err
	}
	name := strings.TrimSpace(req.Name)

	ident, err := w.accounts.CreateAccount(ctx, req.Email, req.Password)
	if err != nil {
		return Result{}, err
	}

	if err := w.accounts.UpdateDisplayName(ctx, ident.ID, name); err != nil {
		w.orphaned(ident, "update display name", err)
		return Result{}, err
	}
	ident.DisplayName = name

	now := w.now().UTC()
	prof := profile.Profile{ID: ident.ID, Name: name, Email: ident.Email, CreatedAt: now}
	if req.Applicant.role() == profile.RoleVolunteer {
		prof.Role = profile.RoleVolunteer
	}
	if err := w.profiles.PutProfile(ctx, prof); err != nil {
		w.orphaned(ident, "write profile", err)
		return Result{}, store.Persistence("write profile", err)
	}

	res := Result{Identity: ident, Profile: prof, Redirect: "/"}

	if org, ok := req.Applicant.(Organization); ok {
		areas, _ := NormalizeFocusAreas(org.FocusAreas)
		rec := verification.Record{
			UserID:             ident.ID,
			OrgName:            strings.TrimSpace(org.OrgName),
			Description:        strings.TrimSpace(org.Description),
			Address:            strings.TrimSpace(org.Address),
			ContactEmail:       strings.TrimSpace(org.ContactEmail),
			ContactPhone:       strings.TrimSpace(org.ContactPhone),
			Website:            strings.TrimSpace(org.Website),
			FocusAreas:         areas,
			RegistrationNumber: strings.TrimSpace(org.RegistrationNumber),
			DocumentURL:        strings.TrimSpace(org.DocumentURL),
			Status:             verification.StatusPending,
			SubmittedAt:        now,
		}
		if err := w.orgs.PutOrganization(ctx, rec); err != nil {
			w.orphaned(ident, "write organization", err)
			return Result{}, store.Persistence("write organization", err)
		}
		res.Organization = &rec
	}

	if w.events != nil {
		w.events.Publish(stream.Event{IdentityID: ident.ID, Kind: stream.KindProfileChanged, At: now})
	}
	return res, nil
}

// orphaned records a partial registration: the account exists but later
// writes did not land.
func (w *Workflow) orphaned(ident identity.Identity, step string, err error) {
	obs.Error("registration left account without profile", map[string]any{
		"identity_id": ident.ID,
		"step":        step,
		"err":         err,
	})
}

func outcome(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "invalid"
	}
	if _, ok := identity.ProviderCode(err); ok {
		return "rejected"
	}
	return "failed"
}

// Message is the confirmation shown after a successful registration.
func (r Result) Message() string {
	if r.Organization != nil {
		return "Your application is under review. An admin will check your provided document link."
	}
	return "Welcome to Mero Samaj!"
}
