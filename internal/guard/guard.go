// Package guard decides whether a session may see a view. Decisions are
// pure functions of session.State; the HTTP layer turns them into
// placeholders, redirects or rendered views.
package guard

import (
	"merosamaj.org/internal/profile"
	"merosamaj.org/internal/session"
)

// Outcome of a guard evaluation.
type Outcome int

const (
	Render Outcome = iota
	Wait
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Wait:
		return "wait"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

// Placeholder texts shown while the session is still resolving.
const (
	LoadingUser     = "Loading User..."
	VerifyingAccess = "Verifying Access..."
)

// Redirect targets.
const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Decision is the result of running one or more guards.
type Decision struct {
	Outcome     Outcome `json:"-"`
	Placeholder string  `json:"placeholder,omitempty"`
	Location    string  `json:"location,omitempty"`
	// Replace is set on redirects: the target replaces the current history
	// entry rather than being pushed.
	Replace bool `json:"replace,omitempty"`
}

// Allowed reports whether the view may render.
func (d Decision) Allowed() bool { return d.Outcome == Render }

// Guard evaluates a session.
type Guard interface {
	Check(st session.State) Decision
}

// Auth requires an authenticated identity.
type Auth struct{}

func (Auth) Check(st session.State) Decision {
	if st.Loading {
		return Decision{Outcome: Wait, Placeholder: LoadingUser}
	}
	if st.Identity == nil {
		return Decision{Outcome: Redirect, Location: LoginPath, Replace: true}
	}
	return Decision{Outcome: Render}
}

// Role requires the session role to equal Required.
type Role struct {
	Required profile.Role
}

func (g Role) Check(st session.State) Decision {
	if st.Loading {
		return Decision{Outcome: Wait, Placeholder: VerifyingAccess}
	}
	if g.Required == profile.RoleNone || st.Role != g.Required {
		return Decision{Outcome: Redirect, Location: HomePath, Replace: true}
	}
	return Decision{Outcome: Render}
}

// Decide runs guards outermost first and returns the first non-render
// decision. With no guards the view renders.
func Decide(st session.State, guards ...Guard) Decision {
	for _, g := range guards {
		if d := g.Check(st); d.Outcome != Render {
			return d
		}
	}
	return Decision{Outcome: Render}
}
