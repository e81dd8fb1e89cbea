package guard

import (
	"path"
	"strings"

	"merosamaj.org/internal/profile"
)

// Route is a client-visible view and the guards protecting it.
type Route struct {
	Path   string
	View   string
	Guards []Guard
}

// Public reports whether the route has no guards.
func (r Route) Public() bool { return len(r.Guards) == 0 }

// Routes is the view table. Anything not listed is not found.
var Routes = []Route{
	{Path: "/", View: "home"},
	{Path: "/organizations", View: "organizations"},
	{Path: "/how-it-works", View: "how-it-works"},
	{Path: "/login", View: "login"},
	{Path: "/register", View: "register"},
	{Path: "/report", View: "report-issue", Guards: []Guard{Auth{}}},
	{Path: "/volunteer", View: "volunteer", Guards: []Guard{Auth{}}},
	{Path: "/donate", View: "donate", Guards: []Guard{Auth{}}},
	{Path: "/dashboard", View: "dashboard", Guards: []Guard{Auth{}}},
	{Path: "/superadmin/verify-ngos", View: "verify-ngos", Guards: []Guard{Auth{}, Role{Required: profile.RoleSuperadmin}}},
}

var routeIndex = func() map[string]Route {
	idx := make(map[string]Route, len(Routes))
	for _, r := range Routes {
		idx[r.Path] = r
	}
	return idx
}()

// Lookup finds the route for a request path. Trailing slashes are ignored.
func Lookup(p string) (Route, bool) {
	if p == "" {
		p = "/"
	}
	clean := path.Clean("/" + strings.TrimPrefix(p, "/"))
	r, ok := routeIndex[clean]
	return r, ok
}
