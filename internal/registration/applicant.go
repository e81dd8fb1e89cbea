// Package registration creates accounts for volunteers and organizations.
package registration

import (
	"net/url"
	"sort"
	"strings"

	"merosamaj.org/internal/profile"
)

// Credentials are the fields common to every registration.
type Credentials struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Applicant is the role-specific part of a registration. Only Volunteer and
// Organization implement it.
type Applicant interface {
	role() profile.Role
	validate() error
}

// Volunteer registers with no additional fields.
type Volunteer struct{}

func (Volunteer) role() profile.Role { return profile.RoleVolunteer }
func (Volunteer) validate() error    { return nil }

// Organization is an NGO application. DocumentURL points at an externally
// hosted registration document.
type Organization struct {
	OrgName            string   `json:"orgName"`
	Description        string   `json:"description"`
	Address            string   `json:"address"`
	ContactEmail       string   `json:"contactEmail"`
	ContactPhone       string   `json:"contactPhone"`
	Website            string   `json:"website"`
	FocusAreas         []string `json:"focusAreas"`
	RegistrationNumber string   `json:"orgRegistrationNumber"`
	DocumentURL        string   `json:"registrationDocShareLink"`
}

func (Organization) role() profile.Role { return profile.RoleNGO }

func (o Organization) validate() error {
	required := []struct {
		field, value string
	}{
		{"orgName", o.OrgName},
		{"description", o.Description},
		{"address", o.Address},
		{"contactEmail", o.ContactEmail},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Code: MissingRequiredField, Field: r.field}
		}
	}
	areas, err := NormalizeFocusAreas(o.FocusAreas)
	if err != nil {
		return err
	}
	if len(areas) == 0 {
		return &ValidationError{Code: MissingRequiredField, Field: "focusAreas"}
	}
	if strings.TrimSpace(o.DocumentURL) == "" {
		return &ValidationError{Code: MissingRequiredField, Field: "registrationDocShareLink"}
	}
	if !absoluteURL(o.DocumentURL) {
		return &ValidationError{Code: InvalidURL, Field: "registrationDocShareLink"}
	}
	if w := strings.TrimSpace(o.Website); w != "" && !absoluteURL(w) {
		return &ValidationError{Code: InvalidURL, Field: "website"}
	}
	return nil
}

// FocusAreas is the catalog of organization focus-area tags.
var FocusAreas = []string{
	"environment",
	"social welfare",
	"education",
	"healthcare",
	"animal welfare",
	"disaster relief",
	"community development",
	"human rights",
	"technology",
	"arts & culture",
	"other",
}

var focusAreaSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(FocusAreas))
	for _, a := range FocusAreas {
		m[a] = struct{}{}
	}
	return m
}()

// NormalizeFocusAreas trims, lower-cases and de-duplicates tags, keeping
// catalog order. Blank tags are dropped; unknown tags are rejected.
func NormalizeFocusAreas(tags []string) ([]string, error) {
	seen := make(map[string]struct{}, len(tags))
	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag == "" {
			continue
		}
		if _, ok := focusAreaSet[tag]; !ok {
			return nil, &ValidationError{Code: InvalidFocusArea, Field: "focusAreas"}
		}
		seen[tag] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return catalogIndex(out[i]) < catalogIndex(out[j]) })
	return out, nil
}

func catalogIndex(tag string) int {
	for i, a := range FocusAreas {
		if a == tag {
			return i
		}
	}
	return len(FocusAreas)
}

// absoluteURL accepts anything with a scheme and either a host or an
// opaque part, e.g. https://drive.example/doc or mailto:a@b.
func absoluteURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" {
		return false
	}
	return u.Host != "" || u.Opaque != ""
}
