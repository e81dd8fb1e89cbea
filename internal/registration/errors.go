package registration

import (
	"errors"
	"fmt"

	"merosamaj.org/internal/identity"
	"merosamaj.org/internal/store"
)

// Validation codes. Validation runs before any account or store call.
const (
	PasswordMismatch     = "PasswordMismatch"
	MissingRequiredField = "MissingRequiredField"
	InvalidURL           = "InvalidURL"
	InvalidFocusArea     = "InvalidFocusArea"
)

// ValidationError blocks a submission.
type ValidationError struct {
	Code  string
	Field string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "registration: " + e.Code
	}
	return fmt.Sprintf("registration: %s (%s)", e.Code, e.Field)
}

// FriendlyMessage converts a registration failure into the text shown to
// the applicant.
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		switch verr.Code {
		case PasswordMismatch:
			return "Passwords do not match."
		case MissingRequiredField:
			return "Please fill all required (*) details, including the document link."
		case InvalidURL:
			return "Please provide a valid URL for the registration document."
		case InvalidFocusArea:
			return "Please choose focus areas from the list."
		}
		return verr.Error()
	}
	var perr *identity.ProviderError
	if errors.As(err, &perr) {
		switch perr.Code {
		case identity.CodeEmailAlreadyInUse:
			return "This email address is already registered. Please try logging in."
		case identity.CodeWeakPassword:
			return "Password is too weak. Please choose a stronger password."
		}
		return perr.Message
	}
	if store.IsPersistence(err) {
		return "Registration could not be completed. Please try again later."
	}
	return err.Error()
}
