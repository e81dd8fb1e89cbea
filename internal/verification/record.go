// Package verification implements the NGO verification workflow: the
// ngo_profiles/{identityId} record, its status state machine, the
// superadmin-only transitions and the review panel built on top of them.
package verification

import (
	"context"
	"time"
)

// Status is the lifecycle stage of an organization's application.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusRevoked  Status = "revoked"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusRevoked:
		return true
	}
	return false
}

// transitions lists every permitted edge; anything absent is refused.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusRevoked},
}

// CanTransition reports whether a record may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Record is the ngo_profiles/{identityId} document.
type Record struct {
	UserID             string    `json:"userId"`
	OrgName            string    `json:"orgName"`
	Description        string    `json:"description"`
	Address            string    `json:"address"`
	ContactEmail       string    `json:"contactEmail"`
	ContactPhone       string    `json:"contactPhone"`
	Website            string    `json:"website"`
	FocusAreas         []string  `json:"focusAreas"`
	RegistrationNumber string    `json:"orgRegistrationNumber"`
	DocumentURL        string    `json:"registrationDocShareLink"`
	Status             Status    `json:"verificationStatus"`
	SubmittedAt        time.Time `json:"submittedAt"`
}

// CanApprove is the review affordance: approval is offered only when the
// applicant supplied a document link.
func (r Record) CanApprove() bool {
	return r.DocumentURL != ""
}

// Store persists verification records keyed by identity id.
type Store interface {
	// PutOrganization creates or replaces the record keyed by rec.UserID.
	PutOrganization(ctx context.Context, rec Record) error
	// Organization returns store.ErrNotFound when no record exists.
	Organization(ctx context.Context, id string) (Record, error)
	// OrganizationsByStatus lists records with the given status in storage order.
	OrganizationsByStatus(ctx context.Context, status Status) ([]Record, error)
	// SetVerificationStatus moves the record from one status to another.
	// It returns store.ErrConflict when the record does not currently hold
	// from, so two reviewers cannot both act on the same pending record.
	SetVerificationStatus(ctx context.Context, id string, from, to Status) error
}
