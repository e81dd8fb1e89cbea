package donation

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"merosamaj.org/internal/identity"
	"merosamaj.org/internal/ids"
	"merosamaj.org/internal/obs"
	"merosamaj.org/internal/store"
)

var (
	// ErrAuthRequired refuses a listing from an unauthenticated submitter.
	ErrAuthRequired = errors.New("donation: you must be logged in to donate")
	// ErrInvalidImage is returned when an attached file is not a decodable image.
	ErrInvalidImage = errors.New("donation: attachment is not a supported image")
)

// FieldError names a required field left blank.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return "donation: " + e.Field + " is required"
}

// BlobStore uploads an object and returns its public URL.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

// FoodForm is the submitted listing.
type FoodForm struct {
	FoodDescription    string `json:"foodDescription"`
	Quantity           string `json:"quantity"`
	PickupLocation     string `json:"pickupLocation"`
	PickupInstructions string `json:"pickupInstructions"`
	ContactName        string `json:"contactName"`
	ContactPhone       string `json:"contactPhone"`
}

func (f FoodForm) validate() error {
	required := []struct{ field, value string }{
		{"foodDescription", f.FoodDescription},
		{"quantity", f.Quantity},
		{"pickupLocation", f.PickupLocation},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &FieldError{Field: r.field}
		}
	}
	return nil
}

// Image is an optional attachment held in memory.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Listing is the outcome of a food submission.
type Listing struct {
	Donation FoodDonation `json:"donation"`
	// Preview is a small JPEG data URI generated before upload; empty
	// without an image.
	Preview string `json:"preview,omitempty"`
}

// Intake writes food listings.
type Intake struct {
	donations Store
	blobs     BlobStore
	now       func() time.Time
}

// IntakeOption configures an Intake.
type IntakeOption func(*Intake)

// WithIntakeClock overrides the timestamp source.
func WithIntakeClock(fn func() time.Time) IntakeOption {
	return func(in *Intake) {
		if fn != nil {
			in.now = fn
		}
	}
}

// NewIntake builds an Intake. blobs may be nil, in which case images are
// refused.
func NewIntake(donations Store, blobs BlobStore, opts ...IntakeOption) *Intake {
	in := &Intake{donations: donations, blobs: blobs, now: time.Now}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// SubmitFood validates the form, uploads img when present and writes the
// listing. The listing's ImageURL is nil when no image was supplied.
func (in *Intake) SubmitFood(ctx context.Context, donor *identity.Identity, form FoodForm, img *Image) (Listing, error) {
	if donor == nil {
		return Listing{}, ErrAuthRequired
	}
	if err := form.validate(); err != nil {
		return Listing{}, err
	}
	now := in.now().UTC()

	var (
		imageURL *string
		preview  string
	)
	if img != nil && len(img.Data) > 0 {
		if in.blobs == nil {
			return Listing{}, store.Persistence("upload image", errors.New("blob storage not configured"))
		}
		p, err := Preview(img.Data)
		if err != nil {
			return Listing{}, err
		}
		preview = p
		key := BlobKey(donor.ID, img.Filename, now)
		url, err := in.blobs.Put(ctx, key, bytes.NewReader(img.Data), img.ContentType)
		if err != nil {
			return Listing{}, store.Persistence("upload image", err)
		}
		imageURL = &url
	}

	d := FoodDonation{
		ID:                 ids.NewAt(now),
		DonorID:            donor.ID,
		DonorName:          DonorName(donor),
		FoodDescription:    strings.TrimSpace(form.FoodDescription),
		Quantity:           strings.TrimSpace(form.Quantity),
		PickupLocation:     strings.TrimSpace(form.PickupLocation),
		PickupInstructions: strings.TrimSpace(form.PickupInstructions),
		ContactName:        strings.TrimSpace(form.ContactName),
		ContactPhone:       strings.TrimSpace(form.ContactPhone),
		ImageURL:           imageURL,
		Status:             StatusAvailable,
		CreatedAt:          now,
	}
	if err := in.donations.CreateFoodDonation(ctx, d); err != nil {
		obs.Error("food donation write failed", map[string]any{"donor_id": donor.ID, "err": err})
		return Listing{}, store.Persistence("create food donation", err)
	}
	obs.ObserveFoodDonation(imageURL != nil)
	return Listing{Donation: d, Preview: preview}, nil
}

// Available lists open listings, newest first.
func (in *Intake) Available(ctx context.Context, limit int) ([]FoodDonation, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	out, err := in.donations.FoodDonations(ctx, StatusAvailable, limit)
	if err != nil {
		return nil, store.Persistence("list food donations", err)
	}
	return out, nil
}

// DonorName picks the public name shown on a listing.
func DonorName(donor *identity.Identity) string {
	if donor == nil {
		return "Anonymous Donor"
	}
	if name := strings.TrimSpace(donor.DisplayName); name != "" {
		return name
	}
	if donor.Email != "" {
		return donor.Email
	}
	return "Anonymous Donor"
}
