// Package donation handles donation intake: surplus-food listings with an
// optional photo, and simulated monetary pledges.
package donation

import (
	"context"
	"time"
)

// StatusAvailable is the only status this service assigns to a listing.
const StatusAvailable = "available"

// FoodDonation is the foodDonations/{autoId} document.
type FoodDonation struct {
	ID                 string    `json:"id"`
	DonorID            string    `json:"donorId"`
	DonorName          string    `json:"donorName"`
	FoodDescription    string    `json:"foodDescription"`
	Quantity           string    `json:"quantity"`
	PickupLocation     string    `json:"pickupLocation"`
	PickupInstructions string    `json:"pickupInstructions"`
	ContactName        string    `json:"contactName"`
	ContactPhone       string    `json:"contactPhone"`
	ImageURL           *string   `json:"imageUrl"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Store persists food listings. Listings are never mutated after creation.
type Store interface {
	CreateFoodDonation(ctx context.Context, d FoodDonation) error
	// FoodDonations lists listings with status, newest first, at most limit.
	FoodDonations(ctx context.Context, status string, limit int) ([]FoodDonation, error)
}
