package pg

import (
	"context"
	"database/sql"

	"merosamaj.org/internal/donation"
)

func (s *Store) CreateFoodDonation(ctx context.Context, d donation.FoodDonation) error {
	var image sql.NullString
	if d.ImageURL != nil {
		image = sql.NullString{String: *d.ImageURL, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		insert into food_donations(id, donor_id, donor_name, food_description, quantity, pickup_location,
			pickup_instructions, contact_name, contact_phone, image_url, status, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, d.ID, d.DonorID, d.DonorName, d.FoodDescription, d.Quantity, d.PickupLocation,
		d.PickupInstructions, d.ContactName, d.ContactPhone, image, d.Status, d.CreatedAt)
	return err
}

func (s *Store) FoodDonations(ctx context.Context, status string, limit int) ([]donation.FoodDonation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, donor_id, donor_name, food_description, quantity, pickup_location,
			pickup_instructions, contact_name, contact_phone, image_url, status, created_at
		from food_donations
		where status = $1
		order by created_at desc, id desc
		limit $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []donation.FoodDonation{}
	for rows.Next() {
		var (
			d     donation.FoodDonation
			image sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.DonorID, &d.DonorName, &d.FoodDescription, &d.Quantity, &d.PickupLocation,
			&d.PickupInstructions, &d.ContactName, &d.ContactPhone, &image, &d.Status, &d.CreatedAt); err != nil {
			return nil, err
		}
		if image.Valid {
			url := image.String
			d.ImageURL = &url
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
