package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"merosamaj.org/internal/store"
	"merosamaj.org/internal/verification"
)

const organizationColumns = `user_id, org_name, description, address, contact_email, contact_phone, website,
	focus_areas, org_registration_number, registration_doc_share_link, verification_status, submitted_at`

func (s *Store) PutOrganization(ctx context.Context, rec verification.Record) error {
	areas := rec.FocusAreas
	if areas == nil {
		areas = []string{}
	}
	rawAreas, err := json.Marshal(areas)
	if err != nil {
		return fmt.Errorf("encode focus areas: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into ngo_profiles(`+organizationColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		on conflict (user_id) do update set
			org_name = excluded.org_name,
			description = excluded.description,
			address = excluded.address,
			contact_email = excluded.contact_email,
			contact_phone = excluded.contact_phone,
			website = excluded.website,
			focus_areas = excluded.focus_areas,
			org_registration_number = excluded.org_registration_number,
			registration_doc_share_link = excluded.registration_doc_share_link,
			verification_status = excluded.verification_status,
			submitted_at = excluded.submitted_at
	`, rec.UserID, rec.OrgName, rec.Description, rec.Address, rec.ContactEmail, rec.ContactPhone, rec.Website,
		rawAreas, rec.RegistrationNumber, rec.DocumentURL, string(rec.Status), rec.SubmittedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return store.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) Organization(ctx context.Context, id string) (verification.Record, error) {
	row := s.db.QueryRowContext(ctx, `select `+organizationColumns+` from ngo_profiles where user_id = $1`, id)
	rec, err := scanOrganization(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return verification.Record{}, store.ErrNotFound
	}
	return rec, err
}

func (s *Store) OrganizationsByStatus(ctx context.Context, status verification.Status) ([]verification.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+organizationColumns+`
		from ngo_profiles
		where verification_status = $1
		order by seq asc
	`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []verification.Record{}
	for rows.Next() {
		rec, err := scanOrganization(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) SetVerificationStatus(ctx context.Context, id string, from, to verification.Status) error {
	res, err := s.db.ExecContext(ctx,
		`update ngo_profiles set verification_status = $3 where user_id = $1 and verification_status = $2`,
		id, string(from), string(to))
	if err != nil {
		return err
	}
	if err := expectOne(res); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func scanOrganization(scan func(dest ...any) error) (verification.Record, error) {
	var (
		rec      verification.Record
		rawAreas []byte
		status   string
	)
	if err := scan(&rec.UserID, &rec.OrgName, &rec.Description, &rec.Address, &rec.ContactEmail, &rec.ContactPhone,
		&rec.Website, &rawAreas, &rec.RegistrationNumber, &rec.DocumentURL, &status, &rec.SubmittedAt); err != nil {
		return verification.Record{}, err
	}
	rec.Status = verification.Status(status)
	rec.FocusAreas = []string{}
	if len(rawAreas) > 0 {
		if err := json.Unmarshal(rawAreas, &rec.FocusAreas); err != nil {
			return verification.Record{}, fmt.Errorf("decode focus areas: %w", err)
		}
	}
	return rec, nil
}
