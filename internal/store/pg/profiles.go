package pg

import (
	"context"
	"database/sql"
	"errors"

	"merosamaj.org/internal/profile"
	"merosamaj.org/internal/store"
)

func (s *Store) PutProfile(ctx context.Context, p profile.Profile) error {
	_, err := s.db.ExecContext(ctx, `
		insert into users(id, name, email, role, created_at)
		values ($1, $2, $3, $4, $5)
		on conflict (id) do update
		set name = excluded.name, email = excluded.email, role = excluded.role, created_at = excluded.created_at
	`, p.ID, p.Name, p.Email, nullIfEmpty(string(p.Role)), p.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return store.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) Profile(ctx context.Context, id string) (profile.Profile, error) {
	var (
		p    profile.Profile
		role sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `select id, name, email, role, created_at from users where id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Email, &role, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.Profile{}, store.ErrNotFound
	}
	if err != nil {
		return profile.Profile{}, err
	}
	p.Role = profile.ParseRole(role.String)
	return p, nil
}

func (s *Store) SetRole(ctx context.Context, id string, role profile.Role) error {
	res, err := s.db.ExecContext(ctx, `update users set role = $2 where id = $1`, id, nullIfEmpty(string(role)))
	if err != nil {
		return err
	}
	return expectOne(res)
}
