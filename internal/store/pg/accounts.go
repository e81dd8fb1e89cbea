package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"merosamaj.org/internal/identity"
	"merosamaj.org/internal/store"
)

const accountColumns = `id, email, display_name, password_hash, session_generation, created_at, updated_at`

func (s *Store) CreateAccount(ctx context.Context, acc identity.Account) error {
	_, err := s.db.ExecContext(ctx, `
		insert into accounts(id, email, display_name, password_hash, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6)
	`, acc.ID, strings.ToLower(acc.Email), acc.DisplayName, acc.PasswordHash, acc.CreatedAt, acc.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) AccountByID(ctx context.Context, id string) (identity.Account, error) {
	row := s.db.QueryRowContext(ctx, `select `+accountColumns+` from accounts where id = $1`, id)
	return scanAccount(row)
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (identity.Account, error) {
	row := s.db.QueryRowContext(ctx, `select `+accountColumns+` from accounts where lower(email) = lower($1)`, email)
	return scanAccount(row)
}

func (s *Store) SetDisplayName(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx, `update accounts set display_name = $2, updated_at = now() where id = $1`, id, name)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *Store) RevokeSessions(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set session_generation = session_generation + 1, updated_at = now() where id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func scanAccount(row *sql.Row) (identity.Account, error) {
	var acc identity.Account
	err := row.Scan(&acc.ID, &acc.Email, &acc.DisplayName, &acc.PasswordHash, &acc.Generation, &acc.CreatedAt, &acc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Account{}, store.ErrNotFound
	}
	if err != nil {
		return identity.Account{}, err
	}
	return acc, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
