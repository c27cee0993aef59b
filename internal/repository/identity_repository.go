package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/estate-portal/internal/model"
)

// IdentityRepo persists authentication identities.
type IdentityRepo struct{ DB *sql.DB }

func NewIdentityRepo(db *sql.DB) *IdentityRepo { return &IdentityRepo{DB: db} }

const identityColumns = "id,email,password_hash,email_confirmed_at,created_at"

// Create inserts an identity.  A duplicate email yields ErrEmailExists.
func (r *IdentityRepo) Create(ctx context.Context, id model.Identity) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		"INSERT INTO identities (id, email, password_hash, email_confirmed_at) VALUES (?,?,?,?)",
		id.ID, normalizeEmail(id.Email), id.PasswordHash, id.EmailConfirmedAt)
	if err != nil {
		return mapDuplicate(err)
	}
	return nil
}

// GetByEmail fetches an identity by normalized email.
func (r *IdentityRepo) GetByEmail(ctx context.Context, email string) (model.Identity, error) {
	row := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT "+identityColumns+" FROM identities WHERE email=? LIMIT 1", normalizeEmail(email))
	return scanIdentity(row)
}

// GetByID fetches an identity by id.
func (r *IdentityRepo) GetByID(ctx context.Context, id string) (model.Identity, error) {
	row := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT "+identityColumns+" FROM identities WHERE id=? LIMIT 1", id)
	return scanIdentity(row)
}

// EmailExists reports whether an identity already uses email.
func (r *IdentityRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM identities WHERE email=?", normalizeEmail(email)).Scan(&n)
	return n > 0, err
}

// MarkConfirmed stamps email_confirmed_at if it is not already set.
func (r *IdentityRepo) MarkConfirmed(ctx context.Context, id string, at time.Time) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		"UPDATE identities SET email_confirmed_at=? WHERE id=? AND email_confirmed_at IS NULL", at, id)
	return err
}

func scanIdentity(row *sql.Row) (model.Identity, error) {
	var (
		i         model.Identity
		confirmed sql.NullTime
	)
	if err := row.Scan(&i.ID, &i.Email, &i.PasswordHash, &confirmed, &i.CreatedAt); err != nil {
		return model.Identity{}, notFound(err)
	}
	if confirmed.Valid {
		t := confirmed.Time
		i.EmailConfirmedAt = &t
	}
	return i, nil
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
