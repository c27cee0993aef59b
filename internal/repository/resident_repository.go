package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/estate-portal/internal/model"
)

// ResidentRepo persists primary residents.
type ResidentRepo struct{ DB *sql.DB }

func NewResidentRepo(db *sql.DB) *ResidentRepo { return &ResidentRepo{DB: db} }

const residentColumns = "id,full_name,email,phone,block,flat_number,avatar_ref,status,created_at,updated_at"

// Create inserts a resident.  A taken block/flat pair yields ErrFlatExists.
func (r *ResidentRepo) Create(ctx context.Context, res model.Resident) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		`INSERT INTO residents (id, full_name, email, phone, block, flat_number, avatar_ref, status)
		 VALUES (?,?,?,?,?,?,?,?)`,
		res.ID, res.FullName, normalizeEmail(res.Email), res.Phone,
		NormalizeUnit(res.Block), NormalizeUnit(res.FlatNumber), res.AvatarRef, res.Status)
	if err != nil {
		return mapDuplicate(err)
	}
	return nil
}

// GetByID fetches a resident by its identity id.
func (r *ResidentRepo) GetByID(ctx context.Context, id string) (model.Resident, error) {
	row := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT "+residentColumns+" FROM residents WHERE id=? LIMIT 1", id)
	var res model.Resident
	err := row.Scan(&res.ID, &res.FullName, &res.Email, &res.Phone, &res.Block, &res.FlatNumber,
		&res.AvatarRef, &res.Status, &res.CreatedAt, &res.UpdatedAt)
	return res, notFound(err)
}

// FlatTaken reports whether a primary resident already holds block/flat.
func (r *ResidentRepo) FlatTaken(ctx context.Context, block, flat string) (bool, error) {
	var n int
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM residents WHERE block=? AND flat_number=?",
		NormalizeUnit(block), NormalizeUnit(flat)).Scan(&n)
	return n > 0, err
}

// List returns every primary resident ordered by block and flat.
func (r *ResidentRepo) List(ctx context.Context) ([]model.Resident, error) {
	rows, err := conn(ctx, r.DB).QueryContext(ctx,
		"SELECT "+residentColumns+" FROM residents ORDER BY block, flat_number")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Resident{}
	for rows.Next() {
		var res model.Resident
		if err := rows.Scan(&res.ID, &res.FullName, &res.Email, &res.Phone, &res.Block, &res.FlatNumber,
			&res.AvatarRef, &res.Status, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// SetStatus updates a resident's status.
func (r *ResidentRepo) SetStatus(ctx context.Context, id string, status model.ResidentStatus) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx, "UPDATE residents SET status=? WHERE id=?", status, id)
	return err
}

// NormalizeUnit trims and upper-cases block and flat identifiers so "a" and
// "A " address the same unit.
func NormalizeUnit(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
