package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/estate-portal/internal/model"
)

// StaffRepo persists admin and super admin profiles.
type StaffRepo struct{ DB *sql.DB }

func NewStaffRepo(db *sql.DB) *StaffRepo { return &StaffRepo{DB: db} }

func (r *StaffRepo) Create(ctx context.Context, s model.Staff) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		"INSERT INTO staff (identity_id, email, full_name, phone, role) VALUES (?,?,?,?,?)",
		s.ID, normalizeEmail(s.Email), s.FullName, s.Phone, s.Role)
	if err != nil {
		return mapDuplicate(err)
	}
	return nil
}

func (r *StaffRepo) GetByID(ctx context.Context, id string) (model.Staff, error) {
	var s model.Staff
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT identity_id, email, full_name, phone, role, created_at FROM staff WHERE identity_id=? LIMIT 1", id).
		Scan(&s.ID, &s.Email, &s.FullName, &s.Phone, &s.Role, &s.CreatedAt)
	return s, notFound(err)
}

func (r *StaffRepo) List(ctx context.Context) ([]model.Staff, error) {
	rows, err := conn(ctx, r.DB).QueryContext(ctx,
		"SELECT identity_id, email, full_name, phone, role, created_at FROM staff ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Staff{}
	for rows.Next() {
		var s model.Staff
		if err := rows.Scan(&s.ID, &s.Email, &s.FullName, &s.Phone, &s.Role, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
