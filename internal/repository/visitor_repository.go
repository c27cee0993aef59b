package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/estate-portal/internal/model"
)

// VisitorRepo persists the visitor log.  Listing joins residents so each
// row carries the household's block and flat.
type VisitorRepo struct{ DB *sql.DB }

func NewVisitorRepo(db *sql.DB) *VisitorRepo { return &VisitorRepo{DB: db} }

const visitorSelect = `SELECT v.id, v.resident_id, v.registered_by, v.name, v.phone, v.purpose, v.expected_at,
	v.checked_in_at, v.checked_out_at, v.created_at, r.block, r.flat_number
	FROM visitors v JOIN residents r ON r.id = v.resident_id`

func (r *VisitorRepo) Create(ctx context.Context, v model.Visitor) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		`INSERT INTO visitors (id, resident_id, registered_by, name, phone, purpose, expected_at)
		 VALUES (?,?,?,?,?,?,?)`,
		v.ID, v.ResidentID, v.RegisteredBy, v.Name, v.Phone, v.Purpose, v.ExpectedAt)
	return err
}

func (r *VisitorRepo) GetByID(ctx context.Context, id string) (model.Visitor, error) {
	row := conn(ctx, r.DB).QueryRowContext(ctx, visitorSelect+" WHERE v.id=? LIMIT 1", id)
	return scanVisitor(row)
}

// ListByResident returns a household's visitors, newest expected first.
func (r *VisitorRepo) ListByResident(ctx context.Context, residentID string) ([]model.Visitor, error) {
	return r.list(ctx, visitorSelect+" WHERE v.resident_id=? ORDER BY v.expected_at DESC", residentID)
}

// ListBetween returns every visitor expected in [from, to).
func (r *VisitorRepo) ListBetween(ctx context.Context, from, to time.Time) ([]model.Visitor, error) {
	return r.list(ctx, visitorSelect+" WHERE v.expected_at >= ? AND v.expected_at < ? ORDER BY v.expected_at", from, to)
}

// CheckIn stamps checked_in_at once.
func (r *VisitorRepo) CheckIn(ctx context.Context, id string, at time.Time) error {
	return affected(conn(ctx, r.DB).ExecContext(ctx,
		"UPDATE visitors SET checked_in_at=? WHERE id=? AND checked_in_at IS NULL", at, id))
}

// CheckOut stamps checked_out_at once, only after check-in.
func (r *VisitorRepo) CheckOut(ctx context.Context, id string, at time.Time) error {
	return affected(conn(ctx, r.DB).ExecContext(ctx,
		"UPDATE visitors SET checked_out_at=? WHERE id=? AND checked_in_at IS NOT NULL AND checked_out_at IS NULL", at, id))
}

func (r *VisitorRepo) list(ctx context.Context, q string, args ...any) ([]model.Visitor, error) {
	rows, err := conn(ctx, r.DB).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Visitor{}
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVisitor(s scanner) (model.Visitor, error) {
	var (
		v        model.Visitor
		in, outT sql.NullTime
	)
	err := s.Scan(&v.ID, &v.ResidentID, &v.RegisteredBy, &v.Name, &v.Phone, &v.Purpose, &v.ExpectedAt,
		&in, &outT, &v.CreatedAt, &v.Block, &v.FlatNumber)
	if err != nil {
		return model.Visitor{}, notFound(err)
	}
	if in.Valid {
		t := in.Time
		v.CheckedInAt = &t
	}
	if outT.Valid {
		t := outT.Time
		v.CheckedOutAt = &t
	}
	return v, nil
}
