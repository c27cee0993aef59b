package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/estate-portal/internal/model"
)

// AmenityRepo provides CRUD for estate amenities.
type AmenityRepo struct{ DB *sql.DB }

func NewAmenityRepo(db *sql.DB) *AmenityRepo { return &AmenityRepo{DB: db} }

// Create inserts an amenity.  Duplicate names yield ErrConflict.
func (r *AmenityRepo) Create(ctx context.Context, a model.Amenity) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		`INSERT INTO amenities (id, name, description, location, opens_at, closes_at, bookable)
		 VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.Name, a.Description, a.Location, a.OpensAt, a.ClosesAt, a.Bookable)
	if _, dup := duplicateKey(err); dup {
		return ErrConflict
	}
	return err
}

func (r *AmenityRepo) List(ctx context.Context) ([]model.Amenity, error) {
	rows, err := conn(ctx, r.DB).QueryContext(ctx,
		"SELECT id, name, description, location, opens_at, closes_at, bookable, created_at FROM amenities ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Amenity{}
	for rows.Next() {
		var a model.Amenity
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Location, &a.OpensAt, &a.ClosesAt, &a.Bookable, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AmenityRepo) Delete(ctx context.Context, id string) error {
	return affected(conn(ctx, r.DB).ExecContext(ctx, "DELETE FROM amenities WHERE id=?", id))
}
