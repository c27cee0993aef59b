package repository

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/iliyamo/estate-portal/internal/model"
)

// UpdateRepo persists community updates and per-identity read markers.
type UpdateRepo struct{ DB *sql.DB }

func NewUpdateRepo(db *sql.DB) *UpdateRepo { return &UpdateRepo{DB: db} }

func (r *UpdateRepo) Create(ctx context.Context, u model.CommunityUpdate) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		"INSERT INTO community_updates (id, title, body, author_id, created_at) VALUES (?,?,?,?,?)",
		u.ID, u.Title, u.Body, u.AuthorID, u.CreatedAt)
	return err
}

// ListFor returns the newest updates with the viewer's read flag.
func (r *UpdateRepo) ListFor(ctx context.Context, identityID string, limit int) ([]model.CommunityUpdate, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := conn(ctx, r.DB).QueryContext(ctx,
		`SELECT u.id, u.title, u.body, u.author_id, u.created_at, rd.update_id IS NOT NULL
		 FROM community_updates u
		 LEFT JOIN community_update_reads rd ON rd.update_id = u.id AND rd.identity_id = ?
		 ORDER BY u.created_at DESC LIMIT ?`, identityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.CommunityUpdate{}
	for rows.Next() {
		var u model.CommunityUpdate
		if err := rows.Scan(&u.ID, &u.Title, &u.Body, &u.AuthorID, &u.CreatedAt, &u.Read); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// MarkRead records that identityID has seen updateID.  Marking twice is a
// no-op.
func (r *UpdateRepo) MarkRead(ctx context.Context, updateID, identityID string) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		"INSERT IGNORE INTO community_update_reads (update_id, identity_id) VALUES (?,?)", updateID, identityID)
	return err
}

// UnreadCount is the aggregate behind the unread badge.
func (r *UpdateRepo) UnreadCount(ctx context.Context, identityID string) (int, error) {
	var n int
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM community_updates u
		 WHERE NOT EXISTS (SELECT 1 FROM community_update_reads rd WHERE rd.update_id = u.id AND rd.identity_id = ?)`,
		identityID).Scan(&n)
	return n, err
}

// Version returns a string that changes whenever an update is inserted.  The
// polling realtime broker compares successive values.
func (r *UpdateRepo) Version(ctx context.Context) (string, error) {
	var (
		n      int64
		latest sql.NullTime
	)
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT COUNT(*), MAX(created_at) FROM community_updates").Scan(&n, &latest)
	if err != nil {
		return "", err
	}
	v := strconv.FormatInt(n, 10)
	if latest.Valid {
		v += ":" + strconv.FormatInt(latest.Time.UnixNano(), 10)
	}
	return v, nil
}
