package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/estate-portal/internal/model"
)

// InvitationRepo persists household invitation tokens by hash.
type InvitationRepo struct{ DB *sql.DB }

func NewInvitationRepo(db *sql.DB) *InvitationRepo { return &InvitationRepo{DB: db} }

func (r *InvitationRepo) Create(ctx context.Context, inv model.MemberInvitation) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		`INSERT INTO member_invitations (id, member_id, token_hash, temp_credential_hash, expires_at)
		 VALUES (?,?,?,?,?)`,
		inv.ID, inv.MemberID, inv.TokenHash, inv.TempCredentialHash, inv.ExpiresAt)
	if err != nil {
		return mapDuplicate(err)
	}
	return nil
}

// GetByTokenHashForUpdate loads an invitation and locks its row.  It must be
// called inside TxManager.RunInTx for the lock to be held until commit.
func (r *InvitationRepo) GetByTokenHashForUpdate(ctx context.Context, tokenHash string) (model.MemberInvitation, error) {
	var (
		inv      model.MemberInvitation
		consumed sql.NullTime
	)
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		`SELECT id, member_id, token_hash, temp_credential_hash, expires_at, consumed_at, created_at
		 FROM member_invitations WHERE token_hash=? LIMIT 1 FOR UPDATE`, tokenHash).
		Scan(&inv.ID, &inv.MemberID, &inv.TokenHash, &inv.TempCredentialHash, &inv.ExpiresAt, &consumed, &inv.CreatedAt)
	if err != nil {
		return model.MemberInvitation{}, notFound(err)
	}
	if consumed.Valid {
		t := consumed.Time
		inv.ConsumedAt = &t
	}
	return inv, nil
}

// Consume marks the invitation used.  A second call returns ErrNotFound.
func (r *InvitationRepo) Consume(ctx context.Context, id string, at time.Time) error {
	return affected(conn(ctx, r.DB).ExecContext(ctx,
		"UPDATE member_invitations SET consumed_at=? WHERE id=? AND consumed_at IS NULL", at, id))
}

// InvalidateForMember consumes every open invitation of a member so only
// the newest link works after a resend.
func (r *InvitationRepo) InvalidateForMember(ctx context.Context, memberID string, at time.Time) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		"UPDATE member_invitations SET consumed_at=? WHERE member_id=? AND consumed_at IS NULL", at, memberID)
	return err
}
