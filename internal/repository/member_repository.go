package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/estate-portal/internal/model"
)

// MemberRepo persists household members.  Block and flat are deliberately
// absent from the table.
type MemberRepo struct{ DB *sql.DB }

func NewMemberRepo(db *sql.DB) *MemberRepo { return &MemberRepo{DB: db} }

const memberColumns = `id,identity_id,primary_resident_id,name,email,phone,relationship,
	invitation_status,access_status,created_at,updated_at`

func (r *MemberRepo) Create(ctx context.Context, m model.HouseholdMember) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		`INSERT INTO household_members
		 (id, primary_resident_id, name, email, phone, relationship, invitation_status, access_status)
		 VALUES (?,?,?,?,?,?,?,?)`,
		m.ID, m.PrimaryResidentID, m.Name, normalizeEmail(m.Email), m.Phone, m.Relationship,
		m.InvitationStatus, m.AccessStatus)
	if err != nil {
		return mapDuplicate(err)
	}
	return nil
}

func (r *MemberRepo) GetByID(ctx context.Context, id string) (model.HouseholdMember, error) {
	row := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM household_members WHERE id=? LIMIT 1", id)
	return scanMember(row)
}

func (r *MemberRepo) GetByIdentityID(ctx context.Context, identityID string) (model.HouseholdMember, error) {
	row := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM household_members WHERE identity_id=? LIMIT 1", identityID)
	return scanMember(row)
}

// EmailExists reports whether any household member already uses email.
func (r *MemberRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM household_members WHERE email=?", normalizeEmail(email)).Scan(&n)
	return n > 0, err
}

func (r *MemberRepo) ListByResident(ctx context.Context, residentID string) ([]model.HouseholdMember, error) {
	return r.list(ctx, "SELECT "+memberColumns+" FROM household_members WHERE primary_resident_id=? ORDER BY created_at", residentID)
}

func (r *MemberRepo) List(ctx context.Context) ([]model.HouseholdMember, error) {
	return r.list(ctx, "SELECT "+memberColumns+" FROM household_members ORDER BY created_at")
}

func (r *MemberRepo) SetInvitationStatus(ctx context.Context, id string, status model.InvitationStatus) error {
	q := conn(ctx, r.DB)
	res, err := q.ExecContext(ctx, "UPDATE household_members SET invitation_status=? WHERE id=?", status, id)
	return matched(ctx, q, "household_members", id, res, err)
}

// Accept links the member to its new identity and marks the invitation
// accepted in one statement.
func (r *MemberRepo) Accept(ctx context.Context, id, identityID string) error {
	return affected(conn(ctx, r.DB).ExecContext(ctx,
		"UPDATE household_members SET identity_id=?, invitation_status='accepted' WHERE id=? AND identity_id IS NULL",
		identityID, id))
}

func (r *MemberRepo) SetAccessStatus(ctx context.Context, id string, status model.AccessStatus) error {
	q := conn(ctx, r.DB)
	res, err := q.ExecContext(ctx, "UPDATE household_members SET access_status=? WHERE id=?", status, id)
	return matched(ctx, q, "household_members", id, res, err)
}

func (r *MemberRepo) Delete(ctx context.Context, id string) error {
	return affected(conn(ctx, r.DB).ExecContext(ctx, "DELETE FROM household_members WHERE id=?", id))
}

func (r *MemberRepo) list(ctx context.Context, q string, args ...any) ([]model.HouseholdMember, error) {
	rows, err := conn(ctx, r.DB).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.HouseholdMember{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanMember(s scanner) (model.HouseholdMember, error) {
	var (
		m          model.HouseholdMember
		identityID sql.NullString
	)
	err := s.Scan(&m.ID, &identityID, &m.PrimaryResidentID, &m.Name, &m.Email, &m.Phone, &m.Relationship,
		&m.InvitationStatus, &m.AccessStatus, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return model.HouseholdMember{}, notFound(err)
	}
	if identityID.Valid {
		v := identityID.String
		m.IdentityID = &v
	}
	return m, nil
}
