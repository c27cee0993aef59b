package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/mail"
	"github.com/iliyamo/estate-portal/internal/model"
	"github.com/iliyamo/estate-portal/internal/repository"
	"github.com/iliyamo/estate-portal/internal/session"
	"github.com/iliyamo/estate-portal/internal/utils"
)

const (
	tempCredentialLen = 12
	inviteTokenBytes  = 32
)

// ErrInviteNotSent wraps a delivery failure after the member was created.
// The member stays pending and can be re-invited.
var ErrInviteNotSent = errors.New("invitation email not sent")

// MemberFields is the household member form.
type MemberFields struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship"`
}

type MembershipConfig struct {
	AppURL     string
	InviteTTL  time.Duration
	BcryptCost int
}

// MembershipService manages secondary occupants of a household and their
// invitations.
type MembershipService struct {
	clock
	Cfg         MembershipConfig
	Tx          TxRunner
	Identities  IdentityStore
	Residents   ResidentStore
	Members     MemberStore
	Invitations InvitationStore
	Tokens      TokenStore
	Roles       *RoleResolver
	Mailer      mail.Mailer
	Log         *zap.Logger
}

// AddMember creates a pending household member with a fresh invitation and
// sends exactly one invite email.  When the email fails the member is
// returned together with an error wrapping ErrInviteNotSent.
func (s *MembershipService) AddMember(ctx context.Context, primaryResidentID string, f MemberFields) (model.HouseholdMember, error) {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = normalizeEmail(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Relationship = strings.TrimSpace(f.Relationship)
	if err := required("name", f.Name, "email", f.Email, "relationship", f.Relationship); err != nil {
		return model.HouseholdMember{}, err
	}
	if !validEmail(f.Email) {
		return model.HouseholdMember{}, ErrInvalidEmail
	}

	owner, err := s.Residents.GetByID(ctx, primaryResidentID)
	if err != nil {
		return model.HouseholdMember{}, notFoundAs(err, ErrNotFound)
	}
	if taken, err := s.emailTaken(ctx, f.Email); err != nil {
		return model.HouseholdMember{}, err
	} else if taken {
		return model.HouseholdMember{}, ErrEmailTaken
	}

	now := s.now()
	m := model.HouseholdMember{
		ID:                uuid.NewString(),
		PrimaryResidentID: owner.ID,
		Name:              f.Name,
		Email:             f.Email,
		Phone:             f.Phone,
		Relationship:      f.Relationship,
		InvitationStatus:  model.InvitationPending,
		AccessStatus:      model.AccessActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	grant, err := s.newGrant(m.ID, now)
	if err != nil {
		return model.HouseholdMember{}, err
	}
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.Members.Create(ctx, m); err != nil {
			return err
		}
		return s.Invitations.Create(ctx, grant.inv)
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.HouseholdMember{}, ErrEmailTaken
		}
		return model.HouseholdMember{}, fmt.Errorf("create member: %w", err)
	}

	if err := s.deliver(ctx, owner, &m, grant); err != nil {
		return m, err
	}
	return m, nil
}

// AcceptInvitation activates the member behind token.  Unknown, consumed
// and expired tokens fail with ErrInvalidInvitation and change nothing.  An
// empty password keeps the temporary credential from the invite email.
func (s *MembershipService) AcceptInvitation(ctx context.Context, token, password string) (model.HouseholdMember, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.HouseholdMember{}, ErrInvalidInvitation
	}
	var passwordHash string
	if password != "" {
		if err := checkPassword(password); err != nil {
			return model.HouseholdMember{}, err
		}
		h, err := utils.HashPassword(password, s.Cfg.BcryptCost)
		if err != nil {
			return model.HouseholdMember{}, fmt.Errorf("hash password: %w", err)
		}
		passwordHash = h
	}

	var member model.HouseholdMember
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		now := s.now()
		inv, err := s.Invitations.GetByTokenHashForUpdate(ctx, utils.HashToken(token))
		if err != nil {
			return notFoundAs(err, ErrInvalidInvitation)
		}
		if !inv.Usable(now) {
			return ErrInvalidInvitation
		}
		m, err := s.Members.GetByID(ctx, inv.MemberID)
		if err != nil {
			return notFoundAs(err, ErrInvalidInvitation)
		}
		if m.IdentityID != nil {
			return ErrInvalidInvitation
		}

		hash := passwordHash
		if hash == "" {
			hash = inv.TempCredentialHash
		}
		ident := model.Identity{ID: uuid.NewString(), Email: m.Email, PasswordHash: hash, EmailConfirmedAt: &now, CreatedAt: now}
		if err := s.Identities.Create(ctx, ident); err != nil {
			if errors.Is(err, repository.ErrEmailExists) {
				return ErrEmailTaken
			}
			return err
		}
		if err := s.Members.Accept(ctx, m.ID, ident.ID); err != nil {
			return notFoundAs(err, ErrInvalidInvitation)
		}
		if err := s.Invitations.Consume(ctx, inv.ID, now); err != nil {
			return notFoundAs(err, ErrInvalidInvitation)
		}
		m.IdentityID = &ident.ID
		m.InvitationStatus = model.InvitationAccepted
		member = m
		return nil
	})
	if err != nil {
		return model.HouseholdMember{}, err
	}
	return member, nil
}

// ListMembers returns the household of primaryResidentID.
func (s *MembershipService) ListMembers(ctx context.Context, primaryResidentID string) ([]model.HouseholdMember, error) {
	return s.Members.ListByResident(ctx, primaryResidentID)
}

// SetAccessStatus changes a member's access.  Only the owning resident and
// staff may do so.  Suspending a joined member evicts its cached role and
// revokes its refresh tokens.
func (s *MembershipService) SetAccessStatus(ctx context.Context, actor session.AppContext, memberID string, status model.AccessStatus) (model.HouseholdMember, error) {
	if !status.Valid() {
		return model.HouseholdMember{}, ErrInvalidStatus
	}
	m, err := s.authorize(ctx, actor, memberID)
	if err != nil {
		return model.HouseholdMember{}, err
	}
	if err := s.Members.SetAccessStatus(ctx, m.ID, status); err != nil {
		return model.HouseholdMember{}, notFoundAs(err, ErrNotFound)
	}
	m.AccessStatus = status
	if status == model.AccessSuspended && m.IdentityID != nil {
		s.Roles.Forget(ctx, *m.IdentityID)
		if s.Tokens != nil {
			if err := s.Tokens.RevokeAllForIdentity(ctx, *m.IdentityID); err != nil {
				return m, fmt.Errorf("revoke member sessions: %w", err)
			}
		}
	}
	return m, nil
}

// RemoveMember deletes a member and its invitations.  An accepted member
// keeps its identity but no longer resolves to a role.
func (s *MembershipService) RemoveMember(ctx context.Context, actor session.AppContext, memberID string) error {
	m, err := s.authorize(ctx, actor, memberID)
	if err != nil {
		return err
	}
	if err := s.Members.Delete(ctx, m.ID); err != nil {
		return notFoundAs(err, ErrNotFound)
	}
	if m.IdentityID != nil {
		s.Roles.Forget(ctx, *m.IdentityID)
	}
	return nil
}

// ResendInvitation retires every open invitation of a member that has not
// joined yet and sends a new one with a new temporary credential.
func (s *MembershipService) ResendInvitation(ctx context.Context, actor session.AppContext, memberID string) (model.HouseholdMember, error) {
	m, err := s.authorize(ctx, actor, memberID)
	if err != nil {
		return model.HouseholdMember{}, err
	}
	if m.IdentityID != nil || m.InvitationStatus == model.InvitationAccepted {
		return model.HouseholdMember{}, ErrAlreadyJoined
	}
	owner, err := s.Residents.GetByID(ctx, m.PrimaryResidentID)
	if err != nil {
		return model.HouseholdMember{}, notFoundAs(err, ErrNotFound)
	}

	now := s.now()
	grant, err := s.newGrant(m.ID, now)
	if err != nil {
		return model.HouseholdMember{}, err
	}
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.Invitations.InvalidateForMember(ctx, m.ID, now); err != nil {
			return err
		}
		if err := s.Invitations.Create(ctx, grant.inv); err != nil {
			return err
		}
		return s.Members.SetInvitationStatus(ctx, m.ID, model.InvitationPending)
	})
	if err != nil {
		return model.HouseholdMember{}, fmt.Errorf("reissue invitation: %w", notFoundAs(err, ErrNotFound))
	}
	m.InvitationStatus = model.InvitationPending

	if err := s.deliver(ctx, owner, &m, grant); err != nil {
		return m, err
	}
	return m, nil
}

// authorize loads a member the actor may manage.  Residents only see their
// own household; other households read as not found.
func (s *MembershipService) authorize(ctx context.Context, actor session.AppContext, memberID string) (model.HouseholdMember, error) {
	m, err := s.Members.GetByID(ctx, memberID)
	if err != nil {
		return model.HouseholdMember{}, notFoundAs(err, ErrNotFound)
	}
	switch actor.Role {
	case model.RoleAdmin, model.RoleSuperAdmin:
		return m, nil
	case model.RoleResident:
		if m.PrimaryResidentID == actor.IdentityID {
			return m, nil
		}
		return model.HouseholdMember{}, ErrNotFound
	case model.RoleHouseholdMember, model.RoleUnknown:
	}
	return model.HouseholdMember{}, ErrForbidden
}

func (s *MembershipService) emailTaken(ctx context.Context, email string) (bool, error) {
	exists, err := s.Identities.EmailExists(ctx, email)
	if err != nil {
		return false, fmt.Errorf("check identity email: %w", err)
	}
	if exists {
		return true, nil
	}
	exists, err = s.Members.EmailExists(ctx, email)
	if err != nil {
		return false, fmt.Errorf("check member email: %w", err)
	}
	return exists, nil
}

// grant is a freshly minted invitation plus the secrets that only ever
// leave the process in the invite email.
type grant struct {
	inv      model.MemberInvitation
	token    string
	tempPass string
}

func (s *MembershipService) newGrant(memberID string, now time.Time) (grant, error) {
	token, err := utils.RandomHex(inviteTokenBytes)
	if err != nil {
		return grant{}, fmt.Errorf("generate token: %w", err)
	}
	temp, err := utils.NewTempPassword(tempCredentialLen)
	if err != nil {
		return grant{}, fmt.Errorf("generate credential: %w", err)
	}
	tempHash, err := utils.HashPassword(temp, s.Cfg.BcryptCost)
	if err != nil {
		return grant{}, fmt.Errorf("hash credential: %w", err)
	}
	return grant{
		inv: model.MemberInvitation{
			ID:                 uuid.NewString(),
			MemberID:           memberID,
			TokenHash:          utils.HashToken(token),
			TempCredentialHash: tempHash,
			ExpiresAt:          now.Add(s.Cfg.InviteTTL),
			CreatedAt:          now,
		},
		token:    token,
		tempPass: temp,
	}, nil
}

// deliver sends the invite email and moves the member to sent on success.
func (s *MembershipService) deliver(ctx context.Context, owner model.Resident, m *model.HouseholdMember, g grant) error {
	msg, err := mail.InviteMessage(m.Email, mail.InviteData{
		Name:         m.Name,
		InvitedBy:    owner.FullName,
		Block:        owner.Block,
		FlatNumber:   owner.FlatNumber,
		TempPassword: g.tempPass,
		Link:         s.Cfg.AppURL + "/invite?token=" + g.token,
		Expires:      g.inv.ExpiresAt.Format("2 Jan 2006 15:04 MST"),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInviteNotSent, err)
	}
	if _, err := s.Mailer.Send(ctx, msg); err != nil {
		s.logger().Error("invite email failed", zap.String("member_id", m.ID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrInviteNotSent, err)
	}
	if err := s.Members.SetInvitationStatus(ctx, m.ID, model.InvitationSent); err != nil {
		s.logger().Warn("mark invitation sent failed", zap.String("member_id", m.ID), zap.Error(err))
		return nil
	}
	m.InvitationStatus = model.InvitationSent
	return nil
}

func (s *MembershipService) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
