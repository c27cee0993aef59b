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

// IdentityConfig carries the token and link settings of IdentityService.
type IdentityConfig struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	CodeTTL    time.Duration
	BcryptCost int
	AppURL     string
}

// Session is the result of a successful sign-in, code exchange or refresh.
type Session struct {
	AccessToken    string             `json:"access_token"`
	AccessExpires  time.Time          `json:"access_expires"`
	RefreshToken   string             `json:"refresh_token"`
	RefreshExpires time.Time          `json:"refresh_expires"`
	User           session.AppContext `json:"user"`
}

// SignUpInput is the primary resident registration form.
type SignUpInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
	Block       string `json:"block"`
	FlatNumber  string `json:"flatNumber"`
}

func (in *SignUpInput) normalize() {
	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Block = unit(in.Block)
	in.FlatNumber = unit(in.FlatNumber)
}

// Profile is the signed-in identity together with whichever profile row
// backs its role.
type Profile struct {
	session.AppContext
	Resident *model.Resident        `json:"resident,omitempty"`
	Member   *model.HouseholdMember `json:"member,omitempty"`
	Staff    *model.Staff           `json:"staff,omitempty"`
	// Household is the primary resident a member belongs to.
	Household *model.Resident `json:"household,omitempty"`
}

// IdentityService owns credentials and sessions.
type IdentityService struct {
	clock
	Cfg        IdentityConfig
	Tx         TxRunner
	Identities IdentityStore
	Residents  ResidentStore
	Members    MemberStore
	Staff      StaffStore
	Tokens     TokenStore
	Codes      CodeStore
	Roles      *RoleResolver
	Mailer     mail.Mailer
	Log        *zap.Logger
}

// SignUp registers a primary resident.  The identity and the resident row
// are written in one transaction, so either both exist or neither does.  The
// confirmation email is best effort: a delivery failure is logged and the
// account can still be confirmed through a resend.
func (s *IdentityService) SignUp(ctx context.Context, in SignUpInput) (model.Resident, error) {
	in.normalize()
	if err := required(
		"email", in.Email, "password", in.Password, "fullName", in.FullName,
		"phoneNumber", in.PhoneNumber, "block", in.Block, "flatNumber", in.FlatNumber,
	); err != nil {
		return model.Resident{}, err
	}
	if !validEmail(in.Email) {
		return model.Resident{}, ErrInvalidEmail
	}
	if err := checkPassword(in.Password); err != nil {
		return model.Resident{}, err
	}

	if taken, err := s.emailInUse(ctx, in.Email); err != nil {
		return model.Resident{}, err
	} else if taken {
		return model.Resident{}, ErrEmailRegistered
	}
	taken, err := s.Residents.FlatTaken(ctx, in.Block, in.FlatNumber)
	if err != nil {
		return model.Resident{}, fmt.Errorf("check flat: %w", err)
	}
	if taken {
		return model.Resident{}, ErrFlatRegistered
	}

	hash, err := utils.HashPassword(in.Password, s.Cfg.BcryptCost)
	if err != nil {
		return model.Resident{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	id := uuid.NewString()
	res := model.Resident{
		ID:         id,
		FullName:   in.FullName,
		Email:      in.Email,
		Phone:      in.PhoneNumber,
		Block:      in.Block,
		FlatNumber: in.FlatNumber,
		Status:     model.ResidentPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.Identities.Create(ctx, model.Identity{ID: id, Email: in.Email, PasswordHash: hash, CreatedAt: now}); err != nil {
			return err
		}
		return s.Residents.Create(ctx, res)
	})
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return model.Resident{}, ErrEmailRegistered
	case errors.Is(err, repository.ErrFlatExists):
		return model.Resident{}, ErrFlatRegistered
	case err != nil:
		return model.Resident{}, fmt.Errorf("create resident: %w", err)
	}

	if err := s.sendConfirmation(ctx, res); err != nil {
		s.logger().Warn("signup confirmation not sent", zap.String("identity_id", id), zap.Error(err))
	}
	return res, nil
}

func (s *IdentityService) emailInUse(ctx context.Context, email string) (bool, error) {
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

func (s *IdentityService) sendConfirmation(ctx context.Context, res model.Resident) error {
	code, err := utils.RandomHex(24)
	if err != nil {
		return err
	}
	if err := s.Codes.Save(ctx, code, res.ID, s.Cfg.CodeTTL); err != nil {
		return err
	}
	msg, err := mail.ConfirmMessage(res.Email, mail.ConfirmData{
		Name:       res.FullName,
		Block:      res.Block,
		FlatNumber: res.FlatNumber,
		Link:       s.Cfg.AppURL + "/api/auth/callback?code=" + code,
	})
	if err != nil {
		return err
	}
	_, err = s.Mailer.Send(ctx, msg)
	return err
}

// ExchangeCode consumes a confirmation code, activates the account and
// opens a session.  A code works once.
func (s *IdentityService) ExchangeCode(ctx context.Context, code string) (Session, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Session{}, ErrInvalidCode
	}
	id, err := s.Codes.Take(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, ErrInvalidCode
		}
		return Session{}, fmt.Errorf("take code: %w", err)
	}
	ident, err := s.Identities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, ErrInvalidCode
		}
		return Session{}, fmt.Errorf("load identity: %w", err)
	}

	now := s.now()
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if !ident.Confirmed() {
			if err := s.Identities.MarkConfirmed(ctx, ident.ID, now); err != nil {
				return err
			}
		}
		err := s.Residents.SetStatus(ctx, ident.ID, model.ResidentActive)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return Session{}, fmt.Errorf("confirm identity: %w", err)
	}
	ident.EmailConfirmedAt = &now
	return s.open(ctx, ident)
}

// SignIn verifies credentials and opens a session.
func (s *IdentityService) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, required("email", email, "password", password)
	}
	ident, err := s.Identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("load identity: %w", err)
	}
	if !utils.VerifyPassword(ident.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	if !ident.Confirmed() {
		return Session{}, ErrEmailNotConfirmed
	}
	return s.open(ctx, ident)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued.
func (s *IdentityService) Refresh(ctx context.Context, raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, ErrInvalidRefresh
	}
	hash := utils.HashToken(raw)
	id, err := s.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, ErrInvalidRefresh
		}
		return Session{}, fmt.Errorf("validate refresh: %w", err)
	}
	if err := s.Tokens.RevokeByHash(ctx, hash); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Session{}, fmt.Errorf("revoke refresh: %w", err)
	}
	ident, err := s.Identities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, ErrInvalidRefresh
		}
		return Session{}, fmt.Errorf("load identity: %w", err)
	}
	return s.open(ctx, ident)
}

// SignOut tears the session down: every refresh token of the identity is
// revoked and its cached role evicted.
func (s *IdentityService) SignOut(ctx context.Context, identityID string) error {
	if identityID == "" {
		return nil
	}
	if err := s.Tokens.RevokeAllForIdentity(ctx, identityID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	s.Roles.Forget(ctx, identityID)
	return nil
}

// Profile loads the profile row behind ac's role.
func (s *IdentityService) Profile(ctx context.Context, ac session.AppContext) (Profile, error) {
	p := Profile{AppContext: ac}
	switch ac.Role {
	case model.RoleResident:
		res, err := s.Residents.GetByID(ctx, ac.IdentityID)
		if err != nil {
			return Profile{}, notFoundAs(err, ErrNoRole)
		}
		p.Resident = &res
	case model.RoleHouseholdMember:
		m, err := s.Members.GetByIdentityID(ctx, ac.IdentityID)
		if err != nil {
			return Profile{}, notFoundAs(err, ErrNoRole)
		}
		p.Member = &m
		if res, err := s.Residents.GetByID(ctx, m.PrimaryResidentID); err == nil {
			p.Household = &res
		} else if !errors.Is(err, repository.ErrNotFound) {
			return Profile{}, err
		}
	case model.RoleAdmin, model.RoleSuperAdmin:
		st, err := s.Staff.GetByID(ctx, ac.IdentityID)
		if err != nil {
			return Profile{}, notFoundAs(err, ErrNoRole)
		}
		p.Staff = &st
	case model.RoleUnknown:
		return Profile{}, ErrNoRole
	}
	return p, nil
}

// open resolves the role, enforces member suspension and issues a token
// pair.
func (s *IdentityService) open(ctx context.Context, ident model.Identity) (Session, error) {
	role, err := s.Roles.Resolve(ctx, ident.ID)
	if err != nil {
		return Session{}, fmt.Errorf("resolve role: %w", err)
	}
	switch role {
	case model.RoleUnknown:
		return Session{}, ErrNoRole
	case model.RoleHouseholdMember:
		m, err := s.Members.GetByIdentityID(ctx, ident.ID)
		if err != nil {
			return Session{}, fmt.Errorf("load member: %w", err)
		}
		if m.AccessStatus == model.AccessSuspended {
			return Session{}, ErrAccountSuspended
		}
	case model.RoleResident, model.RoleAdmin, model.RoleSuperAdmin:
	}

	access, err := utils.NewAccessToken(s.Cfg.JWTSecret, ident.ID, ident.Email, role.String(), s.Cfg.AccessTTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := utils.NewRefreshToken(s.Cfg.RefreshTTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.Tokens.StoreRefresh(ctx, ident.ID, utils.HashToken(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, fmt.Errorf("store refresh token: %w", err)
	}
	return Session{
		AccessToken:    access.Token,
		AccessExpires:  access.Exp,
		RefreshToken:   refresh.Raw,
		RefreshExpires: refresh.Exp,
		User:           session.AppContext{IdentityID: ident.ID, Email: ident.Email, Role: role},
	}, nil
}

func (s *IdentityService) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// notFoundAs replaces repository.ErrNotFound with target.
func notFoundAs(err, target error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target
	}
	return err
}
