package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/model"
	"github.com/iliyamo/estate-portal/internal/repository"
	"github.com/iliyamo/estate-portal/internal/utils"
)

type StaffInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// StaffService manages admin accounts.  Staff identities are confirmed on
// creation and never own a residence.
type StaffService struct {
	clock
	Tx         TxRunner
	Identities IdentityStore
	Members    MemberStore
	Staff      StaffStore
	BcryptCost int
	Log        *zap.Logger
}

func (s *StaffService) List(ctx context.Context) ([]model.Staff, error) {
	return s.Staff.List(ctx)
}

// CreateAdmin adds an admin account.
func (s *StaffService) CreateAdmin(ctx context.Context, in StaffInput) (model.Staff, error) {
	return s.create(ctx, in, model.StaffAdmin)
}

// EnsureSuperAdmin creates the super admin account unless an identity with
// that email already exists.  An empty email disables the bootstrap.
func (s *StaffService) EnsureSuperAdmin(ctx context.Context, email, password string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, nil
	}
	ident, err := s.Identities.GetByEmail(ctx, email)
	switch {
	case err == nil:
		st, err := s.Staff.GetByID(ctx, ident.ID)
		if err != nil {
			return false, fmt.Errorf("super admin email %s belongs to a non-staff account: %w", email, notFoundAs(err, ErrEmailTaken))
		}
		if st.Role != model.StaffSuperAdmin {
			s.logger().Warn("bootstrap email belongs to a regular admin", zap.String("email", email))
		}
		return false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return false, fmt.Errorf("lookup super admin: %w", err)
	}

	if _, err := s.create(ctx, StaffInput{Email: email, Password: password, FullName: "Super Admin"}, model.StaffSuperAdmin); err != nil {
		return false, err
	}
	return true, nil
}

func (s *StaffService) create(ctx context.Context, in StaffInput, role model.StaffRole) (model.Staff, error) {
	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := required("email", in.Email, "password", in.Password, "full_name", in.FullName); err != nil {
		return model.Staff{}, err
	}
	if !validEmail(in.Email) {
		return model.Staff{}, ErrInvalidEmail
	}
	if err := checkPassword(in.Password); err != nil {
		return model.Staff{}, err
	}
	if used, err := s.Members.EmailExists(ctx, in.Email); err != nil {
		return model.Staff{}, fmt.Errorf("check member email: %w", err)
	} else if used {
		return model.Staff{}, ErrEmailTaken
	}

	hash, err := utils.HashPassword(in.Password, s.BcryptCost)
	if err != nil {
		return model.Staff{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	st := model.Staff{
		ID:        uuid.NewString(),
		Email:     in.Email,
		FullName:  in.FullName,
		Phone:     strings.TrimSpace(in.Phone),
		Role:      role,
		CreatedAt: now,
	}
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.Identities.Create(ctx, model.Identity{ID: st.ID, Email: st.Email, PasswordHash: hash, EmailConfirmedAt: &now, CreatedAt: now}); err != nil {
			return err
		}
		return s.Staff.Create(ctx, st)
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.Staff{}, ErrEmailTaken
		}
		return model.Staff{}, fmt.Errorf("create staff: %w", err)
	}
	return st, nil
}

func (s *StaffService) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
