// Package bootstrap holds start-up tasks run through the fx lifecycle.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/config"
)

// SuperAdminCreator is implemented by service.StaffService.
type SuperAdminCreator interface {
	EnsureSuperAdmin(ctx context.Context, email, password string) (bool, error)
}

// EnsureSuperAdmin creates the configured super admin on start if it is
// missing.  Without SUPERADMIN_EMAIL nothing happens.
func EnsureSuperAdmin(lc fx.Lifecycle, cfg config.Config, staff SuperAdminCreator, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureSuperAdmin(ctx, cfg.SuperAdminEmail, cfg.SuperAdminPassword, staff, logger)
		},
	})
}

func ensureSuperAdmin(ctx context.Context, email, password string, staff SuperAdminCreator, logger *zap.Logger) error {
	if email == "" {
		return nil
	}
	if password == "" {
		return errors.New("bootstrap: SUPERADMIN_PASSWORD is required when SUPERADMIN_EMAIL is set")
	}
	created, err := staff.EnsureSuperAdmin(ctx, email, password)
	if err != nil {
		return fmt.Errorf("bootstrap super admin: %w", err)
	}
	if created {
		logger.Info("super admin created", zap.String("email", email))
	}
	return nil
}
