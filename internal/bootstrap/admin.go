package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/slava-viktorov/simple-knowledge-base/internal/config"
	"github.com/slava-viktorov/simple-knowledge-base/internal/domain"
	"github.com/slava-viktorov/simple-knowledge-base/internal/password"
	"github.com/slava-viktorov/simple-knowledge-base/internal/repository"
)

// EnsureAdmin creates a default admin user for dev/e2e if missing. The hook
// is a no-op unless both ADMIN_EMAIL and ADMIN_PASSWORD are configured.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, users repository.UserRepository, roles repository.RoleRepository, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, users, roles, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, users repository.UserRepository, roles repository.RoleRepository, logger *zap.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	if _, err := users.FindByEmail(ctx, cfg.AdminEmail); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("bootstrap lookup user: %w", err)
	}

	role, err := roles.FindByName(ctx, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("bootstrap lookup admin role: %w", err)
	}

	hashed, err := password.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	created, err := users.Create(ctx, domain.User{
		ID:           uuid.NewString(),
		Email:        cfg.AdminEmail,
		Username:     "admin",
		PasswordHash: hashed,
		Source:       "bootstrap",
		RoleID:       role.ID,
	})
	if err != nil {
		return fmt.Errorf("bootstrap create user: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap admin user created",
			zap.String("email", created.Email),
			zap.String("user_id", created.ID),
		)
	}
	return nil
}
