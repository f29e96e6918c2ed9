package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lockboxlabs/warden/internal/config"
	"github.com/lockboxlabs/warden/internal/domain"
	"github.com/lockboxlabs/warden/internal/password"
	"github.com/lockboxlabs/warden/internal/repository"
)

// EnsureAdmin creates a default admin user for dev/e2e if configured and
// missing. Without ADMIN_USERNAME/ADMIN_PASSWORD it is a no-op.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, users repository.UserRepository, hasher *password.Hasher, node *snowflake.Node, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, users, hasher, node, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, users repository.UserRepository, hasher *password.Hasher, node *snowflake.Node, logger *zap.Logger) error {
	username := strings.ToLower(strings.TrimSpace(cfg.AdminUsername))
	if username == "" || strings.TrimSpace(cfg.AdminPassword) == "" {
		return nil
	}

	if _, err := users.GetByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("bootstrap lookup user: %w", err)
	}

	hashed, err := hasher.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	user := domain.User{
		ID:           node.Generate().Int64(),
		Username:     username,
		PasswordHash: hashed,
		IsActive:     true,
	}

	created, err := users.Create(ctx, user)
	if err != nil {
		// A concurrent replica may have won the race; the constraint makes
		// that benign.
		if errors.Is(err, domain.ErrUserExists) {
			return nil
		}
		return fmt.Errorf("bootstrap create user: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap admin user created",
			zap.String("username", created.Username),
			zap.Int64("user_id", created.ID),
		)
	}
	return nil
}
