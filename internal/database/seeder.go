// internal/database/seeder.go
package database

import (
	"context"
	"errors"
	"strings"

	"waste-tracking-api-server/config"
	"waste-tracking-api-server/internal/apperrors"
	"waste-tracking-api-server/internal/auth"
	"waste-tracking-api-server/internal/logger"
	"waste-tracking-api-server/internal/models"
	"waste-tracking-api-server/internal/store"
)

// SeedAdmin creates the configured admin account if it does not exist yet.
// An empty password disables seeding.
func SeedAdmin(ctx context.Context, users store.UserStore, cfg config.AdminConfig) error {
	email := strings.ToLower(strings.TrimSpace(cfg.Email))
	if email == "" || cfg.Password == "" {
		logger.Info("admin seeding disabled")
		return nil
	}

	_, err := users.FindUserByEmail(ctx, email)
	if err == nil {
		logger.Info("admin already exists, seeding skipped", "email", email)
		return nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}

	hashedPassword, err := auth.HashPassword(cfg.Password)
	if err != nil {
		return err
	}
	admin := &models.User{
		Email:    email,
		Name:     "Administrator",
		Password: hashedPassword,
		Role:     models.RoleAdmin,
		Status:   "ACTIVE",
	}
	if err := users.CreateUser(ctx, admin); err != nil {
		return err
	}
	logger.Info("admin seeded", "email", email)
	return nil
}
