package config

import (
	"context"
	"errors"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// EnsureAdminUser seeds the configured admin account on first start.
func EnsureAdminUser(ctx context.Context, adminRepo repository.AdminRepository, adminUser, adminPass string, logger *zap.Logger) error {
	_, err := adminRepo.GetAdminByUsername(ctx, adminUser)
	if err == nil {
		logger.Info("admin user already exists", zap.String("username", adminUser))
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPass), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := &models.AdminAccount{
		Username:    adminUser,
		Password:    string(hashedPassword),
		AccountType: "admin",
	}
	if err := adminRepo.SaveAdmin(ctx, admin); err != nil {
		return err
	}

	logger.Info("default admin user created", zap.String("username", adminUser))
	return nil
}
