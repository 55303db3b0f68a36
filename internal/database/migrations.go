package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/estateflow/estateflow/internal/models"
	"github.com/estateflow/estateflow/pkg/crypto"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Account{},
		&models.Profile{},
		&models.Property{},
		&models.Unit{},
		&models.GatePass{},
		&models.BannedVisitor{},
		&models.Invitation{},
		&models.PropertyGuard{},
		&models.AccessLog{},
	)
}

// Bootstrap superadmin credentials. The password must be changed on first
// login; deployments override both via configuration.
const (
	DefaultAdminEmail    = "admin@estateflow.local"
	defaultAdminPassword = "ChangeMe123!"
)

// SeedData creates the bootstrap superadmin account when no account exists yet.
func SeedData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Account{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := crypto.HashPassword(defaultAdminPassword)
	if err != nil {
		return err
	}

	account := models.Account{
		Email:    DefaultAdminEmail,
		Password: hashed,
		Role:     models.RoleSuperadmin,
	}
	if err := db.Create(&account).Error; err != nil {
		return err
	}

	profile := models.Profile{
		ID:       account.ID,
		Email:    account.Email,
		FullName: "System Administrator",
		Role:     models.RoleSuperadmin,
	}
	if err := db.Create(&profile).Error; err != nil {
		return err
	}

	if account.ID == "" {
		return errors.New("seed: account id not assigned")
	}
	return nil
}
