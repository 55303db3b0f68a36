package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/estateflow/estateflow/internal/models"
)

// ErrBanNotFound indicates no ban entry matches the identifier.
var ErrBanNotFound = errors.New("bans: not found")

// BanInput holds the parameters for banning a visitor at a property.
type BanInput struct {
	PropertyID  string
	VisitorName string
	Reason      string
	BannedBy    string
}

// BannedVisitorService manages the per-property visitor ban list.
type BannedVisitorService struct {
	db *gorm.DB
}

// NewBannedVisitorService constructs a BannedVisitorService.
func NewBannedVisitorService(db *gorm.DB) (*BannedVisitorService, error) {
	if db == nil {
		return nil, errors.New("bans: db is required")
	}
	return &BannedVisitorService{db: db}, nil
}

// Ban records a visitor name as blocked at a property.
func (s *BannedVisitorService) Ban(ctx context.Context, input BanInput) (*models.BannedVisitor, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.VisitorName)
	if name == "" {
		return nil, errors.New("bans: visitor name is required")
	}
	if strings.TrimSpace(input.PropertyID) == "" {
		return nil, errors.New("bans: property id is required")
	}

	ban := models.BannedVisitor{
		PropertyID:  input.PropertyID,
		VisitorName: name,
		Reason:      strings.TrimSpace(input.Reason),
		BannedBy:    strings.TrimSpace(input.BannedBy),
	}
	if err := s.db.WithContext(ctx).Create(&ban).Error; err != nil {
		return nil, fmt.Errorf("bans: create: %w", err)
	}
	return &ban, nil
}

// Unban removes a ban entry.
func (s *BannedVisitorService) Unban(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Delete(&models.BannedVisitor{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("bans: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBanNotFound
	}
	return nil
}

// List returns ban entries for a property.
func (s *BannedVisitorService) List(ctx context.Context, propertyID string) ([]models.BannedVisitor, error) {
	ctx = ensureContext(ctx)

	var bans []models.BannedVisitor
	err := s.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("created_at DESC").
		Find(&bans).Error
	if err != nil {
		return nil, fmt.Errorf("bans: list: %w", err)
	}
	return bans, nil
}

// Match returns the first ban entry whose name matches the visitor by
// case-insensitive substring, or nil when the visitor is not banned.
// Matching runs in Go so behaviour is identical across database vendors.
func (s *BannedVisitorService) Match(ctx context.Context, propertyID, visitorName string) (*models.BannedVisitor, error) {
	ctx = ensureContext(ctx)

	visitor := strings.ToLower(strings.TrimSpace(visitorName))
	if visitor == "" {
		return nil, nil
	}

	var bans []models.BannedVisitor
	if err := s.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Find(&bans).Error; err != nil {
		return nil, fmt.Errorf("bans: load for match: %w", err)
	}

	for i := range bans {
		banned := strings.ToLower(strings.TrimSpace(bans[i].VisitorName))
		if banned == "" {
			continue
		}
		if strings.Contains(visitor, banned) || strings.Contains(banned, visitor) {
			return &bans[i], nil
		}
	}
	return nil, nil
}
