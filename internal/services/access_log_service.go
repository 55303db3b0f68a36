package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/estateflow/estateflow/internal/models"
)

// AccessLogEntry captures a single verification outcome to persist.
type AccessLogEntry struct {
	PassID      *string
	GuardID     string
	PropertyID  *string
	VisitorName string
	Code        string
	Outcome     string
}

// AccessLogService persists and queries gate verification outcomes.
type AccessLogService struct {
	db *gorm.DB
}

// NewAccessLogService constructs an AccessLogService.
func NewAccessLogService(db *gorm.DB) (*AccessLogService, error) {
	if db == nil {
		return nil, errors.New("access log service: db is required")
	}
	return &AccessLogService{db: db}, nil
}

// Record stores a verification outcome.
func (s *AccessLogService) Record(ctx context.Context, entry AccessLogEntry) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(entry.GuardID) == "" {
		return errors.New("access log service: guard id is required")
	}
	if strings.TrimSpace(entry.Outcome) == "" {
		return errors.New("access log service: outcome is required")
	}

	log := models.AccessLog{
		PassID:      entry.PassID,
		GuardID:     entry.GuardID,
		PropertyID:  entry.PropertyID,
		VisitorName: strings.TrimSpace(entry.VisitorName),
		Code:        strings.TrimSpace(entry.Code),
		Outcome:     entry.Outcome,
	}

	return s.db.WithContext(ctx).Create(&log).Error
}

// ListForProperty returns recent verification outcomes for a property,
// newest first, capped at limit.
func (s *AccessLogService) ListForProperty(ctx context.Context, propertyID string, limit int) ([]models.AccessLog, error) {
	ctx = ensureContext(ctx)

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var logs []models.AccessLog
	err := s.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("access log service: list: %w", err)
	}
	return logs, nil
}

// PruneOlderThan deletes log rows created before the cutoff and reports
// how many were removed. Called by the maintenance sweeper.
func (s *AccessLogService) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.AccessLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("access log service: prune: %w", result.Error)
	}
	return result.RowsAffected, nil
}
