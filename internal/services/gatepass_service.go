package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/estateflow/estateflow/internal/models"
	"github.com/estateflow/estateflow/pkg/accesscode"
	"github.com/estateflow/estateflow/pkg/logger"
)

const codeGenerationAttempts = 3

var (
	// ErrPassNotFound indicates no pass matches the identifier.
	ErrPassNotFound = errors.New("gatepass: not found")
	// ErrInvalidOrExpiredCode covers unknown codes, expired passes, and
	// codes that lost a concurrent redemption race. The cases are
	// deliberately indistinguishable to the caller.
	ErrInvalidOrExpiredCode = errors.New("gatepass: invalid or expired code")
	// ErrVisitorBanned signals the visitor name matched the property ban list.
	ErrVisitorBanned = errors.New("gatepass: visitor banned")
	// ErrAlreadyTerminal signals a transition on a used/revoked/checked-out pass.
	ErrAlreadyTerminal = errors.New("gatepass: pass already in terminal state")
	// ErrInvalidValidity rejects passes whose window ends in the past or
	// before it starts.
	ErrInvalidValidity = errors.New("gatepass: validity window is empty")
	// ErrUnitNotOccupiedByIssuer rejects issuance for a unit the issuer
	// does not currently occupy.
	ErrUnitNotOccupiedByIssuer = errors.New("gatepass: issuer does not occupy unit")
	// ErrNotRecurring rejects checkout on a single-use pass.
	ErrNotRecurring = errors.New("gatepass: checkout requires a recurring pass")
)

// IssuePassInput holds the parameters for issuing a gate pass.
type IssuePassInput struct {
	UnitID      string
	IssuerID    string
	VisitorName string
	ValidFrom   *time.Time
	ValidUntil  time.Time
	PassType    string
	CodeFormat  accesscode.Format
}

// VerificationResult is the guard-facing outcome of a Verify call,
// denormalized so the confirmation screen renders without further lookups.
type VerificationResult struct {
	Pass         *models.GatePass
	Outcome      string
	UnitNumber   string
	PropertyName string
	VisitorName  string
}

// GatePassOption customises GatePassService behaviour.
type GatePassOption func(*GatePassService)

// WithGatePassClock injects a custom clock, primarily for testing.
func WithGatePassClock(clock func() time.Time) GatePassOption {
	return func(s *GatePassService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// GatePassService manages the issuance, verification, and revocation of
// visitor gate passes. All racing state transitions are expressed as
// conditional updates so the database serialises concurrent guards.
type GatePassService struct {
	db   *gorm.DB
	bans *BannedVisitorService
	logs *AccessLogService
	now  func() time.Time
}

// NewGatePassService constructs a GatePassService with the provided dependencies.
func NewGatePassService(db *gorm.DB, bans *BannedVisitorService, logs *AccessLogService, opts ...GatePassOption) (*GatePassService, error) {
	if db == nil {
		return nil, errors.New("gatepass: db is required")
	}
	if bans == nil {
		return nil, errors.New("gatepass: ban list service is required")
	}
	if logs == nil {
		return nil, errors.New("gatepass: access log service is required")
	}

	service := &GatePassService{
		db:   db,
		bans: bans,
		logs: logs,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Issue creates a new active pass for a unit the issuer currently occupies.
func (s *GatePassService) Issue(ctx context.Context, input IssuePassInput) (*models.GatePass, error) {
	ctx = ensureContext(ctx)
	now := s.now()

	validFrom := now
	if input.ValidFrom != nil {
		validFrom = *input.ValidFrom
	}
	// A window that ends in the past, or before it begins, yields a pass
	// that can never verify.
	if !input.ValidUntil.After(now) || !input.ValidUntil.After(validFrom) {
		return nil, ErrInvalidValidity
	}

	passType := input.PassType
	if passType == "" {
		passType = models.PassTypeSingleUse
	}
	if passType != models.PassTypeSingleUse && passType != models.PassTypeRecurring {
		return nil, fmt.Errorf("gatepass: unknown pass type %q", passType)
	}

	var unit models.Unit
	if err := s.db.WithContext(ctx).First(&unit, "id = ?", input.UnitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnitNotOccupiedByIssuer
		}
		return nil, fmt.Errorf("gatepass: load unit: %w", err)
	}
	if unit.CurrentTenantID == nil || *unit.CurrentTenantID != input.IssuerID {
		return nil, ErrUnitNotOccupiedByIssuer
	}

	code, err := s.freshCode(ctx, input.CodeFormat, now)
	if err != nil {
		return nil, err
	}

	pass := models.GatePass{
		UnitID:      input.UnitID,
		IssuerID:    input.IssuerID,
		VisitorName: strings.TrimSpace(input.VisitorName),
		AccessCode:  code,
		PassType:    passType,
		Status:      models.PassStatusActive,
		ValidFrom:   validFrom,
		ValidUntil:  input.ValidUntil,
	}
	if err := s.db.WithContext(ctx).Create(&pass).Error; err != nil {
		return nil, fmt.Errorf("gatepass: create pass: %w", err)
	}

	return &pass, nil
}

// freshCode generates a code not held by any currently redeemable pass.
// Collisions inside the short validity window are rare; after a few
// attempts the last candidate is used rather than failing issuance.
func (s *GatePassService) freshCode(ctx context.Context, format accesscode.Format, now time.Time) (string, error) {
	var code string
	for attempt := 0; attempt < codeGenerationAttempts; attempt++ {
		code = accesscode.Generate(format)

		var count int64
		err := s.db.WithContext(ctx).
			Model(&models.GatePass{}).
			Where("access_code = ? AND status = ? AND valid_until > ?", code, models.PassStatusActive, now).
			Count(&count).Error
		if err != nil {
			return "", fmt.Errorf("gatepass: check code uniqueness: %w", err)
		}
		if count == 0 {
			return code, nil
		}
	}

	logger.WithModule("gatepass").Warn("access code collision persisted after retries",
		zap.String("code", code))
	return code, nil
}

// Verify redeems an access code on behalf of a guard. The state transition
// is a single conditional update: of two guards racing on the same code,
// exactly one succeeds and the other receives ErrInvalidOrExpiredCode.
// Denials and ban blocks leave the pass untouched but are audit-logged.
func (s *GatePassService) Verify(ctx context.Context, code, guardID string) (*VerificationResult, error) {
	ctx = ensureContext(ctx)
	now := s.now()

	code = strings.TrimSpace(code)
	if code == "" || strings.TrimSpace(guardID) == "" {
		return nil, ErrInvalidOrExpiredCode
	}

	var pass models.GatePass
	err := s.db.WithContext(ctx).
		Preload("Unit").
		Preload("Unit.Property").
		Where("access_code = ? AND status = ? AND valid_from <= ? AND valid_until > ?",
			code, models.PassStatusActive, now, now).
		First(&pass).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.recordOutcome(ctx, AccessLogEntry{GuardID: guardID, Code: code, Outcome: models.AccessOutcomeDenied})
		return nil, ErrInvalidOrExpiredCode
	}
	if err != nil {
		return nil, fmt.Errorf("gatepass: lookup code: %w", err)
	}

	propertyID := ""
	if pass.Unit != nil {
		propertyID = pass.Unit.PropertyID
	}

	if pass.VisitorName != "" && propertyID != "" {
		ban, err := s.bans.Match(ctx, propertyID, pass.VisitorName)
		if err != nil {
			return nil, err
		}
		if ban != nil {
			// The pass stays active: the block may be a false positive
			// resolved by staff, or legitimate at a different gate.
			s.recordOutcome(ctx, AccessLogEntry{
				PassID:      &pass.ID,
				GuardID:     guardID,
				PropertyID:  &propertyID,
				VisitorName: pass.VisitorName,
				Code:        code,
				Outcome:     models.AccessOutcomeBanned,
			})
			return nil, ErrVisitorBanned
		}
	}

	newStatus := models.PassStatusUsed
	if pass.PassType == models.PassTypeRecurring {
		newStatus = models.PassStatusCheckedIn
	}

	result := s.db.WithContext(ctx).
		Model(&models.GatePass{}).
		Where("id = ? AND status = ?", pass.ID, models.PassStatusActive).
		Updates(map[string]any{
			"status":     newStatus,
			"entry_time": now,
			"guard_id":   guardID,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("gatepass: redeem pass: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// A concurrent verification won the race.
		s.recordOutcome(ctx, AccessLogEntry{
			PassID:  &pass.ID,
			GuardID: guardID,
			Code:    code,
			Outcome: models.AccessOutcomeDenied,
		})
		return nil, ErrInvalidOrExpiredCode
	}

	pass.Status = newStatus
	pass.EntryTime = &now
	pass.GuardID = &guardID

	s.recordOutcome(ctx, AccessLogEntry{
		PassID:      &pass.ID,
		GuardID:     guardID,
		PropertyID:  &propertyID,
		VisitorName: pass.VisitorName,
		Code:        code,
		Outcome:     models.AccessOutcomeGranted,
	})

	verification := &VerificationResult{
		Pass:        &pass,
		Outcome:     models.AccessOutcomeGranted,
		VisitorName: pass.VisitorName,
	}
	if pass.Unit != nil {
		verification.UnitNumber = pass.Unit.UnitNumber
		if pass.Unit.Property != nil {
			verification.PropertyName = pass.Unit.Property.Name
		}
	}
	return verification, nil
}

// Checkout completes a recurring pass visit, checked_in -> checked_out,
// recording the guard who signed the visitor out.
func (s *GatePassService) Checkout(ctx context.Context, passID, guardID string) (*models.GatePass, error) {
	ctx = ensureContext(ctx)
	now := s.now()

	var pass models.GatePass
	if err := s.db.WithContext(ctx).First(&pass, "id = ?", passID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPassNotFound
		}
		return nil, fmt.Errorf("gatepass: load pass: %w", err)
	}

	if pass.PassType != models.PassTypeRecurring {
		return nil, ErrNotRecurring
	}

	result := s.db.WithContext(ctx).
		Model(&models.GatePass{}).
		Where("id = ? AND status = ?", pass.ID, models.PassStatusCheckedIn).
		Updates(map[string]any{
			"status":    models.PassStatusCheckedOut,
			"exit_time": now,
			"guard_id":  guardID,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("gatepass: checkout: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlreadyTerminal
	}

	pass.Status = models.PassStatusCheckedOut
	pass.ExitTime = &now
	pass.GuardID = &guardID
	return &pass, nil
}

// Revoke cancels an active pass. Terminal passes are never re-activated
// or re-revoked.
func (s *GatePassService) Revoke(ctx context.Context, passID, actorID string) (*models.GatePass, error) {
	ctx = ensureContext(ctx)

	var pass models.GatePass
	if err := s.db.WithContext(ctx).First(&pass, "id = ?", passID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPassNotFound
		}
		return nil, fmt.Errorf("gatepass: load pass: %w", err)
	}

	result := s.db.WithContext(ctx).
		Model(&models.GatePass{}).
		Where("id = ? AND status = ?", pass.ID, models.PassStatusActive).
		Update("status", models.PassStatusRevoked)
	if result.Error != nil {
		return nil, fmt.Errorf("gatepass: revoke: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlreadyTerminal
	}

	pass.Status = models.PassStatusRevoked
	return &pass, nil
}

// GetByID loads a single pass.
func (s *GatePassService) GetByID(ctx context.Context, passID string) (*models.GatePass, error) {
	ctx = ensureContext(ctx)

	var pass models.GatePass
	if err := s.db.WithContext(ctx).First(&pass, "id = ?", passID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPassNotFound
		}
		return nil, fmt.Errorf("gatepass: load pass: %w", err)
	}
	return &pass, nil
}

// ListForTenant returns a tenant's pass history, newest first.
func (s *GatePassService) ListForTenant(ctx context.Context, tenantID string) ([]models.GatePass, error) {
	ctx = ensureContext(ctx)

	var passes []models.GatePass
	err := s.db.WithContext(ctx).
		Where("issuer_id = ?", tenantID).
		Order("created_at DESC").
		Find(&passes).Error
	if err != nil {
		return nil, fmt.Errorf("gatepass: list for tenant: %w", err)
	}
	return passes, nil
}

// ListForUnit returns a unit's pass history, newest first.
func (s *GatePassService) ListForUnit(ctx context.Context, unitID string) ([]models.GatePass, error) {
	ctx = ensureContext(ctx)

	var passes []models.GatePass
	err := s.db.WithContext(ctx).
		Where("unit_id = ?", unitID).
		Order("created_at DESC").
		Find(&passes).Error
	if err != nil {
		return nil, fmt.Errorf("gatepass: list for unit: %w", err)
	}
	return passes, nil
}

// recordOutcome writes the audit entry; failures are logged, never fatal
// to the verification itself.
func (s *GatePassService) recordOutcome(ctx context.Context, entry AccessLogEntry) {
	if err := s.logs.Record(ctx, entry); err != nil {
		logger.WithModule("gatepass").Warn("record verification outcome failed",
			zap.String("outcome", entry.Outcome), zap.Error(err))
	}
}
