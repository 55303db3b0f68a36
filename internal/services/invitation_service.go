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
	"github.com/estateflow/estateflow/internal/notify"
	"github.com/estateflow/estateflow/pkg/crypto"
	"github.com/estateflow/estateflow/pkg/logger"
	"github.com/estateflow/estateflow/pkg/mail"
)

const (
	defaultInvitationExpiry = 72 * time.Hour
	invitationTokenBytes    = 32
	minPasswordLength       = 6
)

var (
	// ErrInvitationNotFound indicates no invitation matches the token.
	ErrInvitationNotFound = errors.New("invitation: not found")
	// ErrInvitationExpired indicates the invitation is past its expiry.
	ErrInvitationExpired = errors.New("invitation: expired")
	// ErrInvitationAlreadyUsed signals the invitation was already accepted.
	ErrInvitationAlreadyUsed = errors.New("invitation: already accepted")
	// ErrInvitationRevoked signals the invitation was withdrawn by an admin.
	ErrInvitationRevoked = errors.New("invitation: revoked")
	// ErrInvalidRole rejects roles other than tenant or guard.
	ErrInvalidRole = errors.New("invitation: role must be tenant or guard")
	// ErrPropertyNotFound indicates the target property does not exist.
	ErrPropertyNotFound = errors.New("invitation: property not found")
	// ErrUnitRequired rejects tenant invitations without a unit.
	ErrUnitRequired = errors.New("invitation: unit is required for tenant role")
	// ErrUnitNotFound indicates the target unit does not exist on the property.
	ErrUnitNotFound = errors.New("invitation: unit not found")
	// ErrUnitOccupied rejects tenant invitations targeting an occupied unit.
	ErrUnitOccupied = errors.New("invitation: unit is already occupied")
	// ErrAccountExists signals an account already uses the invitation email.
	// The invitation stays pending so the invitee can log in instead.
	ErrAccountExists = errors.New("invitation: account already exists for email")
	// ErrPasswordTooShort rejects acceptance passwords under the minimum.
	ErrPasswordTooShort = errors.New("invitation: password must be at least 6 characters")
	// ErrFullNameRequired rejects acceptance without a full name.
	ErrFullNameRequired = errors.New("invitation: full name is required")
	// ErrProfileCreation signals profile creation failed; the just-created
	// account has been rolled back.
	ErrProfileCreation = errors.New("invitation: profile creation failed")
)

// IssueInvitationInput holds the parameters for issuing an invitation.
type IssueInvitationInput struct {
	Email       string
	PhoneNumber string
	FullName    string
	Role        string
	PropertyID  string
	UnitID      *string
	InvitedBy   string
}

// InvitationPreview is the read-only projection returned to the
// unauthenticated invitee-facing page.
type InvitationPreview struct {
	Email        string   `json:"email,omitempty"`
	Role         string   `json:"role"`
	FullName     string   `json:"full_name,omitempty"`
	PhoneNumber  string   `json:"phone_number,omitempty"`
	PropertyName string   `json:"property"`
	UnitNumber   string   `json:"unit,omitempty"`
	RentAmount   *float64 `json:"rent_amount,omitempty"`
}

// AcceptInvitationInput holds the parameters for consuming an invitation.
type AcceptInvitationInput struct {
	Token       string
	Password    string
	FullName    string
	PhoneNumber string
}

// AcceptResult identifies the provisioned account, enough for the client
// to redirect to login.
type AcceptResult struct {
	AccountID string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// InvitationOption customises InvitationService behaviour.
type InvitationOption func(*InvitationService)

// WithInvitationBaseURL configures the base URL used to build invite links.
func WithInvitationBaseURL(url string) InvitationOption {
	return func(s *InvitationService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithInvitationExpiry overrides the invitation token lifetime.
func WithInvitationExpiry(d time.Duration) InvitationOption {
	return func(s *InvitationService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithInvitationClock injects a custom clock, primarily for testing.
func WithInvitationClock(clock func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// InvitationService manages the invitation-to-account onboarding pipeline:
// token issuance, validation with lazy expiry, and exactly-once acceptance
// that provisions the account, profile, and role-specific assignment.
type InvitationService struct {
	db       *gorm.DB
	accounts Accounts
	mailer   mail.Mailer
	baseURL  string
	expiry   time.Duration
	now      func() time.Time
}

// NewInvitationService constructs an InvitationService with the provided dependencies.
func NewInvitationService(db *gorm.DB, accounts Accounts, mailer mail.Mailer, opts ...InvitationOption) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}
	if accounts == nil {
		return nil, errors.New("invitation service: accounts provider is required")
	}

	service := &InvitationService{
		db:       db,
		accounts: accounts,
		mailer:   mailer,
		expiry:   defaultInvitationExpiry,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Issue creates a pending invitation and dispatches the invite link by
// email when a mailer is configured and the invitee has an email address.
func (s *InvitationService) Issue(ctx context.Context, input IssueInvitationInput) (*models.Invitation, string, string, error) {
	ctx = ensureContext(ctx)

	if input.Role != models.RoleTenant && input.Role != models.RoleGuard {
		return nil, "", "", ErrInvalidRole
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	phone := strings.TrimSpace(input.PhoneNumber)
	if email == "" && phone == "" {
		return nil, "", "", errors.New("invitation service: email or phone number is required")
	}

	var property models.Property
	if err := s.db.WithContext(ctx).First(&property, "id = ?", input.PropertyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", "", ErrPropertyNotFound
		}
		return nil, "", "", fmt.Errorf("invitation service: load property: %w", err)
	}

	if input.Role == models.RoleTenant {
		if input.UnitID == nil || strings.TrimSpace(*input.UnitID) == "" {
			return nil, "", "", ErrUnitRequired
		}

		var unit models.Unit
		err := s.db.WithContext(ctx).
			Where("id = ? AND property_id = ?", *input.UnitID, input.PropertyID).
			First(&unit).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", "", ErrUnitNotFound
		}
		if err != nil {
			return nil, "", "", fmt.Errorf("invitation service: load unit: %w", err)
		}
		// Pre-check only; the authoritative vacancy check is the
		// conditional claim at acceptance time.
		if unit.Occupied || unit.CurrentTenantID != nil {
			return nil, "", "", ErrUnitOccupied
		}
	}

	rawToken, err := crypto.GenerateToken(invitationTokenBytes)
	if err != nil {
		return nil, "", "", fmt.Errorf("invitation service: generate token: %w", err)
	}

	invitation := models.Invitation{
		TokenHash:   crypto.HashToken(rawToken),
		Email:       email,
		PhoneNumber: phone,
		FullName:    strings.TrimSpace(input.FullName),
		Role:        input.Role,
		PropertyID:  input.PropertyID,
		UnitID:      input.UnitID,
		InvitedBy:   strings.TrimSpace(input.InvitedBy),
		Status:      models.InvitationStatusPending,
		ExpiresAt:   s.now().Add(s.expiry),
	}
	if err := s.db.WithContext(ctx).Create(&invitation).Error; err != nil {
		return nil, "", "", fmt.Errorf("invitation service: create invitation: %w", err)
	}
	invitation.Property = &property

	link := notify.InviteLink(s.baseURL, rawToken)

	if s.mailer != nil && email != "" {
		message := mail.Message{
			To:      []string{email},
			Subject: "You're invited to EstateFlow",
			Body:    notify.InviteEmailBody(link, property.Name),
		}
		if mailErr := s.mailer.Send(ctx, message); mailErr != nil && !errors.Is(mailErr, mail.ErrSMTPDisabled) {
			return nil, "", "", fmt.Errorf("invitation service: send email: %w", mailErr)
		}
	}

	return &invitation, rawToken, link, nil
}

// Validate checks a token and returns the invitee-facing projection.
// Idempotent and safe to call repeatedly; the only side effect is
// persisting "expired" the first time a stale pending invitation is seen.
func (s *InvitationService) Validate(ctx context.Context, token string) (*InvitationPreview, error) {
	ctx = ensureContext(ctx)

	invitation, err := s.lookupPending(ctx, token)
	if err != nil {
		return nil, err
	}

	preview := &InvitationPreview{
		Email:       invitation.Email,
		Role:        invitation.Role,
		FullName:    invitation.FullName,
		PhoneNumber: invitation.PhoneNumber,
	}
	if invitation.Property != nil {
		preview.PropertyName = invitation.Property.Name
	}
	if invitation.Unit != nil {
		preview.UnitNumber = invitation.Unit.UnitNumber
		if invitation.Role == models.RoleTenant {
			rent := invitation.Unit.RentAmount
			preview.RentAmount = &rent
		}
	}
	return preview, nil
}

// Accept consumes an invitation exactly once: it provisions the account
// and profile as a single logical unit (with compensating rollback), marks
// the invitation accepted through a conditional update, and then applies
// the role-specific assignment as a best-effort side effect.
func (s *InvitationService) Accept(ctx context.Context, input AcceptInvitationInput) (*AcceptResult, error) {
	ctx = ensureContext(ctx)

	if len(input.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return nil, ErrFullNameRequired
	}

	invitation, err := s.lookupPending(ctx, input.Token)
	if err != nil {
		return nil, err
	}

	if invitation.Email != "" {
		existing, err := s.accounts.FindByEmail(ctx, invitation.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			// Leave the invitation pending; the invitee should log in.
			return nil, ErrAccountExists
		}
	}

	// Phone-only invitees sign in with their phone number as the
	// account identifier.
	loginEmail := invitation.Email
	if loginEmail == "" {
		loginEmail = invitation.PhoneNumber
	}

	account, err := s.accounts.Create(ctx, CreateAccountInput{
		Email:    loginEmail,
		Password: input.Password,
		Role:     invitation.Role,
	})
	if err != nil {
		if errors.Is(err, ErrAccountEmailInUse) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("invitation service: create account: %w", err)
	}

	phone := strings.TrimSpace(input.PhoneNumber)
	if phone == "" {
		phone = invitation.PhoneNumber
	}

	profile := models.Profile{
		ID:          account.ID,
		Email:       invitation.Email,
		FullName:    fullName,
		PhoneNumber: phone,
		Role:        invitation.Role,
		PropertyID:  &invitation.PropertyID,
	}
	if invitation.Role == models.RoleTenant {
		profile.UnitID = invitation.UnitID
	}

	if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
		// Account and profile are a single logical unit; never leave
		// the account half-created.
		if delErr := s.accounts.Delete(ctx, account.ID); delErr != nil {
			logger.WithModule("invitations").Error("compensating account delete failed",
				zap.String("account_id", account.ID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrProfileCreation, err)
	}

	// Consume the invitation. A concurrent acceptor that already won the
	// conditional update forces this branch to compensate fully.
	now := s.now()
	result := s.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("id = ? AND status = ?", invitation.ID, models.InvitationStatusPending).
		Updates(map[string]any{
			"status":      models.InvitationStatusAccepted,
			"accepted_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("invitation service: mark accepted: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if delErr := s.db.WithContext(ctx).Delete(&models.Profile{}, "id = ?", account.ID).Error; delErr != nil {
			logger.WithModule("invitations").Error("compensating profile delete failed",
				zap.String("account_id", account.ID), zap.Error(delErr))
		}
		if delErr := s.accounts.Delete(ctx, account.ID); delErr != nil {
			logger.WithModule("invitations").Error("compensating account delete failed",
				zap.String("account_id", account.ID), zap.Error(delErr))
		}
		return nil, ErrInvitationAlreadyUsed
	}

	s.applySideEffect(ctx, invitation, account.ID)

	return &AcceptResult{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      invitation.Role,
	}, nil
}

// applySideEffect performs the role-specific assignment. Failures are
// logged but never fail the acceptance: a created account with a
// not-yet-linked unit is acceptable degraded state, correctable by an
// admin, versus losing the account entirely.
func (s *InvitationService) applySideEffect(ctx context.Context, invitation *models.Invitation, accountID string) {
	log := logger.WithModule("invitations")

	switch invitation.Role {
	case models.RoleTenant:
		if invitation.UnitID == nil {
			return
		}
		// Conditional claim: only a still-vacant unit is taken, so two
		// acceptances racing for one unit cannot both win.
		result := s.db.WithContext(ctx).
			Model(&models.Unit{}).
			Where("id = ? AND current_tenant_id IS NULL", *invitation.UnitID).
			Updates(map[string]any{
				"current_tenant_id": accountID,
				"occupied":          true,
			})
		if result.Error != nil {
			log.Error("unit assignment failed",
				zap.String("unit_id", *invitation.UnitID),
				zap.String("account_id", accountID),
				zap.Error(result.Error))
			return
		}
		if result.RowsAffected == 0 {
			log.Warn("unit no longer vacant at acceptance; account left unassigned",
				zap.String("unit_id", *invitation.UnitID),
				zap.String("account_id", accountID))
		}
	case models.RoleGuard:
		assignment := models.PropertyGuard{
			PropertyID: invitation.PropertyID,
			GuardID:    accountID,
			AssignedAt: s.now(),
		}
		if err := s.db.WithContext(ctx).Create(&assignment).Error; err != nil {
			log.Error("guard assignment failed",
				zap.String("property_id", invitation.PropertyID),
				zap.String("account_id", accountID),
				zap.Error(err))
		}
	}
}

// Revoke withdraws a pending invitation.
func (s *InvitationService) Revoke(ctx context.Context, id string) (*models.Invitation, error) {
	ctx = ensureContext(ctx)

	var invitation models.Invitation
	if err := s.db.WithContext(ctx).First(&invitation, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("invitation service: load invitation: %w", err)
	}

	result := s.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("id = ? AND status = ?", invitation.ID, models.InvitationStatusPending).
		Update("status", models.InvitationStatusRevoked)
	if result.Error != nil {
		return nil, fmt.Errorf("invitation service: revoke: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, s.terminalError(&invitation)
	}

	invitation.Status = models.InvitationStatusRevoked
	return &invitation, nil
}

// List returns invitations, optionally filtered by status and property.
func (s *InvitationService) List(ctx context.Context, status, propertyID string) ([]models.Invitation, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).
		Preload("Property").
		Preload("Unit").
		Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if propertyID != "" {
		query = query.Where("property_id = ?", propertyID)
	}

	var invitations []models.Invitation
	if err := query.Find(&invitations).Error; err != nil {
		return nil, fmt.Errorf("invitation service: list: %w", err)
	}
	return invitations, nil
}

// MarkExpired persists the expired status on all stale pending
// invitations, returning how many were updated. Called by the sweeper;
// Validate performs the same persistence lazily per token.
func (s *InvitationService) MarkExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("status = ? AND expires_at < ?", models.InvitationStatusPending, s.now()).
		Update("status", models.InvitationStatusExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("invitation service: mark expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// lookupPending resolves a raw token to a live pending invitation,
// persisting lazy expiry when detected.
func (s *InvitationService) lookupPending(ctx context.Context, token string) (*models.Invitation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvitationNotFound
	}

	var invitation models.Invitation
	err := s.db.WithContext(ctx).
		Preload("Property").
		Preload("Unit").
		Where("token_hash = ?", crypto.HashToken(token)).
		First(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invitation service: find invitation: %w", err)
	}

	if invitation.Terminal() {
		return nil, s.terminalError(&invitation)
	}

	if invitation.ExpiresAt.Before(s.now()) {
		// Lazy expiry: persist the detection so later reads and the
		// admin list reflect it. Conditional so a concurrent Accept
		// cannot be overwritten.
		persistErr := s.db.WithContext(ctx).
			Model(&models.Invitation{}).
			Where("id = ? AND status = ?", invitation.ID, models.InvitationStatusPending).
			Update("status", models.InvitationStatusExpired).Error
		if persistErr != nil {
			logger.WithModule("invitations").Warn("persist expired status failed",
				zap.String("invitation_id", invitation.ID), zap.Error(persistErr))
		}
		return nil, ErrInvitationExpired
	}

	return &invitation, nil
}

func (s *InvitationService) terminalError(invitation *models.Invitation) error {
	switch invitation.Status {
	case models.InvitationStatusAccepted:
		return ErrInvitationAlreadyUsed
	case models.InvitationStatusRevoked:
		return ErrInvitationRevoked
	case models.InvitationStatusExpired:
		return ErrInvitationExpired
	default:
		return ErrInvitationNotFound
	}
}
