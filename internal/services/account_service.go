package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/estateflow/estateflow/internal/models"
	"github.com/estateflow/estateflow/pkg/crypto"
)

var (
	// ErrAccountEmailInUse signals that an account already exists for the email.
	ErrAccountEmailInUse = errors.New("account: email already in use")
	// ErrAccountNotFound indicates no account matches the identifier.
	ErrAccountNotFound = errors.New("account: not found")
	// ErrInvalidLogin covers both unknown email and wrong password.
	ErrInvalidLogin = errors.New("account: invalid credentials")
	// ErrAccountDisabled indicates the account exists but is deactivated.
	ErrAccountDisabled = errors.New("account: disabled")
)

// CreateAccountInput holds the parameters for provisioning a new account.
type CreateAccountInput struct {
	Email    string
	Password string
	Role     string
}

// Accounts is the account-provisioning collaborator used by the invitation
// engine. The local implementation below backs it with the application
// database; deployments against a managed identity provider swap this out.
type Accounts interface {
	Create(ctx context.Context, input CreateAccountInput) (*models.Account, error)
	Delete(ctx context.Context, id string) error
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
}

// AccountService manages local authentication identities.
type AccountService struct {
	db  *gorm.DB
	now func() time.Time
}

// AccountOption customises AccountService behaviour.
type AccountOption func(*AccountService)

// WithAccountClock injects a custom clock, primarily for testing.
func WithAccountClock(clock func() time.Time) AccountOption {
	return func(s *AccountService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewAccountService constructs an AccountService with the provided database handle.
func NewAccountService(db *gorm.DB, opts ...AccountOption) (*AccountService, error) {
	if db == nil {
		return nil, errors.New("account service: db is required")
	}

	service := &AccountService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create provisions a new account with a bcrypt-hashed password. The role
// is persisted both as a column and inside the identity metadata blob.
func (s *AccountService) Create(ctx context.Context, input CreateAccountInput) (*models.Account, error) {
	ctx = ensureContext(ctx)

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, errors.New("account service: email is required")
	}
	if input.Password == "" {
		return nil, errors.New("account service: password is required")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("account service: hash password: %w", err)
	}

	metadata, err := json.Marshal(map[string]string{"role": input.Role})
	if err != nil {
		return nil, fmt.Errorf("account service: marshal metadata: %w", err)
	}

	account := models.Account{
		Email:    email,
		Password: hashed,
		Role:     input.Role,
		Metadata: datatypes.JSON(metadata),
		IsActive: true,
	}

	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrAccountEmailInUse
		}
		return nil, fmt.Errorf("account service: create account: %w", err)
	}

	return &account, nil
}

// Delete removes an account. Used as the compensating action when a later
// step of the onboarding transaction fails.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("account service: id is required")
	}

	result := s.db.WithContext(ctx).Delete(&models.Account{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("account service: delete account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// FindByEmail returns the account for an email, or nil when none exists.
func (s *AccountService) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	ctx = ensureContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}

	var account models.Account
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("account service: find by email: %w", err)
	}
	return &account, nil
}

// Authenticate verifies email/password credentials and stamps the login time.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	ctx = ensureContext(ctx)

	account, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil || !crypto.VerifyPassword(account.Password, password) {
		return nil, ErrInvalidLogin
	}
	if !account.IsActive {
		return nil, ErrAccountDisabled
	}

	now := s.now()
	if err := s.db.WithContext(ctx).
		Model(account).
		Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("account service: stamp login: %w", err)
	}
	account.LastLoginAt = &now

	return account, nil
}
