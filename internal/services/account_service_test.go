package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/estateflow/estateflow/internal/models"
)

func TestAccountServiceCreateAndAuthenticate(t *testing.T) {
	db := openServiceTestDB(t)
	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	svc, err := NewAccountService(db, WithAccountClock(func() time.Time { return current }))
	require.NoError(t, err)

	account, err := svc.Create(context.Background(), CreateAccountInput{
		Email:    "User@Example.Test",
		Password: "Str0ngPass!",
		Role:     models.RoleTenant,
	})
	require.NoError(t, err)
	require.Equal(t, "user@example.test", account.Email)
	require.NotEqual(t, "Str0ngPass!", account.Password)
	require.True(t, account.IsActive)

	authed, err := svc.Authenticate(context.Background(), "user@example.test", "Str0ngPass!")
	require.NoError(t, err)
	require.Equal(t, account.ID, authed.ID)
	require.NotNil(t, authed.LastLoginAt)
	require.True(t, authed.LastLoginAt.Equal(current))
}

func TestAccountServiceDuplicateEmail(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewAccountService(db)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateAccountInput{
		Email: "dup@example.test", Password: "Str0ngPass!", Role: models.RoleTenant,
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateAccountInput{
		Email: "DUP@example.test", Password: "OtherPass!", Role: models.RoleGuard,
	})
	require.ErrorIs(t, err, ErrAccountEmailInUse)
}

func TestAccountServiceAuthenticateFailures(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewAccountService(db)
	require.NoError(t, err)

	account, err := svc.Create(context.Background(), CreateAccountInput{
		Email: "auth@example.test", Password: "Str0ngPass!", Role: models.RoleTenant,
	})
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "auth@example.test", "wrong")
	require.ErrorIs(t, err, ErrInvalidLogin)

	_, err = svc.Authenticate(context.Background(), "nobody@example.test", "Str0ngPass!")
	require.ErrorIs(t, err, ErrInvalidLogin)

	require.NoError(t, db.Model(&models.Account{}).
		Where("id = ?", account.ID).Update("is_active", false).Error)

	_, err = svc.Authenticate(context.Background(), "auth@example.test", "Str0ngPass!")
	require.ErrorIs(t, err, ErrAccountDisabled)
}

func TestAccountServiceDelete(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewAccountService(db)
	require.NoError(t, err)

	account, err := svc.Create(context.Background(), CreateAccountInput{
		Email: "gone@example.test", Password: "Str0ngPass!", Role: models.RoleTenant,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), account.ID))

	found, err := svc.FindByEmail(context.Background(), "gone@example.test")
	require.NoError(t, err)
	require.Nil(t, found)

	require.ErrorIs(t, svc.Delete(context.Background(), account.ID), ErrAccountNotFound)
}
