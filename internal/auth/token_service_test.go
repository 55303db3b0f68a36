package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc, err := NewTokenService(Config{Secret: "test-secret", Issuer: "estateflow"})
	require.NoError(t, err)

	token, err := svc.Generate("account-1", "tenant")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "account-1", claims.AccountID)
	require.Equal(t, "tenant", claims.Role)
	require.Equal(t, "estateflow", claims.Issuer)
}

func TestTokenServiceRejectsExpired(t *testing.T) {
	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, err := NewTokenService(Config{
		Secret:         "test-secret",
		AccessTokenTTL: time.Hour,
		Clock:          func() time.Time { return current },
	})
	require.NoError(t, err)

	token, err := svc.Generate("account-1", "guard")
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)
	_, err = svc.Validate(token)
	require.Error(t, err)
}

func TestTokenServiceRejectsForeignToken(t *testing.T) {
	issuerA, err := NewTokenService(Config{Secret: "secret-a"})
	require.NoError(t, err)
	issuerB, err := NewTokenService(Config{Secret: "secret-b"})
	require.NoError(t, err)

	token, err := issuerA.Generate("account-1", "tenant")
	require.NoError(t, err)

	_, err = issuerB.Validate(token)
	require.Error(t, err)
}

func TestTokenServiceRejectsWrongIssuer(t *testing.T) {
	signer, err := NewTokenService(Config{Secret: "shared", Issuer: "other-app"})
	require.NoError(t, err)
	verifier, err := NewTokenService(Config{Secret: "shared", Issuer: "estateflow"})
	require.NoError(t, err)

	token, err := signer.Generate("account-1", "tenant")
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	require.Error(t, err)
}

func TestTokenServiceRequiresSecret(t *testing.T) {
	_, err := NewTokenService(Config{})
	require.Error(t, err)
}
