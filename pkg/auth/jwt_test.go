package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, now *time.Time) JWTService {
	t.Helper()
	svc, err := NewJWTService(Config{
		Secret: "test-secret",
		Issuer: "vip-booking",
		TTL:    time.Hour,
		Now:    func() time.Time { return *now },
	})
	require.NoError(t, err)
	return svc
}

func TestJWTService_RoundTrip(t *testing.T) {
	now := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	svc := newService(t, &now)

	token, exp, err := svc.Issue("client-42", RoleClient)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "client-42", claims.Subject)
	assert.Equal(t, RoleClient, claims.Role)
}

func TestJWTService_Expired(t *testing.T) {
	now := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	svc := newService(t, &now)

	token, _, err := svc.Issue("admin", RoleAdmin)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = svc.Validate(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestJWTService_WrongSecret(t *testing.T) {
	now := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	token, _, err := newService(t, &now).Issue("admin", RoleAdmin)
	require.NoError(t, err)

	other, err := NewJWTService(Config{Secret: "other", Issuer: "vip-booking", TTL: time.Hour, Now: func() time.Time { return now }})
	require.NoError(t, err)
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTService_RequiresSecret(t *testing.T) {
	_, err := NewJWTService(Config{TTL: time.Hour})
	assert.Error(t, err)
}
