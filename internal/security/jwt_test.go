package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, expiration time.Duration) *JWTManager {
	t.Helper()
	manager, err := NewJWTManager("test-secret", expiration, "mms-connector")
	require.NoError(t, err)
	return manager
}

func TestNewJWTManagerRequiresSecret(t *testing.T) {
	_, err := NewJWTManager("", time.Hour, "mms-connector")
	assert.Error(t, err)
}

func TestGenerateAndValidate(t *testing.T) {
	manager := newTestManager(t, time.Hour)

	token, err := manager.Generate("user-1", []string{"operator"})
	require.NoError(t, err)

	claims, err := manager.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, []string{"operator"}, claims.Roles)
	assert.Equal(t, "mms-connector", claims.Issuer)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	manager := newTestManager(t, time.Hour)
	other, err := NewJWTManager("other-secret", time.Hour, "mms-connector")
	require.NoError(t, err)

	token, err := manager.Generate("user-1", nil)
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	manager := newTestManager(t, -time.Minute)

	token, err := manager.Generate("user-1", nil)
	require.NoError(t, err)

	_, err = manager.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	manager := newTestManager(t, time.Hour)

	_, err := manager.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHasRole(t *testing.T) {
	manager := newTestManager(t, time.Hour)

	claims := &Claims{Roles: []string{"operator"}}
	assert.True(t, manager.HasRole(claims, "operator"))
	assert.False(t, manager.HasRole(claims, "viewer"))

	admin := &Claims{Roles: []string{"admin"}}
	assert.True(t, manager.HasRole(admin, "viewer"))
}
