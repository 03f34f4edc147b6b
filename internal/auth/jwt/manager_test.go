package jwt

import (
	"testing"
	"time"

	"github.com/pharmaflow/pharmacy-backend/pkg/config"
	pkgerrors "github.com/pharmaflow/pharmacy-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(expiry time.Duration) *Manager {
	return NewManager(&config.JWTConfig{
		Secret: "test-secret",
		Expiry: expiry,
		Issuer: "pharmacy-backend-test",
	})
}

func TestGenerateAndValidate(t *testing.T) {
	manager := testManager(time.Hour)

	user := &UserInfo{
		ID:    "user-123",
		Email: "pharmacist@pharmacy.test",
		Name:  "Test Pharmacist",
		Role:  "pharmacist",
	}

	token, err := manager.Generate(user)
	require.NoError(t, err)
	require.NotEmpty(t, token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, 5*time.Second)

	claims, err := manager.Validate(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, user.Name, claims.Name)
	assert.Equal(t, user.Role, claims.Role)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, "pharmacy-backend-test", claims.Issuer)
}

func TestValidateExpiredToken(t *testing.T) {
	manager := testManager(-time.Minute)

	token, err := manager.Generate(&UserInfo{ID: "user-123", Role: "staff"})
	require.NoError(t, err)

	_, err = manager.Validate(token.AccessToken)
	require.Error(t, err)

	var appErr *pkgerrors.AppError
	require.True(t, pkgerrors.As(err, &appErr))
	assert.Equal(t, "TOKEN_EXPIRED", appErr.Code)
}

func TestValidateWrongSecret(t *testing.T) {
	token, err := testManager(time.Hour).Generate(&UserInfo{ID: "user-123"})
	require.NoError(t, err)

	other := NewManager(&config.JWTConfig{Secret: "other-secret", Expiry: time.Hour})
	_, err = other.Validate(token.AccessToken)
	require.Error(t, err)

	var appErr *pkgerrors.AppError
	require.True(t, pkgerrors.As(err, &appErr))
	assert.Equal(t, "TOKEN_INVALID", appErr.Code)
}

func TestValidateGarbageToken(t *testing.T) {
	_, err := testManager(time.Hour).Validate("not.a.token")
	require.Error(t, err)
}
