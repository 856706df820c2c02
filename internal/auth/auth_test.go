package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruvnet/parsec/internal/config"
)

func testService() *Service {
	return NewService(config.JWTConfig{
		Secret:         "test-secret",
		ExpirationTime: time.Hour,
		Issuer:         "parsec-test",
	})
}

func TestIssueAndValidateToken(t *testing.T) {
	svc := testService()

	token, err := svc.IssueToken(Operator{ID: "op-1", Role: "admin"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.OperatorID)
	assert.Equal(t, "admin", claims.Role)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := testService()
	_, err := svc.ValidateToken("not-a-jwt")
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := testService()
	token, err := issuer.IssueToken(Operator{ID: "op-1", Role: "viewer"})
	require.NoError(t, err)

	other := NewService(config.JWTConfig{Secret: "different-secret", ExpirationTime: time.Hour})
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestHashAndCheckPassword(t *testing.T) {
	svc := testService()
	hash, err := svc.HashPassword("correct horse battery staple")
	require.NoError(t, err)

	assert.NoError(t, svc.CheckPassword("correct horse battery staple", hash))
	assert.Error(t, svc.CheckPassword("wrong password", hash))
}

func TestIsAuthorized(t *testing.T) {
	svc := testService()

	assert.True(t, svc.IsAuthorized("admin", "admin"))
	assert.True(t, svc.IsAuthorized("operator", "write"))
	assert.False(t, svc.IsAuthorized("operator", "admin"))
	assert.True(t, svc.IsAuthorized("viewer", "read"))
	assert.False(t, svc.IsAuthorized("viewer", "write"))
	assert.False(t, svc.IsAuthorized("unknown", "read"))
}

func TestRefreshToken(t *testing.T) {
	svc := testService()
	token, err := svc.IssueToken(Operator{ID: "op-1", Role: "admin"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(token)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(refreshed)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.OperatorID)
	assert.Equal(t, "admin", claims.Role)
}
