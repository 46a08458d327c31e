package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/config"
)

func newTestManager(ttl time.Duration) *JWTManager {
	return NewJWTManager(&config.JWTConfig{
		Secret:          "test-secret",
		AccessTokenTTL:  ttl,
		RefreshTokenTTL: time.Hour,
	})
}

func TestTokenRoundTrip(t *testing.T) {
	m := newTestManager(time.Hour)

	access, refresh, err := m.GenerateTokenPair("admin")
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	claims, err := m.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Subject)
}

func TestValidateRejectsExpired(t *testing.T) {
	m := newTestManager(-time.Minute)

	access, _, err := m.GenerateTokenPair("admin")
	require.NoError(t, err)

	_, err = m.ValidateToken(access)
	assert.Error(t, err)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	m := newTestManager(time.Hour)
	other := NewJWTManager(&config.JWTConfig{
		Secret:          "another-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: time.Hour,
	})

	access, _, err := m.GenerateTokenPair("admin")
	require.NoError(t, err)

	_, err = other.ValidateToken(access)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	m := newTestManager(time.Hour)

	_, err := m.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestRefreshIssuesNewPair(t *testing.T) {
	m := newTestManager(time.Hour)

	_, refresh, err := m.GenerateTokenPair("admin")
	require.NoError(t, err)

	access, newRefresh, err := m.RefreshToken(refresh)
	require.NoError(t, err)
	require.NotEmpty(t, newRefresh)

	claims, err := m.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
}
