package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenPairRoundTrip(t *testing.T) {
	svc := NewJWTService("unit-test-secret")

	access, refresh, expiresIn, err := svc.GenerateTokenPair("user-1", "alice")
	require.NoError(t, err)
	require.NotEqual(t, access, refresh)
	require.Greater(t, expiresIn, int64(0))

	claims, err := svc.ValidateToken(access)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "access", claims.Type)

	claims, err = svc.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	require.Equal(t, "refresh", claims.Type)
}

func TestTokenTypeEnforcement(t *testing.T) {
	svc := NewJWTService("unit-test-secret")
	access, refresh, _, err := svc.GenerateTokenPair("user-1", "alice")
	require.NoError(t, err)

	// tokens only validate as their own type
	_, err = svc.ValidateRefreshToken(access)
	require.Error(t, err)
	_, err = svc.ValidateToken(refresh)
	require.Error(t, err)
	_, err = svc.ValidateResetToken(access)
	require.Error(t, err)

	reset, err := svc.GenerateResetToken("user-1", "alice")
	require.NoError(t, err)
	claims, err := svc.ValidateResetToken(reset)
	require.NoError(t, err)
	require.Equal(t, "reset", claims.Type)
	_, err = svc.ValidateToken(reset)
	require.Error(t, err)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	access, _, _, err := NewJWTService("secret-a").GenerateTokenPair("user-1", "alice")
	require.NoError(t, err)

	_, err = NewJWTService("secret-b").ValidateToken(access)
	require.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	require.NoError(t, err)
	require.NotEqual(t, "hunter2hunter2", hash)

	require.True(t, CheckPasswordHash("hunter2hunter2", hash))
	require.False(t, CheckPasswordHash("wrong", hash))
}
