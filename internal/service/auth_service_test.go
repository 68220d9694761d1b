package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking_network/internal/domain"
)

func TestIssueAndValidateToken(t *testing.T) {
	auth := NewAuthService("secret", time.Hour)
	token, err := auth.IssueToken(meera)
	require.NoError(t, err)

	actor, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, meera, actor)
}

func TestValidateTokenRejects(t *testing.T) {
	auth := NewAuthService("secret", time.Hour)

	claims := jwt.MapClaims{"sub": "u1", "username": "ravi", "role": "user", "exp": time.Now().Add(-time.Minute).Unix()}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	wrongKey, err := NewAuthService("other", time.Hour).IssueToken(ravi)
	require.NoError(t, err)

	badRole, err := auth.IssueToken(domain.Actor{UserID: "x", Username: "x", Role: "superuser"})
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"malformed": "not-a-token",
		"expired":   expired,
		"wrong key": wrongKey,
		"bad role":  badRole,
	} {
		_, err := auth.ValidateToken(tok)
		assert.ErrorIs(t, err, ErrTokenInvalid, name)
	}
}
