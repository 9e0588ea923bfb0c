package util

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := []byte("test-secret")

	tok, err := GenerateToken(secret, "admin", time.Hour)
	require.NoError(t, err)

	subject, err := ValidateToken(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, "admin", subject)

	_, err = ValidateToken([]byte("other-secret"), tok)
	assert.ErrorIs(t, err, ErrInvalidAdminToken)
}

func TestValidateTokenRejects(t *testing.T) {
	secret := []byte("test-secret")

	expired, err := GenerateToken(secret, "admin", -time.Minute)
	require.NoError(t, err)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(secret)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:  tokenIssuer,
		Subject: "admin",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "expired", token: expired},
		{name: "foreign_issuer", token: foreign},
		{name: "alg_none", token: unsigned},
		{name: "garbage", token: "a.b.c"},
		{name: "empty", token: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(secret, tt.token)
			assert.ErrorIs(t, err, ErrInvalidAdminToken)
		})
	}
}
