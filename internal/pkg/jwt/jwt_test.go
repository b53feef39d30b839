package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-testing"

func TestGenerateAndParse(t *testing.T) {
	for _, id := range []int64{1, 42, 9223372036854775807} {
		token, err := GenerateToken(id, testSecret, 24)
		require.NoError(t, err)

		claims, err := ParseToken(token, testSecret)
		require.NoError(t, err)
		assert.Equal(t, id, claims.UserID)
		assert.Equal(t, issuer, claims.Issuer)
		assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, 5*time.Second)
	}

	claims, err := ParseToken(mustToken(t, 42, 1), testSecret)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
}

func mustToken(t *testing.T, id int64, hours int) string {
	t.Helper()

	token, err := GenerateToken(id, testSecret, hours)
	require.NoError(t, err)
	return token
}

func TestParseToken_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"garbage":      "invalid-token",
		"malformed":    "a.b.c",
		"wrong secret": mustTokenWithSecret(t, "other-secret"),
		"none alg":     noneToken(t),
	}
	for name, token := range cases {
		_, err := ParseToken(token, testSecret)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestParseToken_Expired(t *testing.T) {
	_, err := ParseToken(mustToken(t, 7, -1), testSecret)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func mustTokenWithSecret(t *testing.T, secret string) string {
	t.Helper()

	token, err := GenerateToken(1, secret, 1)
	require.NoError(t, err)
	return token
}

func noneToken(t *testing.T) string {
	t.Helper()

	claims := Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return token
}
