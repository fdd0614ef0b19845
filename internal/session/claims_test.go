package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)

	return tok
}

func TestDecodeClaims(t *testing.T) {
	issued := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	expires := issued.Add(24 * time.Hour)

	tok := signedToken(t, jwt.RegisteredClaims{
		Subject:   "alice",
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(expires),
	})

	claims, err := DecodeClaims(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.True(t, claims.IssuedAt.Equal(issued))
	assert.True(t, claims.ExpiresAt.Equal(expires))
}

func TestDecodeClaims_MissingTimestamps(t *testing.T) {
	tok := signedToken(t, jwt.RegisteredClaims{Subject: "bob"})

	claims, err := DecodeClaims(tok)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)
	assert.True(t, claims.IssuedAt.IsZero())
	assert.True(t, claims.ExpiresAt.IsZero())
}

func TestDecodeClaims_NotAToken(t *testing.T) {
	_, err := DecodeClaims("opaque-session-credential")
	assert.Error(t, err)
}
