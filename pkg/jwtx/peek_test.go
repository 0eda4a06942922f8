package jwtx_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pixelgrid/signupmill/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestPeek(t *testing.T) {
	t.Run("reads subject, email and expiry", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		raw := signedToken(t, jwt.MapClaims{
			"sub":   "user-123",
			"email": "lina.weber4821@dropmail.cc",
			"exp":   exp.Unix(),
		})

		claims, err := jwtx.Peek(raw)
		require.NoError(t, err)
		require.Equal(t, "user-123", claims.Subject)
		require.Equal(t, "lina.weber4821@dropmail.cc", claims.Email)
		require.WithinDuration(t, exp, claims.ExpiresAt, time.Second)
	})

	t.Run("missing exp yields zero time", func(t *testing.T) {
		raw := signedToken(t, jwt.MapClaims{"sub": "user-123"})

		claims, err := jwtx.Peek(raw)
		require.NoError(t, err)
		require.True(t, claims.ExpiresAt.IsZero())
	})

	t.Run("rejects opaque tokens", func(t *testing.T) {
		_, err := jwtx.Peek("not-a-jwt")
		require.ErrorIs(t, err, jwtx.ErrNotAJWT)
	})

	t.Run("does not verify the signature", func(t *testing.T) {
		raw := signedToken(t, jwt.MapClaims{"sub": "user-123"})
		tampered := raw[:len(raw)-2] + "xx"

		claims, err := jwtx.Peek(tampered)
		require.NoError(t, err)
		require.Equal(t, "user-123", claims.Subject)
	})
}
