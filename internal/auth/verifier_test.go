package auth_test

import (
	"context"
	"testing"
	"time"

	"story-server/internal/auth"
	"story-server/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims models.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTVerifier_VerifyToken(t *testing.T) {
	verifier, err := auth.NewJWTVerifier(testSecret, nil)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		tokenString := signToken(t, testSecret, models.Claims{
			UserID: "editor-1",
			Roles:  []string{"editor"},
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})

		claims, err := verifier.VerifyToken(ctx, tokenString)
		require.NoError(t, err)
		assert.Equal(t, "editor-1", claims.UserID)
		assert.True(t, claims.HasRole("editor"))
		assert.False(t, claims.HasRole("admin"))
	})

	t.Run("expired token", func(t *testing.T) {
		tokenString := signToken(t, testSecret, models.Claims{
			UserID: "editor-1",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		})

		_, err := verifier.VerifyToken(ctx, tokenString)
		require.ErrorIs(t, err, models.ErrTokenExpired)
	})

	t.Run("wrong signature", func(t *testing.T) {
		tokenString := signToken(t, "other-secret", models.Claims{
			UserID: "editor-1",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})

		_, err := verifier.VerifyToken(ctx, tokenString)
		require.ErrorIs(t, err, models.ErrTokenInvalid)
	})

	t.Run("garbage input", func(t *testing.T) {
		_, err := verifier.VerifyToken(ctx, "not-a-token")
		require.ErrorIs(t, err, models.ErrTokenMalformed)
	})

	t.Run("missing user ID", func(t *testing.T) {
		tokenString := signToken(t, testSecret, models.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})

		_, err := verifier.VerifyToken(ctx, tokenString)
		require.ErrorIs(t, err, models.ErrTokenInvalid)
	})

	t.Run("empty secret rejected at construction", func(t *testing.T) {
		_, err := auth.NewJWTVerifier("", nil)
		require.Error(t, err)
	})
}
