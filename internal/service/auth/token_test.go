package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/betplatform/internal/models"
)

func TestTokenVerifier(t *testing.T) {
	user := models.User{ID: uuid.New(), Email: "bettor@example.com", IsAdmin: true}

	newVerifier := func(t *testing.T, cfg Config) *TokenVerifier {
		v, err := NewVerifier(cfg)
		require.NoError(t, err, "verifier should be created without errors")
		return v
	}

	t.Run("new defaults", func(t *testing.T) {
		v := newVerifier(t, Config{SecretKey: "secret"})

		require.Equal(t, []byte("secret"), v.key)
		require.Equal(t, defaultSigningMethod, v.alg.Alg())
		require.Equal(t, defaultTokenTTL, v.ttl)
	})

	t.Run("new fails", func(t *testing.T) {
		_, err := NewVerifier(Config{})
		require.Error(t, err, "empty secret is not allowed")

		_, err = NewVerifier(Config{SecretKey: "secret", Alg: "RS256"})
		require.Error(t, err, "only HMAC methods are supported")
	})

	t.Run("issue and verify", func(t *testing.T) {
		v := newVerifier(t, Config{SecretKey: "secret"})

		access, err := v.Issue(user)
		require.NoError(t, err)

		got, err := v.Verify(access)

		require.NoError(t, err)
		require.Equal(t, user, got)
	})

	t.Run("wrong key", func(t *testing.T) {
		access, err := newVerifier(t, Config{SecretKey: "other"}).Issue(user)
		require.NoError(t, err)

		_, err = newVerifier(t, Config{SecretKey: "secret"}).Verify(access)

		require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		v := newVerifier(t, Config{SecretKey: "secret", TTL: -time.Minute})
		access, err := v.Issue(user)
		require.NoError(t, err)

		_, err = v.Verify(access)

		require.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("without expiration", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{UserID: user.ID})
		access, err := token.SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = newVerifier(t, Config{SecretKey: "secret"}).Verify(access)

		require.ErrorIs(t, err, jwt.ErrTokenRequiredClaimMissing)
	})

	t.Run("without user id", func(t *testing.T) {
		v := newVerifier(t, Config{SecretKey: "secret"})
		access, err := v.Issue(models.User{Email: "nobody@example.com"})
		require.NoError(t, err)

		_, err = v.Verify(access)

		require.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := newVerifier(t, Config{SecretKey: "secret"}).Verify("not-a-token")

		require.ErrorIs(t, err, jwt.ErrTokenMalformed)
	})
}
