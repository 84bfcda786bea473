package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenVerifier(t *testing.T) {
	_, err := NewTokenVerifier("")
	assert.Error(t, err, "empty secret is refused")

	v, err := NewTokenVerifier("test-secret")
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestVerifyRoundTrip(t *testing.T) {
	v, err := NewTokenVerifier("test-secret")
	require.NoError(t, err)

	token, err := v.Issue(Identity{UserID: 42, Username: "alice"}, time.Hour)
	require.NoError(t, err)

	identity, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), identity.UserID)
	assert.Equal(t, "alice", identity.Username)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	v, err := NewTokenVerifier("test-secret")
	require.NoError(t, err)

	other, err := NewTokenVerifier("other-secret")
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify("not.a.token")
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := other.Issue(Identity{UserID: 42}, time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := v.Issue(Identity{UserID: 42}, -time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(token)
		assert.Error(t, err)
	})

	t.Run("non-numeric subject", func(t *testing.T) {
		claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = v.Verify(token)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "subject"))
	})

	t.Run("non-positive subject", func(t *testing.T) {
		token, err := v.Issue(Identity{UserID: 0}, time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(token)
		assert.Error(t, err)
	})

	t.Run("alg none", func(t *testing.T) {
		claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "42"}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = v.Verify(token)
		assert.Error(t, err)
	})
}
