package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fenggwsx/SportChat/internal/config"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPasswordCost("secret1", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)

	assert.NoError(t, ComparePassword(hash, "secret1"))
	assert.Error(t, ComparePassword(hash, "secret2"))

	_, err = HashPassword("")
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	cfg := config.JWTConfig{Secret: "s3cret", Issuer: "sportchat", Expiration: time.Hour}

	token, expiresAt, err := NewToken(cfg, 42, "alice")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := ParseToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "42", claims.Subject)
}

func TestParseToken_Rejects(t *testing.T) {
	cfg := config.JWTConfig{Secret: "s3cret", Issuer: "sportchat", Expiration: time.Hour}
	token, _, err := NewToken(cfg, 7, "bob")
	require.NoError(t, err)

	_, err = ParseToken(config.JWTConfig{Secret: "other", Issuer: "sportchat"}, token)
	assert.Error(t, err)

	_, err = ParseToken(config.JWTConfig{Secret: "s3cret", Issuer: "elsewhere"}, token)
	assert.Error(t, err)

	expired := config.JWTConfig{Secret: "s3cret", Issuer: "sportchat", Expiration: -time.Minute}
	old, _, err := NewToken(expired, 7, "bob")
	require.NoError(t, err)
	_, err = ParseToken(cfg, old)
	assert.Error(t, err)

	_, err = ParseToken(cfg, "not-a-token")
	assert.Error(t, err)
}
