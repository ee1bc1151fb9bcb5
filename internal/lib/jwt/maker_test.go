package jwt_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dishnetafrica/isp-portal/internal/lib/jwt"
)

func TestGenerateAndParseToken(t *testing.T) {
	maker := jwt.NewJWTMaker("test-secret", time.Hour)

	token, err := maker.GenerateToken(42, "uisp-1001", "sub@example.com", "upstream-session")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := maker.ParseToken(token)
	require.NoError(t, err)

	assert.Equal(t, int64(42), claims.SubscriberID)
	assert.Equal(t, "uisp-1001", claims.UISPCustomerID)
	assert.Equal(t, "sub@example.com", claims.Email)
	assert.Equal(t, "upstream-session", claims.UISPToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestParseToken_Expired(t *testing.T) {
	maker := jwt.NewJWTMaker("test-secret", -time.Minute)

	token, err := maker.GenerateToken(1, "uisp-1", "a@b.c", "")
	require.NoError(t, err)

	_, err = maker.ParseToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired), "expired token must be reported as expired, got: %v", err)
	assert.False(t, errors.Is(err, jwt.ErrTokenInvalid))
}

func TestParseToken_WrongKey(t *testing.T) {
	maker := jwt.NewJWTMaker("test-secret", time.Hour)
	other := jwt.NewJWTMaker("other-secret", time.Hour)

	token, err := maker.GenerateToken(1, "uisp-1", "a@b.c", "")
	require.NoError(t, err)

	_, err = other.ParseToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, jwt.ErrTokenInvalid))
}

func TestParseToken_Garbage(t *testing.T) {
	maker := jwt.NewJWTMaker("test-secret", time.Hour)

	_, err := maker.ParseToken("not-a-token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, jwt.ErrTokenInvalid))
}
