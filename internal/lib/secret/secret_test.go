package secret_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dishnetafrica/isp-portal/internal/lib/secret"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestSealOpen_RoundTrip(t *testing.T) {
	sealer, err := secret.NewSealer(testKey)
	require.NoError(t, err)

	box, err := sealer.Seal("router-api-password")
	require.NoError(t, err)
	assert.NotContains(t, string(box), "router-api-password")

	plain, err := sealer.Open(box)
	require.NoError(t, err)
	assert.Equal(t, "router-api-password", plain)
}

func TestNewSealer_BadKey(t *testing.T) {
	_, err := secret.NewSealer("short")
	assert.True(t, errors.Is(err, secret.ErrBadKey))
}

func TestOpen_WrongKey(t *testing.T) {
	sealer, err := secret.NewSealer(testKey)
	require.NoError(t, err)
	other, err := secret.NewSealer("fedcba9876543210fedcba9876543210")
	require.NoError(t, err)

	box, err := sealer.Seal("credential")
	require.NoError(t, err)

	_, err = other.Open(box)
	assert.True(t, errors.Is(err, secret.ErrSealedBoxDamaged))
}

func TestOpen_Truncated(t *testing.T) {
	sealer, err := secret.NewSealer(testKey)
	require.NoError(t, err)

	_, err = sealer.Open([]byte("tiny"))
	assert.True(t, errors.Is(err, secret.ErrSealedBoxDamaged))
}
