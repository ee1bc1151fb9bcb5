package random_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dishnetafrica/isp-portal/internal/lib/random"
)

func TestCode(t *testing.T) {
	code, err := random.Code("1D", 8)
	require.NoError(t, err)

	assert.Len(t, code, 10)
	assert.True(t, strings.HasPrefix(code, "1D"))
	for _, c := range code[2:] {
		assert.Contains(t, random.Alphabet, string(c))
	}
}

func TestCode_InvalidLength(t *testing.T) {
	_, err := random.Code("V", 0)
	require.Error(t, err)

	_, err = random.Code("V", -3)
	require.Error(t, err)
}
