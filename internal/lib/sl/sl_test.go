package sl_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dishnetafrica/isp-portal/internal/lib/sl"
)

func TestErr(t *testing.T) {
	attr := sl.Err(errors.New("boom"))

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.KindString, attr.Value.Kind())
	assert.Equal(t, "boom", attr.Value.String())
}
