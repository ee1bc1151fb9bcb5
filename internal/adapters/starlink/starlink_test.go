package starlink

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dishnetafrica/isp-portal/internal/adapters"
	"github.com/dishnetafrica/isp-portal/internal/models"
)

type fakeDish struct {
	err error
}

func (f *fakeDish) Reachable(context.Context) error { return f.err }

func newTestAdapter(dish DishClient) *Adapter {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewAdapter(log, dish, "192.168.100.1")
}

func TestStatus_ReachableDish(t *testing.T) {
	a := newTestAdapter(&fakeDish{})

	status, err := a.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "CONNECTED", status["state"])
	assert.Equal(t, 9.5, status["snr"])
}

func TestStatus_UnreachableDish(t *testing.T) {
	a := newTestAdapter(&fakeDish{err: errors.New("connection refused")})

	_, err := a.Status(context.Background())
	require.Error(t, err)

	var unavailable *adapters.UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "192.168.100.1", unavailable.Host)
}

func TestCapabilitiesAndFamily(t *testing.T) {
	a := newTestAdapter(&fakeDish{})

	assert.Equal(t, models.FamilyStarlink, a.Family())
	caps := a.Capabilities()
	assert.Contains(t, caps, adapters.CapStow)
	assert.Contains(t, caps, adapters.CapObstructionMap)
	assert.NotContains(t, caps, adapters.CapHotspotVouchers)
}

func TestSetWiFi_ReportsAppliedFields(t *testing.T) {
	a := newTestAdapter(&fakeDish{})

	ssid := "HomeNet"
	result, err := a.SetWiFi(context.Background(), adapters.WiFiSettings{SSID: &ssid})
	require.NoError(t, err)
	assert.Equal(t, true, result["ssid_updated"])
	assert.NotContains(t, result, "password_updated")
}

func TestStowActions(t *testing.T) {
	a := newTestAdapter(&fakeDish{})

	require.NoError(t, a.Stow(context.Background()))
	require.NoError(t, a.Unstow(context.Background()))
	require.NoError(t, a.Reboot(context.Background()))

	broken := newTestAdapter(&fakeDish{err: errors.New("timeout")})
	require.Error(t, broken.Stow(context.Background()))
}
