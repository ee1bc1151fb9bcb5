package starlink_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dishnetafrica/isp-portal/internal/adapters"
	"github.com/dishnetafrica/isp-portal/internal/http-server/handlers/starlink"
)

type mockDish struct {
	err     error
	stowed  bool
	applied adapters.WiFiSettings
}

func (m *mockDish) Status(context.Context) (map[string]any, error) {
	if m.err != nil {
		return nil, m.err
	}
	return map[string]any{"state": "CONNECTED"}, nil
}

func (m *mockDish) WiFi(context.Context) (map[string]any, error) {
	return map[string]any{"ssid": "STARLINK"}, m.err
}

func (m *mockDish) SetWiFi(_ context.Context, s adapters.WiFiSettings) (map[string]any, error) {
	m.applied = s
	return map[string]any{"ssid_updated": s.SSID != nil}, m.err
}

func (m *mockDish) Reboot(context.Context) error { return m.err }

func (m *mockDish) Stow(context.Context) error {
	m.stowed = true
	return m.err
}

func (m *mockDish) Unstow(context.Context) error {
	m.stowed = false
	return m.err
}

func (m *mockDish) ObstructionMap(context.Context) (map[string]any, error) {
	return map[string]any{"num_rows": 123}, m.err
}

func (m *mockDish) History(context.Context) (map[string]any, error) {
	return map[string]any{}, m.err
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }

func makeLogger() *slog.Logger {
	return slog.New(discardHandler{})
}

func TestStatus(t *testing.T) {
	w := httptest.NewRecorder()
	starlink.Status(makeLogger(), &mockDish{}).ServeHTTP(w,
		httptest.NewRequest(http.MethodGet, "/api/starlink/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "CONNECTED")
}

func TestStatus_DishUnreachable(t *testing.T) {
	dish := &mockDish{err: &adapters.UnavailableError{Host: "192.168.100.1", Err: errors.New("refused")}}

	w := httptest.NewRecorder()
	starlink.Status(makeLogger(), dish).ServeHTTP(w,
		httptest.NewRequest(http.MethodGet, "/api/starlink/status", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "device unreachable: 192.168.100.1")
}

func TestSetWiFi(t *testing.T) {
	dish := &mockDish{}

	req := httptest.NewRequest(http.MethodPut, "/api/starlink/wifi",
		strings.NewReader(`{"ssid":"HomeNet"}`))
	w := httptest.NewRecorder()
	starlink.SetWiFi(makeLogger(), dish).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, dish.applied.SSID)
	assert.Equal(t, "HomeNet", *dish.applied.SSID)
}

func TestSetWiFi_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/starlink/wifi", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	starlink.SetWiFi(makeLogger(), &mockDish{}).ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "nothing to update")
}

func TestStowUnstow(t *testing.T) {
	dish := &mockDish{}

	w := httptest.NewRecorder()
	starlink.Stow(makeLogger(), dish).ServeHTTP(w,
		httptest.NewRequest(http.MethodPost, "/api/starlink/stow", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, dish.stowed)

	w = httptest.NewRecorder()
	starlink.Unstow(makeLogger(), dish).ServeHTTP(w,
		httptest.NewRequest(http.MethodPost, "/api/starlink/unstow", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, dish.stowed)
}
