package routeros_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dishnetafrica/isp-portal/internal/adapters"
	"github.com/dishnetafrica/isp-portal/internal/adapters/mikrotik"
	"github.com/dishnetafrica/isp-portal/internal/hotspot"
	"github.com/dishnetafrica/isp-portal/internal/http-server/handlers/routeros"
	"github.com/dishnetafrica/isp-portal/internal/http-server/mware"
	libjwt "github.com/dishnetafrica/isp-portal/internal/lib/jwt"
	"github.com/dishnetafrica/isp-portal/internal/models"
)

type mockRouter struct {
	err          error
	wifiPassword string
	ssid         string
	deleted      []string
	disconnected []string
}

func (m *mockRouter) SystemInfo(context.Context, mikrotik.Credentials) (map[string]any, error) {
	if m.err != nil {
		return nil, m.err
	}
	return map[string]any{"identity": map[string]string{"name": "gw-1"}}, nil
}

func (m *mockRouter) Reboot(context.Context, mikrotik.Credentials) error { return m.err }

func (m *mockRouter) WiFiSettings(context.Context, mikrotik.Credentials) (map[string]any, error) {
	return map[string]any{"interfaces": []map[string]string{}}, m.err
}

func (m *mockRouter) SetWiFiPassword(_ context.Context, _ mikrotik.Credentials, _, password string) error {
	m.wifiPassword = password
	return m.err
}

func (m *mockRouter) SetWiFiSSID(_ context.Context, _ mikrotik.Credentials, ssid string) error {
	m.ssid = ssid
	return m.err
}

func (m *mockRouter) HotspotUsers(context.Context, mikrotik.Credentials) ([]map[string]string, error) {
	return []map[string]string{{"name": "1DAAAA1111"}}, m.err
}

func (m *mockRouter) CreateHotspotUser(context.Context, mikrotik.Credentials, mikrotik.HotspotUser) (string, error) {
	return "*2", m.err
}

func (m *mockRouter) DeleteHotspotUser(_ context.Context, _ mikrotik.Credentials, username string) error {
	m.deleted = append(m.deleted, username)
	return m.err
}

func (m *mockRouter) ActiveSessions(context.Context, mikrotik.Credentials) ([]map[string]string, error) {
	return []map[string]string{}, m.err
}

func (m *mockRouter) DisconnectSession(_ context.Context, _ mikrotik.Credentials, id string) error {
	m.disconnected = append(m.disconnected, id)
	return m.err
}

func (m *mockRouter) HotspotProfiles(context.Context, mikrotik.Credentials) ([]map[string]string, error) {
	return []map[string]string{{"name": "1day"}}, m.err
}

func (m *mockRouter) CreateHotspotProfile(context.Context, mikrotik.Credentials, mikrotik.HotspotProfile) (string, error) {
	return "*1", m.err
}

type mockAudit struct {
	actions []string
}

func (m *mockAudit) AppendAudit(_ context.Context, e models.AuditEntry) error {
	m.actions = append(m.actions, e.Action)
	return nil
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }

func makeLogger() *slog.Logger {
	return slog.New(discardHandler{})
}

func withClaims(req *http.Request) *http.Request {
	ctx := context.WithValue(req.Context(), mware.ClaimsKey, &libjwt.SessionClaims{SubscriberID: 42})
	return req.WithContext(ctx)
}

const credsBody = `"host":"192.168.88.1","username":"admin","password":"x"`

func TestSystemInfo(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/mikrotik/system/info",
		strings.NewReader(`{`+credsBody+`}`))
	w := httptest.NewRecorder()

	routeros.SystemInfo(makeLogger(), &mockRouter{}).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gw-1")
}

func TestSystemInfo_MissingCredentials(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/mikrotik/system/info",
		strings.NewReader(`{"host":"192.168.88.1"}`))
	w := httptest.NewRecorder()

	routeros.SystemInfo(makeLogger(), &mockRouter{}).ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Username is a required field")
}

func TestSystemInfo_RouterDown(t *testing.T) {
	svc := &mockRouter{err: &adapters.UnavailableError{Host: "192.168.88.1", Err: errors.New("refused")}}

	req := httptest.NewRequest(http.MethodPost, "/api/mikrotik/system/info",
		strings.NewReader(`{`+credsBody+`}`))
	w := httptest.NewRecorder()

	routeros.SystemInfo(makeLogger(), svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "device unreachable: 192.168.88.1")
}

func TestReboot_Audited(t *testing.T) {
	audit := &mockAudit{}

	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/mikrotik/system/reboot",
		strings.NewReader(`{`+credsBody+`}`)))
	w := httptest.NewRecorder()

	routeros.Reboot(makeLogger(), &mockRouter{}, audit).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"router_reboot"}, audit.actions)
}

func TestSetWiFi(t *testing.T) {
	svc := &mockRouter{}

	req := httptest.NewRequest(http.MethodPut, "/api/mikrotik/wifi",
		strings.NewReader(`{`+credsBody+`,"ssid":"HomeNet","wifi_password":"hunter22"}`))
	w := httptest.NewRecorder()

	routeros.SetWiFi(makeLogger(), svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HomeNet", svc.ssid)
	assert.Equal(t, "hunter22", svc.wifiPassword)
}

func TestSetWiFi_NothingToUpdate(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/mikrotik/wifi",
		strings.NewReader(`{`+credsBody+`}`))
	w := httptest.NewRecorder()

	routeros.SetWiFi(makeLogger(), &mockRouter{}).ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteHotspotUser(t *testing.T) {
	svc := &mockRouter{}

	router := chi.NewRouter()
	router.Delete("/api/mikrotik/hotspot/users/{username}", routeros.DeleteHotspotUser(makeLogger(), svc))

	req := httptest.NewRequest(http.MethodDelete, "/api/mikrotik/hotspot/users/1DAAAA1111",
		strings.NewReader(`{`+credsBody+`}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"1DAAAA1111"}, svc.deleted)
}

func TestDeleteHotspotUser_MissingOnRouter(t *testing.T) {
	svc := &mockRouter{err: mikrotik.ErrNotFound}

	router := chi.NewRouter()
	router.Delete("/api/mikrotik/hotspot/users/{username}", routeros.DeleteHotspotUser(makeLogger(), svc))

	req := httptest.NewRequest(http.MethodDelete, "/api/mikrotik/hotspot/users/NOPE",
		strings.NewReader(`{`+credsBody+`}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDisconnectSession_Audited(t *testing.T) {
	svc := &mockRouter{}
	audit := &mockAudit{}

	router := chi.NewRouter()
	router.Post("/api/mikrotik/hotspot/active/{id}/disconnect",
		routeros.DisconnectSession(makeLogger(), svc, audit))

	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/mikrotik/hotspot/active/*A1/disconnect",
		strings.NewReader(`{`+credsBody+`}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"*A1"}, svc.disconnected)
	assert.Equal(t, []string{"hotspot_disconnect"}, audit.actions)
}

func TestCreateHotspotProfile_DefaultsSharedUsers(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/mikrotik/hotspot/profiles/create",
		strings.NewReader(`{`+credsBody+`,"name":"1day","rate_limit":"10M/10M"}`))
	w := httptest.NewRecorder()

	routeros.CreateHotspotProfile(makeLogger(), &mockRouter{}).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

type mockIssuer struct {
	result  hotspot.BatchResult
	err     error
	presets []string
}

func (m *mockIssuer) Issue(_ context.Context, _ models.Device, _ mikrotik.Credentials, presetName string, _, _ int) (hotspot.BatchResult, error) {
	m.presets = append(m.presets, presetName)
	return m.result, m.err
}

func TestIssueVouchers(t *testing.T) {
	issuer := &mockIssuer{result: hotspot.BatchResult{
		BatchID: "b-1",
		Issued:  []models.Voucher{{Code: "1DAAAA1111"}, {Code: "1DBBBB2222"}},
	}}
	audit := &mockAudit{}

	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/mikrotik/hotspot/vouchers",
		strings.NewReader(`{`+credsBody+`,"preset":"1day","count":2}`)))
	w := httptest.NewRecorder()

	routeros.IssueVouchers(makeLogger(), issuer, audit).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"1day"}, issuer.presets)
	assert.Contains(t, w.Body.String(), `"batch_id":"b-1"`)
	assert.Equal(t, []string{"vouchers_issued"}, audit.actions)
}

func TestIssueVouchers_UnknownPreset(t *testing.T) {
	issuer := &mockIssuer{err: hotspot.ErrUnknownPreset}

	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/mikrotik/hotspot/vouchers",
		strings.NewReader(`{`+credsBody+`,"preset":"2weeks","count":2}`)))
	w := httptest.NewRecorder()

	routeros.IssueVouchers(makeLogger(), issuer, &mockAudit{}).ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown voucher preset")
}

func TestIssueVouchers_RouterUnreachable(t *testing.T) {
	issuer := &mockIssuer{err: &adapters.UnavailableError{Host: "192.168.88.1"}}

	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/mikrotik/hotspot/vouchers",
		strings.NewReader(`{`+credsBody+`,"preset":"1day","count":2}`)))
	w := httptest.NewRecorder()

	routeros.IssueVouchers(makeLogger(), issuer, &mockAudit{}).ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "device unreachable: 192.168.88.1")
}
