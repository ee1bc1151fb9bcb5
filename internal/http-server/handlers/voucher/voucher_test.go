package voucher_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dishnetafrica/isp-portal/internal/adapters"
	"github.com/dishnetafrica/isp-portal/internal/adapters/mikrotik"
	"github.com/dishnetafrica/isp-portal/internal/hotspot"
	"github.com/dishnetafrica/isp-portal/internal/http-server/handlers/voucher"
	"github.com/dishnetafrica/isp-portal/internal/http-server/mware"
	"github.com/dishnetafrica/isp-portal/internal/lib/jwt"
	"github.com/dishnetafrica/isp-portal/internal/models"
	"github.com/dishnetafrica/isp-portal/internal/storage/repository"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type mockIssuer struct {
	issueFn   func(ctx context.Context, device models.Device, creds mikrotik.Credentials, presetName string, count, codeLength int) (hotspot.BatchResult, error)
	summaryFn func(ctx context.Context, creds mikrotik.Credentials) (map[string]any, error)
}

func (m *mockIssuer) Issue(ctx context.Context, device models.Device, creds mikrotik.Credentials, presetName string, count, codeLength int) (hotspot.BatchResult, error) {
	return m.issueFn(ctx, device, creds, presetName, count, codeLength)
}

func (m *mockIssuer) Summary(ctx context.Context, creds mikrotik.Credentials) (map[string]any, error) {
	return m.summaryFn(ctx, creds)
}

type mockStore struct {
	vouchers []models.Voucher
	err      error
}

func (m *mockStore) ListVouchersByBatch(_ context.Context, _ string) ([]models.Voucher, error) {
	return m.vouchers, m.err
}

type mockAccess struct {
	device *models.Device
	getErr error
	creds  mikrotik.Credentials
}

func (m *mockAccess) Get(_ context.Context, _, _ int64) (*models.Device, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.device, nil
}

func (m *mockAccess) RouterCredentials(_ *models.Device) (mikrotik.Credentials, error) {
	return m.creds, nil
}

type mockAudit struct {
	entries []models.AuditEntry
}

func (m *mockAudit) AppendAudit(_ context.Context, e models.AuditEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func testAccess() *mockAccess {
	return &mockAccess{
		device: &models.Device{ID: 7, SubscriberID: 1, Family: models.FamilyMikroTik},
		creds:  mikrotik.Credentials{Host: "10.0.0.1", Username: "admin", Password: "pw"},
	}
}

func withClaims(r *http.Request) *http.Request {
	claims := &jwt.SessionClaims{SubscriberID: 1, UISPCustomerID: "1001"}
	return r.WithContext(context.WithValue(r.Context(), mware.ClaimsKey, claims))
}

func TestQuickVouchers(t *testing.T) {
	issuer := &mockIssuer{
		issueFn: func(_ context.Context, device models.Device, creds mikrotik.Credentials, presetName string, count, codeLength int) (hotspot.BatchResult, error) {
			require.EqualValues(t, 7, device.ID)
			require.Equal(t, "10.0.0.1", creds.Host)
			require.Equal(t, "1day", presetName)
			require.Equal(t, 3, count)

			preset, err := hotspot.PresetByName(presetName)
			require.NoError(t, err)

			batch := hotspot.BatchResult{BatchID: "b-1", Preset: preset}
			for i := 0; i < count; i++ {
				batch.Issued = append(batch.Issued, models.Voucher{Code: fmt.Sprintf("1DCODE%02d", i)})
			}
			return batch, nil
		},
	}
	audit := &mockAudit{}

	handler := voucher.QuickVouchers(newTestLogger(), issuer, testAccess(), audit, nil)

	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/hotspot/quick-vouchers",
		strings.NewReader(`{"device_id": 7, "preset": "1day", "count": 3}`)))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `"batch_id":"b-1"`)
	assert.Contains(t, body, "1DCODE00")

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "vouchers_issued", audit.entries[0].Action)
	assert.Equal(t, "b-1", audit.entries[0].ResourceID)
}

func TestQuickVouchers_UnknownPreset(t *testing.T) {
	issuer := &mockIssuer{
		issueFn: func(_ context.Context, _ models.Device, _ mikrotik.Credentials, _ string, _, _ int) (hotspot.BatchResult, error) {
			return hotspot.BatchResult{}, hotspot.ErrUnknownPreset
		},
	}

	handler := voucher.QuickVouchers(newTestLogger(), issuer, testAccess(), &mockAudit{}, nil)

	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/hotspot/quick-vouchers",
		strings.NewReader(`{"device_id": 7, "preset": "2weeks", "count": 1}`)))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown voucher preset")
}

func TestQuickVouchers_RouterUnreachable(t *testing.T) {
	issuer := &mockIssuer{
		issueFn: func(_ context.Context, _ models.Device, _ mikrotik.Credentials, _ string, _, _ int) (hotspot.BatchResult, error) {
			return hotspot.BatchResult{}, &adapters.UnavailableError{Host: "10.0.0.1"}
		},
	}

	handler := voucher.QuickVouchers(newTestLogger(), issuer, testAccess(), &mockAudit{}, nil)

	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/hotspot/quick-vouchers",
		strings.NewReader(`{"device_id": 7, "preset": "1day", "count": 1}`)))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "device unreachable: 10.0.0.1")
}

func TestQuickVouchers_DeviceNotFound(t *testing.T) {
	access := &mockAccess{getErr: repository.ErrNotFound}
	handler := voucher.QuickVouchers(newTestLogger(), &mockIssuer{}, access, &mockAudit{}, nil)

	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/hotspot/quick-vouchers",
		strings.NewReader(`{"device_id": 99, "preset": "1day", "count": 1}`)))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "device not found")
}

func TestQuickVouchers_WrongFamily(t *testing.T) {
	access := testAccess()
	access.device.Family = models.FamilyStarlink

	handler := voucher.QuickVouchers(newTestLogger(), &mockIssuer{}, access, &mockAudit{}, nil)

	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/hotspot/quick-vouchers",
		strings.NewReader(`{"device_id": 7, "preset": "1day", "count": 1}`)))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "does not support hotspot vouchers")
}

func TestPrintVouchers(t *testing.T) {
	now := time.Now()
	store := &mockStore{vouchers: []models.Voucher{
		{Code: "1DAAAA11", Profile: "1day", Validity: "24h", BatchID: "3f0e8a1c-9a49-4f0e-9a34-6a3d0b6a7f10", CreatedAt: now},
		{Code: "1DBBBB22", Profile: "1day", Validity: "24h", BatchID: "3f0e8a1c-9a49-4f0e-9a34-6a3d0b6a7f10", CreatedAt: now},
	}}

	handler := voucher.PrintVouchers(newTestLogger(), store)

	req := httptest.NewRequest(http.MethodPost, "/api/hotspot/print-vouchers",
		strings.NewReader(`{"batch_id": "3f0e8a1c-9a49-4f0e-9a34-6a3d0b6a7f10", "format": "a4"}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "1DAAAA11")
	assert.Contains(t, string(body), "1DBBBB22")
}

func TestPrintVouchers_UnknownFormat(t *testing.T) {
	store := &mockStore{vouchers: []models.Voucher{{Code: "1DAAAA11", Profile: "1day"}}}

	handler := voucher.PrintVouchers(newTestLogger(), store)

	req := httptest.NewRequest(http.MethodPost, "/api/hotspot/print-vouchers",
		strings.NewReader(`{"batch_id": "3f0e8a1c-9a49-4f0e-9a34-6a3d0b6a7f10", "format": "pdf"}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown print format")
}

func TestPrintVouchers_BatchNotFound(t *testing.T) {
	handler := voucher.PrintVouchers(newTestLogger(), &mockStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/hotspot/print-vouchers",
		strings.NewReader(`{"batch_id": "3f0e8a1c-9a49-4f0e-9a34-6a3d0b6a7f10", "format": "thermal"}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "batch not found")
}

func TestPresets(t *testing.T) {
	handler := voucher.Presets()

	req := httptest.NewRequest(http.MethodGet, "/api/hotspot/presets", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	for _, name := range []string{"1hour", "1day", "1week", "1month"} {
		assert.Contains(t, body, name)
	}
}

func TestDashboard(t *testing.T) {
	issuer := &mockIssuer{
		summaryFn: func(_ context.Context, creds mikrotik.Credentials) (map[string]any, error) {
			require.Equal(t, "10.0.0.1", creds.Host)
			return map[string]any{"total_users": 5, "active_sessions": 2}, nil
		},
	}

	handler := voucher.Dashboard(newTestLogger(), issuer, testAccess())

	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/hotspot/dashboard",
		strings.NewReader(`{"device_id": 7}`)))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"total_users":5`)
	assert.Contains(t, rr.Body.String(), `"active_sessions":2`)
}

func TestDashboard_RouterUnreachable(t *testing.T) {
	issuer := &mockIssuer{
		summaryFn: func(_ context.Context, _ mikrotik.Credentials) (map[string]any, error) {
			return nil, &adapters.UnavailableError{Host: "10.0.0.1"}
		},
	}

	handler := voucher.Dashboard(newTestLogger(), issuer, testAccess())

	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/hotspot/dashboard",
		strings.NewReader(`{"device_id": 7}`)))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "device unreachable: 10.0.0.1")
}
