package tr069_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dishnetafrica/isp-portal/internal/genieacs"
	"github.com/dishnetafrica/isp-portal/internal/http-server/handlers/tr069"
	"github.com/dishnetafrica/isp-portal/internal/http-server/mware"
	libjwt "github.com/dishnetafrica/isp-portal/internal/lib/jwt"
	"github.com/dishnetafrica/isp-portal/internal/models"
)

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }

func makeLogger() *slog.Logger {
	return slog.New(discardHandler{})
}

type mockAudit struct {
	actions []string
}

func (m *mockAudit) AppendAudit(_ context.Context, e models.AuditEntry) error {
	m.actions = append(m.actions, e.Action)
	return nil
}

// fakeACS serves a one-device registry and records task posts.
func fakeACS(t *testing.T, tasks *[]map[string]any) *genieacs.Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/devices", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"_id":"202BC1-BM632w-000001",
			"_deviceId":{"_Manufacturer":"Huawei","_ProductClass":"HG8245","_SerialNumber":"000001"},
			"_lastInform":"2026-08-29T10:00:00Z",
			"InternetGatewayDevice":{}}]`))
	})
	mux.HandleFunc("/devices/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/tasks") {
			var task map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&task))
			*tasks = append(*tasks, task)
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"_id":"task-1"}`))
			return
		}
		// Parameter reads.
		_, _ = w.Write([]byte(`{"_value":"ok"}`))
	})
	mux.HandleFunc("/tasks", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/tasks/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return genieacs.NewClient(server.URL, 2*time.Second)
}

func withClaims(req *http.Request) *http.Request {
	ctx := context.WithValue(req.Context(), mware.ClaimsKey, &libjwt.SessionClaims{SubscriberID: 42})
	return req.WithContext(ctx)
}

func TestDevices(t *testing.T) {
	var tasks []map[string]any
	client := fakeACS(t, &tasks)

	w := httptest.NewRecorder()
	tr069.Devices(makeLogger(), client).ServeHTTP(w,
		httptest.NewRequest(http.MethodGet, "/api/tr069/devices", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Huawei")
	assert.Contains(t, w.Body.String(), "HG8245")
}

func TestSetWiFi_QueuesTask(t *testing.T) {
	var tasks []map[string]any
	client := fakeACS(t, &tasks)

	router := chi.NewRouter()
	router.Put("/api/tr069/devices/{id}/wifi", tr069.SetWiFi(makeLogger(), client))

	req := httptest.NewRequest(http.MethodPut, "/api/tr069/devices/202BC1-BM632w-000001/wifi",
		strings.NewReader(`{"ssid":"HomeNet"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, tasks, 1)
	assert.Equal(t, "setParameterValues", tasks[0]["name"])
}

func TestSetWiFi_NothingToUpdate(t *testing.T) {
	var tasks []map[string]any
	client := fakeACS(t, &tasks)

	router := chi.NewRouter()
	router.Put("/api/tr069/devices/{id}/wifi", tr069.SetWiFi(makeLogger(), client))

	req := httptest.NewRequest(http.MethodPut, "/api/tr069/devices/x/wifi", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, tasks)
}

func TestReboot_Audited(t *testing.T) {
	var tasks []map[string]any
	client := fakeACS(t, &tasks)
	audit := &mockAudit{}

	router := chi.NewRouter()
	router.Post("/api/tr069/devices/{id}/reboot", tr069.Reboot(makeLogger(), client, audit))

	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/tr069/devices/202BC1-BM632w-000001/reboot", nil))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, tasks, 1)
	assert.Equal(t, "reboot", tasks[0]["name"])
	assert.Equal(t, []string{"cpe_reboot"}, audit.actions)
}

func TestDeleteTask(t *testing.T) {
	var tasks []map[string]any
	client := fakeACS(t, &tasks)

	router := chi.NewRouter()
	router.Delete("/api/tr069/tasks/{id}", tr069.DeleteTask(makeLogger(), client))

	req := httptest.NewRequest(http.MethodDelete, "/api/tr069/tasks/task-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}
