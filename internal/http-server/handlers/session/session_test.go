package session_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dishnetafrica/isp-portal/internal/http-server/handlers/session"
	"github.com/dishnetafrica/isp-portal/internal/http-server/mware"
	libjwt "github.com/dishnetafrica/isp-portal/internal/lib/jwt"
	"github.com/dishnetafrica/isp-portal/internal/models"
	"github.com/dishnetafrica/isp-portal/internal/services/auth"
	"github.com/dishnetafrica/isp-portal/internal/uisp"
)

type mockSessions struct {
	LoginFunc func(ctx context.Context, username, password, remoteIP string) (*auth.Session, error)
}

func (m *mockSessions) Login(ctx context.Context, username, password, remoteIP string) (*auth.Session, error) {
	return m.LoginFunc(ctx, username, password, remoteIP)
}

type mockSubscribers struct {
	GetFunc func(ctx context.Context, uispCustomerID string) (*models.Subscriber, error)
}

func (m *mockSubscribers) GetSubscriberByUISPID(ctx context.Context, id string) (*models.Subscriber, error) {
	return m.GetFunc(ctx, id)
}

type mockTokens struct{}

func (mockTokens) GenerateToken(int64, string, string, string) (string, error) {
	return "fresh-token", nil
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }

func makeLogger() *slog.Logger {
	return slog.New(discardHandler{})
}

func decodeEnvelope(t *testing.T, body []byte) (string, string, map[string]any) {
	t.Helper()
	var resp struct {
		Status string         `json:"status"`
		Error  string         `json:"error"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Status, resp.Error, resp.Data
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		sessions := &mockSessions{LoginFunc: func(_ context.Context, username, password, _ string) (*auth.Session, error) {
			require.Equal(t, "asha@example.com", username)
			require.Equal(t, "secret", password)
			return &auth.Session{
				Token: "portal-token",
				Subscriber: models.Subscriber{
					ID: 42, UISPCustomerID: "1001", Email: username, Name: "Asha Mwangi",
				},
			}, nil
		}}

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"username":"asha@example.com","password":"secret"}`))
		w := httptest.NewRecorder()

		session.Login(makeLogger(), sessions).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		status, _, data := decodeEnvelope(t, w.Body.Bytes())
		assert.Equal(t, "OK", status)
		assert.Equal(t, "portal-token", data["token"])
	})

	t.Run("bad credentials", func(t *testing.T) {
		sessions := &mockSessions{LoginFunc: func(context.Context, string, string, string) (*auth.Session, error) {
			return nil, uisp.ErrUnauthorized
		}}

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"username":"asha@example.com","password":"wrong"}`))
		w := httptest.NewRecorder()

		session.Login(makeLogger(), sessions).ServeHTTP(w, req)

		require.Equal(t, http.StatusUnauthorized, w.Code)
		_, errMsg, _ := decodeEnvelope(t, w.Body.Bytes())
		assert.Equal(t, "incorrect username or password", errMsg)
	})

	t.Run("missing fields", func(t *testing.T) {
		sessions := &mockSessions{LoginFunc: func(context.Context, string, string, string) (*auth.Session, error) {
			t.Fatal("login must not run")
			return nil, nil
		}}

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"username":"asha@example.com"}`))
		w := httptest.NewRecorder()

		session.Login(makeLogger(), sessions).ServeHTTP(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		_, errMsg, _ := decodeEnvelope(t, w.Body.Bytes())
		assert.Contains(t, errMsg, "Password is a required field")
	})
}

func withClaims(req *http.Request, claims *libjwt.SessionClaims) *http.Request {
	ctx := context.WithValue(req.Context(), mware.ClaimsKey, claims)
	return req.WithContext(ctx)
}

func TestMe(t *testing.T) {
	subscribers := &mockSubscribers{GetFunc: func(_ context.Context, id string) (*models.Subscriber, error) {
		require.Equal(t, "1001", id)
		return &models.Subscriber{ID: 42, UISPCustomerID: "1001", Email: "asha@example.com"}, nil
	}}

	req := withClaims(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil),
		&libjwt.SessionClaims{SubscriberID: 42, UISPCustomerID: "1001"})
	w := httptest.NewRecorder()

	session.Me(makeLogger(), subscribers).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	_, _, data := decodeEnvelope(t, w.Body.Bytes())
	assert.Equal(t, "1001", data["uisp_customer_id"])
}

func TestRefresh(t *testing.T) {
	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil),
		&libjwt.SessionClaims{SubscriberID: 42, UISPCustomerID: "1001", UISPToken: "upstream"})
	w := httptest.NewRecorder()

	session.Refresh(makeLogger(), mockTokens{}).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	_, _, data := decodeEnvelope(t, w.Body.Bytes())
	assert.Equal(t, "fresh-token", data["token"])
}
