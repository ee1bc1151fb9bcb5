// Package routeros serves the MikroTik endpoints. Router credentials ride
// in the request body; nothing router-side is assumed beyond the API being
// enabled.
package routeros

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/dishnetafrica/isp-portal/internal/adapters"
	"github.com/dishnetafrica/isp-portal/internal/adapters/mikrotik"
	"github.com/dishnetafrica/isp-portal/internal/hotspot"
	"github.com/dishnetafrica/isp-portal/internal/http-server/mware"
	"github.com/dishnetafrica/isp-portal/internal/http-server/response"
	"github.com/dishnetafrica/isp-portal/internal/lib/sl"
	"github.com/dishnetafrica/isp-portal/internal/metrics"
	"github.com/dishnetafrica/isp-portal/internal/models"
)

// CredentialsPayload is the router address block every request carries.
type CredentialsPayload struct {
	Host     string `json:"host" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password"`
	Port     int    `json:"port"`
}

func (p CredentialsPayload) creds() mikrotik.Credentials {
	return mikrotik.Credentials{Host: p.Host, Username: p.Username, Password: p.Password, Port: p.Port}
}

type wifiUpdatePayload struct {
	CredentialsPayload
	SSID            *string `json:"ssid"`
	WiFiPassword    *string `json:"wifi_password"`
	SecurityProfile string  `json:"security_profile"`
}

type hotspotUserPayload struct {
	CredentialsPayload
	User    string `json:"user" validate:"required"`
	UserPwd string `json:"user_password" validate:"required"`
	Profile string `json:"profile" validate:"required"`
	Uptime  string `json:"limit_uptime"`
	Comment string `json:"comment"`
}

type voucherPayload struct {
	CredentialsPayload
	Preset     string `json:"preset" validate:"required"`
	Count      int    `json:"count" validate:"required,min=1,max=200"`
	CodeLength int    `json:"code_length" validate:"omitempty,min=4,max=16"`
}

type hotspotProfilePayload struct {
	CredentialsPayload
	Name           string `json:"name" validate:"required"`
	RateLimit      string `json:"rate_limit" validate:"required"`
	SharedUsers    int    `json:"shared_users"`
	SessionTimeout string `json:"session_timeout"`
}

// RouterService is the router operation surface these endpoints drive.
type RouterService interface {
	SystemInfo(ctx context.Context, creds mikrotik.Credentials) (map[string]any, error)
	Reboot(ctx context.Context, creds mikrotik.Credentials) error
	WiFiSettings(ctx context.Context, creds mikrotik.Credentials) (map[string]any, error)
	SetWiFiPassword(ctx context.Context, creds mikrotik.Credentials, profile, password string) error
	SetWiFiSSID(ctx context.Context, creds mikrotik.Credentials, ssid string) error
	HotspotUsers(ctx context.Context, creds mikrotik.Credentials) ([]map[string]string, error)
	CreateHotspotUser(ctx context.Context, creds mikrotik.Credentials, user mikrotik.HotspotUser) (string, error)
	DeleteHotspotUser(ctx context.Context, creds mikrotik.Credentials, username string) error
	ActiveSessions(ctx context.Context, creds mikrotik.Credentials) ([]map[string]string, error)
	DisconnectSession(ctx context.Context, creds mikrotik.Credentials, sessionID string) error
	HotspotProfiles(ctx context.Context, creds mikrotik.Credentials) ([]map[string]string, error)
	CreateHotspotProfile(ctx context.Context, creds mikrotik.Credentials, profile mikrotik.HotspotProfile) (string, error)
}

// VoucherIssuer creates voucher batches on a router.
type VoucherIssuer interface {
	Issue(ctx context.Context, device models.Device, creds mikrotik.Credentials, presetName string, count, codeLength int) (hotspot.BatchResult, error)
}

// AuditLog records destructive router actions.
type AuditLog interface {
	AppendAudit(ctx context.Context, e models.AuditEntry) error
}

func decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))

		return false
	}
	if err := validator.New().Struct(dst); err != nil {
		validateErr := err.(validator.ValidationErrors)
		log.Error("invalid request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(validateErr))

		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	metrics.UpstreamErrorsTotal.WithLabelValues("routeros").Inc()

	var unavailable *adapters.UnavailableError
	switch {
	case errors.As(err, &unavailable):
		log.Error("router unreachable", sl.Err(err))
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("device unreachable: "+unavailable.Host))
	case errors.Is(err, mikrotik.ErrNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("not found on router"))
	default:
		log.Error("router operation failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("router operation failed"))
	}
}

func audit(r *http.Request, log *slog.Logger, auditLog AuditLog, action, resourceID string) {
	claims, ok := mware.Claims(r.Context())
	if !ok {
		return
	}
	if err := auditLog.AppendAudit(r.Context(), models.AuditEntry{
		SubscriberID: claims.SubscriberID,
		Action:       action,
		ResourceType: "router",
		ResourceID:   resourceID,
		IPAddress:    r.RemoteAddr,
	}); err != nil {
		log.Error("audit append failed", sl.Err(err))
	}
}

// SystemInfo handles POST /api/mikrotik/system/info.
func SystemInfo(log *slog.Logger, svc RouterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.routeros.SystemInfo"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CredentialsPayload
		if !decode(w, r, log, &req) {
			return
		}

		info, err := svc.SystemInfo(r.Context(), req.creds())
		if err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OKWithData(info))
	}
}

// Reboot handles POST /api/mikrotik/system/reboot.
func Reboot(log *slog.Logger, svc RouterService, auditLog AuditLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.routeros.Reboot"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CredentialsPayload
		if !decode(w, r, log, &req) {
			return
		}

		if err := svc.Reboot(r.Context(), req.creds()); err != nil {
			writeError(w, r, log, err)

			return
		}
		audit(r, log, auditLog, "router_reboot", req.Host)
		render.JSON(w, r, response.OK())
	}
}

// WiFi handles POST /api/mikrotik/wifi (read).
func WiFi(log *slog.Logger, svc RouterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.routeros.WiFi"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CredentialsPayload
		if !decode(w, r, log, &req) {
			return
		}

		settings, err := svc.WiFiSettings(r.Context(), req.creds())
		if err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OKWithData(settings))
	}
}

// SetWiFi handles PUT /api/mikrotik/wifi.
func SetWiFi(log *slog.Logger, svc RouterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.routeros.SetWiFi"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req wifiUpdatePayload
		if !decode(w, r, log, &req) {
			return
		}
		if req.SSID == nil && req.WiFiPassword == nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("nothing to update"))

			return
		}

		results := map[string]any{}
		if req.WiFiPassword != nil {
			profile := req.SecurityProfile
			if profile == "" {
				profile = "default"
			}
			if err := svc.SetWiFiPassword(r.Context(), req.creds(), profile, *req.WiFiPassword); err != nil {
				writeError(w, r, log, err)

				return
			}
			results["password_updated"] = true
		}
		if req.SSID != nil {
			if err := svc.SetWiFiSSID(r.Context(), req.creds(), *req.SSID); err != nil {
				writeError(w, r, log, err)

				return
			}
			results["ssid_updated"] = true
		}
		render.JSON(w, r, response.OKWithData(results))
	}
}

// HotspotUsers handles POST /api/mikrotik/hotspot/users.
func HotspotUsers(log *slog.Logger, svc RouterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.routeros.HotspotUsers"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CredentialsPayload
		if !decode(w, r, log, &req) {
			return
		}

		users, err := svc.HotspotUsers(r.Context(), req.creds())
		if err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OKWithData(users))
	}
}

// CreateHotspotUser handles POST /api/mikrotik/hotspot/users/create.
func CreateHotspotUser(log *slog.Logger, svc RouterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.routeros.CreateHotspotUser"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req hotspotUserPayload
		if !decode(w, r, log, &req) {
			return
		}

		id, err := svc.CreateHotspotUser(r.Context(), req.creds(), mikrotik.HotspotUser{
			Username:    req.User,
			Password:    req.UserPwd,
			Profile:     req.Profile,
			LimitUptime: req.Uptime,
			Comment:     req.Comment,
		})
		if err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OKWithData(map[string]any{"id": id}))
	}
}

// DeleteHotspotUser handles DELETE /api/mikrotik/hotspot/users/{username}.
func DeleteHotspotUser(log *slog.Logger, svc RouterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.routeros.DeleteHotspotUser"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CredentialsPayload
		if !decode(w, r, log, &req) {
			return
		}

		username := chi.URLParam(r, "username")
		if username == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("missing username"))

			return
		}

		if err := svc.DeleteHotspotUser(r.Context(), req.creds(), username); err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OK())
	}
}

// ActiveSessions handles POST /api/mikrotik/hotspot/active.
func ActiveSessions(log *slog.Logger, svc RouterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.routeros.ActiveSessions"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CredentialsPayload
		if !decode(w, r, log, &req) {
			return
		}

		sessions, err := svc.ActiveSessions(r.Context(), req.creds())
		if err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OKWithData(sessions))
	}
}

// DisconnectSession handles POST /api/mikrotik/hotspot/active/{id}/disconnect.
func DisconnectSession(log *slog.Logger, svc RouterService, auditLog AuditLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.routeros.DisconnectSession"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CredentialsPayload
		if !decode(w, r, log, &req) {
			return
		}

		sessionID := chi.URLParam(r, "id")
		if err := svc.DisconnectSession(r.Context(), req.creds(), sessionID); err != nil {
			writeError(w, r, log, err)

			return
		}
		audit(r, log, auditLog, "hotspot_disconnect", fmt.Sprintf("%s/%s", req.Host, sessionID))
		render.JSON(w, r, response.OK())
	}
}

// HotspotProfiles handles POST /api/mikrotik/hotspot/profiles.
func HotspotProfiles(log *slog.Logger, svc RouterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.routeros.HotspotProfiles"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CredentialsPayload
		if !decode(w, r, log, &req) {
			return
		}

		profiles, err := svc.HotspotProfiles(r.Context(), req.creds())
		if err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OKWithData(profiles))
	}
}

// CreateHotspotProfile handles POST /api/mikrotik/hotspot/profiles/create.
func CreateHotspotProfile(log *slog.Logger, svc RouterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.routeros.CreateHotspotProfile"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req hotspotProfilePayload
		if !decode(w, r, log, &req) {
			return
		}
		if req.SharedUsers <= 0 {
			req.SharedUsers = 1
		}

		id, err := svc.CreateHotspotProfile(r.Context(), req.creds(), mikrotik.HotspotProfile{
			Name:           req.Name,
			RateLimit:      req.RateLimit,
			SharedUsers:    req.SharedUsers,
			SessionTimeout: req.SessionTimeout,
		})
		if err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OKWithData(map[string]any{"id": id}))
	}
}

// IssueVouchers handles POST /api/mikrotik/hotspot/vouchers.
func IssueVouchers(log *slog.Logger, issuer VoucherIssuer, auditLog AuditLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.routeros.IssueVouchers"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req voucherPayload
		if !decode(w, r, log, &req) {
			return
		}

		// No registered device here, the router is addressed directly.
		result, err := issuer.Issue(r.Context(), models.Device{}, req.creds(), req.Preset, req.Count, req.CodeLength)
		if err != nil {
			if errors.Is(err, hotspot.ErrUnknownPreset) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("unknown voucher preset"))

				return
			}
			writeError(w, r, log, err)

			return
		}

		metrics.VouchersIssuedTotal.WithLabelValues(req.Preset).Add(float64(len(result.Issued)))
		metrics.VouchersFailedTotal.WithLabelValues(req.Preset).Add(float64(len(result.Failed)))
		audit(r, log, auditLog, "vouchers_issued", result.BatchID)

		render.JSON(w, r, response.OKWithData(result))
	}
}
