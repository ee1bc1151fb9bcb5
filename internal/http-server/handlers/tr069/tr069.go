// Package tr069 serves the ACS-managed CPE endpoints. Everything goes
// through the auto-configuration server; the portal never dials a CPE.
package tr069

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/dishnetafrica/isp-portal/internal/adapters"
	"github.com/dishnetafrica/isp-portal/internal/adapters/acs"
	"github.com/dishnetafrica/isp-portal/internal/genieacs"
	"github.com/dishnetafrica/isp-portal/internal/http-server/mware"
	"github.com/dishnetafrica/isp-portal/internal/http-server/response"
	"github.com/dishnetafrica/isp-portal/internal/lib/sl"
	"github.com/dishnetafrica/isp-portal/internal/metrics"
	"github.com/dishnetafrica/isp-portal/internal/models"
)

type SetWiFiRequest struct {
	SSID     *string `json:"ssid"`
	Password *string `json:"password"`
	Enabled  *bool   `json:"enabled"`
}

type RefreshRequest struct {
	ObjectName string `json:"object_name"`
}

// AuditLog records destructive CPE actions.
type AuditLog interface {
	AppendAudit(ctx context.Context, e models.AuditEntry) error
}

func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	metrics.UpstreamErrorsTotal.WithLabelValues("genieacs").Inc()

	var upstream *genieacs.UpstreamError
	switch {
	case errors.Is(err, genieacs.ErrNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("device not found"))
	case errors.As(err, &upstream):
		log.Error("acs rejected request", sl.Err(err))
		render.Status(r, upstream.Status)
		render.JSON(w, r, response.Error("acs rejected request"))
	default:
		log.Error("acs operation failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("acs operation failed"))
	}
}

func deviceID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if decoded, err := url.PathUnescape(id); err == nil {
		return decoded
	}
	return id
}

func requestLogger(log *slog.Logger, op string, r *http.Request) *slog.Logger {
	return log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Devices handles GET /api/tr069/devices.
func Devices(log *slog.Logger, client *genieacs.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tr069.Devices"
		log := requestLogger(log, op, r)

		devices, err := client.Devices(r.Context(), nil)
		if err != nil {
			writeError(w, r, log, err)

			return
		}

		views := make([]map[string]any, 0, len(devices))
		for _, d := range devices {
			views = append(views, map[string]any{
				"id":           d.ID,
				"manufacturer": d.DeviceID.Manufacturer,
				"model":        d.DeviceID.ProductClass,
				"serial":       d.DeviceID.SerialNumber,
				"last_inform":  d.LastInform,
			})
		}
		render.JSON(w, r, response.OKWithData(views))
	}
}

// Device handles GET /api/tr069/devices/{id}.
func Device(log *slog.Logger, client *genieacs.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tr069.Device"
		log := requestLogger(log, op, r)

		device, err := client.DeviceByID(r.Context(), deviceID(r))
		if err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OKWithData(device))
	}
}

// Status handles GET /api/tr069/devices/{id}/status.
func Status(log *slog.Logger, client *genieacs.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tr069.Status"
		log := requestLogger(log, op, r)

		adapter := acs.NewAdapter(log, client, deviceID(r))
		status, err := adapter.Status(r.Context())
		if err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OKWithData(status))
	}
}

// WiFi handles GET /api/tr069/devices/{id}/wifi.
func WiFi(log *slog.Logger, client *genieacs.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tr069.WiFi"
		log := requestLogger(log, op, r)

		adapter := acs.NewAdapter(log, client, deviceID(r))
		settings, err := adapter.WiFi(r.Context())
		if err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OKWithData(settings))
	}
}

// SetWiFi handles PUT /api/tr069/devices/{id}/wifi.
func SetWiFi(log *slog.Logger, client *genieacs.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tr069.SetWiFi"
		log := requestLogger(log, op, r)

		var req SetWiFiRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("failed to decode request"))

			return
		}
		if req.SSID == nil && req.Password == nil && req.Enabled == nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("nothing to update"))

			return
		}

		adapter := acs.NewAdapter(log, client, deviceID(r))
		result, err := adapter.SetWiFi(r.Context(), adapters.WiFiSettings{
			SSID:     req.SSID,
			Password: req.Password,
			Enabled:  req.Enabled,
		})
		if err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OKWithData(result))
	}
}

// Tasks handles GET /api/tr069/devices/{id}/tasks.
func Tasks(log *slog.Logger, client *genieacs.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tr069.Tasks"
		log := requestLogger(log, op, r)

		tasks, err := client.PendingTasks(r.Context(), deviceID(r))
		if err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OKWithData(tasks))
	}
}

// Reboot handles POST /api/tr069/devices/{id}/reboot.
func Reboot(log *slog.Logger, client *genieacs.Client, auditLog AuditLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tr069.Reboot"
		log := requestLogger(log, op, r)

		id := deviceID(r)
		adapter := acs.NewAdapter(log, client, id)
		if err := adapter.Reboot(r.Context()); err != nil {
			writeError(w, r, log, err)

			return
		}
		audit(r, log, auditLog, "cpe_reboot", id)
		render.JSON(w, r, response.OK())
	}
}

// FactoryReset handles POST /api/tr069/devices/{id}/factory-reset.
func FactoryReset(log *slog.Logger, client *genieacs.Client, auditLog AuditLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tr069.FactoryReset"
		log := requestLogger(log, op, r)

		id := deviceID(r)
		adapter := acs.NewAdapter(log, client, id)
		if err := adapter.FactoryReset(r.Context()); err != nil {
			writeError(w, r, log, err)

			return
		}
		audit(r, log, auditLog, "cpe_factory_reset", id)
		render.JSON(w, r, response.OK())
	}
}

// Refresh handles POST /api/tr069/devices/{id}/refresh.
func Refresh(log *slog.Logger, client *genieacs.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tr069.Refresh"
		log := requestLogger(log, op, r)

		var req RefreshRequest
		if r.ContentLength > 0 {
			if err := render.DecodeJSON(r.Body, &req); err != nil {
				log.Error("failed to decode request body", sl.Err(err))
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("failed to decode request"))

				return
			}
		}

		adapter := acs.NewAdapter(log, client, deviceID(r))
		if err := adapter.Refresh(r.Context(), req.ObjectName); err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OK())
	}
}

// DeleteTask handles DELETE /api/tr069/tasks/{id}.
func DeleteTask(log *slog.Logger, client *genieacs.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tr069.DeleteTask"
		log := requestLogger(log, op, r)

		if err := client.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OK())
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
		ResourceType: "cpe",
		ResourceID:   resourceID,
		IPAddress:    r.RemoteAddr,
	}); err != nil {
		log.Error("audit append failed", sl.Err(err))
	}
}
