// Package device serves the device registry endpoints: gateway detection,
// linking, listing and deactivation.
package device

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/dishnetafrica/isp-portal/internal/adapters"
	"github.com/dishnetafrica/isp-portal/internal/http-server/mware"
	"github.com/dishnetafrica/isp-portal/internal/http-server/response"
	"github.com/dishnetafrica/isp-portal/internal/lib/sl"
	"github.com/dishnetafrica/isp-portal/internal/metrics"
	"github.com/dishnetafrica/isp-portal/internal/models"
	"github.com/dishnetafrica/isp-portal/internal/probe"
	"github.com/dishnetafrica/isp-portal/internal/services/devices"
	"github.com/dishnetafrica/isp-portal/internal/storage/repository"
)

type DetectRequest struct {
	GatewayIP string `json:"gateway_ip" validate:"required,ip"`
}

type LinkRequest struct {
	Family         string `json:"family" validate:"required,oneof=starlink mikrotik tr069"`
	Identifier     string `json:"identifier"`
	Nickname       string `json:"nickname"`
	RouterHost     string `json:"router_host"`
	RouterUser     string `json:"router_user"`
	RouterPassword string `json:"router_password"`
	ACSDeviceID    string `json:"acs_device_id"`
}

// Detector identifies gateway equipment.
type Detector interface {
	Detect(ctx context.Context, gatewayIP string) probe.Result
}

// Registry manages the subscriber's devices.
type Registry interface {
	Link(ctx context.Context, subscriberID int64, req devices.LinkRequest) (*models.Device, error)
	List(ctx context.Context, subscriberID int64) ([]models.Device, error)
	Get(ctx context.Context, subscriberID, deviceID int64) (*models.Device, error)
	Touch(ctx context.Context, deviceID int64)
	Deactivate(ctx context.Context, subscriberID, deviceID int64) error
}

// AdapterSource builds the management adapter matching a linked device's
// family.
type AdapterSource interface {
	AdapterFor(device *models.Device) (adapters.Adapter, error)
}

// Detect handles POST /api/devices/detect.
func Detect(log *slog.Logger, detector Detector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.device.Detect"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req DetectRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("failed to decode request"))

			return
		}

		if err := validator.New().Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)
			log.Error("invalid request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))

			return
		}

		result := detector.Detect(r.Context(), req.GatewayIP)
		metrics.DetectionsTotal.WithLabelValues(string(result.Family)).Inc()

		render.JSON(w, r, response.OKWithData(result))
	}
}

// Supported handles GET /api/devices/supported: the families the portal can
// manage and what each one allows.
func Supported() http.HandlerFunc {
	families := []map[string]any{
		{
			"family": models.FamilyStarlink,
			"capabilities": []adapters.Capability{
				adapters.CapStatus, adapters.CapWiFiConfig, adapters.CapReboot,
				adapters.CapStow, adapters.CapObstructionMap, adapters.CapHistory,
			},
		},
		{
			"family": models.FamilyMikroTik,
			"capabilities": []adapters.Capability{
				adapters.CapStatus, adapters.CapWiFiConfig, adapters.CapReboot,
				adapters.CapHotspotUsers, adapters.CapHotspotVouchers,
				adapters.CapHotspotProfiles, adapters.CapActiveSessions,
			},
		},
		{
			"family": models.FamilyTR069,
			"capabilities": []adapters.Capability{
				adapters.CapStatus, adapters.CapWiFiConfig, adapters.CapReboot,
				adapters.CapFirmwareUpdate, adapters.CapFactoryReset,
			},
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.OKWithData(families))
	}
}

// Link handles POST /api/devices.
func Link(log *slog.Logger, registry Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.device.Link"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		claims, ok := mware.Claims(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("invalid token"))

			return
		}

		var req LinkRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("failed to decode request"))

			return
		}

		if err := validator.New().Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)
			log.Error("invalid request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))

			return
		}

		device, err := registry.Link(r.Context(), claims.SubscriberID, devices.LinkRequest{
			Family:         models.DeviceFamily(req.Family),
			Identifier:     req.Identifier,
			Nickname:       req.Nickname,
			RouterHost:     req.RouterHost,
			RouterUser:     req.RouterUser,
			RouterPassword: req.RouterPassword,
			ACSDeviceID:    req.ACSDeviceID,
		})
		if err != nil {
			log.Error("device link failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not link device"))

			return
		}

		render.JSON(w, r, response.OKWithData(deviceView(*device)))
	}
}

// List handles GET /api/devices.
func List(log *slog.Logger, registry Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.device.List"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		claims, ok := mware.Claims(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("invalid token"))

			return
		}

		list, err := registry.List(r.Context(), claims.SubscriberID)
		if err != nil {
			log.Error("device list failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not list devices"))

			return
		}

		views := make([]map[string]any, 0, len(list))
		for _, d := range list {
			views = append(views, deviceView(d))
		}
		render.JSON(w, r, response.OKWithData(views))
	}
}

// Remove handles DELETE /api/devices/{id}.
func Remove(log *slog.Logger, registry Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.device.Remove"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		claims, ok := mware.Claims(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("invalid token"))

			return
		}

		deviceID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid device id"))

			return
		}

		if err := registry.Deactivate(r.Context(), claims.SubscriberID, deviceID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("device not found"))

				return
			}
			log.Error("device deactivate failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not deactivate device"))

			return
		}

		render.JSON(w, r, response.OK())
	}
}

// Status handles GET /api/devices/{id}/status. It resolves the device,
// dispatches to the family adapter and refreshes last_seen on success.
func Status(log *slog.Logger, registry Registry, source AdapterSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.device.Status"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		claims, ok := mware.Claims(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("invalid token"))

			return
		}

		deviceID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid device id"))

			return
		}

		device, err := registry.Get(r.Context(), claims.SubscriberID, deviceID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("device not found"))

				return
			}
			log.Error("device lookup failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not load device"))

			return
		}

		adapter, err := source.AdapterFor(device)
		if err != nil {
			log.Error("adapter init failed", sl.Err(err), slog.String("family", string(device.Family)))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not reach device backend"))

			return
		}

		status, err := adapter.Status(r.Context())
		if err != nil {
			metrics.DeviceOpsTotal.WithLabelValues(string(device.Family), "status", "error").Inc()

			var unavail *adapters.UnavailableError
			if errors.As(err, &unavail) {
				log.Warn("device unreachable", slog.String("host", unavail.Host))
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, response.Error("device unreachable: "+unavail.Host))

				return
			}
			log.Error("device status failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not read device status"))

			return
		}

		metrics.DeviceOpsTotal.WithLabelValues(string(device.Family), "status", "ok").Inc()
		registry.Touch(r.Context(), device.ID)

		render.JSON(w, r, response.OKWithData(map[string]any{
			"device_id":    device.ID,
			"family":       device.Family,
			"capabilities": adapter.Capabilities(),
			"status":       status,
		}))
	}
}

// deviceView hides sealed credentials from API output.
func deviceView(d models.Device) map[string]any {
	return map[string]any{
		"id":            d.ID,
		"family":        d.Family,
		"identifier":    d.Identifier,
		"nickname":      d.Nickname,
		"router_host":   d.RouterHost,
		"acs_device_id": d.ACSDeviceID,
		"last_seen":     d.LastSeen,
		"is_active":     d.IsActive,
	}
}
