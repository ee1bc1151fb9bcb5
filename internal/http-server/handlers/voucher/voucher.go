// Package voucher serves the hotspot voucher endpoints: quick issuance on a
// linked router, print rendering, the preset table and the dashboard.
package voucher

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

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
	"github.com/dishnetafrica/isp-portal/internal/storage/repository"
)

type QuickVouchersRequest struct {
	DeviceID   int64  `json:"device_id" validate:"required"`
	Preset     string `json:"preset" validate:"required"`
	Count      int    `json:"count" validate:"required,min=1,max=200"`
	CodeLength int    `json:"code_length" validate:"omitempty,min=4,max=16"`
}

type PrintVouchersRequest struct {
	BatchID string `json:"batch_id" validate:"required,uuid"`
	Format  string `json:"format" validate:"required"`
}

type DashboardRequest struct {
	DeviceID int64 `json:"device_id" validate:"required"`
}

// Issuer creates and summarizes vouchers on routers.
type Issuer interface {
	Issue(ctx context.Context, device models.Device, creds mikrotik.Credentials, presetName string, count, codeLength int) (hotspot.BatchResult, error)
	Summary(ctx context.Context, creds mikrotik.Credentials) (map[string]any, error)
}

// VoucherStore reads back persisted batches.
type VoucherStore interface {
	ListVouchersByBatch(ctx context.Context, batchID string) ([]models.Voucher, error)
}

// DeviceAccess resolves a subscriber's device and its router credentials.
type DeviceAccess interface {
	Get(ctx context.Context, subscriberID, deviceID int64) (*models.Device, error)
	RouterCredentials(device *models.Device) (mikrotik.Credentials, error)
}

// AuditLog records voucher issuance.
type AuditLog interface {
	AppendAudit(ctx context.Context, e models.AuditEntry) error
}

// EventPublisher fans voucher events out. May be nil.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
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

func resolveDevice(w http.ResponseWriter, r *http.Request, log *slog.Logger, access DeviceAccess, deviceID int64) (*models.Device, mikrotik.Credentials, bool) {
	claims, ok := mware.Claims(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid token"))

		return nil, mikrotik.Credentials{}, false
	}

	device, err := access.Get(r.Context(), claims.SubscriberID, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("device not found"))

			return nil, mikrotik.Credentials{}, false
		}
		log.Error("device lookup failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("device lookup failed"))

		return nil, mikrotik.Credentials{}, false
	}
	if device.Family != models.FamilyMikroTik {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("device does not support hotspot vouchers"))

		return nil, mikrotik.Credentials{}, false
	}

	creds, err := access.RouterCredentials(device)
	if err != nil {
		log.Error("credential unseal failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("device credentials unavailable"))

		return nil, mikrotik.Credentials{}, false
	}
	return device, creds, true
}

// QuickVouchers handles POST /api/hotspot/quick-vouchers.
func QuickVouchers(log *slog.Logger, issuer Issuer, access DeviceAccess, auditLog AuditLog, events EventPublisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.voucher.QuickVouchers"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req QuickVouchersRequest
		if !decode(w, r, log, &req) {
			return
		}

		device, creds, ok := resolveDevice(w, r, log, access, req.DeviceID)
		if !ok {
			return
		}

		result, err := issuer.Issue(r.Context(), *device, creds, req.Preset, req.Count, req.CodeLength)
		if err != nil {
			switch {
			case errors.Is(err, hotspot.ErrUnknownPreset):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("unknown voucher preset"))
			default:
				var unavailable *adapters.UnavailableError
				if errors.As(err, &unavailable) {
					metrics.UpstreamErrorsTotal.WithLabelValues("routeros").Inc()
					render.Status(r, http.StatusServiceUnavailable)
					render.JSON(w, r, response.Error("device unreachable: "+unavailable.Host))

					return
				}
				log.Error("voucher issue failed", sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("voucher issue failed"))
			}

			return
		}

		metrics.VouchersIssuedTotal.WithLabelValues(req.Preset).Add(float64(len(result.Issued)))
		metrics.VouchersFailedTotal.WithLabelValues(req.Preset).Add(float64(len(result.Failed)))

		if claims, ok := mware.Claims(r.Context()); ok {
			if err := auditLog.AppendAudit(r.Context(), models.AuditEntry{
				SubscriberID: claims.SubscriberID,
				Action:       "vouchers_issued",
				ResourceType: "voucher_batch",
				ResourceID:   result.BatchID,
				IPAddress:    r.RemoteAddr,
			}); err != nil {
				log.Error("audit append failed", sl.Err(err))
			}
		}
		if events != nil {
			if err := events.Publish(r.Context(), "voucher.issued", map[string]any{
				"batch_id": result.BatchID,
				"preset":   req.Preset,
				"issued":   len(result.Issued),
				"failed":   len(result.Failed),
			}); err != nil {
				log.Warn("event publish failed", sl.Err(err))
			}
		}

		render.JSON(w, r, response.OKWithData(result))
	}
}

// PrintVouchers handles POST /api/hotspot/print-vouchers.
func PrintVouchers(log *slog.Logger, store VoucherStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.voucher.PrintVouchers"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req PrintVouchersRequest
		if !decode(w, r, log, &req) {
			return
		}

		vouchers, err := store.ListVouchersByBatch(r.Context(), req.BatchID)
		if err != nil {
			log.Error("batch lookup failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("batch lookup failed"))

			return
		}
		if len(vouchers) == 0 {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("batch not found"))

			return
		}

		preset, err := hotspot.PresetByName(vouchers[0].Profile)
		if err != nil {
			log.Error("batch carries unknown preset", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("batch lookup failed"))

			return
		}

		content, contentType, err := hotspot.Render(vouchers, preset, req.Format)
		if err != nil {
			if errors.Is(err, hotspot.ErrUnknownFormat) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("unknown print format"))

				return
			}
			log.Error("render failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("render failed"))

			return
		}

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(content))
	}
}

// Presets handles GET /api/hotspot/presets.
func Presets() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.OKWithData(hotspot.Presets()))
	}
}

// Dashboard handles POST /api/hotspot/dashboard.
func Dashboard(log *slog.Logger, issuer Issuer, access DeviceAccess) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.voucher.Dashboard"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req DashboardRequest
		if !decode(w, r, log, &req) {
			return
		}

		_, creds, ok := resolveDevice(w, r, log, access, req.DeviceID)
		if !ok {
			return
		}

		summary, err := issuer.Summary(r.Context(), creds)
		if err != nil {
			var unavailable *adapters.UnavailableError
			if errors.As(err, &unavailable) {
				metrics.UpstreamErrorsTotal.WithLabelValues("routeros").Inc()
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, response.Error("device unreachable: "+unavailable.Host))

				return
			}
			log.Error("dashboard failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("dashboard failed"))

			return
		}
		render.JSON(w, r, response.OKWithData(summary))
	}
}
