// Package starlink serves the dish endpoints.
package starlink

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/dishnetafrica/isp-portal/internal/adapters"
	"github.com/dishnetafrica/isp-portal/internal/http-server/response"
	"github.com/dishnetafrica/isp-portal/internal/lib/sl"
	"github.com/dishnetafrica/isp-portal/internal/metrics"
)

type SetWiFiRequest struct {
	SSID     *string `json:"ssid"`
	Password *string `json:"password"`
}

// Dish is the adapter surface these endpoints drive.
type Dish interface {
	Status(ctx context.Context) (map[string]any, error)
	WiFi(ctx context.Context) (map[string]any, error)
	SetWiFi(ctx context.Context, settings adapters.WiFiSettings) (map[string]any, error)
	Reboot(ctx context.Context) error
	Stow(ctx context.Context) error
	Unstow(ctx context.Context) error
	ObstructionMap(ctx context.Context) (map[string]any, error)
	History(ctx context.Context) (map[string]any, error)
}

func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	metrics.UpstreamErrorsTotal.WithLabelValues("starlink").Inc()

	var unavailable *adapters.UnavailableError
	if errors.As(err, &unavailable) {
		log.Error("dish unreachable", sl.Err(err))
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("device unreachable: "+unavailable.Host))

		return
	}
	log.Error("dish operation failed", sl.Err(err))
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, response.Error("dish operation failed"))
}

func query(op string, log *slog.Logger, fetch func(ctx context.Context) (map[string]any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		data, err := fetch(r.Context())
		if err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OKWithData(data))
	}
}

func action(op string, log *slog.Logger, run func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if err := run(r.Context()); err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OK())
	}
}

// Status handles GET /api/starlink/status.
func Status(log *slog.Logger, dish Dish) http.HandlerFunc {
	return query("handlers.starlink.Status", log, dish.Status)
}

// WiFi handles GET /api/starlink/wifi.
func WiFi(log *slog.Logger, dish Dish) http.HandlerFunc {
	return query("handlers.starlink.WiFi", log, dish.WiFi)
}

// SetWiFi handles PUT /api/starlink/wifi.
func SetWiFi(log *slog.Logger, dish Dish) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.starlink.SetWiFi"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req SetWiFiRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("failed to decode request"))

			return
		}
		if req.SSID == nil && req.Password == nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("nothing to update"))

			return
		}

		result, err := dish.SetWiFi(r.Context(), adapters.WiFiSettings{SSID: req.SSID, Password: req.Password})
		if err != nil {
			writeError(w, r, log, err)

			return
		}
		render.JSON(w, r, response.OKWithData(result))
	}
}

// Reboot handles POST /api/starlink/reboot.
func Reboot(log *slog.Logger, dish Dish) http.HandlerFunc {
	return action("handlers.starlink.Reboot", log, dish.Reboot)
}

// Stow handles POST /api/starlink/stow.
func Stow(log *slog.Logger, dish Dish) http.HandlerFunc {
	return action("handlers.starlink.Stow", log, dish.Stow)
}

// Unstow handles POST /api/starlink/unstow.
func Unstow(log *slog.Logger, dish Dish) http.HandlerFunc {
	return action("handlers.starlink.Unstow", log, dish.Unstow)
}

// ObstructionMap handles GET /api/starlink/obstruction-map.
func ObstructionMap(log *slog.Logger, dish Dish) http.HandlerFunc {
	return query("handlers.starlink.ObstructionMap", log, dish.ObstructionMap)
}

// History handles GET /api/starlink/history.
func History(log *slog.Logger, dish Dish) http.HandlerFunc {
	return query("handlers.starlink.History", log, dish.History)
}
