package portal

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/dishnetafrica/isp-portal/internal/adapters/mikrotik"
	"github.com/dishnetafrica/isp-portal/internal/adapters/starlink"
	"github.com/dishnetafrica/isp-portal/internal/events"
	"github.com/dishnetafrica/isp-portal/internal/genieacs"
	"github.com/dishnetafrica/isp-portal/internal/hotspot"
	"github.com/dishnetafrica/isp-portal/internal/http-server/handlers/billingh"
	"github.com/dishnetafrica/isp-portal/internal/http-server/handlers/device"
	"github.com/dishnetafrica/isp-portal/internal/http-server/handlers/health"
	routeroshandler "github.com/dishnetafrica/isp-portal/internal/http-server/handlers/routeros"
	"github.com/dishnetafrica/isp-portal/internal/http-server/handlers/session"
	starlinkhandler "github.com/dishnetafrica/isp-portal/internal/http-server/handlers/starlink"
	"github.com/dishnetafrica/isp-portal/internal/http-server/handlers/tr069"
	"github.com/dishnetafrica/isp-portal/internal/http-server/handlers/voucher"
	"github.com/dishnetafrica/isp-portal/internal/http-server/mware"
	"github.com/dishnetafrica/isp-portal/internal/lib/jwt"
	"github.com/dishnetafrica/isp-portal/internal/probe"
	authservice "github.com/dishnetafrica/isp-portal/internal/services/auth"
	billingservice "github.com/dishnetafrica/isp-portal/internal/services/billing"
	devicesservice "github.com/dishnetafrica/isp-portal/internal/services/devices"
	"github.com/dishnetafrica/isp-portal/internal/storage/repository"
)

const (
	version = "1.0.0"

	rateLimitRPS   = rate.Limit(10)
	rateLimitBurst = 20
)

// Deps bundles everything the routes need.
type Deps struct {
	Auth       *authservice.Service
	Billing    *billingservice.Service
	Devices    *devicesservice.Service
	Vouchers   *hotspot.Issuer
	Router     *mikrotik.Service
	Dish       *starlink.Adapter
	ACS        *genieacs.Client
	Detector   *probe.Detector
	TokenMaker *jwt.MakerImpl
	Store      *repository.Storage
	Events     *events.Publisher
}

// RegisterRoutes mounts every endpoint of the portal.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps *Deps) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	var eventSink voucher.EventPublisher
	if deps.Events != nil {
		eventSink = deps.Events
	}

	factory := &adapterFactory{
		log:     logger,
		devices: deps.Devices,
		router:  deps.Router,
		dish:    deps.Dish,
		acs:     deps.ACS,
	}

	r.Get("/health", health.New(version))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", session.Login(logger, deps.Auth))

		r.Group(func(r chi.Router) {
			r.Use(mware.JWTMiddleware(deps.TokenMaker, logger))
			r.Use(mware.RateLimitMiddleware(rateLimitRPS, rateLimitBurst))

			r.Get("/auth/me", session.Me(logger, deps.Store))
			r.Post("/auth/refresh", session.Refresh(logger, deps.TokenMaker))

			r.Post("/devices/detect", device.Detect(logger, deps.Detector))
			r.Get("/devices/supported", device.Supported())
			r.Post("/devices", device.Link(logger, deps.Devices))
			r.Get("/devices", device.List(logger, deps.Devices))
			r.Delete("/devices/{id}", device.Remove(logger, deps.Devices))
			r.Get("/devices/{id}/status", device.Status(logger, deps.Devices, factory))

			r.Route("/starlink", func(r chi.Router) {
				r.Get("/status", starlinkhandler.Status(logger, deps.Dish))
				r.Get("/wifi", starlinkhandler.WiFi(logger, deps.Dish))
				r.Put("/wifi", starlinkhandler.SetWiFi(logger, deps.Dish))
				r.Post("/reboot", starlinkhandler.Reboot(logger, deps.Dish))
				r.Post("/stow", starlinkhandler.Stow(logger, deps.Dish))
				r.Post("/unstow", starlinkhandler.Unstow(logger, deps.Dish))
				r.Get("/obstruction-map", starlinkhandler.ObstructionMap(logger, deps.Dish))
				r.Get("/history", starlinkhandler.History(logger, deps.Dish))
			})

			// Router endpoints carry credentials in the request body, so
			// reads are POSTs as well.
			r.Route("/mikrotik", func(r chi.Router) {
				r.Post("/system/info", routeroshandler.SystemInfo(logger, deps.Router))
				r.Post("/system/reboot", routeroshandler.Reboot(logger, deps.Router, deps.Store))
				r.Post("/wifi", routeroshandler.WiFi(logger, deps.Router))
				r.Put("/wifi", routeroshandler.SetWiFi(logger, deps.Router))
				r.Post("/hotspot/users", routeroshandler.HotspotUsers(logger, deps.Router))
				r.Post("/hotspot/users/create", routeroshandler.CreateHotspotUser(logger, deps.Router))
				r.Delete("/hotspot/users/{username}", routeroshandler.DeleteHotspotUser(logger, deps.Router))
				r.Post("/hotspot/vouchers", routeroshandler.IssueVouchers(logger, deps.Vouchers, deps.Store))
				r.Post("/hotspot/active", routeroshandler.ActiveSessions(logger, deps.Router))
				r.Post("/hotspot/active/{id}/disconnect", routeroshandler.DisconnectSession(logger, deps.Router, deps.Store))
				r.Post("/hotspot/profiles", routeroshandler.HotspotProfiles(logger, deps.Router))
				r.Post("/hotspot/profiles/create", routeroshandler.CreateHotspotProfile(logger, deps.Router))
			})

			r.Route("/tr069", func(r chi.Router) {
				r.Get("/devices", tr069.Devices(logger, deps.ACS))
				r.Get("/devices/{id}", tr069.Device(logger, deps.ACS))
				r.Get("/devices/{id}/status", tr069.Status(logger, deps.ACS))
				r.Get("/devices/{id}/wifi", tr069.WiFi(logger, deps.ACS))
				r.Put("/devices/{id}/wifi", tr069.SetWiFi(logger, deps.ACS))
				r.Get("/devices/{id}/tasks", tr069.Tasks(logger, deps.ACS))
				r.Post("/devices/{id}/reboot", tr069.Reboot(logger, deps.ACS, deps.Store))
				r.Post("/devices/{id}/factory-reset", tr069.FactoryReset(logger, deps.ACS, deps.Store))
				r.Post("/devices/{id}/refresh", tr069.Refresh(logger, deps.ACS))
				r.Delete("/tasks/{id}", tr069.DeleteTask(logger, deps.ACS))
			})

			r.Route("/billing", func(r chi.Router) {
				r.Get("/profile", billingh.Profile(logger, deps.Billing))
				r.Get("/balance", billingh.Balance(logger, deps.Billing))
				r.Get("/invoices", billingh.Invoices(logger, deps.Billing))
				r.Get("/invoices/{id}", billingh.InvoiceDetail(logger, deps.Billing))
				r.Get("/payments", billingh.Payments(logger, deps.Billing))
				r.Get("/services", billingh.Services(logger, deps.Billing))
				r.Get("/usage", billingh.Usage(logger, deps.Billing))
			})

			r.Route("/hotspot", func(r chi.Router) {
				r.Post("/quick-vouchers", voucher.QuickVouchers(logger, deps.Vouchers, deps.Devices, deps.Store, eventSink))
				r.Post("/print-vouchers", voucher.PrintVouchers(logger, deps.Store))
				r.Get("/presets", voucher.Presets())
				r.Post("/dashboard", voucher.Dashboard(logger, deps.Vouchers, deps.Devices))
			})
		})
	})
}
