// Package portal assembles the customer portal HTTP application: storage,
// cache, upstream clients, domain services and the router.
package portal

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/dishnetafrica/isp-portal/internal/adapters/mikrotik"
	"github.com/dishnetafrica/isp-portal/internal/adapters/starlink"
	"github.com/dishnetafrica/isp-portal/internal/cache"
	"github.com/dishnetafrica/isp-portal/internal/config"
	"github.com/dishnetafrica/isp-portal/internal/events"
	"github.com/dishnetafrica/isp-portal/internal/genieacs"
	"github.com/dishnetafrica/isp-portal/internal/hotspot"
	"github.com/dishnetafrica/isp-portal/internal/lib/jwt"
	"github.com/dishnetafrica/isp-portal/internal/lib/secret"
	"github.com/dishnetafrica/isp-portal/internal/lib/sl"
	"github.com/dishnetafrica/isp-portal/internal/migrations"
	"github.com/dishnetafrica/isp-portal/internal/probe"
	authservice "github.com/dishnetafrica/isp-portal/internal/services/auth"
	billingservice "github.com/dishnetafrica/isp-portal/internal/services/billing"
	devicesservice "github.com/dishnetafrica/isp-portal/internal/services/devices"
	"github.com/dishnetafrica/isp-portal/internal/storage/repository"
	"github.com/dishnetafrica/isp-portal/internal/uisp"
)

// App owns the HTTP server and the resources it must release on shutdown.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	events *events.Publisher
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	sealer, err := secret.NewSealer(cfg.SecretSealKey)
	if err != nil {
		return nil, err
	}
	tokenMaker := jwt.NewJWTMaker(cfg.JWTToken.JWTSecretKey, cfg.JWTToken.TokenTTL)

	var platform interface {
		uisp.Authenticator
		uisp.Backend
	}
	if cfg.UISP.SampleMode {
		logger.Info("billing backend running in sample mode")
		platform = uisp.NewSample()
	} else {
		platform = uisp.NewClient(cfg.UISP.BaseURL, cfg.UISP.APIKey, cfg.UISP.Timeout)
	}

	acsClient := genieacs.NewClient(cfg.GenieACS.ACSBaseURL, cfg.GenieACS.ACSTimeout)
	routerService := mikrotik.NewService(logger, cfg.RouterOS)
	dishHost := cfg.Starlink.DishAddress
	if h, _, splitErr := net.SplitHostPort(dishHost); splitErr == nil {
		dishHost = h
	}
	dishAdapter := starlink.NewAdapter(logger, starlink.NewGRPCDish(cfg.Starlink), dishHost)
	detector := probe.NewDetector(logger, cfg.Probe, acsClient)

	var publisher *events.Publisher
	if cfg.AMQP.AddressAMQP != "" {
		publisher, err = events.Connect(cfg.AMQP)
		if err != nil {
			// Event fan-out is best effort, the portal works without it.
			logger.Warn("event publisher unavailable", sl.Err(err))
			publisher = nil
		}
	}

	// A typed-nil publisher must not reach the interface fields, the
	// services only check for plain nil.
	var eventSink authservice.EventPublisher
	if publisher != nil {
		eventSink = publisher
	}

	authService := authservice.New(logger, platform, db, tokenMaker, db, eventSink)
	billingFacade := billingservice.New(logger, platform, cacheRedis, cfg.RedisConnection.CacheTTL)
	deviceRegistry := devicesservice.New(logger, db, sealer, db)
	voucherIssuer := hotspot.NewIssuer(logger, routerService, db)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, &Deps{
		Auth:       authService,
		Billing:    billingFacade,
		Devices:    deviceRegistry,
		Vouchers:   voucherIssuer,
		Router:     routerService,
		Dish:       dishAdapter,
		ACS:        acsClient,
		Detector:   detector,
		TokenMaker: tokenMaker,
		Store:      db,
		Events:     publisher,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		events: publisher,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if a.events != nil {
			_ = a.events.Close()
		}
		_ = a.db.DB.Close()
		return err
	}
}
