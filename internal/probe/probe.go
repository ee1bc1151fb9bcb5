// Package probe identifies what kind of equipment answers at a customer's
// gateway address. Four checks run concurrently; the first match in a fixed
// priority order wins.
package probe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dishnetafrica/isp-portal/internal/adapters"
	"github.com/dishnetafrica/isp-portal/internal/config"
	"github.com/dishnetafrica/isp-portal/internal/genieacs"
	"github.com/dishnetafrica/isp-portal/internal/lib/sl"
	"github.com/dishnetafrica/isp-portal/internal/models"
)

// dishAddress is the fixed LAN address every Starlink dish answers on.
const dishAddress = "192.168.100.1"

const (
	dishGRPCPort    = 9200
	routerosAPIPort = 8728
	winboxPort      = 8291
	httpPort        = 80
)

// externalIPPath is the registry parameter the ACS lookup matches on.
const externalIPPath = "InternetGatewayDevice.WANDevice.1.WANConnectionDevice.1.WANIPConnection.1.ExternalIPAddress"

// Result describes the equipment found at a gateway address.
type Result struct {
	Family       models.DeviceFamily   `json:"family"`
	Manufacturer string                `json:"manufacturer,omitempty"`
	Model        string                `json:"model,omitempty"`
	DeviceID     string                `json:"device_id,omitempty"`
	IPAddress    string                `json:"ip_address"`
	Capabilities []adapters.Capability `json:"capabilities"`
}

// ACSRegistry is the subset of the ACS client the probe needs.
type ACSRegistry interface {
	Devices(ctx context.Context, query map[string]any) ([]genieacs.Device, error)
}

// Detector runs the gateway checks. portOpen and fetchHTTP have working
// defaults; tests swap them out.
type Detector struct {
	log *slog.Logger
	cfg config.Probe
	acs ACSRegistry

	portOpen  func(host string, port int, timeout time.Duration) bool
	fetchHTTP func(ctx context.Context, url string, timeout time.Duration) (http.Header, string, error)
}

// NewDetector builds a detector backed by the ACS registry.
func NewDetector(log *slog.Logger, cfg config.Probe, acs ACSRegistry) *Detector {
	return &Detector{
		log:       log,
		cfg:       cfg,
		acs:       acs,
		portOpen:  tcpPortOpen,
		fetchHTTP: fetchHTTP,
	}
}

// Detect runs all checks against a gateway address concurrently and reduces
// them in priority order. A gateway nothing matches comes back as unknown
// with no capabilities; individual check failures never fail the probe.
func (d *Detector) Detect(ctx context.Context, gatewayIP string) Result {
	const op = "probe.Detect"

	checks := []func(context.Context, string) *Result{
		d.checkStarlink,
		d.checkMikroTik,
		d.checkACSRegistry,
		d.checkFingerprint,
	}

	results := make([]*Result, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check func(context.Context, string) *Result) {
			defer wg.Done()
			results[i] = check(ctx, gatewayIP)
		}(i, check)
	}
	wg.Wait()

	for _, r := range results {
		if r != nil {
			d.log.Info("gateway identified",
				slog.String("op", op),
				slog.String("gateway", gatewayIP),
				slog.String("family", string(r.Family)))
			return *r
		}
	}

	return Result{
		Family:       models.FamilyUnknown,
		IPAddress:    gatewayIP,
		Capabilities: []adapters.Capability{},
	}
}

// checkStarlink matches only the dish's fixed address with its gRPC port
// open.
func (d *Detector) checkStarlink(_ context.Context, gatewayIP string) *Result {
	if gatewayIP != dishAddress {
		return nil
	}
	if !d.portOpen(gatewayIP, dishGRPCPort, d.cfg.PortTimeout) {
		return nil
	}
	return &Result{
		Family:       models.FamilyStarlink,
		Manufacturer: "SpaceX",
		Model:        "Starlink Dish",
		IPAddress:    gatewayIP,
		Capabilities: []adapters.Capability{
			adapters.CapStatus, adapters.CapWiFiConfig, adapters.CapReboot,
			adapters.CapStow, adapters.CapObstructionMap, adapters.CapHistory,
		},
	}
}

// checkMikroTik matches the RouterOS API or Winbox port. The hotspot
// capabilities are advertised only when the router also serves HTTP, which
// the captive portal requires.
func (d *Detector) checkMikroTik(_ context.Context, gatewayIP string) *Result {
	api := d.portOpen(gatewayIP, routerosAPIPort, d.cfg.PortTimeout)
	winbox := d.portOpen(gatewayIP, winboxPort, d.cfg.PortTimeout)
	if !api && !winbox {
		return nil
	}

	caps := []adapters.Capability{
		adapters.CapStatus, adapters.CapWiFiConfig, adapters.CapReboot,
	}
	if d.portOpen(gatewayIP, httpPort, d.cfg.PortTimeout) {
		caps = append(caps,
			adapters.CapHotspotUsers, adapters.CapHotspotVouchers,
			adapters.CapHotspotProfiles, adapters.CapActiveSessions)
	}
	return &Result{
		Family:       models.FamilyMikroTik,
		Manufacturer: "MikroTik",
		IPAddress:    gatewayIP,
		Capabilities: caps,
	}
}

// checkACSRegistry asks the ACS whether any managed CPE reports this
// address as its WAN IP.
func (d *Detector) checkACSRegistry(ctx context.Context, gatewayIP string) *Result {
	if d.acs == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.RegistryTimeout)
	defer cancel()

	devices, err := d.acs.Devices(ctx, map[string]any{externalIPPath: gatewayIP})
	if err != nil {
		d.log.Debug("registry lookup failed", slog.String("gateway", gatewayIP), sl.Err(err))
		return nil
	}
	if len(devices) == 0 {
		return nil
	}

	device := devices[0]
	return &Result{
		Family:       models.FamilyTR069,
		Manufacturer: device.DeviceID.Manufacturer,
		Model:        device.DeviceID.ProductClass,
		DeviceID:     device.ID,
		IPAddress:    gatewayIP,
		Capabilities: []adapters.Capability{
			adapters.CapStatus, adapters.CapWiFiConfig, adapters.CapReboot,
			adapters.CapFirmwareUpdate, adapters.CapFactoryReset,
		},
	}
}

// vendor fingerprints matched against the HTTP server header and page body,
// lowercased. First match wins.
var fingerprints = []struct {
	needle       string
	family       models.DeviceFamily
	manufacturer string
}{
	{"tp-link", models.FamilyTR069, "TP-Link"},
	{"d-link", models.FamilyTR069, "D-Link"},
	{"asuswrt", models.FamilyUnknown, "ASUS"},
	{"asus", models.FamilyUnknown, "ASUS"},
	{"ubiquiti", models.FamilyUnknown, "Ubiquiti"},
	{"unifi", models.FamilyUnknown, "Ubiquiti"},
	{"ubnt", models.FamilyUnknown, "Ubiquiti"},
}

// checkFingerprint falls back to the gateway's web interface.
func (d *Detector) checkFingerprint(ctx context.Context, gatewayIP string) *Result {
	headers, body, err := d.fetchHTTP(ctx, "http://"+gatewayIP+"/", d.cfg.HTTPTimeout)
	if err != nil {
		return nil
	}

	haystack := strings.ToLower(headers.Get("Server") + " " + body)
	for _, fp := range fingerprints {
		if !strings.Contains(haystack, fp.needle) {
			continue
		}
		caps := []adapters.Capability{}
		if fp.family == models.FamilyTR069 {
			caps = []adapters.Capability{
				adapters.CapStatus, adapters.CapWiFiConfig, adapters.CapReboot,
			}
		}
		return &Result{
			Family:       fp.family,
			Manufacturer: fp.manufacturer,
			IPAddress:    gatewayIP,
			Capabilities: caps,
		}
	}
	return nil
}

func tcpPortOpen(host string, port int, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func fetchHTTP(ctx context.Context, url string, timeout time.Duration) (http.Header, string, error) {
	const op = "probe.fetchHTTP"

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	return resp.Header, string(body), nil
}
