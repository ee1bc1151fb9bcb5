// Package adapters defines the uniform capability interface the three
// device backends implement. Every family supports the shared set
// (status, wifi, reboot); family extras live on the concrete types and are
// advertised through the capability list rather than discovered by method
// presence.
package adapters

import (
	"context"
	"fmt"

	"github.com/dishnetafrica/isp-portal/internal/models"
)

// Capability names one operation a backend supports.
type Capability string

const (
	CapStatus     Capability = "status"
	CapWiFiConfig Capability = "wifi_config"
	CapReboot     Capability = "reboot"

	// Starlink extras.
	CapStow           Capability = "stow"
	CapObstructionMap Capability = "obstruction_map"
	CapHistory        Capability = "history"

	// MikroTik hotspot extras.
	CapHotspotUsers    Capability = "hotspot_users"
	CapHotspotVouchers Capability = "hotspot_vouchers"
	CapHotspotProfiles Capability = "hotspot_profiles"
	CapActiveSessions  Capability = "active_sessions"

	// TR-069 extras.
	CapFirmwareUpdate Capability = "firmware_update"
	CapFactoryReset   Capability = "factory_reset"
)

// WiFiSettings carries a partial WiFi update: nil fields are left as-is.
type WiFiSettings struct {
	SSID     *string
	Password *string
	Enabled  *bool
}

// Adapter is the capability surface shared by every device family. Each
// operation is a fresh, independent round trip; no adapter carries session
// state between calls.
type Adapter interface {
	Family() models.DeviceFamily
	Capabilities() []Capability
	Status(ctx context.Context) (map[string]any, error)
	WiFi(ctx context.Context) (map[string]any, error)
	SetWiFi(ctx context.Context, settings WiFiSettings) (map[string]any, error)
	Reboot(ctx context.Context) error
}

// UnavailableError reports a device or management channel that could not be
// reached. Handlers map it to a service-unavailable response carrying the
// remote host.
type UnavailableError struct {
	Host string
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("device unreachable: %s: %v", e.Host, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
