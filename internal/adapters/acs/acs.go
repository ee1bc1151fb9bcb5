// Package acs adapts TR-069 CPE devices managed through GenieACS to the
// common device surface. Reads go through the ACS parameter cache; writes
// and actions become ACS tasks with an immediate connection request.
package acs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dishnetafrica/isp-portal/internal/adapters"
	"github.com/dishnetafrica/isp-portal/internal/genieacs"
	"github.com/dishnetafrica/isp-portal/internal/lib/sl"
	"github.com/dishnetafrica/isp-portal/internal/models"
)

// paramSet maps friendly names to data-model paths. Older CPEs expose the
// TR-098 InternetGatewayDevice tree; newer firmware exposes the TR-181
// Device tree instead.
type paramSet struct {
	SSID       string
	Passphrase string
	WiFiEnable string
	status     map[string]string
}

var tr098Params = paramSet{
	SSID:       "InternetGatewayDevice.LANDevice.1.WLANConfiguration.1.SSID",
	Passphrase: "InternetGatewayDevice.LANDevice.1.WLANConfiguration.1.PreSharedKey.1.KeyPassphrase",
	WiFiEnable: "InternetGatewayDevice.LANDevice.1.WLANConfiguration.1.Enable",
	status: map[string]string{
		"uptime":           "InternetGatewayDevice.DeviceInfo.UpTime",
		"software_version": "InternetGatewayDevice.DeviceInfo.SoftwareVersion",
		"external_ip":      "InternetGatewayDevice.WANDevice.1.WANConnectionDevice.1.WANIPConnection.1.ExternalIPAddress",
		"dhcp_enabled":     "InternetGatewayDevice.LANDevice.1.LANHostConfigManagement.DHCPServerEnable",
	},
}

var tr181Params = paramSet{
	SSID:       "Device.WiFi.SSID.1.SSID",
	Passphrase: "Device.WiFi.AccessPoint.1.Security.KeyPassphrase",
	WiFiEnable: "Device.WiFi.Radio.1.Enable",
	status: map[string]string{
		"uptime":           "Device.DeviceInfo.UpTime",
		"software_version": "Device.DeviceInfo.SoftwareVersion",
		"external_ip":      "Device.IP.Interface.1.IPv4Address.1.IPAddress",
		"dhcp_enabled":     "Device.DHCPv4.Server.Enable",
	},
}

// Adapter drives one CPE through a GenieACS instance.
type Adapter struct {
	log      *slog.Logger
	client   *genieacs.Client
	deviceID string
}

// NewAdapter builds an adapter for one ACS-managed device.
func NewAdapter(log *slog.Logger, client *genieacs.Client, deviceID string) *Adapter {
	return &Adapter{log: log, client: client, deviceID: deviceID}
}

// Family reports the device family tag.
func (a *Adapter) Family() models.DeviceFamily { return models.FamilyTR069 }

// Capabilities advertises the CPE management set.
func (a *Adapter) Capabilities() []adapters.Capability {
	return []adapters.Capability{
		adapters.CapStatus, adapters.CapWiFiConfig, adapters.CapReboot,
		adapters.CapFirmwareUpdate, adapters.CapFactoryReset,
	}
}

// params picks the data-model tree the device actually reports.
func (a *Adapter) params(ctx context.Context) (paramSet, *genieacs.Device, error) {
	const op = "acs.params"

	device, err := a.client.DeviceByID(ctx, a.deviceID)
	if err != nil {
		return paramSet{}, nil, fmt.Errorf("%s: %w", op, err)
	}
	if device.UsesModernDataModel() {
		return tr181Params, device, nil
	}
	return tr098Params, device, nil
}

// readParams fans out one ACS query per parameter and collects whatever
// resolved. A path missing on this firmware is skipped, not fatal.
func (a *Adapter) readParams(ctx context.Context, paths map[string]string) map[string]any {
	var mu sync.Mutex
	var wg sync.WaitGroup

	values := make(map[string]any, len(paths))
	for name, path := range paths {
		wg.Add(1)
		go func(name, path string) {
			defer wg.Done()
			value, err := a.client.Parameter(ctx, a.deviceID, path)
			if err != nil {
				a.log.Debug("parameter not resolved",
					slog.String("device_id", a.deviceID),
					slog.String("path", path), sl.Err(err))
				return
			}
			mu.Lock()
			values[name] = value
			mu.Unlock()
		}(name, path)
	}
	wg.Wait()
	return values
}

// Status summarizes the device: identity, last inform time and the core
// status parameters.
func (a *Adapter) Status(ctx context.Context) (map[string]any, error) {
	const op = "acs.Status"

	set, device, err := a.params(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := a.readParams(ctx, set.status)
	out["device_id"] = device.ID
	out["last_inform"] = device.LastInform
	out["registered"] = device.Registered
	return out, nil
}

// WiFi reads the wireless parameters. The passphrase is intentionally not
// read back.
func (a *Adapter) WiFi(ctx context.Context) (map[string]any, error) {
	const op = "acs.WiFi"

	set, _, err := a.params(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return a.readParams(ctx, map[string]string{
		"ssid":    set.SSID,
		"enabled": set.WiFiEnable,
	}), nil
}

// SetWiFi queues a setParameterValues task for the provided fields and asks
// the ACS to push it to the device immediately.
func (a *Adapter) SetWiFi(ctx context.Context, settings adapters.WiFiSettings) (map[string]any, error) {
	const op = "acs.SetWiFi"

	set, _, err := a.params(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var values [][]string
	if settings.SSID != nil {
		values = append(values, []string{set.SSID, *settings.SSID, "xsd:string"})
	}
	if settings.Password != nil {
		values = append(values, []string{set.Passphrase, *settings.Password, "xsd:string"})
	}
	if settings.Enabled != nil {
		values = append(values, []string{set.WiFiEnable, fmt.Sprintf("%t", *settings.Enabled), "xsd:boolean"})
	}
	if len(values) == 0 {
		return map[string]any{"queued": false}, nil
	}

	task := genieacs.Task{Name: "setParameterValues", ParameterValues: values}
	if _, err := a.client.SubmitTask(ctx, a.deviceID, task, true); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return map[string]any{"queued": true, "parameters": len(values)}, nil
}

// Reboot queues a reboot task.
func (a *Adapter) Reboot(ctx context.Context) error {
	const op = "acs.Reboot"

	task := genieacs.Task{Name: "reboot"}
	if _, err := a.client.SubmitTask(ctx, a.deviceID, task, true); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FactoryReset queues a factoryReset task.
func (a *Adapter) FactoryReset(ctx context.Context) error {
	const op = "acs.FactoryReset"

	task := genieacs.Task{Name: "factoryReset"}
	if _, err := a.client.SubmitTask(ctx, a.deviceID, task, true); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Refresh queues a refreshObject task for a subtree, or the whole data model
// when objectName is empty.
func (a *Adapter) Refresh(ctx context.Context, objectName string) error {
	const op = "acs.Refresh"

	task := genieacs.Task{Name: "refreshObject", ObjectName: objectName}
	if _, err := a.client.SubmitTask(ctx, a.deviceID, task, true); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
