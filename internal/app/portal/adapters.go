package portal

import (
	"fmt"
	"log/slog"

	"github.com/dishnetafrica/isp-portal/internal/adapters"
	"github.com/dishnetafrica/isp-portal/internal/adapters/acs"
	"github.com/dishnetafrica/isp-portal/internal/adapters/mikrotik"
	"github.com/dishnetafrica/isp-portal/internal/adapters/starlink"
	"github.com/dishnetafrica/isp-portal/internal/genieacs"
	"github.com/dishnetafrica/isp-portal/internal/models"
	devicesservice "github.com/dishnetafrica/isp-portal/internal/services/devices"
)

// adapterFactory dispatches a linked device to its family backend. MikroTik
// adapters are built per request because the sealed router credentials
// differ per device; the Starlink dish adapter is shared, there is only one
// dish behind the portal.
type adapterFactory struct {
	log     *slog.Logger
	devices *devicesservice.Service
	router  *mikrotik.Service
	dish    *starlink.Adapter
	acs     *genieacs.Client
}

func (f *adapterFactory) AdapterFor(device *models.Device) (adapters.Adapter, error) {
	const op = "portal.adapterFactory.AdapterFor"

	switch device.Family {
	case models.FamilyMikroTik:
		creds, err := f.devices.RouterCredentials(device)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return mikrotik.NewAdapter(f.router, creds), nil
	case models.FamilyStarlink:
		return f.dish, nil
	case models.FamilyTR069:
		return acs.NewAdapter(f.log, f.acs, device.ACSDeviceID), nil
	default:
		return nil, fmt.Errorf("%s: no backend for family %q", op, device.Family)
	}
}
