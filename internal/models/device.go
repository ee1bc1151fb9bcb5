package models

import "time"

// DeviceFamily tags the management protocol a device speaks.
type DeviceFamily string

const (
	FamilyStarlink DeviceFamily = "starlink"
	FamilyMikroTik DeviceFamily = "mikrotik"
	FamilyTR069    DeviceFamily = "tr069"
	FamilyUnknown  DeviceFamily = "unknown"
)

// Device is a managed device linked to exactly one subscriber. Router
// credentials are stored sealed; the ACS device id references the
// auto-configuration server's registry. Devices are soft-deactivated,
// never hard-deleted.
type Device struct {
	ID                   int64
	SubscriberID         int64
	Family               DeviceFamily
	Identifier           string
	Nickname             string
	RouterHost           string
	RouterUser           string
	RouterPasswordSealed []byte
	ACSDeviceID          string
	LastSeen             *time.Time
	Config               []byte
	IsActive             bool
	CreatedAt            time.Time
	UpdatedAt            *time.Time
}
