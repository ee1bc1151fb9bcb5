package models

import "time"

// Voucher is a hotspot access code issued on a router-family device.
// UsedAt is set by the router and only observed here.
type Voucher struct {
	ID        int64
	DeviceID  int64
	BatchID   string
	Code      string
	Profile   string
	Validity  string
	CreatedAt time.Time
	UsedAt    *time.Time
	IsActive  bool
}
