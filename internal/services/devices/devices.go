// Package devices manages the subscriber's device registry: linking,
// listing and soft-deactivation. Router credentials are sealed before they
// touch the database and opened only when an operation needs to dial the
// router.
package devices

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dishnetafrica/isp-portal/internal/adapters/mikrotik"
	"github.com/dishnetafrica/isp-portal/internal/lib/secret"
	"github.com/dishnetafrica/isp-portal/internal/lib/sl"
	"github.com/dishnetafrica/isp-portal/internal/models"
)

// DeviceStore persists the device registry.
type DeviceStore interface {
	CreateDevice(ctx context.Context, d models.Device) (int64, error)
	ListDevices(ctx context.Context, subscriberID int64) ([]models.Device, error)
	GetDevice(ctx context.Context, subscriberID, deviceID int64) (*models.Device, error)
	TouchDevice(ctx context.Context, deviceID int64) error
	DeactivateDevice(ctx context.Context, subscriberID, deviceID int64) error
}

// AuditLog records subscriber-visible actions.
type AuditLog interface {
	AppendAudit(ctx context.Context, e models.AuditEntry) error
}

// LinkRequest describes a device to attach to a subscriber.
type LinkRequest struct {
	Family         models.DeviceFamily
	Identifier     string
	Nickname       string
	RouterHost     string
	RouterUser     string
	RouterPassword string
	ACSDeviceID    string
}

// Service manages the device registry.
type Service struct {
	log    *slog.Logger
	store  DeviceStore
	sealer *secret.Sealer
	audit  AuditLog
}

// New builds the device registry service.
func New(log *slog.Logger, store DeviceStore, sealer *secret.Sealer, audit AuditLog) *Service {
	return &Service{log: log, store: store, sealer: sealer, audit: audit}
}

// Link attaches a device to a subscriber. The router password never lands
// in the database in the clear.
func (s *Service) Link(ctx context.Context, subscriberID int64, req LinkRequest) (*models.Device, error) {
	const op = "devices.Link"

	device := models.Device{
		SubscriberID: subscriberID,
		Family:       req.Family,
		Identifier:   req.Identifier,
		Nickname:     req.Nickname,
		RouterHost:   req.RouterHost,
		RouterUser:   req.RouterUser,
		ACSDeviceID:  req.ACSDeviceID,
		IsActive:     true,
	}
	if req.RouterPassword != "" {
		sealed, err := s.sealer.Seal(req.RouterPassword)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		device.RouterPasswordSealed = sealed
	}

	id, err := s.store.CreateDevice(ctx, device)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	device.ID = id

	if err := s.audit.AppendAudit(ctx, models.AuditEntry{
		SubscriberID: subscriberID,
		Action:       "device_link",
		ResourceType: "device",
		ResourceID:   fmt.Sprintf("%d", id),
	}); err != nil {
		s.log.Error("audit append failed", sl.Err(err))
	}

	s.log.Info("device linked",
		slog.Int64("subscriber_id", subscriberID),
		slog.Int64("device_id", id),
		slog.String("family", string(req.Family)))
	return &device, nil
}

// List returns the subscriber's active devices.
func (s *Service) List(ctx context.Context, subscriberID int64) ([]models.Device, error) {
	const op = "devices.List"

	devices, err := s.store.ListDevices(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return devices, nil
}

// Get returns one device, scoped to the owning subscriber.
func (s *Service) Get(ctx context.Context, subscriberID, deviceID int64) (*models.Device, error) {
	const op = "devices.Get"

	device, err := s.store.GetDevice(ctx, subscriberID, deviceID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return device, nil
}

// Touch records that the device answered a management operation.
func (s *Service) Touch(ctx context.Context, deviceID int64) {
	if err := s.store.TouchDevice(ctx, deviceID); err != nil {
		s.log.Warn("device touch failed", slog.Int64("device_id", deviceID), sl.Err(err))
	}
}

// Deactivate soft-removes a device from the subscriber's registry.
func (s *Service) Deactivate(ctx context.Context, subscriberID, deviceID int64) error {
	const op = "devices.Deactivate"

	if err := s.store.DeactivateDevice(ctx, subscriberID, deviceID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.audit.AppendAudit(ctx, models.AuditEntry{
		SubscriberID: subscriberID,
		Action:       "device_deactivate",
		ResourceType: "device",
		ResourceID:   fmt.Sprintf("%d", deviceID),
	}); err != nil {
		s.log.Error("audit append failed", sl.Err(err))
	}
	return nil
}

// RouterCredentials opens the sealed password and yields dialing
// credentials for a router-family device.
func (s *Service) RouterCredentials(device *models.Device) (mikrotik.Credentials, error) {
	const op = "devices.RouterCredentials"

	password := ""
	if len(device.RouterPasswordSealed) > 0 {
		opened, err := s.sealer.Open(device.RouterPasswordSealed)
		if err != nil {
			return mikrotik.Credentials{}, fmt.Errorf("%s: %w", op, err)
		}
		password = opened
	}
	return mikrotik.Credentials{
		Host:     device.RouterHost,
		Username: device.RouterUser,
		Password: password,
	}, nil
}
