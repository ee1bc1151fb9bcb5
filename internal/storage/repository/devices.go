package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dishnetafrica/isp-portal/internal/models"
)

// CreateDevice links a device to a subscriber and returns its id.
func (s *Storage) CreateDevice(ctx context.Context, d models.Device) (int64, error) {
	const op = "storage.CreateDevice"

	var id int64
	query := `INSERT INTO devices (subscriber_id, family, identifier, nickname,
	              router_host, router_user, router_password_sealed, acs_device_id, config, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
			  RETURNING id;`
	if err := s.DB.QueryRowContext(ctx, query,
		d.SubscriberID, d.Family, d.Identifier, d.Nickname,
		d.RouterHost, d.RouterUser, d.RouterPasswordSealed, d.ACSDeviceID, d.Config).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// ListDevices returns the active devices of a subscriber.
func (s *Storage) ListDevices(ctx context.Context, subscriberID int64) ([]models.Device, error) {
	const op = "storage.ListDevices"

	query := `SELECT id, subscriber_id, family, identifier, nickname,
	              router_host, router_user, router_password_sealed, acs_device_id,
	              last_seen, config, is_active, created_at, updated_at
			  FROM devices
			  WHERE subscriber_id = $1 AND is_active = TRUE
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.Device
	for rows.Next() {
		var d models.Device
		var lastSeen, updatedAt sql.NullTime
		if err := rows.Scan(&d.ID, &d.SubscriberID, &d.Family, &d.Identifier, &d.Nickname,
			&d.RouterHost, &d.RouterUser, &d.RouterPasswordSealed, &d.ACSDeviceID,
			&lastSeen, &d.Config, &d.IsActive, &d.CreatedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if lastSeen.Valid {
			d.LastSeen = &lastSeen.Time
		}
		if updatedAt.Valid {
			d.UpdatedAt = &updatedAt.Time
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDevice returns one device of a subscriber by id.
func (s *Storage) GetDevice(ctx context.Context, subscriberID, deviceID int64) (*models.Device, error) {
	const op = "storage.GetDevice"

	query := `SELECT id, subscriber_id, family, identifier, nickname,
	              router_host, router_user, router_password_sealed, acs_device_id,
	              last_seen, config, is_active, created_at, updated_at
			  FROM devices
			  WHERE id = $1 AND subscriber_id = $2 AND is_active = TRUE`
	d := &models.Device{}
	var lastSeen, updatedAt sql.NullTime
	err := s.DB.QueryRowContext(ctx, query, deviceID, subscriberID).Scan(
		&d.ID, &d.SubscriberID, &d.Family, &d.Identifier, &d.Nickname,
		&d.RouterHost, &d.RouterUser, &d.RouterPasswordSealed, &d.ACSDeviceID,
		&lastSeen, &d.Config, &d.IsActive, &d.CreatedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if lastSeen.Valid {
		d.LastSeen = &lastSeen.Time
	}
	if updatedAt.Valid {
		d.UpdatedAt = &updatedAt.Time
	}
	return d, nil
}

// TouchDevice records a successful probe or status call.
func (s *Storage) TouchDevice(ctx context.Context, deviceID int64) error {
	const op = "storage.TouchDevice"

	_, err := s.DB.ExecContext(ctx,
		`UPDATE devices SET last_seen = now(), updated_at = now() WHERE id = $1`, deviceID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeactivateDevice soft-deletes a device. Rows are never removed.
func (s *Storage) DeactivateDevice(ctx context.Context, subscriberID, deviceID int64) error {
	const op = "storage.DeactivateDevice"

	res, err := s.DB.ExecContext(ctx,
		`UPDATE devices SET is_active = FALSE, updated_at = now()
		 WHERE id = $1 AND subscriber_id = $2 AND is_active = TRUE`, deviceID, subscriberID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
