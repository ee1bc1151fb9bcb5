package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dishnetafrica/isp-portal/internal/models"
)

// ErrNotFound reports an absent row.
var ErrNotFound = errors.New("not found")

// UpsertSubscriber creates a subscriber keyed by the billing platform
// customer id, or refreshes name/phone/email of an existing one. A second
// login with the same identity therefore never creates a duplicate row.
func (s *Storage) UpsertSubscriber(ctx context.Context, sub models.Subscriber) (*models.Subscriber, error) {
	const op = "storage.UpsertSubscriber"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscribers (uisp_customer_id, email, name, phone, is_active)
			  VALUES ($1, $2, $3, $4, TRUE)
			  ON CONFLICT (uisp_customer_id) DO UPDATE
			      SET email = EXCLUDED.email,
			          name = EXCLUDED.name,
			          phone = EXCLUDED.phone,
			          updated_at = now()
			  RETURNING id, uisp_customer_id, email, name, phone, is_active, created_at, updated_at;`

	out := &models.Subscriber{}
	var updatedAt sql.NullTime
	if err := s.DB.QueryRowContext(ctx, query,
		sub.UISPCustomerID, sub.Email, sub.Name, sub.Phone).Scan(
		&out.ID, &out.UISPCustomerID, &out.Email, &out.Name, &out.Phone,
		&out.IsActive, &out.CreatedAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if updatedAt.Valid {
		out.UpdatedAt = &updatedAt.Time
	}
	return out, nil
}

// GetSubscriberByUISPID returns the subscriber for a billing platform
// customer id.
func (s *Storage) GetSubscriberByUISPID(ctx context.Context, uispCustomerID string) (*models.Subscriber, error) {
	const op = "storage.GetSubscriberByUISPID"

	query := `SELECT id, uisp_customer_id, email, name, phone, is_active, created_at, updated_at
			  FROM subscribers
			  WHERE uisp_customer_id = $1`
	out := &models.Subscriber{}
	var updatedAt sql.NullTime
	err := s.DB.QueryRowContext(ctx, query, uispCustomerID).Scan(
		&out.ID, &out.UISPCustomerID, &out.Email, &out.Name, &out.Phone,
		&out.IsActive, &out.CreatedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if updatedAt.Valid {
		out.UpdatedAt = &updatedAt.Time
	}
	return out, nil
}
