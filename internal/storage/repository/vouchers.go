package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dishnetafrica/isp-portal/internal/models"
)

// SaveVoucherBatch persists the successfully issued vouchers of one batch.
func (s *Storage) SaveVoucherBatch(ctx context.Context, vouchers []models.Voucher) error {
	const op = "storage.SaveVoucherBatch"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO vouchers (device_id, batch_id, code, profile, validity, is_active)
			  VALUES ($1, $2, $3, $4, $5, TRUE)`
	for _, v := range vouchers {
		// Vouchers issued against ad-hoc router credentials carry no
		// registered device.
		deviceID := sql.NullInt64{Int64: v.DeviceID, Valid: v.DeviceID != 0}
		if _, err := tx.ExecContext(ctx, query,
			deviceID, v.BatchID, v.Code, v.Profile, v.Validity); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListVouchersByBatch returns the vouchers issued in one batch.
func (s *Storage) ListVouchersByBatch(ctx context.Context, batchID string) ([]models.Voucher, error) {
	const op = "storage.ListVouchersByBatch"

	query := `SELECT id, device_id, batch_id, code, profile, validity, created_at, used_at, is_active
			  FROM vouchers
			  WHERE batch_id = $1
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.Voucher
	for rows.Next() {
		var v models.Voucher
		var deviceID sql.NullInt64
		var usedAt sql.NullTime
		if err := rows.Scan(&v.ID, &deviceID, &v.BatchID, &v.Code, &v.Profile,
			&v.Validity, &v.CreatedAt, &usedAt, &v.IsActive); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		v.DeviceID = deviceID.Int64
		if usedAt.Valid {
			v.UsedAt = &usedAt.Time
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
