package repository

import (
	"context"
	"fmt"

	"github.com/dishnetafrica/isp-portal/internal/models"
)

// AppendAudit writes one audit entry. The audit log is append-only; there
// are no read or delete paths in this service.
func (s *Storage) AppendAudit(ctx context.Context, e models.AuditEntry) error {
	const op = "storage.AppendAudit"

	query := `INSERT INTO audit_log (subscriber_id, action, resource_type, resource_id, details, ip_address)
			  VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.DB.ExecContext(ctx, query,
		e.SubscriberID, e.Action, e.ResourceType, e.ResourceID, e.Details, e.IPAddress); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
