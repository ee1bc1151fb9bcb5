package models

import "time"

// AuditEntry is an append-only record of a subscriber-visible action.
type AuditEntry struct {
	ID           int64
	SubscriberID int64
	Action       string
	ResourceType string
	ResourceID   string
	Details      []byte
	IPAddress    string
	CreatedAt    time.Time
}
