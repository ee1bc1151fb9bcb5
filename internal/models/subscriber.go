// Package models contains the domain rows shared between the storage layer
// and the business services.
package models

import "time"

// Subscriber is a portal account mirroring a billing platform customer.
// Created on first successful login, never deleted by the portal.
type Subscriber struct {
	ID             int64
	UISPCustomerID string
	Email          string
	Name           string
	Phone          string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}
