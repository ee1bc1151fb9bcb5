// Package uisp talks to the billing/CRM platform: credential exchange and
// the read-only billing queries behind the portal's billing facade.
package uisp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnauthorized reports rejected credentials or an expired upstream
// session.
var ErrUnauthorized = errors.New("uisp: unauthorized")

// UpstreamError carries a non-2xx upstream status for propagation.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("uisp: upstream status %d: %s", e.Status, e.Body)
}

// User is the authenticated platform user record.
type User struct {
	Email    string `json:"email"`
	ClientID int64  `json:"clientId"`
}

// Customer is the platform's client record.
type Customer struct {
	ID        int64   `json:"id"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Phone     string  `json:"phone"`
	Balance   float64 `json:"accountBalance"`
	Credit    float64 `json:"accountCredit"`
	Currency  string  `json:"currencyCode"`
}

// Name joins first and last name for the local subscriber record.
func (c Customer) Name() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// LoginResult is everything the login flow yields: the upstream session
// token plus the customer identity and service list.
type LoginResult struct {
	Token    string
	User     User
	Customer Customer
	Services []json.RawMessage
}

// Authenticator exchanges subscriber credentials for a platform session.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
}

// Backend serves the billing facade's read-only queries. Implemented by the
// live Client and by Sample, which reproduces the platform's example
// payloads so the portal runs without a live billing system.
type Backend interface {
	Profile(ctx context.Context, token, customerID string) (json.RawMessage, error)
	Invoices(ctx context.Context, token, customerID string, limit int) (json.RawMessage, error)
	InvoiceDetail(ctx context.Context, token, invoiceID string) (json.RawMessage, error)
	Payments(ctx context.Context, token, customerID string, limit int) (json.RawMessage, error)
	Services(ctx context.Context, token, customerID string) (json.RawMessage, error)
	Usage(ctx context.Context, token, customerID string) (json.RawMessage, error)
}
