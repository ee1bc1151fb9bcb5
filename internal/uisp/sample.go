package uisp

import (
	"context"
	"encoding/json"
)

// Sample is the offline billing backend. It reproduces the platform's
// example payloads so the portal and its tests run without a live billing
// system, selected by the uisp.sample_mode config flag.
type Sample struct{}

// NewSample builds the offline backend.
func NewSample() *Sample { return &Sample{} }

var sampleCustomer = Customer{
	ID:        1001,
	FirstName: "Asha",
	LastName:  "Mwangi",
	Phone:     "+254700000000",
	Balance:   -99.00,
	Currency:  "USD",
}

var sampleServices = json.RawMessage(`[
  {
    "id": "svc-001",
    "name": "Starlink Internet - Standard",
    "status": "active",
    "price": 99.00,
    "billing_cycle": "monthly",
    "next_billing_date": "2024-02-01",
    "data_usage": {
      "used_gb": 250,
      "limit_gb": null,
      "period_start": "2024-01-01",
      "period_end": "2024-01-31"
    }
  }
]`)

var sampleInvoices = json.RawMessage(`[
  {
    "id": "inv-001",
    "number": "INV-2024-001",
    "date": "2024-01-01",
    "due_date": "2024-01-15",
    "amount": 99.00,
    "status": "paid",
    "currency": "USD"
  },
  {
    "id": "inv-002",
    "number": "INV-2024-002",
    "date": "2024-02-01",
    "due_date": "2024-02-15",
    "amount": 99.00,
    "status": "unpaid",
    "currency": "USD"
  }
]`)

var samplePayments = json.RawMessage(`[
  {
    "id": "pay-001",
    "date": "2024-01-10",
    "amount": 99.00,
    "method": "Credit Card",
    "status": "completed",
    "invoice_id": "inv-001"
  }
]`)

var sampleUsage = json.RawMessage(`{
  "current_period": {
    "start": "2024-01-01",
    "end": "2024-01-31",
    "download_gb": 200,
    "upload_gb": 50,
    "total_gb": 250
  },
  "daily_average_gb": 8.3,
  "peak_usage_time": "20:00-22:00",
  "history": [
    {"date": "2024-01-28", "download_gb": 10, "upload_gb": 2},
    {"date": "2024-01-29", "download_gb": 8, "upload_gb": 1.5},
    {"date": "2024-01-30", "download_gb": 12, "upload_gb": 3}
  ]
}`)

// Login accepts any non-empty credential pair and yields the sample
// customer identity.
func (s *Sample) Login(_ context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, ErrUnauthorized
	}
	var services []json.RawMessage
	_ = json.Unmarshal(sampleServices, &services)
	return &LoginResult{
		Token:    "sample-session-token",
		User:     User{Email: username, ClientID: sampleCustomer.ID},
		Customer: sampleCustomer,
		Services: services,
	}, nil
}

// Profile returns the sample customer record.
func (s *Sample) Profile(_ context.Context, _, _ string) (json.RawMessage, error) {
	return json.Marshal(sampleCustomer)
}

// Invoices returns the sample invoice list.
func (s *Sample) Invoices(_ context.Context, _, _ string, _ int) (json.RawMessage, error) {
	return sampleInvoices, nil
}

// InvoiceDetail returns the sample invoice with the requested id.
func (s *Sample) InvoiceDetail(_ context.Context, _, invoiceID string) (json.RawMessage, error) {
	detail := map[string]any{
		"id":       invoiceID,
		"number":   "INV-2024-001",
		"date":     "2024-01-01",
		"due_date": "2024-01-15",
		"amount":   99.00,
		"tax":      0,
		"total":    99.00,
		"status":   "paid",
		"currency": "USD",
		"items": []map[string]any{
			{
				"description": "Starlink Internet - Standard Plan",
				"quantity":    1,
				"unit_price":  99.00,
				"total":       99.00,
			},
		},
		"payments": []map[string]any{
			{"date": "2024-01-10", "amount": 99.00, "method": "Credit Card"},
		},
	}
	return json.Marshal(detail)
}

// Payments returns the sample payment list.
func (s *Sample) Payments(_ context.Context, _, _ string, _ int) (json.RawMessage, error) {
	return samplePayments, nil
}

// Services returns the sample service list.
func (s *Sample) Services(_ context.Context, _, _ string) (json.RawMessage, error) {
	return sampleServices, nil
}

// Usage returns the sample usage summary.
func (s *Sample) Usage(_ context.Context, _, _ string) (json.RawMessage, error) {
	return sampleUsage, nil
}
