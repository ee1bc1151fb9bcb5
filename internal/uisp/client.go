package uisp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const authTokenHeader = "x-auth-token"

// Client calls the billing platform's REST API (v2.1).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a live platform client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api/v2.1",
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Login authenticates against the platform's user endpoint. On success the
// session token from the response header is used to fetch the user, the
// customer record and the customer's services.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	const op = "uisp.Login"

	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/user/login", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}
	token := resp.Header.Get(authTokenHeader)
	if token == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	var user User
	if err := c.getJSON(ctx, token, "/user", nil, &user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.ClientID == 0 {
		// The account authenticated but is not a client user; the portal
		// only serves subscribers.
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}
	customerID := strconv.FormatInt(user.ClientID, 10)

	var customer Customer
	if err := c.getJSON(ctx, token, "/clients/"+customerID, nil, &customer); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var services []json.RawMessage
	if err := c.getJSON(ctx, token, "/clients/"+customerID+"/services", nil, &services); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &LoginResult{
		Token:    token,
		User:     user,
		Customer: customer,
		Services: services,
	}, nil
}

// Profile returns the customer record.
func (c *Client) Profile(ctx context.Context, token, customerID string) (json.RawMessage, error) {
	return c.getRaw(ctx, token, "/clients/"+customerID, nil)
}

// Invoices returns the customer's invoices.
func (c *Client) Invoices(ctx context.Context, token, customerID string, limit int) (json.RawMessage, error) {
	return c.getRaw(ctx, token, "/clients/"+customerID+"/invoices", url.Values{"limit": {strconv.Itoa(limit)}})
}

// InvoiceDetail returns one invoice.
func (c *Client) InvoiceDetail(ctx context.Context, token, invoiceID string) (json.RawMessage, error) {
	return c.getRaw(ctx, token, "/invoices/"+invoiceID, nil)
}

// Payments returns the customer's payments.
func (c *Client) Payments(ctx context.Context, token, customerID string, limit int) (json.RawMessage, error) {
	return c.getRaw(ctx, token, "/clients/"+customerID+"/payments", url.Values{"limit": {strconv.Itoa(limit)}})
}

// Services returns the customer's services.
func (c *Client) Services(ctx context.Context, token, customerID string) (json.RawMessage, error) {
	return c.getRaw(ctx, token, "/clients/"+customerID+"/services", nil)
}

// Usage has no live platform endpoint yet; served from Sample until the
// platform exposes traffic counters.
func (c *Client) Usage(ctx context.Context, token, customerID string) (json.RawMessage, error) {
	return sampleUsage, nil
}

func (c *Client) getRaw(ctx context.Context, token, path string, params url.Values) (json.RawMessage, error) {
	const op = "uisp.getRaw"
	var raw json.RawMessage
	if err := c.getJSON(ctx, token, path, params, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return raw, nil
}

func (c *Client) getJSON(ctx context.Context, token, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set(authTokenHeader, token)
	if c.apiKey != "" {
		req.Header.Set("x-auth-app-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
