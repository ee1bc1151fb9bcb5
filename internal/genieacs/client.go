// Package genieacs talks to the auto-configuration server's NBI: device
// registry queries, dotted-path parameter reads and asynchronous task
// submission. The ACS contacts the devices itself during their inform
// sessions; the portal never reaches a TR-069 device directly.
package genieacs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound reports a device absent from the ACS registry.
var ErrNotFound = errors.New("genieacs: device not found")

// UpstreamError carries a non-2xx ACS status for propagation.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("genieacs: upstream status %d: %s", e.Status, e.Body)
}

// Device is an ACS registry entry. Only the fields the portal reads are
// typed; the full parameter tree stays raw.
type Device struct {
	ID         string          `json:"_id"`
	DeviceID   DeviceIdentity  `json:"_deviceId"`
	LastInform string          `json:"_lastInform"`
	Registered string          `json:"_registered"`
	Device     json.RawMessage `json:"Device"`
	IGD        json.RawMessage `json:"InternetGatewayDevice"`
}

// DeviceIdentity is the manufacturer block of a registry entry.
type DeviceIdentity struct {
	Manufacturer string `json:"_Manufacturer"`
	ProductClass string `json:"_ProductClass"`
	SerialNumber string `json:"_SerialNumber"`
}

// UsesModernDataModel reports whether the device exposes the TR-181
// `Device` root instead of the legacy TR-098 tree.
func (d Device) UsesModernDataModel() bool {
	return len(d.Device) > 0 && string(d.Device) != "null"
}

// Task is an asynchronous ACS task submission.
type Task struct {
	Name            string     `json:"name"`
	ObjectName      string     `json:"objectName,omitempty"`
	ParameterValues [][]string `json:"parameterValues,omitempty"`
}

// Client is the NBI HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds an NBI client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Devices lists registry entries matching an arbitrary JSON query; a nil
// query lists everything.
func (c *Client) Devices(ctx context.Context, query map[string]any) ([]Device, error) {
	const op = "genieacs.Devices"

	params := url.Values{}
	if query != nil {
		q, err := json.Marshal(query)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		params.Set("query", string(q))
	}

	var devices []Device
	if err := c.do(ctx, http.MethodGet, "/devices", params, nil, &devices); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return devices, nil
}

// DeviceByID returns one registry entry.
func (c *Client) DeviceByID(ctx context.Context, deviceID string) (*Device, error) {
	const op = "genieacs.DeviceByID"

	devices, err := c.Devices(ctx, map[string]any{"_id": deviceID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return &devices[0], nil
}

// Parameter reads one dotted-path parameter from a device's reported data.
func (c *Client) Parameter(ctx context.Context, deviceID, path string) (json.RawMessage, error) {
	const op = "genieacs.Parameter"

	var raw json.RawMessage
	err := c.do(ctx, http.MethodGet,
		"/devices/"+url.PathEscape(deviceID)+"/parameters/"+path, nil, nil, &raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return raw, nil
}

// SubmitTask queues a task for a device. With connectionRequest set the ACS
// asks the device to connect immediately instead of waiting for its next
// inform session.
func (c *Client) SubmitTask(ctx context.Context, deviceID string, task Task, connectionRequest bool) (json.RawMessage, error) {
	const op = "genieacs.SubmitTask"

	params := url.Values{}
	if connectionRequest {
		params.Set("connection_request", "true")
	}
	var raw json.RawMessage
	err := c.do(ctx, http.MethodPost,
		"/devices/"+url.PathEscape(deviceID)+"/tasks", params, task, &raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return raw, nil
}

// PendingTasks lists the queued tasks of a device.
func (c *Client) PendingTasks(ctx context.Context, deviceID string) (json.RawMessage, error) {
	const op = "genieacs.PendingTasks"

	q, err := json.Marshal(map[string]string{"device": deviceID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	params := url.Values{"query": {string(q)}}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/tasks", params, nil, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return raw, nil
}

// DeleteTask removes a queued task.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	const op = "genieacs.DeleteTask"

	if err := c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(taskID), nil, nil, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{Status: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
