package blebox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 8 * time.Second

const (
	deviceStatePath         = "/api/device/state"
	windowExtendedStatePath = "/api/window/extended/state"
)

// DeviceInfo is the identity reported by /api/device/state.
type DeviceInfo struct {
	Name      string `json:"deviceName"`
	Type      string `json:"type"`
	APILevel  string `json:"apiLevel"`
	HWVersion string `json:"hv"`
	FWVersion string `json:"fv"`
	ID        string `json:"id"`
	IP        string `json:"ip"`
}

// Client talks to a single smartWindowBox over HTTP. Requests are serialized:
// the device handles one connection at a time.
type Client struct {
	baseURL string
	http    *http.Client

	// one slot; waiting for it respects the request context
	l chan struct{}
}

func NewClient(host string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	baseURL := strings.TrimRight(host, "/")
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		l:       make(chan struct{}, 1),
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// DeviceState fetches the device identity.
func (c *Client) DeviceState(ctx context.Context) (DeviceInfo, error) {
	var payload struct {
		Device struct {
			Name      json.RawMessage `json:"deviceName"`
			Type      json.RawMessage `json:"type"`
			APILevel  json.RawMessage `json:"apiLevel"`
			HWVersion json.RawMessage `json:"hv"`
			FWVersion json.RawMessage `json:"fv"`
			ID        json.RawMessage `json:"id"`
			IP        json.RawMessage `json:"ip"`
		} `json:"device"`
	}
	if err := c.getJSON(ctx, deviceStatePath, &payload); err != nil {
		return DeviceInfo{}, err
	}

	d := payload.Device
	return DeviceInfo{
		Name:      rawString(d.Name),
		Type:      rawString(d.Type),
		APILevel:  rawString(d.APILevel),
		HWVersion: rawString(d.HWVersion),
		FWVersion: rawString(d.FWVersion),
		ID:        rawString(d.ID),
		IP:        rawString(d.IP),
	}, nil
}

// Identify fetches the device identity and rejects devices without an id.
func (c *Client) Identify(ctx context.Context) (DeviceInfo, error) {
	info, err := c.DeviceState(ctx)
	if err != nil {
		return info, err
	}
	if info.ID == "" {
		return info, &ValidationError{Reason: "no device id returned"}
	}

	return info, nil
}

// WindowExtendedState fetches motors and sensors.
func (c *Client) WindowExtendedState(ctx context.Context) (*WindowState, error) {
	var payload windowStatePayload
	if err := c.getJSON(ctx, windowExtendedStatePath, &payload); err != nil {
		return nil, err
	}

	return &WindowState{Motors: payload.Window.Motors, Sensors: payload.Window.Sensors}, nil
}

// SendMotorCommand issues a motor command. The response body is ignored.
func (c *Client) SendMotorCommand(ctx context.Context, channel int, cmd Command) error {
	if !cmd.Valid() {
		return errors.Errorf("blebox: unsupported motor command %q", string(cmd))
	}

	logrus.Debugf("blebox: channel %d command %s", channel, cmd)
	return c.getJSON(ctx, fmt.Sprintf("/s/%d/%s", channel, cmd), nil)
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	op := "GET " + path

	select {
	case c.l <- struct{}{}:
	case <-ctx.Done():
		return &TransportError{Op: op, Err: ctx.Err()}
	}
	defer func() { <-c.l }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &TransportError{Op: op, Err: errors.Errorf("HTTP %d", resp.StatusCode)}
	}

	if v == nil {
		_, err = io.Copy(io.Discard, resp.Body)
	} else {
		err = json.NewDecoder(resp.Body).Decode(v)
	}
	if err != nil {
		return &TransportError{Op: op, Err: errors.Wrap(err, "read body")}
	}

	return nil
}

// rawString renders a JSON scalar as text. Strings are unquoted, null is empty.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	return string(raw)
}
