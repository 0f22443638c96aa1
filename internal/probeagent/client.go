package probeagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to the coordinator's Admission API on behalf of the probe.
type Client struct {
	apiBase string
	token   string
	http    *http.Client
}

// NewClient builds a Client against apiBase, attaching token (if non-empty)
// as a bearer credential to every request.
func NewClient(apiBase, token string) *Client {
	return &Client{
		apiBase: apiBase,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// deviceAuthResponse mirrors probebridge.DeviceAuthResponse's wire shape.
type deviceAuthResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// InitiateDeviceAuth starts enrollment and returns the device/user code
// pair the caller must display to the user.
func (c *Client) InitiateDeviceAuth(ctx context.Context) (*deviceAuthResponse, error) {
	var resp deviceAuthResponse
	if err := c.postJSON(ctx, "/api/auth/device", nil, &resp); err != nil {
		return nil, fmt.Errorf("probeagent: initiating device auth: %w", err)
	}
	return &resp, nil
}

// pollTokenResponse is the union of the success and pending/expired shapes
// /api/auth/token can return.
type pollTokenResponse struct {
	AccessToken string `json:"access_token"`
	UserID      int64  `json:"user_id"`
	Error       string `json:"error"`
}

// PollDeviceToken polls once for enrollment completion. A non-empty
// resp.Error of "authorization_pending" means keep polling; any other
// error value means give up.
func (c *Client) PollDeviceToken(ctx context.Context, deviceCode string) (*pollTokenResponse, error) {
	var resp pollTokenResponse
	body := map[string]string{"device_code": deviceCode}
	if err := c.postJSON(ctx, "/api/auth/token", body, &resp); err != nil {
		return nil, fmt.Errorf("probeagent: polling device token: %w", err)
	}
	return &resp, nil
}

// scrapeResultRequest is the payload posted to /api/probe/receive_result.
type scrapeResultRequest struct {
	EventID string      `json:"event_id"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// PostResult reports a completed (or failed) scrape back to the
// coordinator.
func (c *Client) PostResult(ctx context.Context, eventID string, data interface{}, scrapeErr error) error {
	req := scrapeResultRequest{EventID: eventID, Success: scrapeErr == nil, Data: data}
	if scrapeErr != nil {
		req.Error = scrapeErr.Error()
	}
	var ok struct {
		OK bool `json:"ok"`
	}
	return c.postJSON(ctx, "/api/probe/receive_result", req, &ok)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
