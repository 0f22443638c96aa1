package probebridge

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linkmind-dev/linkmind/internal/models"
)

// userCodeAlphabet excludes visually ambiguous characters (0/O, 1/I) so a
// user typing the code from a screen doesn't stumble over the difference.
const userCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	deviceAuthTTL      = 15 * time.Minute
	deviceAuthPollSecs = 5
	bearerTokenByteLen = 16
	bearerTokenPrefix  = "lmp_"
)

// DeviceAuthResponse is what InitiateDeviceAuth returns to the probe
// starting enrollment.
type DeviceAuthResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	PollInterval    int    `json:"interval"`
}

// PollResult is what PollDeviceToken returns on every poll.
type PollResult struct {
	Status      string `json:"status"` // authorization_pending, expired_token, or complete
	AccessToken string `json:"access_token,omitempty"`
	UserID      int64  `json:"user_id,omitempty"`
}

// Poll statuses.
const (
	PollStatusPending = "authorization_pending"
	PollStatusExpired = "expired_token"
	PollStatusOK      = "complete"
)

// InitiateDeviceAuth starts a new device-code enrollment: a 32-hex device
// code the probe polls with, and an 8-character user code (formatted
// XXXX-XXXX) it displays for the user to enter on the verification page.
func InitiateDeviceAuth(ctx context.Context, store Store, verificationURI string) (*DeviceAuthResponse, error) {
	deviceCode, err := randomHex(16)
	if err != nil {
		return nil, fmt.Errorf("probebridge: generating device code: %w", err)
	}
	userCode, err := randomUserCode()
	if err != nil {
		return nil, fmt.Errorf("probebridge: generating user code: %w", err)
	}

	req := &models.DeviceAuthRequest{
		DeviceCode: deviceCode,
		UserCode:   userCode,
		Status:     models.DeviceAuthPending,
		ExpiresAt:  time.Now().Add(deviceAuthTTL),
	}
	if err := store.CreateDeviceAuth(ctx, req); err != nil {
		return nil, fmt.Errorf("probebridge: creating device auth request: %w", err)
	}

	return &DeviceAuthResponse{
		DeviceCode:      deviceCode,
		UserCode:        userCode,
		VerificationURI: verificationURI,
		ExpiresIn:       int(deviceAuthTTL.Seconds()),
		PollInterval:    deviceAuthPollSecs,
	}, nil
}

// AuthorizeDeviceAuth marks the enrollment identified by its user-facing
// code as authorized by userID, called from the verification page once the
// signed-in user confirms the code. Returns store.ErrNotFound if the code
// doesn't exist, is already claimed, or has expired.
func AuthorizeDeviceAuth(ctx context.Context, store Store, userCode string, userID int64) error {
	return store.AuthorizeDeviceAuth(ctx, userCode, userID)
}

// PollDeviceToken is what a probe calls repeatedly while waiting for a
// human to authorize its enrollment. Once authorized, it mints a bearer
// token, registers a new ProbeDevice, and deletes the device auth request
// so a second poll can't mint a second token from the same code.
func PollDeviceToken(ctx context.Context, store Store, deviceCode string) (*PollResult, error) {
	req, err := store.GetDeviceAuth(ctx, deviceCode)
	if err != nil {
		return nil, fmt.Errorf("probebridge: fetching device auth request: %w", err)
	}

	if time.Now().After(req.ExpiresAt) {
		return &PollResult{Status: PollStatusExpired}, nil
	}

	switch req.Status {
	case models.DeviceAuthPending:
		return &PollResult{Status: PollStatusPending}, nil
	case models.DeviceAuthExpired:
		return &PollResult{Status: PollStatusExpired}, nil
	}

	// Authorized: mint the device and its bearer token exactly once.
	if req.AuthorizedBy == nil {
		return nil, fmt.Errorf("probebridge: device auth request %s is authorized with no owning user", deviceCode)
	}

	token, err := randomBearerToken()
	if err != nil {
		return nil, fmt.Errorf("probebridge: generating bearer token: %w", err)
	}
	device := &models.ProbeDevice{
		ID:          uuid.NewString(),
		UserID:      *req.AuthorizedBy,
		BearerToken: token,
		DisplayName: "Probe " + req.UserCode,
	}
	if err := store.CreateProbeDevice(ctx, device); err != nil {
		return nil, fmt.Errorf("probebridge: registering probe device: %w", err)
	}
	if err := store.DeleteDeviceAuth(ctx, deviceCode); err != nil {
		return nil, fmt.Errorf("probebridge: clearing claimed device auth request: %w", err)
	}

	return &PollResult{Status: PollStatusOK, AccessToken: token, UserID: device.UserID}, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", b), nil
}

func randomUserCode() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	chars := make([]byte, 8)
	for i, v := range b {
		chars[i] = userCodeAlphabet[int(v)%len(userCodeAlphabet)]
	}
	return fmt.Sprintf("%s-%s", chars[:4], chars[4:]), nil
}

func randomBearerToken() (string, error) {
	hex, err := randomHex(bearerTokenByteLen)
	if err != nil {
		return "", err
	}
	return bearerTokenPrefix + hex, nil
}
