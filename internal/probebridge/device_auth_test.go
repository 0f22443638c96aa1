package probebridge

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkmind-dev/linkmind/internal/models"
)

var userCodeFormat = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}$`)
var bearerTokenFormat = regexp.MustCompile(`^lmp_[0-9a-f]{32}$`)

func TestInitiateDeviceAuth_ReturnsWellFormedCodes(t *testing.T) {
	fs := newFakeStore()
	resp, err := InitiateDeviceAuth(context.Background(), fs, "https://linkmind.example/device")
	require.NoError(t, err)

	assert.Len(t, resp.DeviceCode, 32)
	assert.True(t, userCodeFormat.MatchString(resp.UserCode), "user code %q does not match XXXX-XXXX", resp.UserCode)
	assert.Equal(t, 900, resp.ExpiresIn)
	assert.Equal(t, 5, resp.PollInterval)
}

func TestPollDeviceToken_PendingThenAuthorized(t *testing.T) {
	fs := newFakeStore()
	resp, err := InitiateDeviceAuth(context.Background(), fs, "https://linkmind.example/device")
	require.NoError(t, err)

	result, err := PollDeviceToken(context.Background(), fs, resp.DeviceCode)
	require.NoError(t, err)
	assert.Equal(t, PollStatusPending, result.Status)

	require.NoError(t, AuthorizeDeviceAuth(context.Background(), fs, resp.UserCode, 42))

	result, err = PollDeviceToken(context.Background(), fs, resp.DeviceCode)
	require.NoError(t, err)
	assert.Equal(t, PollStatusOK, result.Status)
	assert.Equal(t, int64(42), result.UserID)
	assert.True(t, bearerTokenFormat.MatchString(result.AccessToken),
		"access token %q does not match lmp_[0-9a-f]{32}", result.AccessToken)

	require.Len(t, fs.devices, 1)
	assert.Equal(t, result.AccessToken, fs.devices[0].BearerToken)

	// The device auth request was consumed: a second poll must fail since
	// the code no longer exists.
	_, err = PollDeviceToken(context.Background(), fs, resp.DeviceCode)
	assert.Error(t, err)
}

func TestPollDeviceToken_Expired(t *testing.T) {
	fs := newFakeStore()
	fs.deviceAuths["dc-1"] = &models.DeviceAuthRequest{
		DeviceCode: "dc-1", UserCode: "AAAA-BBBB", Status: models.DeviceAuthPending,
	}

	result, err := PollDeviceToken(context.Background(), fs, "dc-1")
	require.NoError(t, err)
	assert.Equal(t, PollStatusExpired, result.Status)
}
