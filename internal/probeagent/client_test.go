package probeagent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiateDeviceAuth_ParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/device", r.URL.Path)
		_ = json.NewEncoder(w).Encode(deviceAuthResponse{
			DeviceCode: "dc1", UserCode: "ABCD", VerificationURI: "https://x/auth/device",
			ExpiresIn: 900, Interval: 5,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	resp, err := client.InitiateDeviceAuth(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "dc1", resp.DeviceCode)
	assert.Equal(t, "ABCD", resp.UserCode)
	assert.Equal(t, 5, resp.Interval)
}

func TestPollDeviceToken_AttachesBearerWhenPresent(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(pollTokenResponse{Error: "authorization_pending"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "lmp_xyz")
	resp, err := client.PollDeviceToken(context.Background(), "dc1")

	require.NoError(t, err)
	assert.Equal(t, "authorization_pending", resp.Error)
	assert.Equal(t, "Bearer lmp_xyz", gotAuth)
}

func TestPostResult_SendsSuccessAndErrorShapes(t *testing.T) {
	var decoded scrapeResultRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&decoded)
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	require.NoError(t, client.PostResult(context.Background(), "ev1", map[string]string{"k": "v"}, nil))
	assert.True(t, decoded.Success)
	assert.Equal(t, "ev1", decoded.EventID)

	require.NoError(t, client.PostResult(context.Background(), "ev2", nil, errors.New("fetch timed out")))
	assert.False(t, decoded.Success)
	assert.Equal(t, "ev2", decoded.EventID)
	assert.Equal(t, "fetch timed out", decoded.Error)
}

func TestPostJSON_PropagatesHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	err := client.PostResult(context.Background(), "ev1", nil, nil)

	assert.Error(t, err)
}
