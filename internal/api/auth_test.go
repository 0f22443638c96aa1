package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParseSessionCookie_RoundTrip(t *testing.T) {
	cookie := SignSessionCookie("top-secret", 42)

	userID, err := ParseSessionCookie("top-secret", cookie)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestParseSessionCookie_RejectsTamperedID(t *testing.T) {
	cookie := SignSessionCookie("top-secret", 42)
	tampered := "43" + cookie[len("42"):]

	_, err := ParseSessionCookie("top-secret", tampered)
	assert.Error(t, err)
}

func TestParseSessionCookie_RejectsWrongSecret(t *testing.T) {
	cookie := SignSessionCookie("top-secret", 42)

	_, err := ParseSessionCookie("a-different-secret", cookie)
	assert.Error(t, err)
}

func TestParseSessionCookie_RejectsMalformedValue(t *testing.T) {
	_, err := ParseSessionCookie("top-secret", "not-a-valid-cookie")
	assert.Error(t, err)
}

func TestParseSessionCookie_RejectsNonNumericID(t *testing.T) {
	mac := sign("top-secret", "abc")
	_, err := ParseSessionCookie("top-secret", "abc."+mac)
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantOK    bool
	}{
		{"valid bearer", "Bearer lmp_abc123", "lmp_abc123", true},
		{"missing prefix", "lmp_abc123", "", false},
		{"empty token", "Bearer ", "", false},
		{"empty header", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, ok := bearerToken(tt.header)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}
