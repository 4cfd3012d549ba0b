package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartParsesDeviceCodeResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client-123", r.FormValue("client_id"))
		json.NewEncoder(w).Encode(map[string]any{
			"device_code":      "devcode",
			"user_code":        "ABCD-1234",
			"verification_uri": "https://example.com/device",
			"expires_in":       900,
			"interval":         1,
		})
	}))
	defer srv.Close()

	flow := NewDeviceFlow(Config{ClientID: "client-123", DeviceCodeURL: srv.URL})
	result, err := flow.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "devcode", result.DeviceCode)
	assert.Equal(t, "ABCD-1234", result.UserCode)
	assert.Equal(t, time.Second, result.Interval)
}

func TestPollRetriesOnAuthorizationPendingThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			json.NewEncoder(w).Encode(map[string]any{"error": "authorization_pending"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "token-xyz"})
	}))
	defer srv.Close()

	flow := NewDeviceFlow(Config{ClientID: "client-123", TokenURL: srv.URL})
	start := &StartResult{DeviceCode: "devcode", Interval: time.Millisecond, ExpiresIn: time.Second}

	token, err := flow.Poll(context.Background(), start)
	require.NoError(t, err)
	assert.Equal(t, "token-xyz", token)
	assert.GreaterOrEqual(t, attempts, 3)
}

func TestPollReturnsAccessDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "access_denied"})
	}))
	defer srv.Close()

	flow := NewDeviceFlow(Config{ClientID: "client-123", TokenURL: srv.URL})
	start := &StartResult{DeviceCode: "devcode", Interval: time.Millisecond, ExpiresIn: time.Second}

	_, err := flow.Poll(context.Background(), start)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestPollStopsWhenContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "authorization_pending"})
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	flow := NewDeviceFlow(Config{ClientID: "client-123", TokenURL: srv.URL})
	start := &StartResult{DeviceCode: "devcode", Interval: time.Millisecond, ExpiresIn: time.Minute}

	_, err := flow.Poll(ctx, start)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseClaimsExtractsExpiry(t *testing.T) {
	// header.payload.signature, payload = {"exp":1234567890} base64url, unsigned.
	token := "eyJhbGciOiJub25lIn0.eyJleHAiOjEyMzQ1Njc4OTB9."
	claims, err := ParseClaims(token)
	require.NoError(t, err)
	assert.EqualValues(t, 1234567890, claims["exp"])
}
