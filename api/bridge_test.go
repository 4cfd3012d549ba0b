package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rchat-io/rchat-node/core/message"
	"github.com/rchat-io/rchat-node/core/session"
	"github.com/rchat-io/rchat-node/crypto/vault"
	"github.com/rchat-io/rchat-node/internal/eventbus"
	"github.com/stretchr/testify/require"
)

func newTestBridge(t *testing.T) (*Bridge, *eventbus.Bus) {
	t.Helper()
	st := newMemoryStore()
	v := vault.NewMemoryBacked()
	sessions := session.NewManager(nil, session.Config{})
	t.Cleanup(sessions.Close)
	bus := eventbus.New()
	t.Cleanup(bus.Close)

	d := NewDispatcher(Dependencies{
		Store:             st,
		Vault:             v,
		MessageDispatcher: message.NewDispatcher(sessions, nil, nil, 0),
		Files:             newMemBlobStore(),
		Bus:               bus,
	})
	return NewBridge(d, bus, nil), bus
}

func dialBridge(t *testing.T, bridge *Bridge) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(bridge.Handler())
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBridgeDispatchesCheckAuthStatus(t *testing.T) {
	bridge, _ := newTestBridge(t)
	conn := dialBridge(t, bridge)

	require.NoError(t, conn.WriteJSON(request{RequestID: "1", Command: "check_auth_status"}))

	var resp response
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, "1", resp.RequestID)
	require.Nil(t, resp.Error)
}

func TestBridgeReturnsTypedErrorForUnknownCommand(t *testing.T) {
	bridge, _ := newTestBridge(t)
	conn := dialBridge(t, bridge)

	require.NoError(t, conn.WriteJSON(request{RequestID: "2", Command: "not_a_real_command"}))

	var resp response
	require.NoError(t, conn.ReadJSON(&resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, KindInvalidArgument, resp.Error.Kind)
}

func TestBridgeRoundTripsInitVaultThenStatus(t *testing.T) {
	bridge, _ := newTestBridge(t)
	conn := dialBridge(t, bridge)

	params, _ := json.Marshal(map[string]string{"password": "correct horse battery staple"})
	require.NoError(t, conn.WriteJSON(request{RequestID: "init", Command: "init_vault", Params: params}))
	var resp response
	require.NoError(t, conn.ReadJSON(&resp))
	require.Nil(t, resp.Error)

	require.NoError(t, conn.WriteJSON(request{RequestID: "status", Command: "check_auth_status"}))
	require.NoError(t, conn.ReadJSON(&resp))
	require.Nil(t, resp.Error)
}

func TestBridgePushesMessageStatusUpdatedEvent(t *testing.T) {
	bridge, bus := newTestBridge(t)
	conn := dialBridge(t, bridge)

	// Give the read loop's event pump a moment to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)
	bus.Publish(eventbus.KindMessageStatusUpdated, messageStatusUpdatedPayload{MsgID: "m1", Status: "sent"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame eventFrame
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, string(eventbus.KindMessageStatusUpdated), frame.Event)
}
