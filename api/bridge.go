package api

// bridge.go is the node's JSON command/event surface: a loopback WebSocket
// server the UI process connects to, grounded on teacher
// pkg/agent/transport/websocket/server.go's upgrade-then-read-loop shape
// (inverted here: the node is the server, the UI process is the sole
// client). One request is one JSON object carrying a command name, a
// request ID, and a params payload; one response echoes the request ID
// back with either a result or a typed error. Independently of requests,
// every event the internal event bus publishes is pushed to the same
// connection as an unsolicited frame.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rchat-io/rchat-node/internal/eventbus"
	"github.com/rchat-io/rchat-node/internal/logger"
)

// request is one inbound command frame.
type request struct {
	RequestID string          `json:"request_id"`
	Command   string          `json:"command"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// response is one outbound reply frame, correlated to its request by ID.
// At most one of Result/Error is set; a command that returns neither a
// result nor an error leaves both unset.
type response struct {
	RequestID string `json:"request_id"`
	Result    any    `json:"result,omitempty"`
	Error     *Error `json:"error,omitempty"`
}

// eventFrame is an outbound push frame carrying an eventbus.Event, sent
// with no corresponding request.
type eventFrame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Bridge serves the command surface over WebSocket on a loopback port.
type Bridge struct {
	dispatcher *Dispatcher
	bus        *eventbus.Bus
	log        logger.Logger
	upgrader   websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// NewBridge wraps dispatcher (and its event bus) in a WebSocket handler.
func NewBridge(dispatcher *Dispatcher, bus *eventbus.Bus, log logger.Logger) *Bridge {
	return &Bridge{
		dispatcher: dispatcher,
		bus:        bus,
		log:        log,
		upgrader: websocket.Upgrader{
			// The UI process connects over loopback only; there is no
			// cross-origin browser client to validate against.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		conns: make(map[*websocket.Conn]bool),
	}
}

// Handler returns the http.Handler to mount at the bridge's WebSocket path.
func (b *Bridge) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, fmt.Sprintf("websocket upgrade failed: %v", err), http.StatusBadRequest)
			return
		}
		b.serve(r.Context(), conn)
	})
}

func (b *Bridge) serve(ctx context.Context, conn *websocket.Conn) {
	b.addConn(conn)
	defer b.removeConn(conn)
	defer conn.Close()

	var writeMu sync.Mutex
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go b.pumpEvents(connCtx, conn, &writeMu)

	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && b.log != nil {
				b.log.Warn("bridge: read error", logger.Error(err))
			}
			return
		}

		result, apiErr := b.dispatch(connCtx, req.Command, req.Params)
		b.write(conn, &writeMu, response{RequestID: req.RequestID, Result: result, Error: apiErr})
	}
}

func (b *Bridge) write(conn *websocket.Conn, writeMu *sync.Mutex, v any) {
	writeMu.Lock()
	defer writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(v); err != nil && b.log != nil {
		b.log.Warn("bridge: write error", logger.Error(err))
	}
}

// pumpEvents forwards every bus event to conn until connCtx is canceled.
// Subscriptions are per-Kind, so this fans out every Kind the bridge cares
// about onto the one connection.
func (b *Bridge) pumpEvents(connCtx context.Context, conn *websocket.Conn, writeMu *sync.Mutex) {
	if b.bus == nil {
		return
	}
	kinds := []eventbus.Kind{
		eventbus.KindAuthStatus,
		eventbus.KindLocalPeerDiscovered,
		eventbus.KindLocalPeerExpired,
		eventbus.KindPeerConnected,
		eventbus.KindPeerDisconnected,
		eventbus.KindMessageReceived,
		eventbus.KindMessageStatusUpdated,
		eventbus.KindFileTransferProgress,
		eventbus.KindFileTransferComplete,
	}
	subs := make([]*eventbus.Subscription, len(kinds))
	for i, k := range kinds {
		subs[i] = b.bus.Subscribe(k)
	}
	defer func() {
		for _, s := range subs {
			s.Close()
		}
	}()

	cases := make(chan eventbus.Event)
	for _, s := range subs {
		go func(s *eventbus.Subscription) {
			for ev := range s.Events() {
				select {
				case cases <- ev:
				case <-connCtx.Done():
					return
				}
			}
		}(s)
	}

	for {
		select {
		case <-connCtx.Done():
			return
		case ev := <-cases:
			b.write(conn, writeMu, eventFrame{Event: string(ev.Kind), Payload: ev.Payload})
		}
	}
}

func (b *Bridge) addConn(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[conn] = true
}

func (b *Bridge) removeConn(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, conn)
}

// Close terminates every active connection.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.conns {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}
	b.conns = make(map[*websocket.Conn]bool)
	return nil
}
