// Package channel owns the persistent bidirectional connection used for
// low-latency event delivery. Inbound frames are routed to at most one
// handler per event name; outbound emits are fire-and-forget.
package channel

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-sync/internal/observability"
)

// Channel is the transport contract the dispatcher and action queue depend
// on. Handlers registered with On must be released with Off on teardown to
// avoid duplicate delivery to a stale component.
type Channel interface {
	Connect(ctx context.Context) error
	Connected() bool
	On(event string, handler func(data json.RawMessage))
	Off(event string)
	Emit(event string, payload interface{})
	Close() error
}

// frame is the wire shape of every channel message.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Conn is a websocket-backed Channel with silent automatic reconnection.
// Missed inbound events during a reconnect gap are not replayed; callers
// restore consistency with an explicit directory refetch.
type Conn struct {
	url    string
	header map[string][]string

	mu        sync.Mutex
	ws        *websocket.Conn
	handlers  map[string]func(json.RawMessage)
	connected bool
	closed    bool
}

// NewConn builds a Conn for the given websocket URL. The token, when
// non-empty, is sent as a bearer Authorization header on the handshake.
func NewConn(url, token string) *Conn {
	header := map[string][]string{}
	if token != "" {
		header["Authorization"] = []string{"Bearer " + token}
	}
	return &Conn{
		url:      url,
		header:   header,
		handlers: make(map[string]func(json.RawMessage)),
	}
}

// Connect dials the channel. It is idempotent: a second call on a live
// connection is a no-op.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected || c.closed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	ctx, span := otel.Tracer("chat-sync/channel").Start(ctx, "channel.handshake")
	defer span.End()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ws.Close()
		return nil
	}
	c.ws = ws
	c.connected = true
	c.mu.Unlock()

	observability.SetChannelConnected(true)
	go c.readPump(ws)
	return nil
}

// Connected reports whether the channel currently has a live connection.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// On registers the handler for an event name, replacing any previous one.
func (c *Conn) On(event string, handler func(data json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = handler
}

// Off removes the handler for an event name.
func (c *Conn) Off(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, event)
}

// Emit sends an event without waiting for delivery. Failures are logged
// and dropped; there is no acknowledgement on this path.
func (c *Conn) Emit(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("channel emit %s: encode: %v", event, err)
		return
	}
	body, err := json.Marshal(frame{Event: event, Data: data})
	if err != nil {
		log.Printf("channel emit %s: encode frame: %v", event, err)
		return
	}

	c.mu.Lock()
	ws := c.ws
	connected := c.connected
	if connected {
		err = ws.WriteMessage(websocket.TextMessage, body)
	}
	c.mu.Unlock()

	if !connected {
		log.Printf("channel emit %s: not connected, dropped", event)
		return
	}
	if err != nil {
		log.Printf("channel emit %s: write: %v", event, err)
		return
	}
	observability.IncChannelEvent("out", event)
}

// Close tears the channel down permanently; no further reconnects happen.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.connected = false
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	observability.SetChannelConnected(false)
	if ws != nil {
		return ws.Close()
	}
	return nil
}

func (c *Conn) readPump(ws *websocket.Conn) {
	for {
		_, body, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("channel read: %v", err)
			}
			c.handleDisconnect(ws)
			return
		}

		var f frame
		if err := json.Unmarshal(body, &f); err != nil {
			log.Printf("channel read: malformed frame: %v", err)
			observability.IncDroppedEvent("unknown", "malformed_frame")
			continue
		}
		observability.IncChannelEvent("in", f.Event)

		c.mu.Lock()
		handler := c.handlers[f.Event]
		c.mu.Unlock()
		if handler == nil {
			continue
		}
		handler(f.Data)
	}
}

// handleDisconnect drops the dead connection and redials in the background.
// The retry schedule backs off exponentially and resets on success.
func (c *Conn) handleDisconnect(ws *websocket.Conn) {
	ws.Close()

	c.mu.Lock()
	if c.ws != ws || c.closed {
		c.mu.Unlock()
		return
	}
	c.ws = nil
	c.connected = false
	c.mu.Unlock()

	observability.SetChannelConnected(false)
	go c.redial()
}

func (c *Conn) redial() {
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = time.Second
	schedule.MaxInterval = 30 * time.Second
	schedule.MaxElapsedTime = 0

	for {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		observability.IncChannelReconnect()
		ws, _, err := websocket.DefaultDialer.Dial(c.url, c.header)
		if err == nil {
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				ws.Close()
				return
			}
			c.ws = ws
			c.connected = true
			c.mu.Unlock()

			observability.SetChannelConnected(true)
			go c.readPump(ws)
			return
		}

		wait := schedule.NextBackOff()
		log.Printf("channel redial failed, retrying in %s: %v", wait, err)
		time.Sleep(wait)
	}
}
