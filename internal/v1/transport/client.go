package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ovidtrivia/quizroom/internal/v1/events"
	"github.com/ovidtrivia/quizroom/internal/v1/logging"
	"github.com/ovidtrivia/quizroom/internal/v1/metrics"
)

// wsConnection is the subset of *websocket.Conn the client pumps use,
// narrowed so tests can substitute a fake.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// Client is a single socket's connection to the hub. At most one (pin,
// participantId) binding is associated with it at a time.
type Client struct {
	hub  *Hub
	conn wsConnection
	sid  string
	send chan []byte

	mu            sync.RWMutex
	pin           string
	participantID string
}

func (c *Client) boundPin() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pin
}

func (c *Client) boundParticipant() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.participantID
}

func (c *Client) setBinding(pin, participantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pin = pin
	c.participantID = participantID
}

func (c *Client) clearBinding() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pin = ""
	c.participantID = ""
}

// enqueue drops the message rather than blocking if the client's buffer is
// full (a slow/wedged socket must never stall the room's broadcast).
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		logging.Warn(nil, "client send buffer full, dropping message") //nolint:staticcheck
	}
}

// sendError writes a single error{detail} frame directly to this client,
// bypassing the pin index (the client may not be bound to any room yet).
func (c *Client) sendError(detail string) {
	payload, err := marshalEnvelope(events.OutError, events.ErrorPayload{Detail: detail})
	if err != nil {
		return
	}
	c.enqueue(payload)
}

// sendEvent writes a single frame directly to this client.
func (c *Client) sendEvent(event events.Name, data any) {
	payload, err := marshalEnvelope(event, data)
	if err != nil {
		return
	}
	c.enqueue(payload)
}

func marshalEnvelope(event events.Name, data any) ([]byte, error) {
	return json.Marshal(events.New(event, data))
}

// inboundFrame is the wire shape of a client -> server message: the event
// name plus its still-encoded payload, decoded once the event is known.
type inboundFrame struct {
	Event events.Name     `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// readPump decodes inbound frames and dispatches them to the hub until the
// connection errors or closes.
func (c *Client) readPump() {
	defer func() {
		c.hub.handleDisconnect(c)
		_ = c.conn.Close()
		metrics.DecConnection()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError("malformed message")
			continue
		}
		c.hub.dispatch(c, frame)
	}
}

// writePump drains the client's send channel onto the wire and pings the
// peer periodically to detect dead connections.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
