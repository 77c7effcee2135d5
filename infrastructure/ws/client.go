package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// DefaultHandshakeTimeout bounds a connection attempt; on expiry the
	// caller falls through to its reconnection policy.
	DefaultHandshakeTimeout = 20 * time.Second
)

var ErrNotConnected = errors.New("stream not connected")

// connState is the per-connection state; pumps and shutdown hold the
// state of the connection they were started for, so a late teardown of a
// dead connection can never touch its replacement.
type connState struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// Client is a websocket implementation of IStream. Each Connect dials a
// fresh connection and runs a read pump and a write pump; events received
// from the server are handed to the OnEvent callback, and the
// OnDisconnect callback fires once per connection when it dies.
type Client struct {
	url    string
	dialer *websocket.Dialer
	log    *slog.Logger

	mu           sync.Mutex
	current      *connState
	clientClosed bool

	onEvent      func(name string, data json.RawMessage)
	onDisconnect func(reason string)
}

func NewClient(url string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
		log: log,
	}
}

func (c *Client) OnEvent(fn func(name string, data json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = fn
}

func (c *Client) OnDisconnect(fn func(reason string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

// Connect dials the stream, authenticating with the bearer token. Any
// previous connection is torn down first.
func (c *Client) Connect(ctx context.Context, token string) error {
	c.teardown(ReasonClientDisconnect)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return err
	}

	cs := &connState{
		conn: conn,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}

	c.mu.Lock()
	c.current = cs
	c.clientClosed = false
	c.mu.Unlock()

	go c.writePump(cs)
	go c.readPump(cs)

	return nil
}

// Emit marshals a named event and queues it on the write pump.
func (c *Client) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return err
	}

	c.mu.Lock()
	cs := c.current
	c.mu.Unlock()

	if cs == nil {
		return ErrNotConnected
	}
	select {
	case cs.send <- frame:
		return nil
	case <-cs.done:
		return ErrNotConnected
	}
}

// Close tears the connection down on behalf of the client; the disconnect
// callback reports a client-initiated reason so no reconnect is attempted.
func (c *Client) Close() error {
	c.mu.Lock()
	c.clientClosed = true
	c.mu.Unlock()
	c.teardown(ReasonClientDisconnect)
	return nil
}

func (c *Client) readPump(cs *connState) {
	cs.conn.SetReadDeadline(time.Now().Add(pongWait))
	cs.conn.SetPongHandler(func(string) error {
		cs.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := cs.conn.ReadMessage()
		if err != nil {
			c.finish(cs, disconnectReason(err))
			return
		}

		var frame Frame
		if err := json.Unmarshal(payload, &frame); err != nil || frame.Event == "" {
			c.log.Debug("unparseable stream frame dropped", slog.Any("error", err))
			continue
		}

		c.mu.Lock()
		handler := c.onEvent
		c.mu.Unlock()
		if handler != nil {
			handler(frame.Event, frame.Data)
		}
	}
}

func (c *Client) writePump(cs *connState) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-cs.send:
			cs.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cs.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			cs.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cs.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-cs.done:
			cs.conn.SetWriteDeadline(time.Now().Add(writeWait))
			cs.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// finish runs the connection's shutdown exactly once and reports the
// reason, unless the client itself asked for the close.
func (c *Client) finish(cs *connState, reason string) {
	cs.once.Do(func() {
		close(cs.done)
		cs.conn.Close()

		c.mu.Lock()
		if c.current == cs {
			c.current = nil
		}
		clientClosed := c.clientClosed
		handler := c.onDisconnect
		c.mu.Unlock()

		if clientClosed {
			reason = ReasonClientDisconnect
		}
		if handler != nil {
			handler(reason)
		}
	})
}

// teardown closes the current connection, if any.
func (c *Client) teardown(reason string) {
	c.mu.Lock()
	cs := c.current
	c.mu.Unlock()

	if cs != nil {
		c.finish(cs, reason)
	}
}

func disconnectReason(err error) string {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseServiceRestart) {
		return ReasonServerDisconnect
	}
	return ReasonTransportError
}
