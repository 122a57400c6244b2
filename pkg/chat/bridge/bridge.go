// Package bridge implements chat.Client over a websocket connection to a
// puppet bridge: the process that owns the actual messaging-network
// session (login, QR scan, protocol transport) and exposes it as a small
// JSON request/response protocol plus pushed events.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/pkg/chat"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
)

const callTimeout = 30 * time.Second

// Client speaks the bridge wire protocol and adapts it to chat.Client.
type Client struct {
	url   string
	token string

	mu   sync.Mutex
	conn *websocket.Conn
	self string

	nextID    atomic.Int64
	pending   map[string]chan wireMessage
	pendingMu sync.Mutex

	events    chan chat.Event
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the bridge, authenticates with the shared token and
// starts the read loop. The returned client is ready for use.
func Dial(ctx context.Context, url, token string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bridge %s: %w", url, err)
	}
	c := &Client{
		url:     url,
		token:   token,
		conn:    conn,
		pending: make(map[string]chan wireMessage),
		events:  make(chan chat.Event, 128),
		done:    make(chan struct{}),
	}
	go c.readLoop()

	var hello struct {
		Self string `json:"self"`
	}
	if err := c.call(ctx, "login", map[string]string{"token": token}, &hello); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("bridge login: %w", err)
	}
	c.mu.Lock()
	c.self = hello.Self
	c.mu.Unlock()
	logger.Info("bridge_connected", "url", url, "self", hello.Self)
	return c, nil
}

// Self returns the contact id of the logged-in account.
func (c *Client) Self() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self
}

// FindContactByName queries the bridge's live contact directory.
func (c *Client) FindContactByName(ctx context.Context, name string) (chat.Contact, error) {
	var resp struct {
		Found   bool           `json:"found"`
		Contact models.Contact `json:"contact"`
	}
	if err := c.call(ctx, "contact.find", map[string]string{"name": name}, &resp); err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, nil
	}
	return &bridgeContact{c: c, id: resp.Contact.ID, name: resp.Contact.Name}, nil
}

// Room returns a handle for a known room id.
func (c *Client) Room(id string) chat.Room {
	return &bridgeRoom{c: c, id: id}
}

// Events exposes the pushed network events. The channel closes when the
// connection goes away.
func (c *Client) Events() <-chan chat.Event { return c.events }

// Close tears down the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			err = c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()
	})
	return err
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				logger.Warn("bridge_read_failed", "error", err)
			}
			return
		}
		var msg wireMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Warn("bridge_bad_frame", "error", err)
			continue
		}
		switch msg.Type {
		case "res":
			c.pendingMu.Lock()
			ch, ok := c.pending[msg.ID]
			if ok {
				delete(c.pending, msg.ID)
			}
			c.pendingMu.Unlock()
			if ok {
				ch <- msg
				close(ch)
			}
		case "event":
			if ev, ok := c.decodeEvent(msg); ok {
				select {
				case c.events <- ev:
				default:
					logger.Warn("bridge_event_dropped", "event", msg.Event)
				}
			}
		}
	}
}

// call sends a request and waits for the matching response.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	id := fmt.Sprintf("cr-%d", c.nextID.Add(1))
	ch := make(chan wireMessage, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	drop := func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}

	data, err := json.Marshal(wireMessage{Type: "req", ID: id, Method: method, Params: mustRaw(params)})
	if err != nil {
		drop()
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		drop()
		return fmt.Errorf("bridge not connected")
	}
	c.mu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.mu.Unlock()
	if err != nil {
		drop()
		return err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return fmt.Errorf("%s: %s", method, resp.Error.Message)
		}
		if out != nil && len(resp.Payload) > 0 {
			return json.Unmarshal(resp.Payload, out)
		}
		return nil
	case <-ctx.Done():
		drop()
		return ctx.Err()
	case <-time.After(callTimeout):
		drop()
		return fmt.Errorf("timeout waiting for %s response", method)
	case <-c.done:
		drop()
		return fmt.Errorf("bridge connection closed")
	}
}

func (c *Client) say(ctx context.Context, kind, id string, content chat.Content) error {
	p := sayParams{Kind: kind, ID: id}
	switch m := content.(type) {
	case chat.Text:
		p.Text = string(m)
	case chat.Media:
		p.Media = &mediaParams{Type: m.Type, URL: m.URL}
	default:
		return fmt.Errorf("unsupported content %T", content)
	}
	return c.call(ctx, "say", p, nil)
}

func mustRaw(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
