// Package ha is a Home Assistant WebSocket API client used to mirror plug
// state into input_boolean helpers and to receive toggles made in HA.
package ha

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HAClient defines the interface for Home Assistant WebSocket client
type HAClient interface {
	Connect() error
	Disconnect() error
	IsConnected() bool
	GetState(entityID string) (*State, error)
	CallService(domain, service string, data map[string]interface{}) error
	SubscribeStateChanges(entityID string, handler StateChangeHandler) (Subscription, error)
	SetInputBoolean(name string, value bool) error
}

const requestTimeout = 10 * time.Second

// Client implements HAClient
type Client struct {
	url    string
	token  string
	logger *zap.Logger

	connMu    sync.RWMutex
	conn      *websocket.Conn
	connected bool
	reconnect bool
	ctx       context.Context
	cancel    context.CancelFunc

	writeMu sync.Mutex // websocket writes are not concurrency safe

	pendingMu sync.Mutex
	pending   map[int]chan Message
	msgID     int

	subsMu sync.RWMutex
	subs   subscriptions
}

// NewClient creates a new Home Assistant WebSocket client
func NewClient(url, token string, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:     url,
		token:   token,
		logger:  logger.Named("ha"),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[int]chan Message),
		subs:    newSubscriptions(),
	}
}

// Connect dials, authenticates and starts the receive loop.
func (c *Client) Connect() error {
	c.connMu.Lock()
	if c.connected {
		c.connMu.Unlock()
		return fmt.Errorf("already connected")
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		c.connMu.Unlock()
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	if err := c.authenticate(conn); err != nil {
		conn.Close()
		c.connMu.Unlock()
		return err
	}

	c.cancel()
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.conn = conn
	c.connected = true
	c.reconnect = true
	c.connMu.Unlock()

	c.logger.Info("Connected to Home Assistant")
	go c.receiveMessages(conn)

	if _, err := c.send(&SubscribeEventsRequest{
		ID:        c.nextMsgID(),
		Type:      "subscribe_events",
		EventType: "state_changed",
	}); err != nil {
		c.logger.Warn("Failed to subscribe to state changes", zap.Error(err))
	}

	return nil
}

func (c *Client) authenticate(conn *websocket.Conn) error {
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("failed to read auth_required: %w", err)
	}
	if msg.Type != "auth_required" {
		return fmt.Errorf("expected auth_required, got %s", msg.Type)
	}

	if err := conn.WriteJSON(AuthMessage{Type: "auth", AccessToken: c.token}); err != nil {
		return fmt.Errorf("failed to send auth: %w", err)
	}

	if err := conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("failed to read auth response: %w", err)
	}
	switch msg.Type {
	case "auth_ok":
		return nil
	case "auth_invalid":
		return fmt.Errorf("authentication failed: invalid token")
	default:
		return fmt.Errorf("expected auth_ok, got %s", msg.Type)
	}
}

// Disconnect closes the connection and drops all subscriptions.
func (c *Client) Disconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if !c.connected {
		return nil
	}

	c.reconnect = false
	c.connected = false
	c.cancel()

	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	c.conn.Close()
	c.conn = nil

	c.subsMu.Lock()
	c.subs = newSubscriptions()
	c.subsMu.Unlock()

	c.logger.Info("Disconnected from Home Assistant")
	return nil
}

// IsConnected returns true if client is connected
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

func (c *Client) nextMsgID() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.msgID++
	return c.msgID
}

// send writes a request carrying id and waits for its result frame.
func (c *Client) send(req interface{ requestID() int }) (*Message, error) {
	c.connMu.RLock()
	conn, connected, ctx := c.conn, c.connected, c.ctx
	c.connMu.RUnlock()
	if !connected {
		return nil, fmt.Errorf("not connected")
	}

	id := req.requestID()
	respChan := make(chan Message, 1)
	c.pendingMu.Lock()
	c.pending[id] = respChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	err := conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	select {
	case resp := <-respChan:
		if resp.Success != nil && !*resp.Success {
			if resp.Error != nil {
				return nil, fmt.Errorf("HA error: %s - %s", resp.Error.Code, resp.Error.Message)
			}
			return nil, fmt.Errorf("request failed")
		}
		return &resp, nil
	case <-time.After(requestTimeout):
		return nil, fmt.Errorf("timeout waiting for response")
	case <-ctx.Done():
		return nil, fmt.Errorf("client disconnected")
	}
}

func (r *CallServiceRequest) requestID() int     { return r.ID }
func (r *GetStatesRequest) requestID() int       { return r.ID }
func (r *SubscribeEventsRequest) requestID() int { return r.ID }

func (c *Client) receiveMessages(conn *websocket.Conn) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			c.connMu.RLock()
			current := c.conn == conn && c.connected
			c.connMu.RUnlock()
			if current {
				c.logger.Error("Failed to read message", zap.Error(err))
				c.handleDisconnect(conn)
			}
			return
		}

		if msg.Type == "event" {
			c.handleEvent(&msg)
			continue
		}

		if msg.ID > 0 {
			c.pendingMu.Lock()
			if ch, ok := c.pending[msg.ID]; ok {
				select {
				case ch <- msg:
				default:
					c.logger.Warn("Response channel full", zap.Int("msg_id", msg.ID))
				}
			}
			c.pendingMu.Unlock()
		}
	}
}

func (c *Client) handleEvent(msg *Message) {
	if msg.Event == nil || msg.Event.EventType != "state_changed" {
		return
	}

	var data StateChangedEvent
	if err := json.Unmarshal(msg.Event.Data, &data); err != nil {
		c.logger.Error("Failed to unmarshal state_changed event", zap.Error(err))
		return
	}

	c.subsMu.RLock()
	handlers := c.subs.handlers(data.EntityID)
	c.subsMu.RUnlock()

	for _, handler := range handlers {
		handler(data.EntityID, data.OldState, data.NewState)
	}
}

func (c *Client) handleDisconnect(conn *websocket.Conn) {
	c.connMu.Lock()
	c.connected = false
	c.conn = nil
	reconnect := c.reconnect
	c.connMu.Unlock()
	conn.Close()

	c.logger.Warn("Connection lost")
	if reconnect {
		go c.attemptReconnect()
	}
}

// attemptReconnect retries Connect with exponential backoff capped at 30s.
func (c *Client) attemptReconnect() {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		time.Sleep(backoff)

		c.connMu.RLock()
		stop := !c.reconnect || c.connected
		c.connMu.RUnlock()
		if stop {
			return
		}

		c.logger.Info("Attempting to reconnect...")
		if err := c.Connect(); err != nil {
			c.logger.Error("Reconnection failed", zap.Error(err))
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.logger.Info("Reconnected successfully")
		return
	}
}

// GetState retrieves the state of an entity
func (c *Client) GetState(entityID string) (*State, error) {
	resp, err := c.send(&GetStatesRequest{ID: c.nextMsgID(), Type: "get_states"})
	if err != nil {
		return nil, err
	}

	var states []*State
	if err := json.Unmarshal(resp.Result, &states); err != nil {
		return nil, fmt.Errorf("failed to unmarshal states: %w", err)
	}

	for _, state := range states {
		if state.EntityID == entityID {
			return state, nil
		}
	}

	return nil, fmt.Errorf("entity %s not found", entityID)
}

// CallService calls a Home Assistant service
func (c *Client) CallService(domain, service string, data map[string]interface{}) error {
	_, err := c.send(&CallServiceRequest{
		ID:          c.nextMsgID(),
		Type:        "call_service",
		Domain:      domain,
		Service:     service,
		ServiceData: data,
	})
	return err
}

// SubscribeStateChanges subscribes to state changes for a specific entity.
// Subscriptions are dropped on Disconnect.
func (c *Client) SubscribeStateChanges(entityID string, handler StateChangeHandler) (Subscription, error) {
	c.subsMu.Lock()
	subID := c.subs.add(entityID, handler)
	c.subsMu.Unlock()

	return &subscription{
		entityID: entityID,
		subID:    subID,
		remove: func(entityID string, subID int) {
			c.subsMu.Lock()
			c.subs.remove(entityID, subID)
			c.subsMu.Unlock()
		},
	}, nil
}

// SetInputBoolean turns input_boolean.<name> on or off
func (c *Client) SetInputBoolean(name string, value bool) error {
	service := "turn_off"
	if value {
		service = "turn_on"
	}

	return c.CallService("input_boolean", service, map[string]interface{}{
		"entity_id": "input_boolean." + name,
	})
}
