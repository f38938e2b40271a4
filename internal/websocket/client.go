package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/treehole/backend/internal/logger"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next message from the peer
	pongWait = 60 * time.Second

	// Send pings with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Send buffer size
	sendBufferSize = 256
)

// Client is a single WebSocket connection. A fresh connection has no
// recipient identity; it gains one when the peer sends a register message.
type Client struct {
	conn *websocket.Conn
	hub  *Hub

	// recipient is empty until the connection registers. Guarded by mu
	// because the hub reads it while routing.
	recipient string

	// AuthenticatedID is the user id proven by a JWT at upgrade time, or
	// empty for anonymous connections.
	AuthenticatedID string

	send chan []byte

	ConnectedAt time.Time
	RemoteAddr  string
	UserAgent   string

	rateLimiter *RateLimiter

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// RateLimiter is a token bucket limiting inbound messages per connection.
type RateLimiter struct {
	tokens    float64
	maxTokens float64
	refill    float64
	lastTime  time.Time
	mu        sync.Mutex
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(maxPerSecond int, burst int) *RateLimiter {
	return &RateLimiter{
		tokens:    float64(burst),
		maxTokens: float64(burst),
		refill:    float64(maxPerSecond),
		lastTime:  time.Now(),
	}
}

// Allow checks if an action is allowed and consumes a token.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastTime).Seconds()
	r.lastTime = now

	r.tokens += elapsed * r.refill
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// NewClient wraps an accepted connection.
func NewClient(hub *Hub, conn *websocket.Conn, authenticatedID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	limit := hub.RateLimit()

	return &Client{
		hub:             hub,
		conn:            conn,
		AuthenticatedID: authenticatedID,
		send:            make(chan []byte, sendBufferSize),
		ConnectedAt:     time.Now(),
		rateLimiter:     NewRateLimiter(limit.MaxMessagesPerSecond, limit.BurstSize),
		ctx:             ctx,
		cancel:          cancel,
	}
}

func (c *Client) recipientID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recipient
}

func (c *Client) setRecipientID(id string) {
	c.mu.Lock()
	c.recipient = id
	c.mu.Unlock()
}

// ReadPump pumps messages from the connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Detach(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		readCtx, readCancel := context.WithTimeout(c.ctx, pongWait)
		_, data, err := c.conn.Read(readCtx)
		readCancel()

		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				logger.Log.Debug("Connection closed by peer", zap.String("recipient", c.recipientID()))
			} else if c.ctx.Err() == nil {
				logger.Log.Warn("Read error", zap.String("recipient", c.recipientID()), zap.Error(err))
				c.hub.stats.Errors.Add(1)
			}
			return
		}

		if !c.rateLimiter.Allow() {
			c.SendError("rate_limited", "Too many messages, please slow down")
			c.hub.stats.Errors.Add(1)
			continue
		}

		c.hub.stats.MessagesReceived.Add(1)

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			logger.Log.Warn("Malformed message", zap.Error(err))
			c.SendError("invalid_json", "Failed to parse message")
			continue
		}

		c.handleMessage(&message)
	}
}

// WritePump pumps messages from the hub to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "server shutdown")
			return

		case message, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "closing")
				return
			}

			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()

			if err != nil {
				logger.Log.Warn("Write error", zap.String("recipient", c.recipientID()), zap.Error(err))
				c.hub.stats.Errors.Add(1)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()

			if err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message *Message) {
	switch message.Type {
	case MessageTypePing, "heartbeat":
		c.handlePing(message)

	case MessageTypeRegister:
		c.handleRegister(message)

	default:
		logger.Log.Debug("Unknown message type",
			zap.String("type", message.Type),
			zap.String("recipient", c.recipientID()))
		c.SendError("unknown_type", fmt.Sprintf("Unknown message type: %s", message.Type))
	}
}

// handleRegister joins this connection to a recipient group. Connections
// that authenticated at upgrade time may only register as themselves.
func (c *Client) handleRegister(message *Message) {
	var payload RegisterPayload
	if err := message.ParsePayload(&payload); err != nil {
		c.SendError("invalid_register", "Failed to parse register payload")
		return
	}

	if payload.RecipientID == "" {
		c.SendError("invalid_register", "recipient_id is required")
		return
	}

	if c.AuthenticatedID != "" && payload.RecipientID != c.AuthenticatedID {
		c.SendError("forbidden", "Cannot register for another recipient")
		return
	}

	sessions := c.hub.Register(c, payload.RecipientID)

	ack := NewMessage(MessageTypeRegistered, RegisteredPayload{
		RecipientID: payload.RecipientID,
		Sessions:    sessions,
	})
	if message.ID != "" {
		ack.ReplyTo = message.ID
	}
	_ = c.Send(ack)
}

func (c *Client) handlePing(message *Message) {
	var ping PingPayload
	if err := message.ParsePayload(&ping); err != nil {
		ping.ClientTime = 0
	}

	serverTime := time.Now().UnixMilli()

	pong := NewMessage(MessageTypePong, PongPayload{
		ClientTime: ping.ClientTime,
		ServerTime: serverTime,
		Latency:    serverTime - ping.ClientTime,
	})
	if message.ID != "" {
		pong.ReplyTo = message.ID
	}

	// Best-effort, the connection may be closing
	_ = c.Send(pong)
}

// Send queues a message for this connection.
func (c *Client) Send(message *Message) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return fmt.Errorf("connection closed")
	}
	c.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return fmt.Errorf("connection shutting down")
	default:
		return fmt.Errorf("send buffer full")
	}
}

// SendError sends an error message to the peer.
func (c *Client) SendError(code, message string) {
	_ = c.Send(NewErrorMessage(code, message))
}

// Close tears down the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	c.cancel()
	c.conn.Close(websocket.StatusNormalClosure, "closing")
}

// IsClosed reports whether the connection has been closed.
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
