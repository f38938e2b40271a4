// Package websocket is the real-time delivery channel for notifications.
// Connections go through a small lifecycle: accepted (addressable only by
// broadcast), then registered to a recipient group after an explicit
// register message, then dropped on disconnect. Group membership is
// process-local state and is rebuilt by clients on every reconnect.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/treehole/backend/internal/logger"
	"github.com/treehole/backend/internal/metrics"
	"go.uber.org/zap"
)

// Hub maintains the set of active connections and routes messages to them.
type Hub struct {
	// groups holds registered connections keyed by recipient id.
	groups map[string]map[*Client]struct{}

	// allClients holds every accepted connection, registered or not.
	allClients map[*Client]struct{}

	attach    chan *Client
	detach    chan *Client
	broadcast chan *Message
	unicast   chan *unicastMessage

	mu sync.RWMutex

	stats *Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	rateLimitConfig RateLimitConfig
}

// Stats tracks connection and delivery counters.
type Stats struct {
	TotalConnections   atomic.Int64
	ActiveConnections  atomic.Int64
	MessagesReceived   atomic.Int64
	MessagesSent       atomic.Int64
	Errors             atomic.Int64
	ConnectionsDropped atomic.Int64
}

// RateLimitConfig bounds inbound message rates per connection.
type RateLimitConfig struct {
	MaxMessagesPerSecond int
	BurstSize            int
}

// DefaultRateLimitConfig returns sensible defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxMessagesPerSecond: 10,
		BurstSize:            20,
	}
}

type unicastMessage struct {
	recipientID string
	message     *Message
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		groups:          make(map[string]map[*Client]struct{}),
		allClients:      make(map[*Client]struct{}),
		attach:          make(chan *Client, 256),
		detach:          make(chan *Client, 256),
		broadcast:       make(chan *Message, 256),
		unicast:         make(chan *unicastMessage, 256),
		stats:           &Stats{},
		ctx:             ctx,
		cancel:          cancel,
		rateLimitConfig: DefaultRateLimitConfig(),
	}
}

// Run starts the hub's main event loop.
func (h *Hub) Run() {
	logger.Log.Info("WebSocket hub starting")

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case client := <-h.attach:
			h.attachClient(client)

		case client := <-h.detach:
			h.detachClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case u := <-h.unicast:
			h.sendToRecipient(u.recipientID, u.message)
		}
	}
}

// Attach queues a newly accepted connection.
func (h *Hub) Attach(client *Client) {
	select {
	case h.attach <- client:
	case <-h.ctx.Done():
	}
}

// Detach queues removal of a connection.
func (h *Hub) Detach(client *Client) {
	select {
	case h.detach <- client:
	case <-h.ctx.Done():
	}
}

// Broadcast sends a message to every connection, registered or not.
func (h *Hub) Broadcast(message *Message) {
	select {
	case h.broadcast <- message:
	case <-h.ctx.Done():
	}
}

// SendToRecipient sends a message to every registered connection of one
// recipient. Delivery is at-most-once with no acknowledgment.
func (h *Hub) SendToRecipient(recipientID string, message *Message) {
	select {
	case h.unicast <- &unicastMessage{recipientID: recipientID, message: message}:
	case <-h.ctx.Done():
	}
}

// Register joins a connection to a recipient group. A connection belongs to
// at most one group; re-registration replaces the prior membership. Returns
// the number of sessions now registered for the recipient.
func (h *Hub) Register(client *Client, recipientID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev := client.recipientID(); prev != "" && prev != recipientID {
		h.leaveGroupLocked(client, prev)
	}

	if h.groups[recipientID] == nil {
		h.groups[recipientID] = make(map[*Client]struct{})
	}
	h.groups[recipientID][client] = struct{}{}
	client.setRecipientID(recipientID)

	sessions := len(h.groups[recipientID])
	logger.Log.Info("Connection registered",
		zap.String("recipient", recipientID),
		zap.Int("sessions", sessions))
	return sessions
}

func (h *Hub) attachClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.allClients[client] = struct{}{}

	h.stats.TotalConnections.Add(1)
	h.stats.ActiveConnections.Add(1)
	metrics.Get().WSActiveConnections.Inc()

	logger.Log.Info("Connection accepted",
		zap.String("remote", client.RemoteAddr),
		zap.Int64("active", h.stats.ActiveConnections.Load()))
}

func (h *Hub) detachClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.allClients[client]; !ok {
		return
	}
	delete(h.allClients, client)

	if recipient := client.recipientID(); recipient != "" {
		h.leaveGroupLocked(client, recipient)
	}

	close(client.send)

	h.stats.ActiveConnections.Add(-1)
	metrics.Get().WSActiveConnections.Dec()

	logger.Log.Info("Connection closed",
		zap.String("recipient", client.recipientID()),
		zap.Int64("active", h.stats.ActiveConnections.Load()))
}

func (h *Hub) leaveGroupLocked(client *Client, recipientID string) {
	if group, ok := h.groups[recipientID]; ok {
		delete(group, client)
		if len(group) == 0 {
			delete(h.groups, recipientID)
		}
	}
}

func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		logger.Log.Error("Failed to marshal broadcast message", zap.Error(err))
		h.stats.Errors.Add(1)
		return
	}

	for client := range h.allClients {
		h.enqueue(client, data)
	}
}

func (h *Hub) sendToRecipient(recipientID string, message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	group, ok := h.groups[recipientID]
	if !ok || len(group) == 0 {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		logger.Log.Error("Failed to marshal message", zap.Error(err))
		h.stats.Errors.Add(1)
		return
	}

	for client := range group {
		h.enqueue(client, data)
	}
}

// enqueue delivers data to one client buffer. A full buffer drops the
// connection rather than blocking the hub loop.
func (h *Hub) enqueue(client *Client, data []byte) {
	select {
	case client.send <- data:
		h.stats.MessagesSent.Add(1)
	default:
		h.stats.ConnectionsDropped.Add(1)
		go func(c *Client) {
			h.Detach(c)
		}(client)
	}
}

// IsRecipientOnline reports whether a recipient has registered connections.
func (h *Hub) IsRecipientOnline(recipientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	group, ok := h.groups[recipientID]
	return ok && len(group) > 0
}

// SessionCount returns the number of registered connections for a recipient.
func (h *Hub) SessionCount(recipientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[recipientID])
}

// OnlineRecipients returns the ids of all recipients with registered
// connections.
func (h *Hub) OnlineRecipients() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.groups))
	for id := range h.groups {
		ids = append(ids, id)
	}
	return ids
}

// RateLimit returns the per-connection rate limit configuration.
func (h *Hub) RateLimit() RateLimitConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rateLimitConfig
}

// SetRateLimit updates the per-connection rate limit configuration.
func (h *Hub) SetRateLimit(config RateLimitConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rateLimitConfig = config
}

// Snapshot returns current hub statistics.
func (h *Hub) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TotalConnections:   h.stats.TotalConnections.Load(),
		ActiveConnections:  h.stats.ActiveConnections.Load(),
		MessagesReceived:   h.stats.MessagesReceived.Load(),
		MessagesSent:       h.stats.MessagesSent.Load(),
		Errors:             h.stats.Errors.Load(),
		ConnectionsDropped: h.stats.ConnectionsDropped.Load(),
	}
}

// StatsSnapshot is a point-in-time copy of hub statistics.
type StatsSnapshot struct {
	TotalConnections   int64 `json:"total_connections"`
	ActiveConnections  int64 `json:"active_connections"`
	MessagesReceived   int64 `json:"messages_received"`
	MessagesSent       int64 `json:"messages_sent"`
	Errors             int64 `json:"errors"`
	ConnectionsDropped int64 `json:"connections_dropped"`
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"connections=%d/%d messages=rx:%d/tx:%d errors=%d dropped=%d",
		s.ActiveConnections, s.TotalConnections,
		s.MessagesReceived, s.MessagesSent,
		s.Errors, s.ConnectionsDropped,
	)
}

// Shutdown stops the hub and closes all connections.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log.Info("WebSocket hub shutdown complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	shutdownMsg := NewMessage(MessageTypeSystem, SystemPayload{Event: "server_shutdown"})
	data, _ := json.Marshal(shutdownMsg)

	for client := range h.allClients {
		select {
		case client.send <- data:
		default:
		}
		close(client.send)
	}

	count := len(h.allClients)
	h.groups = make(map[string]map[*Client]struct{})
	h.allClients = make(map[*Client]struct{})
	metrics.Get().WSActiveConnections.Set(0)

	logger.Log.Info("Closed connections during shutdown", zap.Int("count", count))
}
