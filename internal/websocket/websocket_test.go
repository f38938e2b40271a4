package websocket

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/treehole/backend/internal/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize("error", "")
	os.Exit(m.Run())
}

// newTestClient builds a client without a network connection. Tests drive
// the hub's internals synchronously, so the conn is never touched.
func newTestClient(hub *Hub, authenticatedID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	limit := hub.RateLimit()
	return &Client{
		hub:             hub,
		AuthenticatedID: authenticatedID,
		send:            make(chan []byte, sendBufferSize),
		ConnectedAt:     time.Now(),
		rateLimiter:     NewRateLimiter(limit.MaxMessagesPerSecond, limit.BurstSize),
		ctx:             ctx,
		cancel:          cancel,
	}
}

func receiveMessage(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return &msg
	default:
		t.Fatal("expected a queued message")
		return nil
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()
	assert.NotNil(t, hub)
	assert.NotNil(t, hub.groups)
	assert.NotNil(t, hub.allClients)
	assert.NotNil(t, hub.attach)
	assert.NotNil(t, hub.detach)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.unicast)
	assert.NotNil(t, hub.stats)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(5, 10)

	for i := 0; i < 10; i++ {
		assert.True(t, rl.Allow(), "request %d should be allowed", i+1)
	}
	assert.False(t, rl.Allow(), "request 11 should be denied")

	time.Sleep(300 * time.Millisecond)
	assert.True(t, rl.Allow(), "request after refill should be allowed")
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage(MessageTypeNotification, map[string]string{"body": "hi"})

	assert.Equal(t, MessageTypeNotification, msg.Type)
	assert.NotNil(t, msg.Payload)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage("test_error", "Something went wrong")

	assert.Equal(t, MessageTypeError, msg.Type)
	payload, ok := msg.Payload.(ErrorPayload)
	assert.True(t, ok)
	assert.Equal(t, "test_error", payload.Code)
	assert.Equal(t, "Something went wrong", payload.Message)
}

func TestMessageParsePayload(t *testing.T) {
	msg := NewMessage(MessageTypeRegister, map[string]interface{}{
		"recipient_id": "user-123",
	})

	var reg RegisterPayload
	err := msg.ParsePayload(&reg)
	assert.NoError(t, err)
	assert.Equal(t, "user-123", reg.RecipientID)
}

func TestMessageJSONSerialization(t *testing.T) {
	msg := NewMessage(MessageTypeRegistered, RegisteredPayload{
		RecipientID: "user-123",
		Sessions:    2,
	})
	msg.ID = "msg-id"

	data, err := json.Marshal(msg)
	assert.NoError(t, err)

	var parsed Message
	err = json.Unmarshal(data, &parsed)
	assert.NoError(t, err)

	assert.Equal(t, MessageTypeRegistered, parsed.Type)
	assert.Equal(t, "msg-id", parsed.ID)
	assert.NotNil(t, parsed.Payload)
}

func TestHubRegister(t *testing.T) {
	hub := NewHub()
	c1 := newTestClient(hub, "")
	c2 := newTestClient(hub, "")
	hub.attachClient(c1)
	hub.attachClient(c2)

	assert.Equal(t, 1, hub.Register(c1, "user-1"))
	assert.Equal(t, 2, hub.Register(c2, "user-1"))

	assert.True(t, hub.IsRecipientOnline("user-1"))
	assert.Equal(t, 2, hub.SessionCount("user-1"))
	assert.Equal(t, []string{"user-1"}, hub.OnlineRecipients())
}

func TestHubReregisterReplacesMembership(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "")
	hub.attachClient(c)

	hub.Register(c, "user-1")
	hub.Register(c, "user-2")

	assert.False(t, hub.IsRecipientOnline("user-1"))
	assert.True(t, hub.IsRecipientOnline("user-2"))
	assert.Equal(t, 1, hub.SessionCount("user-2"))
}

func TestHubSendToRecipient(t *testing.T) {
	hub := NewHub()
	member := newTestClient(hub, "")
	other := newTestClient(hub, "")
	unregistered := newTestClient(hub, "")
	hub.attachClient(member)
	hub.attachClient(other)
	hub.attachClient(unregistered)

	hub.Register(member, "user-1")
	hub.Register(other, "user-2")

	hub.sendToRecipient("user-1", NewMessage(MessageTypeNotification, map[string]string{"body": "hi"}))

	msg := receiveMessage(t, member)
	assert.Equal(t, MessageTypeNotification, msg.Type)

	assert.Empty(t, other.send)
	assert.Empty(t, unregistered.send)
}

func TestHubSendToOfflineRecipientIsNoop(t *testing.T) {
	hub := NewHub()
	hub.sendToRecipient("nobody", NewMessage(MessageTypeNotification, nil))
	assert.Equal(t, int64(0), hub.Snapshot().MessagesSent)
}

func TestHubBroadcastReachesUnregistered(t *testing.T) {
	hub := NewHub()
	registered := newTestClient(hub, "")
	anonymous := newTestClient(hub, "")
	hub.attachClient(registered)
	hub.attachClient(anonymous)
	hub.Register(registered, "user-1")

	hub.broadcastMessage(NewMessage(MessageTypeNotificationBroadcast, map[string]string{"body": "announcement"}))

	assert.Equal(t, MessageTypeNotificationBroadcast, receiveMessage(t, registered).Type)
	assert.Equal(t, MessageTypeNotificationBroadcast, receiveMessage(t, anonymous).Type)
}

func TestHubDetachDropsMembership(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "")
	hub.attachClient(c)
	hub.Register(c, "user-1")

	hub.detachClient(c)

	assert.False(t, hub.IsRecipientOnline("user-1"))
	_, open := <-c.send
	assert.False(t, open, "send channel should be closed")

	// Detaching twice is safe.
	hub.detachClient(c)
}

func TestHandleRegister(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "")
	hub.attachClient(c)

	msg := NewMessage(MessageTypeRegister, map[string]interface{}{"recipient_id": "user-1"})
	msg.ID = "req-1"
	c.handleMessage(msg)

	ack := receiveMessage(t, c)
	assert.Equal(t, MessageTypeRegistered, ack.Type)
	assert.Equal(t, "req-1", ack.ReplyTo)

	var payload RegisteredPayload
	require.NoError(t, ack.ParsePayload(&payload))
	assert.Equal(t, "user-1", payload.RecipientID)
	assert.Equal(t, 1, payload.Sessions)
	assert.True(t, hub.IsRecipientOnline("user-1"))
}

func TestHandleRegisterRequiresRecipientID(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "")
	hub.attachClient(c)

	c.handleMessage(NewMessage(MessageTypeRegister, map[string]interface{}{}))

	errMsg := receiveMessage(t, c)
	assert.Equal(t, MessageTypeError, errMsg.Type)

	var payload ErrorPayload
	require.NoError(t, errMsg.ParsePayload(&payload))
	assert.Equal(t, "invalid_register", payload.Code)
}

func TestHandleRegisterAuthenticatedMismatch(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "user-1")
	hub.attachClient(c)

	c.handleMessage(NewMessage(MessageTypeRegister, map[string]interface{}{"recipient_id": "user-2"}))

	errMsg := receiveMessage(t, c)
	assert.Equal(t, MessageTypeError, errMsg.Type)

	var payload ErrorPayload
	require.NoError(t, errMsg.ParsePayload(&payload))
	assert.Equal(t, "forbidden", payload.Code)
	assert.False(t, hub.IsRecipientOnline("user-2"))
}

func TestHandlePing(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "")
	hub.attachClient(c)

	msg := NewMessage(MessageTypePing, map[string]interface{}{
		"client_time": float64(1234567890),
	})
	msg.ID = "ping-1"
	c.handleMessage(msg)

	pong := receiveMessage(t, c)
	assert.Equal(t, MessageTypePong, pong.Type)
	assert.Equal(t, "ping-1", pong.ReplyTo)

	var payload PongPayload
	require.NoError(t, pong.ParsePayload(&payload))
	assert.Equal(t, int64(1234567890), payload.ClientTime)
	assert.NotZero(t, payload.ServerTime)
}

func TestHandleUnknownType(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "")
	hub.attachClient(c)

	c.handleMessage(NewMessage("bogus", nil))

	errMsg := receiveMessage(t, c)
	assert.Equal(t, MessageTypeError, errMsg.Type)
}

func TestHubSnapshot(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "")
	hub.attachClient(c)
	hub.Register(c, "user-1")
	hub.sendToRecipient("user-1", NewMessage(MessageTypeNotification, nil))

	snap := hub.Snapshot()
	assert.Equal(t, int64(1), snap.TotalConnections)
	assert.Equal(t, int64(1), snap.ActiveConnections)
	assert.Equal(t, int64(1), snap.MessagesSent)
	assert.NotEmpty(t, snap.String())
}
