package websocket

import (
	"encoding/json"
	"time"
)

// Message types for the real-time notification channel.
const (
	MessageTypeSystem = "system"
	MessageTypePing   = "ping"
	MessageTypePong   = "pong"
	MessageTypeError  = "error"

	// register: client declares which recipient identity this connection
	// represents. Until then the connection only receives broadcasts.
	MessageTypeRegister   = "register"
	MessageTypeRegistered = "registered"

	// notification: server -> one recipient group, full notification record.
	MessageTypeNotification = "notification"

	// notification_broadcast: server -> every connection; clients filter
	// themselves out via exclude_recipient_id in the payload.
	MessageTypeNotificationBroadcast = "notification_broadcast"
)

// Message is the envelope for everything on the wire.
type Message struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	ID        string    `json:"id,omitempty"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(msgType string, payload any) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewErrorMessage creates an error message.
func NewErrorMessage(code string, message string) *Message {
	return &Message{
		Type: MessageTypeError,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	}
}

// ParsePayload unmarshals the payload into a concrete type. Payloads arrive
// as map[string]any after JSON decoding, so round-trip through JSON to get
// the typed struct.
func (m *Message) ParsePayload(target any) error {
	if m.Payload == nil {
		return nil
	}
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// ErrorPayload carries a machine-readable code plus a human message.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RegisterPayload is sent by the client to join a recipient group. Token is
// optional; when the connection was authenticated at upgrade time the
// recipient id must match the token subject.
type RegisterPayload struct {
	RecipientID string `json:"recipient_id"`
}

// RegisteredPayload acknowledges a successful register.
type RegisteredPayload struct {
	RecipientID string `json:"recipient_id"`
	Sessions    int    `json:"sessions"`
}

// PingPayload and PongPayload implement the keepalive round trip.
type PingPayload struct {
	ClientTime int64 `json:"client_time"`
}

type PongPayload struct {
	ClientTime int64 `json:"client_time"`
	ServerTime int64 `json:"server_time"`
	Latency    int64 `json:"latency_ms"`
}

// SystemPayload carries server lifecycle events (connected, shutdown).
type SystemPayload struct {
	Event   string         `json:"event"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}
