package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// NotificationKind is the closed set of event types a notification can carry.
type NotificationKind string

const (
	KindPost    NotificationKind = "post"
	KindReply   NotificationKind = "reply"
	KindLike    NotificationKind = "like"
	KindMention NotificationKind = "mention"
	KindCapsule NotificationKind = "capsule"
	KindSystem  NotificationKind = "system"
)

// ValidKind reports whether k is one of the known notification kinds.
func ValidKind(k NotificationKind) bool {
	switch k {
	case KindPost, KindReply, KindLike, KindMention, KindCapsule, KindSystem:
		return true
	}
	return false
}

// Notification is one delivered-or-pending event, stored as a MongoDB
// document. Only the fan-out service creates these; read-state mutation
// happens through the notifications REST API.
type Notification struct {
	ID          bson.ObjectID    `bson:"_id,omitempty" json:"id"`
	RecipientID string           `bson:"recipient_id" json:"recipient_id"`
	Kind        NotificationKind `bson:"kind" json:"kind"`
	Body        string           `bson:"body" json:"body"`
	RelatedID   string           `bson:"related_id,omitempty" json:"related_id,omitempty"`
	SenderID    string           `bson:"sender_id,omitempty" json:"sender_id,omitempty"`
	SenderName  string           `bson:"sender_name,omitempty" json:"sender_name,omitempty"`
	Read        bool             `bson:"read" json:"read"`
	Detail      map[string]any   `bson:"detail,omitempty" json:"detail,omitempty"`
	CreatedAt   time.Time        `bson:"created_at" json:"created_at"`
}

// BroadcastEvent is the payload pushed to every connected client when a
// site-wide event happens. It is never persisted in this shape; clients
// filter themselves out via ExcludeRecipientID.
type BroadcastEvent struct {
	Kind               NotificationKind `json:"kind"`
	Body               string           `json:"body"`
	RelatedID          string           `json:"related_id,omitempty"`
	SenderID           string           `json:"sender_id,omitempty"`
	SenderName         string           `json:"sender_name,omitempty"`
	Detail             map[string]any   `json:"detail,omitempty"`
	ExcludeRecipientID string           `json:"exclude_recipient_id,omitempty"`
}
