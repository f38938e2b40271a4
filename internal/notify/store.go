package notify

import (
	"context"
	"errors"
	"time"

	"github.com/treehole/backend/internal/models"
)

// ErrNotFound is returned by Get when no notification has the given id.
var ErrNotFound = errors.New("notification not found")

// Store is the durable, queryable-by-recipient record of notification
// events. Writes are append-only from the fan-out side; read-state
// mutation belongs to the consumer API.
type Store interface {
	// Exists reports whether a notification with the identical
	// (recipient, kind, body, relatedID) tuple was created after since.
	// This backs the dedup window.
	Exists(ctx context.Context, recipientID string, kind models.NotificationKind, body, relatedID string, since time.Time) (bool, error)

	// InsertOne appends a single notification and returns it with its id
	// and creation time filled in.
	InsertOne(ctx context.Context, n *models.Notification) (*models.Notification, error)

	// InsertMany appends a batch of notifications (broadcast fan-out).
	InsertMany(ctx context.Context, batch []*models.Notification) error

	// Get fetches one notification by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Notification, error)

	// ListByRecipient pages through a recipient's notifications, newest
	// first, and returns the total count for the applied filter.
	ListByRecipient(ctx context.Context, recipientID string, opts ListOptions) ([]models.Notification, int64, error)

	// CountUnread returns the recipient's unread badge count.
	CountUnread(ctx context.Context, recipientID string) (int64, error)

	// MarkRead flips one notification to read.
	MarkRead(ctx context.Context, id string) error

	// MarkAllRead flips every unread notification for a recipient and
	// returns how many were updated.
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)

	// ClearAll deletes every notification for a recipient and returns
	// how many were removed.
	ClearAll(ctx context.Context, recipientID string) (int64, error)
}

// ListOptions filters and pages ListByRecipient. Kind and UnreadOnly are
// mutually exclusive in practice (the API's type=unread maps to UnreadOnly).
type ListOptions struct {
	Page       int
	Limit      int
	Kind       models.NotificationKind
	UnreadOnly bool
}

func (o ListOptions) normalized() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = 10
	}
	return o
}
