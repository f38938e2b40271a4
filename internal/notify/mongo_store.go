package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/treehole/backend/internal/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const notificationCollection = "notifications"

// retentionPeriod bounds how long notification documents live; expiry is
// enforced by a TTL index on created_at.
const retentionPeriod = 90 * 24 * time.Hour

// MongoStore implements Store on a MongoDB collection.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore wraps the notifications collection of the given database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(notificationCollection)}
}

// EnsureIndexes creates the indexes the store depends on: the dedup/list
// compound index and the retention TTL index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "recipient_id", Value: 1},
				{Key: "kind", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "recipient_id", Value: 1},
				{Key: "read", Value: 1},
			},
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retentionPeriod / time.Second)),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create notification indexes: %w", err)
	}
	return nil
}

// dedupFilter matches on the full identity tuple. An empty relatedID must
// match documents without the field, so it is only included when set.
func dedupFilter(recipientID string, kind models.NotificationKind, body, relatedID string, since time.Time) bson.M {
	filter := bson.M{
		"recipient_id": recipientID,
		"kind":         kind,
		"body":         body,
		"created_at":   bson.M{"$gt": since},
	}
	if relatedID != "" {
		filter["related_id"] = relatedID
	} else {
		filter["related_id"] = bson.M{"$exists": false}
	}
	return filter
}

func (s *MongoStore) Exists(ctx context.Context, recipientID string, kind models.NotificationKind, body, relatedID string, since time.Time) (bool, error) {
	err := s.coll.FindOne(ctx, dedupFilter(recipientID, kind, body, relatedID, since)).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *MongoStore) InsertOne(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	res, err := s.coll.InsertOne(ctx, n)
	if err != nil {
		return nil, err
	}
	if oid, ok := res.InsertedID.(bson.ObjectID); ok {
		n.ID = oid
	}
	return n, nil
}

func (s *MongoStore) InsertMany(ctx context.Context, batch []*models.Notification) error {
	if len(batch) == 0 {
		return nil
	}

	now := time.Now().UTC()
	docs := make([]any, len(batch))
	for i, n := range batch {
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		docs[i] = n
	}

	_, err := s.coll.InsertMany(ctx, docs)
	return err
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.Notification, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var n models.Notification
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (s *MongoStore) ListByRecipient(ctx context.Context, recipientID string, opts ListOptions) ([]models.Notification, int64, error) {
	opts = opts.normalized()

	filter := bson.M{"recipient_id": recipientID}
	if opts.UnreadOnly {
		filter["read"] = false
	} else if opts.Kind != "" {
		filter["kind"] = opts.Kind
	}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := s.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((opts.Page-1)*opts.Limit)).
		SetLimit(int64(opts.Limit)))
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	notifications := make([]models.Notification, 0, opts.Limit)
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (s *MongoStore) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{"recipient_id": recipientID, "read": false})
}

func (s *MongoStore) MarkRead(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := s.coll.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"recipient_id": recipientID, "read": false},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) ClearAll(ctx context.Context, recipientID string) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"recipient_id": recipientID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
