package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/treehole/backend/internal/models"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Query construction is covered here; the store itself runs against a real
// MongoDB and is exercised by integration environments.

func TestDedupFilterWithRelatedID(t *testing.T) {
	since := time.Now().UTC()
	filter := dedupFilter("u1", models.KindLike, "liked your post", "post-1", since)

	assert.Equal(t, "u1", filter["recipient_id"])
	assert.Equal(t, models.KindLike, filter["kind"])
	assert.Equal(t, "liked your post", filter["body"])
	assert.Equal(t, "post-1", filter["related_id"])
	assert.Equal(t, bson.M{"$gt": since}, filter["created_at"])
}

func TestDedupFilterWithoutRelatedID(t *testing.T) {
	// Documents inserted without a related id omit the field entirely, so
	// the dedup query has to match on absence, not on empty string.
	filter := dedupFilter("u1", models.KindSystem, "announcement", "", time.Now())

	assert.Equal(t, bson.M{"$exists": false}, filter["related_id"])
}

func TestListOptionsNormalized(t *testing.T) {
	opts := ListOptions{Page: 0, Limit: -5}.normalized()
	assert.Equal(t, 1, opts.Page)
	assert.Equal(t, 10, opts.Limit)

	opts = ListOptions{Page: 3, Limit: 25}.normalized()
	assert.Equal(t, 3, opts.Page)
	assert.Equal(t, 25, opts.Limit)
}
