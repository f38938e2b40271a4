package database

import (
	"context"
	"errors"
	"time"

	"github.com/treehole/backend/internal/logger"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// ErrMongoUnavailable is returned when the mongo server cannot be reached
// after all connect retries.
var ErrMongoUnavailable = errors.New("failed to connect to mongodb")

const (
	mongoConnectTimeout = 10 * time.Second
	mongoRetryAttempts  = 3
	mongoRetryInterval  = 5 * time.Second
)

// ConnectMongo dials the document database that backs the notification
// store. Retries a few times so the server can ride out a slow mongo start
// in docker-compose environments.
func ConnectMongo(ctx context.Context, url, database string) (*mongo.Database, error) {
	for attempt := 1; attempt <= mongoRetryAttempts; attempt++ {
		client, err := mongo.Connect(
			options.Client().
				ApplyURI(url).
				SetConnectTimeout(mongoConnectTimeout).
				SetRetryWrites(true).
				SetRetryReads(true),
		)
		if err == nil {
			err = client.Ping(ctx, nil)
			if err == nil {
				logger.Log.Info("MongoDB connected", zap.String("database", database))
				return client.Database(database), nil
			}
			_ = client.Disconnect(ctx)
		}

		logger.Log.Warn("MongoDB connect attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
		time.Sleep(mongoRetryInterval)
	}

	return nil, ErrMongoUnavailable
}
