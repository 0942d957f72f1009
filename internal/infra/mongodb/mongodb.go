package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	connectTimeout  = 10 * time.Second
	maxPoolSize     = 25
	minPoolSize     = 2
	maxConnIdleTime = 5 * time.Minute
)

// NewMongo connects to the server behind url and returns the named database.
func NewMongo(ctx context.Context, url string, database string) (*mongo.Database, error) {
	client, err := mongo.Connect(
		options.Client().
			ApplyURI(url).
			SetConnectTimeout(connectTimeout).
			SetMaxPoolSize(maxPoolSize).
			SetMinPoolSize(minPoolSize).
			SetMaxConnIdleTime(maxConnIdleTime).
			SetRetryWrites(true).
			SetRetryReads(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return client.Database(database), nil
}

// Healthcheck pings the server that owns db.
func Healthcheck(db *mongo.Database) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := db.Client().Ping(ctx, nil); err != nil {
			return fmt.Errorf("mongodb healthcheck failed: %w", err)
		}
		return nil
	}
}
