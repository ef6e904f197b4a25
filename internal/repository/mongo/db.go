package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI and
// verifies it with a ping against the primary.
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// The initial connect can succeed against an unresponsive server.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}
	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates every index the pipeline relies on. It runs before the
// server accepts traffic because the unique submission index is a
// correctness requirement, not a performance one.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if err := EnsureSubmissionIndexes(ctx, db.Collection(submissionCollectionName)); err != nil {
		return fmt.Errorf("submission indexes: %w", err)
	}
	if err := EnsureMediaIndexes(ctx, db.Collection(mediaCollectionName)); err != nil {
		return fmt.Errorf("media indexes: %w", err)
	}
	if err := EnsureUpvoteIndexes(ctx, db.Collection(upvoteCollectionName)); err != nil {
		return fmt.Errorf("upvote indexes: %w", err)
	}
	return nil
}
