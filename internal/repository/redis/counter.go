// Package redis keeps the best-effort per-bounty submission counter in Redis
// when the deployment has one, so the hot submission path never writes to the
// bounty catalog documents.
package redis

import (
	"context"
	"fmt"

	"learnhub/bounty-pipeline/internal/repository"

	"github.com/redis/go-redis/v9"
)

// SubmissionCounter implements repository.SubmissionCounter with INCR.
type SubmissionCounter struct {
	client redis.Cmdable
	prefix string
}

var _ repository.SubmissionCounter = (*SubmissionCounter)(nil)

// NewClient opens a client for the counter store.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewSubmissionCounter wraps any Cmdable (client, cluster client, pipeline).
func NewSubmissionCounter(client redis.Cmdable) *SubmissionCounter {
	return &SubmissionCounter{client: client, prefix: "bounty"}
}

// Key returns the counter key for a bounty.
func (c *SubmissionCounter) Key(bountyID string) string {
	return fmt.Sprintf("%s:%s:submissions", c.prefix, bountyID)
}

// IncrementSubmissionCount bumps the counter for bountyID.
func (c *SubmissionCounter) IncrementSubmissionCount(ctx context.Context, bountyID string) error {
	if err := c.client.Incr(ctx, c.Key(bountyID)).Err(); err != nil {
		return fmt.Errorf("redis incr %s: %w", bountyID, err)
	}
	return nil
}
