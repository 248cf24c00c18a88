package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys that have already been handled.
// It is a fast path only; durable uniqueness lives in the database.
type IdempotencyStore interface {
	// MarkProcessed records key with a TTL.
	// Returns true if the key was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether key has been marked
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close releases resources held by the store
	Close() error
}

// DefaultIdempotencyTTL is how long processed webhook keys are remembered
const DefaultIdempotencyTTL = 72 * time.Hour
