package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates concurrent ingestion workers so that no two
// processes import the same project shard at once. Optional: when absent,
// the worker pool's own in-process bounds are the only safeguard.
type DistributedLock interface {
	// Acquire attempts to take a named lock with the given TTL, returning
	// whether it was acquired.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	// Release releases a named lock if held by this instance.
	Release(ctx context.Context, name string) error
	// Ping checks whether the lock backend is reachable.
	Ping(ctx context.Context) error
}
