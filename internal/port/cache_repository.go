package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// SetIdempotency claims key, returns false if it is already claimed
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency drops a claim so the request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error
}

type LockRepository interface {
	// AcquireLock takes a named lock for ttl. The returned token must be
	// passed to ReleaseLock; ok is false when someone else holds the lock.
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)

	// ReleaseLock drops the lock only if it is still held under token.
	ReleaseLock(ctx context.Context, name, token string) error
}
