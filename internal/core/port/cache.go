package port

import (
	"context"
	"time"
)

// EntityCache stores JSON snapshots of downstream entities so degraded reads can be served.
type EntityCache interface {
	// Get decodes the cached value into dest and reports whether it was present.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
