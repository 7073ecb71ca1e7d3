// Package cache provides a small keyed cache used for values that are
// expensive to recompute per request, such as the current site-wide sale.
package cache

import (
	"context"
	"time"
)

// Cache is a get/set store with TTL semantics. Get returns ("", nil) on a
// miss so callers can treat absence as a recomputation signal.
type Cache interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GenerateKey(operation, key string) string
}
