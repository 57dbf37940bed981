package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache: key not found")

// Service is the read-cache surface used by the router for ticker and
// order-book lookups. Entries expire by TTL only; there is no explicit
// invalidation.
type Service interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Key builds the cache key for a (symbol, queryType) pair.
func Key(queryType, symbol string) string {
	return "md:" + queryType + ":" + symbol
}
