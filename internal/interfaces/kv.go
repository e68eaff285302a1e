package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when a key is absent from the key/value store.
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore is the narrow contract the queue, cache and event channel
// need from the key/value backend: atomic list ops, TTL'd strings and
// fire-and-forget pub/sub. The Redis adapter is the production
// implementation; the memory adapter backs tests and degraded mode.
type KeyValueStore interface {
	// Get returns the value for key or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)

	// SetEx stores value under key with a TTL. A zero TTL means no expiry.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error

	// Del removes keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// LPush prepends a value to the list at key.
	LPush(ctx context.Context, key, value string) error

	// RPop removes and returns the tail of the list at key, or
	// ErrKeyNotFound when the list is empty.
	RPop(ctx context.Context, key string) (string, error)

	// LRem removes all occurrences of value from the list at key and
	// returns the number removed.
	LRem(ctx context.Context, key, value string) (int64, error)

	// LLen returns the length of the list at key.
	LLen(ctx context.Context, key string) (int64, error)

	// Publish sends a message on a channel. No delivery guarantee.
	Publish(ctx context.Context, channel string, message []byte) error

	// Subscribe delivers channel messages to handler until ctx is done.
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error
}
