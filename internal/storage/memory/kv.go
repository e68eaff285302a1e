// Package memory provides an in-process KeyValueStore used by tests and by
// the redis_disabled degraded mode. TTLs are enforced lazily on read.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rmarinho/garimpo/internal/interfaces"
)

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// KV is an in-memory KeyValueStore. Operations are atomic per-call, matching
// the Redis adapter's semantics closely enough for the queue and cache.
type KV struct {
	mu          sync.Mutex
	strings     map[string]entry
	lists       map[string][]string
	subscribers map[string][]chan []byte
	closed      bool
}

// New creates an empty in-memory store.
func New() *KV {
	return &KV{
		strings:     make(map[string]entry),
		lists:       make(map[string][]string),
		subscribers: make(map[string][]chan []byte),
	}
}

func (k *KV) Get(ctx context.Context, key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.strings[key]
	if !ok {
		return "", interfaces.ErrKeyNotFound
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(k.strings, key)
		return "", interfaces.ErrKeyNotFound
	}
	return e.value, nil
}

func (k *KV) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	k.strings[key] = e
	return nil
}

func (k *KV) Del(ctx context.Context, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, key := range keys {
		delete(k.strings, key)
		delete(k.lists, key)
	}
	return nil
}

func (k *KV) LPush(ctx context.Context, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.lists[key] = append([]string{value}, k.lists[key]...)
	return nil
}

func (k *KV) RPop(ctx context.Context, key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	list := k.lists[key]
	if len(list) == 0 {
		return "", interfaces.ErrKeyNotFound
	}
	value := list[len(list)-1]
	k.lists[key] = list[:len(list)-1]
	return value, nil
}

func (k *KV) LRem(ctx context.Context, key, value string) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	var removed int64
	var kept []string
	for _, v := range k.lists[key] {
		if v == value {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	k.lists[key] = kept
	return removed, nil
}

func (k *KV) LLen(ctx context.Context, key string) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return int64(len(k.lists[key])), nil
}

func (k *KV) Publish(ctx context.Context, channel string, message []byte) error {
	k.mu.Lock()
	subs := make([]chan []byte, len(k.subscribers[channel]))
	copy(subs, k.subscribers[channel])
	k.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- message:
		default: // absent or slow subscribers miss events
		}
	}
	return nil
}

func (k *KV) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	ch := make(chan []byte, 64)
	k.mu.Lock()
	k.subscribers[channel] = append(k.subscribers[channel], ch)
	k.mu.Unlock()

	defer func() {
		k.mu.Lock()
		subs := k.subscribers[channel]
		for i, c := range subs {
			if c == ch {
				k.subscribers[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		k.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			handler(msg)
		}
	}
}

func (k *KV) Ping(ctx context.Context) error {
	return nil
}

func (k *KV) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closed = true
	return nil
}

var _ interfaces.KeyValueStore = (*KV)(nil)
