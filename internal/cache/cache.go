// Package cache provides a read-through TTL cache for ledger lookups.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Kind names the entity family a key belongs to.
type Kind string

// Cached entity kinds.
const (
	KindExpense    Kind = "expense"
	KindUser       Kind = "user"
	KindGroup      Kind = "group"
	KindUserGroups Kind = "user_groups"
)

// Key identifies one cached lookup.
type Key struct {
	Kind Kind
	ID   string
}

func (k Key) String() string {
	return string(k.Kind) + ":" + k.ID
}

// ExpenseKey returns the key for an expense looked up by id.
func ExpenseKey(id string) Key { return Key{Kind: KindExpense, ID: id} }

// UserKey returns the key for a user looked up by id.
func UserKey(id string) Key { return Key{Kind: KindUser, ID: id} }

// GroupKey returns the key for a group looked up by id.
func GroupKey(id string) Key { return Key{Kind: KindGroup, ID: id} }

// UserGroupsKey returns the key for the groups a user belongs to.
func UserGroupsKey(userID string) Key { return Key{Kind: KindUserGroups, ID: userID} }

type entry struct {
	value     any
	expiresAt time.Time
}

type inFlightCall struct {
	done  chan struct{}
	value any
	err   error
	// stale is set when the key is invalidated while the load runs.
	stale bool
}

const maxCleanupInterval = 5 * time.Minute

// Cache memoizes loader results per key, including nil results.
// Concurrent fetches of one key share a single load.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu          sync.RWMutex
	entries     map[Key]entry
	inFlight    map[Key]*inFlightCall
	lastCleanup time.Time
}

// New returns an empty cache whose entries live for ttl.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[Key]entry),
		inFlight: make(map[Key]*inFlightCall),
	}
}

// Fetch returns the cached value for key, calling load on a miss.
// Loader errors are returned to every waiter and never cached.
func Fetch[T any](ctx context.Context, c *Cache, key Key, load func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.fetch(ctx, key, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %s holds %T", key, v)
	}
	return typed, nil
}

func (c *Cache) fetch(ctx context.Context, key Key, load func(context.Context) (any, error)) (any, error) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		return e.value, nil
	}

	c.mu.Lock()
	// Re-check under write lock in case another goroutine refreshed it.
	e, ok = c.entries[key]
	if ok && now.Before(e.expiresAt) {
		c.mu.Unlock()
		return e.value, nil
	}
	if ok {
		delete(c.entries, key)
	}

	if call, waiting := c.inFlight[key]; waiting {
		c.mu.Unlock()
		return wait(ctx, call)
	}

	call := &inFlightCall{done: make(chan struct{})}
	c.inFlight[key] = call
	c.mu.Unlock()

	// Run the load detached from a single caller so one short-lived caller
	// cannot fail all concurrent waiters.
	go c.loadAndBroadcast(context.WithoutCancel(ctx), key, load, call)
	return wait(ctx, call)
}

func (c *Cache) loadAndBroadcast(ctx context.Context, key Key, load func(context.Context) (any, error), call *inFlightCall) {
	value, err := load(ctx)

	loadedAt := c.now()
	c.mu.Lock()
	if err == nil && !call.stale {
		c.entries[key] = entry{value: value, expiresAt: loadedAt.Add(c.ttl)}
		c.cleanupExpiredLocked(loadedAt)
	}
	call.value = value
	call.err = err
	if c.inFlight[key] == call {
		delete(c.inFlight, key)
	}
	close(call.done)
	c.mu.Unlock()
}

func wait(ctx context.Context, call *inFlightCall) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-call.done:
		return call.value, call.err
	}
}

// Invalidate drops key. A load of key already running will not populate the cache.
func (c *Cache) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		delete(c.entries, key)
		if call, ok := c.inFlight[key]; ok {
			call.stale = true
			delete(c.inFlight, key)
		}
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) cleanupExpiredLocked(now time.Time) {
	interval := min(c.ttl, maxCleanupInterval)
	if !c.lastCleanup.IsZero() && now.Sub(c.lastCleanup) < interval {
		return
	}
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.lastCleanup = now
}
