// Package cache is the client-side query cache: keyed, versioned copies of remote
// views served stale-while-revalidate, with hierarchical invalidation.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	defaultStale        = 2 * time.Minute
	defaultFetchTimeout = 10 * time.Second
)

type entry struct {
	value       any
	hasValue    bool
	fetchedAt   time.Time
	staleAfter  time.Duration
	invalidated bool
	refreshing  bool
	fetching    int // fetches that have read, or are reading, the remote store
	version     uint64
	err         error
}

// Cache holds the last known value of each key. All entry state is guarded by mu,
// which is never held across a fetch.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	flights singleflight.Group
	bg      sync.WaitGroup

	logger       zerolog.Logger
	metrics      *Metrics
	now          func() time.Time
	defaultStale time.Duration
	fetchTimeout time.Duration
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

func WithDefaultStale(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.defaultStale = d
		}
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

func New(logger zerolog.Logger, opts ...Option) *Cache {
	c := &Cache{
		entries:      make(map[Key]*entry),
		logger:       logger.With().Str("component", "cache").Logger(),
		now:          time.Now,
		defaultStale: defaultStale,
		fetchTimeout: defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query describes how to load one key.
type Query[T any] struct {
	Key   Key
	Stale time.Duration
	Fetch func(ctx context.Context) (T, error)
	// Clone copies a value so callers never share memory with the cache.
	Clone func(T) T
}

func (q Query[T]) clone(v T) T {
	if q.Clone == nil {
		return v
	}
	return q.Clone(v)
}

// Get returns the value for q.Key.
//
// A fresh entry is returned as is. An entry past its staleness window is returned
// immediately while a background refresh runs. A missing or invalidated entry is
// fetched before returning; concurrent callers of the same key share that fetch.
// Cancelling ctx abandons the wait, not the fetch.
//
// When a fetch fails, Get returns the last good value (if one exists) together with
// the error.
func Get[T any](ctx context.Context, c *Cache, q Query[T]) (T, error) {
	stale := q.Stale
	if stale <= 0 {
		stale = c.defaultStale
	}
	fetch := func(ctx context.Context) (any, error) { return q.Fetch(ctx) }

	c.mu.Lock()
	e, ok := c.entries[q.Key]
	if ok && e.hasValue && !e.invalidated {
		if v, typed := e.value.(T); typed {
			if c.now().Sub(e.fetchedAt) < e.staleAfter {
				c.mu.Unlock()
				c.metrics.lookup(q.Key.Kind, "hit")
				return q.clone(v), nil
			}
			if !e.refreshing {
				e.refreshing = true
				c.refresh(ctx, q.Key, e.version, stale, fetch)
			}
			c.mu.Unlock()
			c.metrics.lookup(q.Key.Kind, "stale")
			return q.clone(v), nil
		}
	}
	if !ok {
		e = &entry{}
		c.entries[q.Key] = e
	}
	version := e.version
	c.mu.Unlock()
	c.metrics.lookup(q.Key.Kind, "miss")

	var out T
	select {
	case <-ctx.Done():
		return out, ctx.Err()
	case r := <-c.flight(ctx, q.Key, version, stale, fetch):
		if v, typed := r.Val.(T); typed {
			out = q.clone(v)
		}
		return out, r.Err
	}
}

// refresh starts a background fetch. Callers hold c.mu.
func (c *Cache) refresh(ctx context.Context, key Key, version uint64, stale time.Duration, fetch func(context.Context) (any, error)) {
	ch := c.flight(ctx, key, version, stale, fetch)
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		<-ch
	}()
}

// flight runs fetch at most once per key and version. The fetch is detached from
// the caller's cancellation.
func (c *Cache) flight(ctx context.Context, key Key, version uint64, stale time.Duration, fetch func(context.Context) (any, error)) <-chan singleflight.Result {
	name := fmt.Sprintf("%s#%d", key, version)
	detached := context.WithoutCancel(ctx)
	return c.flights.DoChan(name, func() (any, error) {
		c.mu.Lock()
		e := c.entries[key]
		if e != nil {
			e.fetching++
		}
		c.mu.Unlock()

		fctx, cancel := context.WithTimeout(detached, c.fetchTimeout)
		defer cancel()
		v, err := fetch(fctx)
		c.metrics.fetch(key.Kind, err)
		return c.store(key, e, version, stale, v, err)
	})
}

// store records a completed fetch of e that started when the entry was at version.
// If the entry was written or invalidated since, the newer state wins.
func (c *Cache) store(key Key, e *entry, version uint64, stale time.Duration, v any, err error) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e != nil {
		e.fetching--
		e.refreshing = false
	}
	// a removed entry is not resurrected, nor is one replaced after a Remove
	ok := e != nil && c.entries[key] == e

	if err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("cache fetch failed")
		if !ok {
			return nil, err
		}
		if e.hasValue {
			if e.version == version {
				e.err = err
				// keep the last good value but force the next read to retry
				e.fetchedAt = time.Time{}
			}
			return e.value, err
		}
		if e.fetching == 0 {
			delete(c.entries, key)
		}
		return nil, err
	}

	if !ok {
		return v, nil
	}
	if e.version != version {
		c.logger.Debug().Str("key", key.String()).Uint64("started", version).Uint64("current", e.version).Msg("discarding superseded fetch")
		if e.hasValue && !e.invalidated {
			return e.value, nil
		}
		return v, nil
	}

	e.value = v
	e.hasValue = true
	e.fetchedAt = c.now()
	e.staleAfter = stale
	e.invalidated = false
	e.err = nil
	e.version++
	return v, nil
}

// Invalidate marks every cached key contained by any of keys as untrustworthy, so
// the next read refetches it. It returns the number of entries affected.
//
// An invalidated entry with no fetch in flight is left alone, so repeating a call
// is a no-op. One that is being refetched gets a new version: the running fetch may
// have read the store before the change and must not be kept. Search results are
// dropped rather than marked, since every distinct query string has its own key.
func (c *Cache) Invalidate(keys ...Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts := make(map[Kind]int)
	n := 0
	for k, e := range c.entries {
		if e.invalidated && e.fetching == 0 {
			continue
		}
		for _, parent := range keys {
			if !parent.Contains(k) {
				continue
			}
			if k.Filter == FilterSearch {
				delete(c.entries, k)
			} else {
				e.invalidated = true
				e.version++
			}
			counts[k.Kind]++
			n++
			break
		}
	}
	for kind, cnt := range counts {
		c.metrics.invalidated(kind, cnt)
	}
	if n > 0 {
		c.logger.Debug().Int("entries", n).Msg("cache invalidated")
	}
	return n
}

// SetOptimistic writes value under key as if it had just been fetched. Any fetch
// that started before this call cannot overwrite it. The cache takes ownership of
// value.
func (c *Cache) SetOptimistic(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	e.value = value
	e.hasValue = true
	e.fetchedAt = c.now()
	if e.staleAfter == 0 {
		e.staleAfter = c.defaultStale
	}
	e.invalidated = false
	e.err = nil
	e.version++
}

// Patch rewrites a cached value of type T in place of the old one. Freshness and the
// invalidated flag are unchanged. It reports whether an entry was patched.
func Patch[T any](c *Cache, key Key, fn func(T) T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !e.hasValue {
		return false
	}
	v, typed := e.value.(T)
	if !typed {
		return false
	}
	e.value = fn(v)
	e.version++
	return true
}

// Remove drops every entry contained by any of keys.
func (c *Cache) Remove(keys ...Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k := range c.entries {
		for _, parent := range keys {
			if parent.Contains(k) {
				delete(c.entries, k)
				n++
				break
			}
		}
	}
	return n
}

// Peek returns the last known value without fetching. The value must be treated as
// read-only.
func Peek[T any](c *Cache, key Key) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key]
	if !ok || !e.hasValue {
		return zero, false
	}
	v, typed := e.value.(T)
	return v, typed
}

type EntryState struct {
	HasValue    bool
	Invalidated bool
	Stale       bool
	Version     uint64
	FetchedAt   time.Time
	Err         error
}

func (c *Cache) State(key Key) (EntryState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return EntryState{}, false
	}
	return EntryState{
		HasValue:    e.hasValue,
		Invalidated: e.invalidated,
		Stale:       e.invalidated || c.now().Sub(e.fetchedAt) >= e.staleAfter,
		Version:     e.version,
		FetchedAt:   e.fetchedAt,
		Err:         e.err,
	}, true
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Wait blocks until background refreshes started so far have finished.
func (c *Cache) Wait() {
	c.bg.Wait()
}
