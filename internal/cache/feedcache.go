package cache

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"feedhub/internal/domain"

	"golang.org/x/sync/singleflight"
)

// Loader produces the value of a cache key on a miss.
type Loader func(ctx context.Context) (*domain.RawFeed, error)

// TTLPolicy picks the expiry for the next cached value.
type TTLPolicy func() time.Duration

// ProductionTTLs spreads expiries so that keys cached together do not
// expire together.
var ProductionTTLs = []time.Duration{20 * time.Minute, 60 * time.Minute, 180 * time.Minute}

// DevelopmentTTL is the fixed expiry used outside production.
const DevelopmentTTL = 2 * time.Minute

// RandomTTL picks one of choices uniformly on every call.
func RandomTTL(choices ...time.Duration) TTLPolicy {
	if len(choices) == 0 {
		return FixedTTL(DevelopmentTTL)
	}
	return func() time.Duration {
		return choices[rand.IntN(len(choices))]
	}
}

// FixedTTL always returns d.
func FixedTTL(d time.Duration) TTLPolicy {
	return func() time.Duration { return d }
}

// PolicyFor returns the TTL policy of an environment.
func PolicyFor(environment string) TTLPolicy {
	if environment == "production" {
		return RandomTTL(ProductionTTLs...)
	}
	return FixedTTL(DevelopmentTTL)
}

type entry struct {
	value     *domain.RawFeed
	expiresAt time.Time
}

// FeedCache is a process-wide TTL cache of parsed feeds keyed by source URL.
// Concurrent misses on the same key share a single loader call; distinct
// keys load in parallel. Entries are replaced on expiry and never deleted.
type FeedCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
	now     func() time.Time
	log     *slog.Logger
}

type Option func(*FeedCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *FeedCache) { c.now = now }
}

func New(log *slog.Logger, opts ...Option) *FeedCache {
	c := &FeedCache{
		entries: make(map[string]entry),
		now:     time.Now,
		log:     log.With(slog.String("component", "feed-cache")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchOrLoad returns the live value of key, or calls loader, stores its
// result (nil included) for ttl and returns it. Loader errors are returned
// to every waiting caller and nothing is stored.
func (c *FeedCache) FetchOrLoad(ctx context.Context, key string, ttl time.Duration, loader Loader) (*domain.RawFeed, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}
	res, err, shared := c.group.Do(key, func() (any, error) {
		// A flight that finished just before this one started already stored it.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		c.log.Info("Cache missed", slog.String("url", key))
		// The flight is shared, so one caller giving up must not fail the others.
		v, err := loader(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.store(key, v, ttl)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debug("Shared in-flight load", slog.String("url", key))
	}
	v, _ := res.(*domain.RawFeed)
	return v, nil
}

// Len returns the number of stored entries, expired ones included.
func (c *FeedCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *FeedCache) lookup(key string) (*domain.RawFeed, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *FeedCache) store(key string, v *domain.RawFeed, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: v, expiresAt: c.now().Add(ttl)}
}
