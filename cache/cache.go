// Package cache stores finished documents keyed by a hash of the input and
// the request that produced them.
package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"slices"
	"time"

	"github.com/minio/highwayhash"

	"github.com/wudi/pdfscrub/observability"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a byte store with per-entry expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// keySeed is the HighwayHash key for cache keys. Changing it invalidates
// every stored entry.
var keySeed = []byte("pdfscrub result cache key seed!!")

// Key identifies the output of scrubbing input for targets under a pipeline
// configuration summarized by variant. Target order and duplicates do not
// matter.
func Key(input []byte, targets []string, variant string) string {
	h, _ := highwayhash.New128(keySeed)
	h.Write(input)
	h.Write([]byte{0})
	ts := slices.Clone(targets)
	slices.Sort(ts)
	ts = slices.Compact(ts)
	for _, t := range ts {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}
	h.Write([]byte(variant))
	return hex.EncodeToString(h.Sum(nil))
}

// Runner produces a document from input and targets.
type Runner interface {
	Run(ctx context.Context, input []byte, targets []string) ([]byte, error)
}

// Cached serves repeated requests from a Cache and runs the rest.
type Cached struct {
	next    Runner
	cache   Cache
	ttl     time.Duration
	variant string
	logger  observability.Logger
	metrics *observability.Metrics
}

func NewCached(next Runner, c Cache, ttl time.Duration, variant string, logger observability.Logger, metrics *observability.Metrics) *Cached {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Cached{next: next, cache: c, ttl: ttl, variant: variant, logger: logger, metrics: metrics}
}

// Run returns the cached output when present. Cache failures are logged and
// fall through to next; only next's errors are returned.
func (c *Cached) Run(ctx context.Context, input []byte, targets []string) ([]byte, error) {
	key := Key(input, targets, c.variant)
	out, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		c.metrics.CacheLookup("hit")
		return out, nil
	case errors.Is(err, ErrCacheMiss):
		c.metrics.CacheLookup("miss")
	default:
		c.metrics.CacheLookup("error")
		c.logger.Warn("cache lookup failed", observability.Error("error", err))
	}

	out, err = c.next.Run(ctx, input, targets)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, out, c.ttl); err != nil {
		c.logger.Warn("cache store failed", observability.Error("error", err))
	}
	return out, nil
}
