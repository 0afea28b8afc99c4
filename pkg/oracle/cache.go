package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
)

// Store is the key/value store backing the completion cache.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
}

// CachedOracle serves repeated prompts from a Store. Cache failures fall through
// to the wrapped oracle.
type CachedOracle struct {
	next   Oracle
	store  Store
	ttl    time.Duration
	logger ectologger.Logger
}

func NewCachedOracle(next Oracle, store Store, ttl time.Duration, logger ectologger.Logger) *CachedOracle {
	return &CachedOracle{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// CacheKey returns the store key for a prompt
func CacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return "fern:oracle:" + hex.EncodeToString(sum[:])
}

func (c *CachedOracle) Complete(ctx context.Context, prompt string) (string, error) {
	key := CacheKey(prompt)
	log := c.logger.WithContext(ctx).WithField("cache_key", key)

	cached, found, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		log.WithError(err).Warn("Oracle cache lookup failed")
		metrics.OracleCacheTotal.WithLabelValues("error").Inc()
	case found:
		metrics.OracleCacheTotal.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		metrics.OracleCacheTotal.WithLabelValues("miss").Inc()
	}

	response, err := c.next.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	if err := c.store.Set(ctx, key, response, c.ttl); err != nil {
		log.WithError(err).Warn("Failed to cache oracle response")
	}

	return response, nil
}
