package shortener

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sakif/chirper/internal/metrics"
)

// cache is the slice of *redis.Client the decorator needs.
type cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Cached remembers long→short mappings in Redis so a popular link is only
// sent to the upstream shortener once per TTL. Redis trouble never fails a
// shorten call; it just falls through to next.
type Cached struct {
	next   Shortener
	rdb    cache
	ttl    time.Duration
	logger logrus.FieldLogger
}

func NewCached(next Shortener, rdb cache, ttl time.Duration, logger logrus.FieldLogger) *Cached {
	return &Cached{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

// NewRedisClient initializes a redis client
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (c *Cached) Shorten(ctx context.Context, longURL string) (string, error) {
	key := cacheKey(longURL)

	short, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil && short != "":
		metrics.RecordShortening("cache_hit")
		return short, nil
	case err != nil && !errors.Is(err, redis.Nil):
		c.logger.WithError(err).WithField("key", key).Warn("shortener cache read failed")
	}

	short, err = c.next.Shorten(ctx, longURL)
	if err != nil {
		return "", err
	}

	if err := c.rdb.Set(ctx, key, short, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("shortener cache write failed")
	}
	return short, nil
}

func cacheKey(longURL string) string {
	sum := sha1.Sum([]byte(longURL))
	return "shorturl:" + hex.EncodeToString(sum[:])
}
