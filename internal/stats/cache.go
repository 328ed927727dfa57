package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/registramood/moodtracker/internal/logging"
	"github.com/registramood/moodtracker/internal/metrics"
)

const (
	cacheKeyPrefix      = "moodtracker:stats:"
	generationKeyPrefix = "moodtracker:stats:gen:"
)

// CachedService serves statistics from redis when present and computes them
// otherwise. Cache failures are logged and never fail a request; errors are
// never cached.
//
// Keys carry a per-user generation number. Invalidate bumps it, so entries
// computed before a write are never read again and simply expire.
type CachedService struct {
	next   Computer
	client redis.Cmdable
	ttl    time.Duration
}

// NewCachedService wraps next with a redis cache. A zero ttl disables caching.
func NewCachedService(next Computer, client redis.Cmdable, ttl time.Duration) *CachedService {
	return &CachedService{next: next, client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

func cacheKey(userID string, generation int64, days int) string {
	return fmt.Sprintf("%s%s:%d:%d", cacheKeyPrefix, userID, generation, days)
}

func generationKey(userID string) string {
	return generationKeyPrefix + userID
}

// Invalidate drops every cached result for userID. Call it after any write
// that changes the user's entries or profile.
func (c *CachedService) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Incr(ctx, generationKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidating stats cache for user %s: %w", userID, err)
	}
	return nil
}

func (c *CachedService) generation(ctx context.Context, userID string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// ComputeMoodStats returns cached statistics for (userID, days) or computes and stores them.
func (c *CachedService) ComputeMoodStats(ctx context.Context, userID string, days int) (*MoodStats, error) {
	if c.ttl <= 0 {
		return c.next.ComputeMoodStats(ctx, userID, days)
	}

	gen, err := c.generation(ctx, userID)
	if err != nil {
		// Without the generation a cached entry may predate a write.
		metrics.StatsCache.WithLabelValues("error").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("stats cache unavailable")
		return c.next.ComputeMoodStats(ctx, userID, days)
	}

	key := cacheKey(userID, gen, days)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached MoodStats
		jerr := json.Unmarshal(raw, &cached)
		if jerr == nil {
			metrics.StatsCache.WithLabelValues("hit").Inc()
			return &cached, nil
		}
		metrics.StatsCache.WithLabelValues("miss").Inc()
		logging.Ctx(ctx).Warn().Err(jerr).Str("key", key).Msg("discarding unreadable cached stats")
	case errors.Is(err, redis.Nil):
		metrics.StatsCache.WithLabelValues("miss").Inc()
	default:
		metrics.StatsCache.WithLabelValues("error").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("stats cache unavailable")
	}

	stats, err := c.next.ComputeMoodStats(ctx, userID, days)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("encoding stats for cache")
		return stats, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("storing stats in cache")
	}
	return stats, nil
}

// ComparePeriods compares two windows, each served through the cache.
func (c *CachedService) ComparePeriods(ctx context.Context, userID string, days1, days2 int) (*Comparison, error) {
	return comparePeriods(ctx, c, userID, days1, days2)
}
