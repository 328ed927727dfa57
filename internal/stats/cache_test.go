package stats

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/registramood/moodtracker/internal/db"
)

// countingComputer implements Computer for testing.
type countingComputer struct {
	calls atomic.Int32
	err   error
}

func (c *countingComputer) ComputeMoodStats(_ context.Context, userID string, days int) (*MoodStats, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	mood := "😊"
	return &MoodStats{
		ReportID:           "r",
		UserID:             userID,
		WindowDays:         days,
		TotalEntriesPeriod: days / 10,
		MostCommonMood:     &mood,
		MoodDistribution:   []MoodCount{{Emoji: mood, Count: days / 10}},
		GeneratedAt:        now,
	}, nil
}

func (c *countingComputer) ComparePeriods(ctx context.Context, userID string, days1, days2 int) (*Comparison, error) {
	return comparePeriods(ctx, c, userID, days1, days2)
}

func newCache(t *testing.T, next Computer, ttl time.Duration) (*CachedService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCachedService(next, client, ttl), mr
}

func TestCachedService_HitAfterMiss(t *testing.T) {
	next := &countingComputer{}
	cache, mr := newCache(t, next, time.Minute)
	ctx := context.Background()

	first, err := cache.ComputeMoodStats(ctx, "u1", 30)
	if err != nil {
		t.Fatal(err)
	}
	second, err := cache.ComputeMoodStats(ctx, "u1", 30)
	if err != nil {
		t.Fatal(err)
	}

	if got := next.calls.Load(); got != 1 {
		t.Errorf("compute calls = %d, want 1", got)
	}
	if second.TotalEntriesPeriod != first.TotalEntriesPeriod || *second.MostCommonMood != "😊" {
		t.Errorf("cached = %+v", second)
	}
	if !mr.Exists(cacheKey("u1", 0, 30)) {
		t.Error("expected stats stored in redis")
	}
	if ttl := mr.TTL(cacheKey("u1", 0, 30)); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}

	// A different window is a different key.
	if _, err := cache.ComputeMoodStats(ctx, "u1", 60); err != nil {
		t.Fatal(err)
	}
	if got := next.calls.Load(); got != 2 {
		t.Errorf("compute calls = %d, want 2", got)
	}
}

func TestCachedService_Expiry(t *testing.T) {
	next := &countingComputer{}
	cache, mr := newCache(t, next, time.Minute)
	ctx := context.Background()

	if _, err := cache.ComputeMoodStats(ctx, "u1", 30); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := cache.ComputeMoodStats(ctx, "u1", 30); err != nil {
		t.Fatal(err)
	}
	if got := next.calls.Load(); got != 2 {
		t.Errorf("compute calls = %d, want 2 after expiry", got)
	}
}

func TestCachedService_ErrorsNotCached(t *testing.T) {
	next := &countingComputer{err: db.ErrNotFound}
	cache, mr := newCache(t, next, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.ComputeMoodStats(context.Background(), "u1", 30); !errors.Is(err, db.ErrNotFound) {
			t.Fatalf("error = %v, want ErrNotFound", err)
		}
	}
	if got := next.calls.Load(); got != 2 {
		t.Errorf("compute calls = %d, want 2", got)
	}
	if mr.Exists(cacheKey("u1", 0, 30)) {
		t.Error("errors must not be cached")
	}
}

func TestCachedService_RedisDown(t *testing.T) {
	next := &countingComputer{}
	cache, mr := newCache(t, next, time.Minute)
	mr.Close()

	got, err := cache.ComputeMoodStats(context.Background(), "u1", 30)
	if err != nil {
		t.Fatalf("ComputeMoodStats() error = %v, want fall-through", err)
	}
	if got.WindowDays != 30 {
		t.Errorf("WindowDays = %d", got.WindowDays)
	}
}

func TestCachedService_CorruptEntry(t *testing.T) {
	next := &countingComputer{}
	cache, mr := newCache(t, next, time.Minute)
	if err := mr.Set(cacheKey("u1", 0, 30), "{not json"); err != nil {
		t.Fatal(err)
	}

	if _, err := cache.ComputeMoodStats(context.Background(), "u1", 30); err != nil {
		t.Fatal(err)
	}
	if got := next.calls.Load(); got != 1 {
		t.Errorf("compute calls = %d, want 1", got)
	}
}

func TestCachedService_ZeroTTLBypasses(t *testing.T) {
	next := &countingComputer{}
	cache, mr := newCache(t, next, 0)

	for i := 0; i < 2; i++ {
		if _, err := cache.ComputeMoodStats(context.Background(), "u1", 30); err != nil {
			t.Fatal(err)
		}
	}
	if got := next.calls.Load(); got != 2 {
		t.Errorf("compute calls = %d, want 2", got)
	}
	if len(mr.Keys()) != 0 {
		t.Errorf("keys = %v, want none", mr.Keys())
	}
}

func TestCachedService_ComparePeriods(t *testing.T) {
	next := &countingComputer{}
	cache, _ := newCache(t, next, time.Minute)
	ctx := context.Background()

	got, err := cache.ComparePeriods(ctx, "u1", 100, 300)
	if err != nil {
		t.Fatal(err)
	}
	if got.Comparison.Difference != -20 || got.Comparison.Trend != TrendDecreased {
		t.Errorf("Comparison = %+v", got.Comparison)
	}

	if _, err := cache.ComparePeriods(ctx, "u1", 100, 300); err != nil {
		t.Fatal(err)
	}
	if calls := next.calls.Load(); calls != 2 {
		t.Errorf("compute calls = %d, want 2 (second comparison served from cache)", calls)
	}
}

func TestCachedService_InvalidateAfterWrite(t *testing.T) {
	f := newFixture(t)
	cache, _ := newCache(t, f.svc, time.Minute)
	ctx := context.Background()
	userID := f.user.ID.Hex()

	f.addEntries(3, "😊", 1, nil)
	first, err := cache.ComputeMoodStats(ctx, userID, 30)
	if err != nil {
		t.Fatal(err)
	}
	if first.TotalEntriesPeriod != 3 {
		t.Fatalf("first TotalEntriesPeriod = %d, want 3", first.TotalEntriesPeriod)
	}

	f.addEntries(5, "😢", 1, nil)
	if err := cache.Invalidate(ctx, userID); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	second, err := cache.ComputeMoodStats(ctx, userID, 30)
	if err != nil {
		t.Fatal(err)
	}
	direct, err := f.svc.ComputeMoodStats(ctx, userID, 30)
	if err != nil {
		t.Fatal(err)
	}
	if second.TotalEntriesPeriod != direct.TotalEntriesPeriod || second.TotalEntriesPeriod != 8 {
		t.Errorf("TotalEntriesPeriod after write = %d, want %d", second.TotalEntriesPeriod, direct.TotalEntriesPeriod)
	}
	if second.MostCommonMood == nil || *second.MostCommonMood != "😢" {
		t.Errorf("MostCommonMood after write = %v, want 😢", second.MostCommonMood)
	}
}

func TestCachedService_InvalidateIsPerUser(t *testing.T) {
	next := &countingComputer{}
	cache, mr := newCache(t, next, time.Minute)
	ctx := context.Background()

	for _, user := range []string{"u1", "u2"} {
		if _, err := cache.ComputeMoodStats(ctx, user, 30); err != nil {
			t.Fatal(err)
		}
	}
	if err := cache.Invalidate(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if got, _ := mr.Get(generationKey("u1")); got != "1" {
		t.Errorf("u1 generation = %q, want 1", got)
	}

	for _, user := range []string{"u1", "u2"} {
		if _, err := cache.ComputeMoodStats(ctx, user, 30); err != nil {
			t.Fatal(err)
		}
	}
	if got := next.calls.Load(); got != 3 {
		t.Errorf("compute calls = %d, want 3 (only u1 recomputed)", got)
	}
	if !mr.Exists(cacheKey("u1", 1, 30)) {
		t.Error("expected entry under the new u1 generation")
	}
}

func TestCachedService_InvalidateRedisDown(t *testing.T) {
	cache, mr := newCache(t, &countingComputer{}, time.Minute)
	mr.Close()

	if err := cache.Invalidate(context.Background(), "u1"); err == nil {
		t.Error("Invalidate() with redis down: expected error")
	}
}
