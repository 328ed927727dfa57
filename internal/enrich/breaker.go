package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/registramood/moodtracker/internal/logging"
)

// BreakerConfig tunes the circuit breakers placed in front of each catalog.
type BreakerConfig struct {
	// ConsecutiveFailures opens the breaker. Default: 5.
	ConsecutiveFailures uint32
	// Timeout is how long an open breaker rejects calls. Default: 1m.
	Timeout time.Duration
}

// WithBreakers guards every configured catalog with a circuit breaker, so an
// unreachable catalog is skipped instead of slowing each lookup.
func WithBreakers(cfg BreakerConfig) Option {
	return func(s *Service) { s.breakers = &cfg }
}

func (s *Service) wrapBreakers(cfg BreakerConfig) {
	if s.spotify != nil {
		s.spotify = &spotifyBreaker{next: s.spotify, cb: newBreaker[[]string]("spotify", cfg)}
	}
	if s.tags != nil {
		s.tags = &tagsBreaker{next: s.tags, cb: newBreaker[[]string]("lastfm", cfg)}
	}
}

func newBreaker[T any](name string, cfg BreakerConfig) *gobreaker.CircuitBreaker[T] {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		// Cancelled requests say nothing about the catalog's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("catalog", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("genre catalog breaker state changed")
		},
	})
}

type spotifyBreaker struct {
	next SpotifyCatalog
	cb   *gobreaker.CircuitBreaker[[]string]
}

func (b *spotifyBreaker) ArtistGenres(ctx context.Context, trackURL string) ([]string, error) {
	return b.cb.Execute(func() ([]string, error) {
		return b.next.ArtistGenres(ctx, trackURL)
	})
}

type tagsBreaker struct {
	next TagCatalog
	cb   *gobreaker.CircuitBreaker[[]string]
}

func (b *tagsBreaker) Genres(ctx context.Context, artist, title string, limit int) ([]string, error) {
	return b.cb.Execute(func() ([]string, error) {
		return b.next.Genres(ctx, artist, title, limit)
	})
}
