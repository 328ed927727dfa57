// Package enrich fills in song genres from external catalogs.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Source names where genres came from.
type Source string

const (
	SourceSpotify Source = "spotify"
	SourceLastFM  Source = "lastfm"
	SourceNone    Source = "none"
)

const (
	// DefaultConcurrency is the worker count for batch lookups.
	DefaultConcurrency = 5

	// MaxGenres caps the genres stored per song.
	MaxGenres = 5
)

// Song is the minimal song info needed for a lookup.
type Song struct {
	ID         string
	Title      string
	Artist     string
	SpotifyURL string
}

// Result holds the outcome of one lookup.
type Result struct {
	SongID string
	Genres []string
	Source Source
	Err    error
}

// SpotifyCatalog resolves a Spotify track link to artist genres.
type SpotifyCatalog interface {
	ArtistGenres(ctx context.Context, trackURL string) ([]string, error)
}

// TagCatalog resolves an (artist, title) pair to genre-like tags.
type TagCatalog interface {
	Genres(ctx context.Context, artist, title string, limit int) ([]string, error)
}

// Service looks genres up from Spotify first and Last.fm second.
type Service struct {
	spotify     SpotifyCatalog
	tags        TagCatalog
	concurrency int
	breakers    *BreakerConfig
}

// Option configures a Service.
type Option func(*Service)

// WithSpotify enables Spotify artist genres.
func WithSpotify(c SpotifyCatalog) Option {
	return func(s *Service) { s.spotify = c }
}

// WithTags enables tag-based genres.
func WithTags(c TagCatalog) Option {
	return func(s *Service) { s.tags = c }
}

// WithConcurrency sets the number of concurrent lookups in LookupBatch.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewService creates a genre service. With no catalogs every lookup yields SourceNone.
func NewService(opts ...Option) *Service {
	s := &Service{concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(s)
	}
	if s.breakers != nil {
		s.wrapBreakers(*s.breakers)
	}
	return s
}

// Enabled reports whether any catalog is configured.
func (s *Service) Enabled() bool {
	return s.spotify != nil || s.tags != nil
}

// Lookup returns normalized genres for one song. A Spotify failure falls
// through to tags; the error is returned only when no catalog produced genres.
func (s *Service) Lookup(ctx context.Context, song Song) ([]string, Source, error) {
	var errs []string

	if s.spotify != nil && song.SpotifyURL != "" {
		genres, err := s.spotify.ArtistGenres(ctx, song.SpotifyURL)
		if err != nil {
			errs = append(errs, err.Error())
		} else if g := normalize(genres); len(g) > 0 {
			return g, SourceSpotify, nil
		}
	}

	if s.tags != nil {
		genres, err := s.tags.Genres(ctx, song.Artist, song.Title, MaxGenres)
		if err != nil {
			errs = append(errs, err.Error())
		} else if g := normalize(genres); len(g) > 0 {
			return g, SourceLastFM, nil
		}
	}

	if len(errs) > 0 {
		return []string{}, SourceNone, fmt.Errorf("looking up genres for %q by %q: %s", song.Title, song.Artist, strings.Join(errs, "; "))
	}
	return []string{}, SourceNone, nil
}

// LookupBatch looks up many songs concurrently. Results keep the input order;
// per-song failures are reported in Result.Err rather than failing the batch.
func (s *Service) LookupBatch(ctx context.Context, songs []Song) ([]Result, error) {
	if len(songs) == 0 {
		return []Result{}, nil
	}

	results := make([]Result, len(songs))

	type workItem struct {
		index int
		song  Song
	}
	workCh := make(chan workItem, len(songs))
	for i, song := range songs {
		workCh <- workItem{index: i, song: song}
	}
	close(workCh)

	var wg sync.WaitGroup
	for i := 0; i < min(s.concurrency, len(songs)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workCh {
				if err := ctx.Err(); err != nil {
					results[work.index] = Result{SongID: work.song.ID, Genres: []string{}, Source: SourceNone, Err: err}
					continue
				}
				genres, source, err := s.Lookup(ctx, work.song)
				results[work.index] = Result{SongID: work.song.ID, Genres: genres, Source: source, Err: err}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// normalize lower-cases, trims and de-duplicates genres, keeping at most MaxGenres.
func normalize(genres []string) []string {
	out := make([]string, 0, min(len(genres), MaxGenres))
	seen := make(map[string]bool)
	for _, g := range genres {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
		if len(out) == MaxGenres {
			break
		}
	}
	return out
}
