// Package records implements validated CRUD over users, songs and mood entries.
//
// Services take opaque string ids, translate them with db.ParseID, and return
// errors that match the db sentinels (ErrValidation, ErrInvalidID, ErrNotFound,
// ErrConflict, ErrStore) through errors.Is.
package records

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/registramood/moodtracker/internal/db"
	"github.com/registramood/moodtracker/internal/enrich"
	"github.com/registramood/moodtracker/internal/logging"
)

// Default list sizes.
const (
	DefaultSongLimit        = 50
	DefaultMoodLimit        = 20
	DefaultMoodDetailLimit  = 10
	DefaultEnrichBatchLimit = 100
	MaxListLimit            = 500
)

// DefaultUserType is assigned when registration omits user_type.
const DefaultUserType = "patient"

// UserStore persists users.
type UserStore interface {
	Create(ctx context.Context, user *db.User) error
	Get(ctx context.Context, id primitive.ObjectID) (*db.User, error)
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	List(ctx context.Context) ([]db.User, error)
	Update(ctx context.Context, id primitive.ObjectID, upd db.UserUpdate) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// SongStore persists songs.
type SongStore interface {
	Create(ctx context.Context, song *db.Song) error
	Get(ctx context.Context, id primitive.ObjectID) (*db.Song, error)
	FindByTitleArtist(ctx context.Context, title, artist string) (*db.Song, error)
	List(ctx context.Context, owner *primitive.ObjectID, limit int64) ([]db.Song, error)
	Search(ctx context.Context, query string, limit int64) ([]db.Song, error)
	ListWithoutGenres(ctx context.Context, limit int64) ([]db.Song, error)
	Update(ctx context.Context, id primitive.ObjectID, upd db.SongUpdate) error
	SetGenres(ctx context.Context, id primitive.ObjectID, genres []string, at time.Time) error
	SetPlayCount(ctx context.Context, id primitive.ObjectID, from, to int64) error
	IncrementPlayCount(ctx context.Context, id primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// MoodStore persists mood entries.
type MoodStore interface {
	Create(ctx context.Context, entry *db.MoodEntry) error
	Get(ctx context.Context, id primitive.ObjectID) (*db.MoodEntry, error)
	ListForUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]db.MoodEntry, error)
	ListWithSongs(ctx context.Context, userID primitive.ObjectID, limit int64) ([]db.MoodEntryDetail, error)
	Update(ctx context.Context, id primitive.ObjectID, upd db.MoodEntryUpdate) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	CountForSong(ctx context.Context, songID primitive.ObjectID) (int64, error)
}

// GenreLookup fills in genres for songs. Implemented by *enrich.Service.
type GenreLookup interface {
	Enabled() bool
	Lookup(ctx context.Context, song enrich.Song) ([]string, enrich.Source, error)
	LookupBatch(ctx context.Context, songs []enrich.Song) ([]enrich.Result, error)
}

// StatsInvalidator drops derived statistics for a user after a write.
// Implemented by *stats.CachedService.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

var (
	_ UserStore   = (*db.UserRepository)(nil)
	_ SongStore   = (*db.SongRepository)(nil)
	_ MoodStore   = (*db.MoodEntryRepository)(nil)
	_ GenreLookup = (*enrich.Service)(nil)
)

type settings struct {
	now        func() time.Time
	bcryptCost int
	genres     GenreLookup
	statsCache StatsInvalidator
}

// Option configures a service.
type Option func(*settings)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *settings) { s.bcryptCost = cost }
}

// WithGenreLookup enables genre enrichment for songs.
func WithGenreLookup(g GenreLookup) Option {
	return func(s *settings) { s.genres = g }
}

// WithStatsInvalidator clears cached statistics whenever a user's entries or
// profile change.
func WithStatsInvalidator(inv StatsInvalidator) Option {
	return func(s *settings) { s.statsCache = inv }
}

func newSettings(opts []Option) settings {
	s := settings{now: time.Now, bcryptCost: defaultBcryptCost}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s settings) clock() time.Time {
	return s.now().UTC()
}

// invalidateStats clears cached statistics for userID. A failure is logged
// and leaves the cached result to expire on its own.
func (s settings) invalidateStats(ctx context.Context, userID primitive.ObjectID) {
	if s.statsCache == nil {
		return
	}
	if err := s.statsCache.Invalidate(ctx, userID.Hex()); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID.Hex()).Msg("stats cache not invalidated")
	}
}

// clampLimit applies def to non-positive limits and caps the rest at MaxListLimit.
func clampLimit(limit, def int) int64 {
	if limit <= 0 {
		return int64(def)
	}
	return int64(min(limit, MaxListLimit))
}
