package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/registramood/moodtracker/internal/db"
	"github.com/registramood/moodtracker/internal/enrich"
	"github.com/registramood/moodtracker/internal/logging"
)

// ErrNoGenreSource is returned by BackfillGenres when no genre lookup is configured.
var ErrNoGenreSource = errors.New("no genre source configured")

// CreateSongInput is the payload for Songs.Create.
type CreateSongInput struct {
	Title      string   `json:"title" validate:"required"`
	Artist     string   `json:"artist" validate:"required"`
	SpotifyURL string   `json:"spotify_url" validate:"omitempty,url"`
	UserID     string   `json:"user_id"`
	Genres     []string `json:"genres"`
}

// SongPatch lists the song fields a client may change. Nil fields are left as is.
type SongPatch struct {
	Title      *string   `json:"title"`
	Artist     *string   `json:"artist"`
	SpotifyURL *string   `json:"spotify_url"`
	Genres     *[]string `json:"genres"`
}

// EnrichOutcome reports what a genre backfill did for one song.
type EnrichOutcome struct {
	SongID string        `json:"song_id"`
	Title  string        `json:"title"`
	Artist string        `json:"artist"`
	Genres []string      `json:"genres"`
	Source enrich.Source `json:"source"`
	Error  string        `json:"error,omitempty"`
}

// Songs manages the song catalog.
type Songs struct {
	store SongStore
	settings
}

// NewSongs creates a song service over store.
func NewSongs(store SongStore, opts ...Option) *Songs {
	return &Songs{store: store, settings: newSettings(opts)}
}

// Create adds a song. The (title, artist) pair must be unique. Songs created
// without genres get them from the configured genre lookup when possible.
func (s *Songs) Create(ctx context.Context, in CreateSongInput) (*db.Song, error) {
	trim(&in.Title, &in.Artist, &in.SpotifyURL, &in.UserID)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	owner, err := db.ParseOptionalID(in.UserID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.FindByTitleArtist(ctx, in.Title, in.Artist); err == nil {
		return nil, fmt.Errorf("song %q by %q: %w", in.Title, in.Artist, db.ErrConflict)
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("checking song: %w", err)
	}

	genres := cleanGenres(in.Genres)
	if len(genres) == 0 && s.genres != nil && s.genres.Enabled() {
		found, source, err := s.genres.Lookup(ctx, enrich.Song{Title: in.Title, Artist: in.Artist, SpotifyURL: in.SpotifyURL})
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("title", in.Title).Str("artist", in.Artist).Msg("genre lookup failed")
		} else {
			logging.Ctx(ctx).Debug().Str("source", string(source)).Strs("genres", found).Msg("genres looked up")
			genres = found
		}
	}

	now := s.clock()
	song := &db.Song{
		Title:      in.Title,
		Artist:     in.Artist,
		SpotifyURL: in.SpotifyURL,
		Genres:     genres,
		UserID:     owner,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, song); err != nil {
		return nil, fmt.Errorf("creating song: %w", err)
	}
	return song, nil
}

// Get returns the song with the given id.
func (s *Songs) Get(ctx context.Context, id string) (*db.Song, error) {
	oid, err := db.ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, oid)
}

// List returns songs in insertion order. A non-empty ownerID restricts the
// result to global songs plus that user's songs.
func (s *Songs) List(ctx context.Context, ownerID string, limit int) ([]db.Song, error) {
	owner, err := db.ParseOptionalID(ownerID)
	if err != nil {
		return nil, err
	}
	songs, err := s.store.List(ctx, owner, clampLimit(limit, DefaultSongLimit))
	if err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}
	return songs, nil
}

// Search matches query as a case-insensitive substring of title or artist
// and returns at most limit songs.
func (s *Songs) Search(ctx context.Context, query string, limit int) ([]db.Song, error) {
	trim(&query)
	if query == "" {
		return nil, db.NewValidationError("q", "q is required")
	}
	songs, err := s.store.Search(ctx, query, clampLimit(limit, DefaultSongLimit))
	if err != nil {
		return nil, fmt.Errorf("searching songs: %w", err)
	}
	return songs, nil
}

// Update applies a patch and returns the updated song.
func (s *Songs) Update(ctx context.Context, id string, p SongPatch) (*db.Song, error) {
	oid, err := db.ParseID(id)
	if err != nil {
		return nil, err
	}

	var upd db.SongUpdate
	if upd.Title, err = patchString("title", p.Title); err != nil {
		return nil, err
	}
	if upd.Artist, err = patchString("artist", p.Artist); err != nil {
		return nil, err
	}
	if p.SpotifyURL != nil {
		// An empty link clears it.
		link := *p.SpotifyURL
		trim(&link)
		if link != "" {
			if err := validate.Var(link, "url"); err != nil {
				return nil, db.NewValidationError("spotify_url", fieldMessage("spotify_url", "url"))
			}
		}
		upd.SpotifyURL = &link
	}
	if p.Genres != nil {
		genres := cleanGenres(*p.Genres)
		upd.Genres = &genres
	}

	current, err := s.store.Get(ctx, oid)
	if err != nil {
		return nil, err
	}
	if upd.Title != nil || upd.Artist != nil {
		title, artist := current.Title, current.Artist
		if upd.Title != nil {
			title = *upd.Title
		}
		if upd.Artist != nil {
			artist = *upd.Artist
		}
		other, err := s.store.FindByTitleArtist(ctx, title, artist)
		if err == nil && other.ID != oid {
			return nil, fmt.Errorf("song %q by %q: %w", title, artist, db.ErrConflict)
		}
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("checking song: %w", err)
		}
	}

	upd.UpdatedAt = s.clock()
	if err := s.store.Update(ctx, oid, upd); err != nil {
		return nil, fmt.Errorf("updating song: %w", err)
	}
	return s.store.Get(ctx, oid)
}

// Delete removes a song. Mood entries keep their now-dangling reference.
func (s *Songs) Delete(ctx context.Context, id string) error {
	oid, err := db.ParseID(id)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, oid)
}

// BackfillGenres looks up genres for up to limit songs that have none and
// stores whatever was found.
func (s *Songs) BackfillGenres(ctx context.Context, limit int) ([]EnrichOutcome, error) {
	if s.genres == nil || !s.genres.Enabled() {
		return nil, ErrNoGenreSource
	}

	songs, err := s.store.ListWithoutGenres(ctx, clampLimit(limit, DefaultEnrichBatchLimit))
	if err != nil {
		return nil, fmt.Errorf("listing songs without genres: %w", err)
	}

	batch := make([]enrich.Song, len(songs))
	for i, song := range songs {
		batch[i] = enrich.Song{ID: song.ID.Hex(), Title: song.Title, Artist: song.Artist, SpotifyURL: song.SpotifyURL}
	}
	results, err := s.genres.LookupBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("looking up genres: %w", err)
	}

	now := s.clock()
	outcomes := make([]EnrichOutcome, len(songs))
	for i, r := range results {
		song := songs[i]
		out := EnrichOutcome{
			SongID: r.SongID,
			Title:  song.Title,
			Artist: song.Artist,
			Genres: r.Genres,
			Source: r.Source,
		}
		if r.Err != nil {
			out.Error = r.Err.Error()
			logging.Ctx(ctx).Warn().Err(r.Err).Str("song_id", r.SongID).Msg("genre backfill lookup failed")
		} else if len(r.Genres) > 0 {
			if err := s.store.SetGenres(ctx, song.ID, r.Genres, now); err != nil {
				return nil, fmt.Errorf("saving genres for song %s: %w", r.SongID, err)
			}
		}
		outcomes[i] = out
	}
	return outcomes, nil
}

// recordPlay bumps the play count of a song referenced by a new mood entry.
func (s *Songs) recordPlay(ctx context.Context, song *db.Song) error {
	return s.store.IncrementPlayCount(ctx, song.ID)
}

// cleanGenres trims genres and drops empty ones. The result is never nil.
func cleanGenres(genres []string) []string {
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		trim(&g)
		if g != "" {
			out = append(out, g)
		}
	}
	return out
}
