package records

import (
	"context"
	"fmt"

	"github.com/registramood/moodtracker/internal/db"
	"github.com/registramood/moodtracker/internal/logging"
)

// CreateMoodInput is the payload for Moods.Create.
type CreateMoodInput struct {
	UserID  string `json:"user_id" validate:"required"`
	Emoji   string `json:"emoji" validate:"required"`
	SongID  string `json:"song_id"`
	Comment string `json:"comment"`
}

// MoodPatch lists the mood entry fields a client may change. Nil fields are left as is.
type MoodPatch struct {
	Emoji   *string `json:"emoji"`
	Comment *string `json:"comment"`
}

// Moods manages mood entries. It resolves user and song references through
// the user and song services.
type Moods struct {
	store MoodStore
	users *Users
	songs *Songs
	settings
}

// NewMoods creates a mood entry service.
func NewMoods(store MoodStore, users *Users, songs *Songs, opts ...Option) *Moods {
	return &Moods{store: store, users: users, songs: songs, settings: newSettings(opts)}
}

// Create logs a mood for an existing user, optionally tied to an existing song.
//
// The entry insert and the song play-count increment are separate writes. If
// the increment fails the entry is kept, the failure is logged, and the count
// stays one low until ReconcilePlayCount runs for that song.
func (m *Moods) Create(ctx context.Context, in CreateMoodInput) (*db.MoodEntry, error) {
	trim(&in.UserID, &in.Emoji, &in.SongID)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user, err := m.users.Get(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	var song *db.Song
	if in.SongID != "" {
		if song, err = m.songs.Get(ctx, in.SongID); err != nil {
			return nil, err
		}
	}

	now := m.clock()
	entry := &db.MoodEntry{
		UserID:    user.ID,
		Emoji:     in.Emoji,
		Comment:   in.Comment,
		Date:      db.EntryDate(now),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if song != nil {
		entry.SongID = &song.ID
	}
	if err := m.store.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("creating mood entry: %w", err)
	}
	m.invalidateStats(ctx, user.ID)

	if song != nil {
		if err := m.songs.recordPlay(ctx, song); err != nil {
			logging.Ctx(ctx).Error().Err(err).
				Str("entry_id", entry.ID.Hex()).
				Str("song_id", song.ID.Hex()).
				Msg("play count not incremented; reconcile the song to repair it")
		}
	}
	return entry, nil
}

// Get returns the mood entry with the given id.
func (m *Moods) Get(ctx context.Context, id string) (*db.MoodEntry, error) {
	oid, err := db.ParseID(id)
	if err != nil {
		return nil, err
	}
	return m.store.Get(ctx, oid)
}

// List returns a user's entries, newest first.
func (m *Moods) List(ctx context.Context, userID string, limit int) ([]db.MoodEntry, error) {
	oid, err := db.ParseID(userID)
	if err != nil {
		return nil, err
	}
	entries, err := m.store.ListForUser(ctx, oid, clampLimit(limit, DefaultMoodLimit))
	if err != nil {
		return nil, fmt.Errorf("listing mood entries: %w", err)
	}
	return entries, nil
}

// ListWithSongs returns a user's newest entries joined with song and username.
func (m *Moods) ListWithSongs(ctx context.Context, userID string, limit int) ([]db.MoodEntryDetail, error) {
	oid, err := db.ParseID(userID)
	if err != nil {
		return nil, err
	}
	details, err := m.store.ListWithSongs(ctx, oid, clampLimit(limit, DefaultMoodDetailLimit))
	if err != nil {
		return nil, fmt.Errorf("listing mood entries with songs: %w", err)
	}
	return details, nil
}

// Update applies a patch and returns the updated entry. The user, song and
// date of an entry are fixed at creation.
func (m *Moods) Update(ctx context.Context, id string, p MoodPatch) (*db.MoodEntry, error) {
	oid, err := db.ParseID(id)
	if err != nil {
		return nil, err
	}

	upd := db.MoodEntryUpdate{Comment: p.Comment}
	if upd.Emoji, err = patchString("emoji", p.Emoji); err != nil {
		return nil, err
	}

	upd.UpdatedAt = m.clock()
	if err := m.store.Update(ctx, oid, upd); err != nil {
		return nil, fmt.Errorf("updating mood entry: %w", err)
	}
	entry, err := m.store.Get(ctx, oid)
	if err != nil {
		return nil, err
	}
	m.invalidateStats(ctx, entry.UserID)
	return entry, nil
}

// Delete removes a mood entry. The song play count is not decremented.
func (m *Moods) Delete(ctx context.Context, id string) error {
	oid, err := db.ParseID(id)
	if err != nil {
		return err
	}
	entry, err := m.store.Get(ctx, oid)
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, oid); err != nil {
		return err
	}
	m.invalidateStats(ctx, entry.UserID)
	return nil
}

// ReconcilePlayCount sets a song's play count to the number of mood entries
// that reference it and returns the repaired song. If the stored count moves
// while entries are being counted, nothing is written and ErrConflict is
// returned so a concurrent increment is never overwritten.
func (m *Moods) ReconcilePlayCount(ctx context.Context, songID string) (*db.Song, error) {
	song, err := m.songs.Get(ctx, songID)
	if err != nil {
		return nil, err
	}

	n, err := m.store.CountForSong(ctx, song.ID)
	if err != nil {
		return nil, fmt.Errorf("counting entries for song: %w", err)
	}
	if n != song.PlayCount {
		logging.Ctx(ctx).Info().
			Str("song_id", song.ID.Hex()).
			Int64("stored", song.PlayCount).
			Int64("counted", n).
			Msg("reconciling play count")
		if err := m.songs.store.SetPlayCount(ctx, song.ID, song.PlayCount, n); err != nil {
			return nil, fmt.Errorf("setting play count: %w", err)
		}
		song.PlayCount = n
	}
	return song, nil
}
