// Package dbtest provides an in-memory stand-in for the MongoDB repositories.
//
// It mirrors the repositories' semantics closely enough for service and handler
// tests: unique email and (title, artist) constraints, newest-first listings,
// and the aggregation ordering used by the statistics queries.
package dbtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/registramood/moodtracker/internal/db"
)

// Store holds users, songs and mood entries in memory. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	users    []db.User
	songs    []db.Song
	entries  []db.MoodEntry
	failures map[string]error
}

// New returns an empty Store.
func New() *Store {
	return &Store{failures: make(map[string]error)}
}

// Fail makes the named operation return err until cleared with a nil err.
// Operation names are "<collection>.<Method>", e.g. "songs.IncrementPlayCount".
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) failure(op string) error {
	if err, ok := s.failures[op]; ok {
		return &db.StoreError{Op: op, Err: err}
	}
	return nil
}

// Users returns the user view of the store.
func (s *Store) Users() *Users { return &Users{s} }

// Songs returns the song view of the store.
func (s *Store) Songs() *Songs { return &Songs{s} }

// MoodEntries returns the mood entry view of the store.
func (s *Store) MoodEntries() *MoodEntries { return &MoodEntries{s} }

// Users implements the user repository methods.
type Users struct{ s *Store }

func (u *Users) Create(_ context.Context, user *db.User) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("users.Create"); err != nil {
		return err
	}
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return fmt.Errorf("email %q: %w", user.Email, db.ErrConflict)
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users = append(s.users, *user)
	return nil
}

func (u *Users) Get(_ context.Context, id primitive.ObjectID) (*db.User, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("users.Get"); err != nil {
		return nil, err
	}
	if i := s.userIndex(id); i >= 0 {
		user := s.users[i]
		return &user, nil
	}
	return nil, fmt.Errorf("user %s: %w", id.Hex(), db.ErrNotFound)
}

func (u *Users) GetByEmail(_ context.Context, email string) (*db.User, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("users.GetByEmail"); err != nil {
		return nil, err
	}
	for _, user := range s.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, fmt.Errorf("user with email %q: %w", email, db.ErrNotFound)
}

func (u *Users) List(_ context.Context) ([]db.User, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("users.List"); err != nil {
		return nil, err
	}
	return append([]db.User{}, s.users...), nil
}

func (u *Users) Update(_ context.Context, id primitive.ObjectID, upd db.UserUpdate) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("users.Update"); err != nil {
		return err
	}
	i := s.userIndex(id)
	if i < 0 {
		return fmt.Errorf("user %s: %w", id.Hex(), db.ErrNotFound)
	}
	if upd.Email != nil {
		for _, other := range s.users {
			if other.ID != id && other.Email == *upd.Email {
				return fmt.Errorf("email: %w", db.ErrConflict)
			}
		}
	}

	user := &s.users[i]
	if upd.Username != nil {
		user.Username = *upd.Username
	}
	if upd.Email != nil {
		user.Email = *upd.Email
	}
	if upd.PasswordHash != nil {
		user.PasswordHash = *upd.PasswordHash
	}
	if upd.Active != nil {
		user.Active = *upd.Active
	}
	if upd.UserType != nil {
		user.UserType = *upd.UserType
	}
	user.UpdatedAt = upd.UpdatedAt
	return nil
}

func (u *Users) Delete(_ context.Context, id primitive.ObjectID) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("users.Delete"); err != nil {
		return err
	}
	i := s.userIndex(id)
	if i < 0 {
		return fmt.Errorf("user %s: %w", id.Hex(), db.ErrNotFound)
	}
	s.users = append(s.users[:i], s.users[i+1:]...)
	return nil
}

func (s *Store) userIndex(id primitive.ObjectID) int {
	for i := range s.users {
		if s.users[i].ID == id {
			return i
		}
	}
	return -1
}

// Songs implements the song repository methods.
type Songs struct{ s *Store }

func (r *Songs) Create(_ context.Context, song *db.Song) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("songs.Create"); err != nil {
		return err
	}
	for _, existing := range s.songs {
		if existing.Title == song.Title && existing.Artist == song.Artist {
			return fmt.Errorf("song %q by %q: %w", song.Title, song.Artist, db.ErrConflict)
		}
	}
	if song.ID.IsZero() {
		song.ID = primitive.NewObjectID()
	}
	if song.Genres == nil {
		song.Genres = []string{}
	}
	s.songs = append(s.songs, *song)
	return nil
}

func (r *Songs) Get(_ context.Context, id primitive.ObjectID) (*db.Song, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("songs.Get"); err != nil {
		return nil, err
	}
	if i := s.songIndex(id); i >= 0 {
		song := s.songs[i]
		return &song, nil
	}
	return nil, fmt.Errorf("song %s: %w", id.Hex(), db.ErrNotFound)
}

func (r *Songs) FindByTitleArtist(_ context.Context, title, artist string) (*db.Song, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("songs.FindByTitleArtist"); err != nil {
		return nil, err
	}
	for _, song := range s.songs {
		if song.Title == title && song.Artist == artist {
			return &song, nil
		}
	}
	return nil, fmt.Errorf("song %q by %q: %w", title, artist, db.ErrNotFound)
}

func (r *Songs) List(_ context.Context, owner *primitive.ObjectID, limit int64) ([]db.Song, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("songs.List"); err != nil {
		return nil, err
	}
	out := []db.Song{}
	for _, song := range s.songs {
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
		if owner != nil && song.UserID != nil && *song.UserID != *owner {
			continue
		}
		out = append(out, song)
	}
	return out, nil
}

func (r *Songs) Search(_ context.Context, query string, limit int64) ([]db.Song, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("songs.Search"); err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	out := []db.Song{}
	for _, song := range s.songs {
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(song.Title), q) || strings.Contains(strings.ToLower(song.Artist), q) {
			out = append(out, song)
		}
	}
	return out, nil
}

func (r *Songs) ListWithoutGenres(_ context.Context, limit int64) ([]db.Song, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("songs.ListWithoutGenres"); err != nil {
		return nil, err
	}
	out := []db.Song{}
	for _, song := range s.songs {
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
		if len(song.Genres) == 0 {
			out = append(out, song)
		}
	}
	return out, nil
}

func (r *Songs) Update(_ context.Context, id primitive.ObjectID, upd db.SongUpdate) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("songs.Update"); err != nil {
		return err
	}
	i := s.songIndex(id)
	if i < 0 {
		return fmt.Errorf("song %s: %w", id.Hex(), db.ErrNotFound)
	}

	title, artist := s.songs[i].Title, s.songs[i].Artist
	if upd.Title != nil {
		title = *upd.Title
	}
	if upd.Artist != nil {
		artist = *upd.Artist
	}
	for _, other := range s.songs {
		if other.ID != id && other.Title == title && other.Artist == artist {
			return fmt.Errorf("title and artist: %w", db.ErrConflict)
		}
	}

	song := &s.songs[i]
	song.Title, song.Artist = title, artist
	if upd.SpotifyURL != nil {
		song.SpotifyURL = *upd.SpotifyURL
	}
	if upd.Genres != nil {
		song.Genres = append([]string{}, (*upd.Genres)...)
	}
	song.UpdatedAt = upd.UpdatedAt
	return nil
}

func (r *Songs) SetGenres(_ context.Context, id primitive.ObjectID, genres []string, at time.Time) error {
	return r.mutate("songs.SetGenres", id, func(song *db.Song) {
		song.Genres = append([]string{}, genres...)
		song.UpdatedAt = at
	})
}

func (r *Songs) SetPlayCount(_ context.Context, id primitive.ObjectID, from, to int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("songs.SetPlayCount"); err != nil {
		return err
	}
	i := s.songIndex(id)
	if i < 0 {
		return fmt.Errorf("song %s: %w", id.Hex(), db.ErrNotFound)
	}
	if s.songs[i].PlayCount != from {
		return fmt.Errorf("play count of song %s changed concurrently: %w", id.Hex(), db.ErrConflict)
	}
	s.songs[i].PlayCount = to
	return nil
}

func (r *Songs) IncrementPlayCount(_ context.Context, id primitive.ObjectID) error {
	return r.mutate("songs.IncrementPlayCount", id, func(song *db.Song) {
		song.PlayCount++
	})
}

func (r *Songs) mutate(op string, id primitive.ObjectID, fn func(*db.Song)) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(op); err != nil {
		return err
	}
	i := s.songIndex(id)
	if i < 0 {
		return fmt.Errorf("song %s: %w", id.Hex(), db.ErrNotFound)
	}
	fn(&s.songs[i])
	return nil
}

func (r *Songs) Delete(_ context.Context, id primitive.ObjectID) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("songs.Delete"); err != nil {
		return err
	}
	i := s.songIndex(id)
	if i < 0 {
		return fmt.Errorf("song %s: %w", id.Hex(), db.ErrNotFound)
	}
	s.songs = append(s.songs[:i], s.songs[i+1:]...)
	return nil
}

func (s *Store) songIndex(id primitive.ObjectID) int {
	for i := range s.songs {
		if s.songs[i].ID == id {
			return i
		}
	}
	return -1
}

// MoodEntries implements the mood entry repository methods, including aggregations.
type MoodEntries struct{ s *Store }

func (m *MoodEntries) Create(_ context.Context, entry *db.MoodEntry) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("mood_entries.Create"); err != nil {
		return err
	}
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (m *MoodEntries) Get(_ context.Context, id primitive.ObjectID) (*db.MoodEntry, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("mood_entries.Get"); err != nil {
		return nil, err
	}
	if i := s.entryIndex(id); i >= 0 {
		entry := s.entries[i]
		return &entry, nil
	}
	return nil, fmt.Errorf("mood entry %s: %w", id.Hex(), db.ErrNotFound)
}

func (m *MoodEntries) ListForUser(_ context.Context, userID primitive.ObjectID, limit int64) ([]db.MoodEntry, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("mood_entries.ListForUser"); err != nil {
		return nil, err
	}
	return s.newestFor(userID, limit), nil
}

// newestFor returns a user's entries newest first. Callers hold s.mu.
func (s *Store) newestFor(userID primitive.ObjectID, limit int64) []db.MoodEntry {
	out := []db.MoodEntry{}
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	// Reverse first so equal timestamps keep newest-inserted first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out
}

func (m *MoodEntries) ListWithSongs(_ context.Context, userID primitive.ObjectID, limit int64) ([]db.MoodEntryDetail, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("mood_entries.ListWithSongs"); err != nil {
		return nil, err
	}
	entries := s.newestFor(userID, limit)
	details := make([]db.MoodEntryDetail, 0, len(entries))
	for _, e := range entries {
		d := db.MoodEntryDetail{MoodEntry: e}
		if e.SongID != nil {
			if i := s.songIndex(*e.SongID); i >= 0 {
				song := s.songs[i]
				d.Song = &song
			}
		}
		if i := s.userIndex(e.UserID); i >= 0 {
			d.Username = s.users[i].Username
		}
		details = append(details, d)
	}
	return details, nil
}

func (m *MoodEntries) Update(_ context.Context, id primitive.ObjectID, upd db.MoodEntryUpdate) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("mood_entries.Update"); err != nil {
		return err
	}
	i := s.entryIndex(id)
	if i < 0 {
		return fmt.Errorf("mood entry %s: %w", id.Hex(), db.ErrNotFound)
	}
	entry := &s.entries[i]
	if upd.Emoji != nil {
		entry.Emoji = *upd.Emoji
	}
	if upd.Comment != nil {
		entry.Comment = *upd.Comment
	}
	entry.UpdatedAt = upd.UpdatedAt
	return nil
}

func (m *MoodEntries) Delete(_ context.Context, id primitive.ObjectID) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("mood_entries.Delete"); err != nil {
		return err
	}
	i := s.entryIndex(id)
	if i < 0 {
		return fmt.Errorf("mood entry %s: %w", id.Hex(), db.ErrNotFound)
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return nil
}

func (m *MoodEntries) CountForUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("mood_entries.CountForUser"); err != nil {
		return 0, err
	}
	var n int64
	for _, e := range s.entries {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *MoodEntries) CountForSong(_ context.Context, songID primitive.ObjectID) (int64, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("mood_entries.CountForSong"); err != nil {
		return 0, err
	}
	var n int64
	for _, e := range s.entries {
		if e.SongID != nil && *e.SongID == songID {
			n++
		}
	}
	return n, nil
}

// inWindow returns a user's entries created at or after since. Callers hold s.mu.
func (s *Store) inWindow(userID primitive.ObjectID, since time.Time) []db.MoodEntry {
	var out []db.MoodEntry
	for _, e := range s.entries {
		if e.UserID == userID && !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out
}

func (m *MoodEntries) MoodDistribution(_ context.Context, userID primitive.ObjectID, since time.Time) ([]db.MoodCount, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("mood_entries.MoodDistribution"); err != nil {
		return nil, err
	}
	counts := []db.MoodCount{}
	index := make(map[string]int)
	for _, e := range s.inWindow(userID, since) {
		i, ok := index[e.Emoji]
		if !ok {
			i = len(counts)
			index[e.Emoji] = i
			counts = append(counts, db.MoodCount{Emoji: e.Emoji})
		}
		counts[i].Count++
	}
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Emoji < counts[j].Emoji
	})
	return counts, nil
}

func (m *MoodEntries) DistinctDays(_ context.Context, userID primitive.ObjectID, since time.Time) ([]string, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("mood_entries.DistinctDays"); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	days := []string{}
	for _, e := range s.inWindow(userID, since) {
		if !seen[e.Date] {
			seen[e.Date] = true
			days = append(days, e.Date)
		}
	}
	return days, nil
}

func (m *MoodEntries) TopSongs(_ context.Context, userID primitive.ObjectID, since time.Time, limit int64) ([]db.SongCount, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("mood_entries.TopSongs"); err != nil {
		return nil, err
	}
	counts := []db.SongCount{}
	index := make(map[primitive.ObjectID]int)
	for _, e := range s.inWindow(userID, since) {
		if e.SongID == nil {
			continue
		}
		si := s.songIndex(*e.SongID)
		if si < 0 {
			continue
		}
		i, ok := index[*e.SongID]
		if !ok {
			i = len(counts)
			index[*e.SongID] = i
			counts = append(counts, db.SongCount{
				SongID: *e.SongID,
				Title:  s.songs[si].Title,
				Artist: s.songs[si].Artist,
			})
		}
		counts[i].Count++
	}
	sort.SliceStable(counts, func(i, j int) bool {
		a, b := counts[i], counts[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.SongID.Hex() < b.SongID.Hex()
	})
	if limit > 0 && int64(len(counts)) > limit {
		counts = counts[:limit]
	}
	return counts, nil
}

func (s *Store) entryIndex(id primitive.ObjectID) int {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}
