package records

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/registramood/moodtracker/internal/db"
	"github.com/registramood/moodtracker/internal/enrich"
)

// stubGenres implements GenreLookup for testing.
type stubGenres struct {
	genres map[string][]string
	err    error
	calls  int
}

func (s *stubGenres) Enabled() bool { return true }

func (s *stubGenres) Lookup(_ context.Context, song enrich.Song) ([]string, enrich.Source, error) {
	s.calls++
	if s.err != nil {
		return []string{}, enrich.SourceNone, s.err
	}
	if g, ok := s.genres[song.Title]; ok {
		return g, enrich.SourceLastFM, nil
	}
	return []string{}, enrich.SourceNone, nil
}

func (s *stubGenres) LookupBatch(ctx context.Context, songs []enrich.Song) ([]enrich.Result, error) {
	out := make([]enrich.Result, len(songs))
	for i, song := range songs {
		g, src, err := s.Lookup(ctx, song)
		out[i] = enrich.Result{SongID: song.ID, Genres: g, Source: src, Err: err}
	}
	return out, nil
}

func TestCreateSongDuplicate(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	first := mustCreateSong(t, svc.songs, "Imagine", "John Lennon")
	if first.PlayCount != 0 {
		t.Errorf("PlayCount = %d, want 0", first.PlayCount)
	}
	if first.Genres == nil {
		t.Error("Genres should be an empty list, not nil")
	}

	_, err := svc.songs.Create(ctx, CreateSongInput{Title: "Imagine", Artist: "John Lennon"})
	if !errors.Is(err, db.ErrConflict) {
		t.Fatalf("second Create() error = %v, want ErrConflict", err)
	}

	// Same title by another artist is a different song.
	if _, err := svc.songs.Create(ctx, CreateSongInput{Title: "Imagine", Artist: "A Perfect Circle"}); err != nil {
		t.Errorf("Create() error = %v", err)
	}
}

func TestCreateSongValidation(t *testing.T) {
	tests := []struct {
		name      string
		in        CreateSongInput
		wantErr   error
		wantField string
	}{
		{"missing title", CreateSongInput{Artist: "Queen"}, db.ErrValidation, "title"},
		{"missing artist", CreateSongInput{Title: "Bohemian Rhapsody"}, db.ErrValidation, "artist"},
		{"bad link", CreateSongInput{Title: "a", Artist: "b", SpotifyURL: "not a url"}, db.ErrValidation, "spotify_url"},
		{"bad owner", CreateSongInput{Title: "a", Artist: "b", UserID: "nope"}, db.ErrInvalidID, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newServices(t)
			_, err := svc.songs.Create(context.Background(), tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			var verr *db.ValidationError
			if tt.wantField != "" && (!errors.As(err, &verr) || verr.Field != tt.wantField) {
				t.Errorf("error = %v, want field %q", err, tt.wantField)
			}
		})
	}
}

func TestListSongsOwnerFilter(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()
	ana := mustRegister(t, svc.users, "ana@example.com")
	bia := mustRegister(t, svc.users, "bia@example.com")

	mustCreateSong(t, svc.songs, "Global", "Everyone")
	if _, err := svc.songs.Create(ctx, CreateSongInput{Title: "Mine", Artist: "Ana", UserID: ana.ID.Hex()}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.songs.Create(ctx, CreateSongInput{Title: "Hers", Artist: "Bia", UserID: bia.ID.Hex()}); err != nil {
		t.Fatal(err)
	}

	all, err := svc.songs.List(ctx, "", 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("List(all) = %d songs, %v", len(all), err)
	}

	visible, err := svc.songs.List(ctx, ana.ID.Hex(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 2 || visible[0].Title != "Global" || visible[1].Title != "Mine" {
		t.Errorf("List(ana) = %v", visible)
	}

	limited, _ := svc.songs.List(ctx, "", 1)
	if len(limited) != 1 {
		t.Errorf("List(limit 1) = %d songs", len(limited))
	}
}

func TestSearchSongs(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()
	mustCreateSong(t, svc.songs, "Imagine", "John Lennon")
	mustCreateSong(t, svc.songs, "Jealous Guy", "John Lennon")
	mustCreateSong(t, svc.songs, "Heroes", "David Bowie")

	tests := []struct {
		query string
		want  int
	}{
		{"imag", 1},
		{"LENNON", 2},
		{"bowie", 1},
		{"zzz", 0},
		{".*", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := svc.songs.Search(ctx, tt.query, 0)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Search(%q) = %d songs, want %d", tt.query, len(got), tt.want)
			}
		})
	}

	if _, err := svc.songs.Search(ctx, "  ", 0); !errors.Is(err, db.ErrValidation) {
		t.Errorf("blank query error = %v, want ErrValidation", err)
	}
}

func TestSearchSongsLimit(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()
	for i := 0; i < DefaultSongLimit+5; i++ {
		mustCreateSong(t, svc.songs, fmt.Sprintf("Song %03d", i), "Various")
	}

	all, err := svc.songs.Search(ctx, "s", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != DefaultSongLimit {
		t.Errorf("Search(default) = %d songs, want %d", len(all), DefaultSongLimit)
	}

	few, err := svc.songs.Search(ctx, "s", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(few) != 3 || few[0].Title != "Song 000" {
		t.Errorf("Search(limit 3) = %v", few)
	}
}

func TestUpdateSong(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()
	imagine := mustCreateSong(t, svc.songs, "Imagine", "John Lennon")
	mustCreateSong(t, svc.songs, "Heroes", "David Bowie")

	genres := []string{"soft rock", " "}
	updated, err := svc.songs.Update(ctx, imagine.ID.Hex(), SongPatch{Genres: &genres})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(updated.Genres) != 1 || updated.Genres[0] != "soft rock" {
		t.Errorf("Genres = %v", updated.Genres)
	}

	title, artist := "Heroes", "David Bowie"
	if _, err := svc.songs.Update(ctx, imagine.ID.Hex(), SongPatch{Title: &title, Artist: &artist}); !errors.Is(err, db.ErrConflict) {
		t.Errorf("colliding update error = %v, want ErrConflict", err)
	}

	// Renaming to its own pair is not a conflict.
	same := "Imagine"
	if _, err := svc.songs.Update(ctx, imagine.ID.Hex(), SongPatch{Title: &same}); err != nil {
		t.Errorf("self update error = %v", err)
	}
}

func TestCreateSongEnrichesGenres(t *testing.T) {
	lookup := &stubGenres{genres: map[string][]string{"Heroes": {"art rock"}}}
	svc := newServices(t, WithGenreLookup(lookup))
	ctx := context.Background()

	heroes := mustCreateSong(t, svc.songs, "Heroes", "David Bowie")
	if len(heroes.Genres) != 1 || heroes.Genres[0] != "art rock" {
		t.Errorf("Genres = %v, want [art rock]", heroes.Genres)
	}

	withGenres, err := svc.songs.Create(ctx, CreateSongInput{Title: "Song 2", Artist: "Blur", Genres: []string{"britpop"}})
	if err != nil {
		t.Fatal(err)
	}
	if lookup.calls != 1 {
		t.Errorf("lookup calls = %d, want 1 (explicit genres skip lookup)", lookup.calls)
	}
	if withGenres.Genres[0] != "britpop" {
		t.Errorf("Genres = %v", withGenres.Genres)
	}
}

func TestCreateSongEnrichmentFailureIsNotFatal(t *testing.T) {
	svc := newServices(t, WithGenreLookup(&stubGenres{err: errors.New("catalog down")}))

	song, err := svc.songs.Create(context.Background(), CreateSongInput{Title: "Heroes", Artist: "David Bowie"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(song.Genres) != 0 {
		t.Errorf("Genres = %v, want none", song.Genres)
	}
}

func TestBackfillGenres(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()
	mustCreateSong(t, svc.songs, "Heroes", "David Bowie")
	mustCreateSong(t, svc.songs, "Unknown", "Nobody")
	if _, err := svc.songs.Create(ctx, CreateSongInput{Title: "Song 2", Artist: "Blur", Genres: []string{"britpop"}}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.songs.BackfillGenres(ctx, 0); err == nil {
		t.Error("BackfillGenres() without a genre source should fail")
	}

	enriched := NewSongs(svc.store.Songs(), WithGenreLookup(&stubGenres{genres: map[string][]string{"Heroes": {"art rock"}}}))
	outcomes, err := enriched.BackfillGenres(ctx, 0)
	if err != nil {
		t.Fatalf("BackfillGenres() error = %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %v, want 2 songs without genres", outcomes)
	}
	if outcomes[0].Title != "Heroes" || outcomes[0].Source != enrich.SourceLastFM {
		t.Errorf("outcome[0] = %+v", outcomes[0])
	}
	if outcomes[1].Source != enrich.SourceNone {
		t.Errorf("outcome[1] = %+v", outcomes[1])
	}

	remaining, _ := svc.store.Songs().ListWithoutGenres(ctx, 0)
	if len(remaining) != 1 || remaining[0].Title != "Unknown" {
		t.Errorf("songs still without genres = %v", remaining)
	}
}
