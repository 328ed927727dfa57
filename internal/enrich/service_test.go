package enrich

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// mockSpotify implements SpotifyCatalog for testing.
type mockSpotify struct {
	genres map[string][]string
	err    error
	calls  atomic.Int32
}

func (m *mockSpotify) ArtistGenres(_ context.Context, trackURL string) ([]string, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.genres[trackURL], nil
}

// mockTags implements TagCatalog for testing.
type mockTags struct {
	// genres maps "artist:title" to tags
	genres map[string][]string
	errors map[string]error
	delay  time.Duration
	calls  atomic.Int32
}

func newMockTags() *mockTags {
	return &mockTags{genres: make(map[string][]string), errors: make(map[string]error)}
}

func (m *mockTags) Genres(ctx context.Context, artist, title string, limit int) ([]string, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	key := artist + ":" + title
	if err, ok := m.errors[key]; ok {
		return nil, err
	}
	return m.genres[key], nil
}

func TestLookup(t *testing.T) {
	const link = "https://open.spotify.com/track/abc"

	tests := []struct {
		name       string
		spotify    *mockSpotify
		tags       *mockTags
		song       Song
		wantGenres []string
		wantSource Source
		wantErr    bool
	}{
		{
			name:       "spotify first",
			spotify:    &mockSpotify{genres: map[string][]string{link: {"Art Rock", "glam rock"}}},
			tags:       newMockTags(),
			song:       Song{Title: "Heroes", Artist: "David Bowie", SpotifyURL: link},
			wantGenres: []string{"art rock", "glam rock"},
			wantSource: SourceSpotify,
		},
		{
			name:    "no spotify link uses tags",
			spotify: &mockSpotify{},
			tags: func() *mockTags {
				m := newMockTags()
				m.genres["Nina Simone:Feeling Good"] = []string{"jazz", "soul", "Jazz"}
				return m
			}(),
			song:       Song{Title: "Feeling Good", Artist: "Nina Simone"},
			wantGenres: []string{"jazz", "soul"},
			wantSource: SourceLastFM,
		},
		{
			name:    "spotify failure falls through",
			spotify: &mockSpotify{err: errors.New("boom")},
			tags: func() *mockTags {
				m := newMockTags()
				m.genres["Blur:Song 2"] = []string{"britpop"}
				return m
			}(),
			song:       Song{Title: "Song 2", Artist: "Blur", SpotifyURL: link},
			wantGenres: []string{"britpop"},
			wantSource: SourceLastFM,
		},
		{
			name:    "every source failing reports the error",
			spotify: &mockSpotify{err: errors.New("spotify down")},
			tags: func() *mockTags {
				m := newMockTags()
				m.errors["Blur:Song 2"] = errors.New("lastfm down")
				return m
			}(),
			song:       Song{Title: "Song 2", Artist: "Blur", SpotifyURL: link},
			wantGenres: []string{},
			wantSource: SourceNone,
			wantErr:    true,
		},
		{
			name:       "nothing found is not an error",
			spotify:    &mockSpotify{},
			tags:       newMockTags(),
			song:       Song{Title: "Unknown", Artist: "Nobody"},
			wantGenres: []string{},
			wantSource: SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(WithSpotify(tt.spotify), WithTags(tt.tags))

			genres, source, err := svc.Lookup(context.Background(), tt.song)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Lookup() error = %v, wantErr %v", err, tt.wantErr)
			}
			if source != tt.wantSource {
				t.Errorf("source = %q, want %q", source, tt.wantSource)
			}
			if len(genres) != len(tt.wantGenres) {
				t.Fatalf("genres = %v, want %v", genres, tt.wantGenres)
			}
			for i := range genres {
				if genres[i] != tt.wantGenres[i] {
					t.Errorf("genres[%d] = %q, want %q", i, genres[i], tt.wantGenres[i])
				}
			}
		})
	}
}

func TestLookup_NoCatalogs(t *testing.T) {
	svc := NewService()
	if svc.Enabled() {
		t.Error("Enabled() = true with no catalogs")
	}
	genres, source, err := svc.Lookup(context.Background(), Song{Title: "x", Artist: "y"})
	if err != nil || source != SourceNone || len(genres) != 0 {
		t.Errorf("Lookup() = %v, %q, %v", genres, source, err)
	}
}

func TestLookupBatch_PreservesOrder(t *testing.T) {
	tags := newMockTags()
	tags.delay = 5 * time.Millisecond
	songs := make([]Song, 20)
	for i := range songs {
		title := string(rune('a' + i))
		songs[i] = Song{ID: title, Title: title, Artist: "artist"}
		tags.genres["artist:"+title] = []string{"genre-" + title}
	}
	tags.errors["artist:c"] = errors.New("failed")

	svc := NewService(WithTags(tags), WithConcurrency(4))
	results, err := svc.LookupBatch(context.Background(), songs)
	if err != nil {
		t.Fatalf("LookupBatch() error = %v", err)
	}
	if len(results) != len(songs) {
		t.Fatalf("got %d results, want %d", len(results), len(songs))
	}
	for i, r := range results {
		if r.SongID != songs[i].ID {
			t.Errorf("result %d SongID = %q, want %q", i, r.SongID, songs[i].ID)
		}
		if songs[i].ID == "c" {
			if r.Err == nil {
				t.Error("expected error for song c")
			}
			continue
		}
		if len(r.Genres) != 1 || r.Genres[0] != "genre-"+songs[i].ID {
			t.Errorf("result %d genres = %v", i, r.Genres)
		}
	}
	if got := tags.calls.Load(); got != int32(len(songs)) {
		t.Errorf("calls = %d, want %d", got, len(songs))
	}
}

func TestLookupBatch_Empty(t *testing.T) {
	results, err := NewService().LookupBatch(context.Background(), nil)
	if err != nil || len(results) != 0 {
		t.Errorf("LookupBatch(nil) = %v, %v", results, err)
	}
}

func TestLookupBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tags := newMockTags()
	svc := NewService(WithTags(tags))
	results, err := svc.LookupBatch(ctx, []Song{{ID: "1", Title: "a", Artist: "b"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if !errors.Is(results[0].Err, context.Canceled) {
		t.Errorf("result error = %v, want context.Canceled", results[0].Err)
	}
}

func TestNormalize(t *testing.T) {
	got := normalize([]string{" Rock ", "rock", "", "Pop", "a", "b", "c", "d"})
	want := []string{"rock", "pop", "a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("normalize() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("normalize()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
