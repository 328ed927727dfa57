// Package spotify resolves Spotify track links to artist genres using the
// Web API with app-only (client credentials) authorization.
package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// Spotify accepts at most 50 ids per artists request.
const maxArtistsPerRequest = 50

// Client wraps the Spotify API client with catalog lookups.
type Client struct {
	api *spotify.Client
}

// New wraps an already-authorized API client.
func New(api *spotify.Client) *Client {
	return &Client{api: api}
}

// NewWithCredentials builds a client that authorizes with the app's own credentials.
// Tokens are fetched lazily on the first request.
func NewWithCredentials(ctx context.Context, clientID, clientSecret string) *Client {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return New(spotify.New(cfg.Client(ctx)))
}

// ParseTrackURL extracts the track id from an open.spotify.com link or a
// spotify:track: URI.
func ParseTrackURL(raw string) (spotify.ID, bool) {
	raw = strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(raw, "spotify:track:"); ok {
		return idOrFalse(rest)
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host != "open.spotify.com" {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// Localized links look like /intl-pt/track/<id>.
	if len(parts) == 3 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) != 2 || parts[0] != "track" {
		return "", false
	}
	return idOrFalse(parts[1])
}

func idOrFalse(s string) (spotify.ID, bool) {
	if s == "" || strings.ContainsAny(s, "/:?") {
		return "", false
	}
	return spotify.ID(s), true
}

// ArtistGenres returns the combined genres of every artist on the linked track.
// Links that are not Spotify track links yield no genres and no error.
func (c *Client) ArtistGenres(ctx context.Context, trackURL string) ([]string, error) {
	id, ok := ParseTrackURL(trackURL)
	if !ok {
		return nil, nil
	}

	track, err := c.api.GetTrack(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting track %s: %w", id, err)
	}

	ids := make([]spotify.ID, 0, len(track.Artists))
	for _, a := range track.Artists {
		if a.ID != "" {
			ids = append(ids, a.ID)
		}
	}

	var genres []string
	seen := make(map[string]bool)
	for i := 0; i < len(ids); i += maxArtistsPerRequest {
		end := min(i+maxArtistsPerRequest, len(ids))
		artists, err := c.api.GetArtists(ctx, ids[i:end]...)
		if err != nil {
			return nil, fmt.Errorf("getting artists for track %s: %w", id, err)
		}
		for _, artist := range artists {
			if artist == nil {
				continue
			}
			for _, g := range artist.Genres {
				if !seen[g] {
					seen[g] = true
					genres = append(genres, g)
				}
			}
		}
	}
	return genres, nil
}
