// Command moodtracker-api serves users, songs and mood entries over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/registramood/moodtracker/internal/config"
	"github.com/registramood/moodtracker/internal/db"
	"github.com/registramood/moodtracker/internal/enrich"
	"github.com/registramood/moodtracker/internal/lastfm"
	"github.com/registramood/moodtracker/internal/logging"
	"github.com/registramood/moodtracker/internal/records"
	"github.com/registramood/moodtracker/internal/spotify"
	"github.com/registramood/moodtracker/internal/stats"
	"github.com/registramood/moodtracker/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.ServiceAPI)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: cfg.Service})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	database, err := db.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.Close(closeCtx); err != nil {
			logging.Warn().Err(err).Msg("closing database")
		}
	}()

	if err := database.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensuring indexes: %w", err)
	}

	opts := []records.Option{records.WithBcryptCost(cfg.BcryptCost)}
	genres, err := newGenreService(cfg)
	if err != nil {
		return err
	}
	if genres.Enabled() {
		opts = append(opts, records.WithGenreLookup(genres))
	}

	var computer stats.Computer = stats.NewService(database.Users(), database.MoodEntries())
	if cfg.RedisURL != "" {
		client, err := stats.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logging.Warn().Err(err).Msg("stats cache disabled")
		} else {
			defer client.Close()
			cache := stats.NewCachedService(computer, client, cfg.StatsCacheTTL)
			opts = append(opts, records.WithStatsInvalidator(cache))
			computer = cache
		}
	}

	users := records.NewUsers(database.Users(), opts...)
	songs := records.NewSongs(database.Songs(), opts...)
	moods := records.NewMoods(database.MoodEntries(), users, songs, opts...)

	server := web.NewServer(web.ServerConfig{
		Addr:           cfg.HTTPAddr,
		Service:        cfg.Service,
		AllowedOrigins: cfg.Origins(),
		Ping:           database.Ping,
	}, web.NewAPIHandlers(users, songs, moods, computer).WithLoginRateLimit(cfg.LoginRateLimit))

	return server.Run()
}

// newGenreService wires whichever genre catalogs are configured.
func newGenreService(cfg *config.Config) (*enrich.Service, error) {
	opts := []enrich.Option{
		enrich.WithConcurrency(cfg.EnrichConcurrency),
		enrich.WithBreakers(enrich.BreakerConfig{}),
	}

	if cfg.SpotifyEnabled() {
		opts = append(opts, enrich.WithSpotify(spotify.NewWithCredentials(context.Background(), cfg.SpotifyID, cfg.SpotifySecret)))
		logging.Info().Msg("spotify genre lookup enabled")
	}
	if cfg.LastFMAPIKey != "" {
		client, err := lastfm.NewClient(cfg.LastFMAPIKey)
		if err != nil {
			return nil, fmt.Errorf("creating last.fm client: %w", err)
		}
		opts = append(opts, enrich.WithTags(client))
		logging.Info().Msg("last.fm genre lookup enabled")
	}

	return enrich.NewService(opts...), nil
}
