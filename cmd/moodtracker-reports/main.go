// Command moodtracker-reports serves mood statistics and rendered reports.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/registramood/moodtracker/internal/config"
	"github.com/registramood/moodtracker/internal/db"
	"github.com/registramood/moodtracker/internal/logging"
	"github.com/registramood/moodtracker/internal/records"
	"github.com/registramood/moodtracker/internal/report"
	"github.com/registramood/moodtracker/internal/stats"
	"github.com/registramood/moodtracker/internal/web"
	webfs "github.com/registramood/moodtracker/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.ServiceReports)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: cfg.Service})

	templates, err := report.NewTemplates(webfs.TemplatesFS)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

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

	users := records.NewUsers(database.Users(), records.WithBcryptCost(cfg.BcryptCost))

	var computer stats.Computer = stats.NewService(database.Users(), database.MoodEntries())
	if cfg.RedisURL != "" {
		client, err := stats.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logging.Warn().Err(err).Msg("stats cache disabled")
		} else {
			defer client.Close()
			computer = stats.NewCachedService(computer, client, cfg.StatsCacheTTL)
		}
	}

	server := web.NewServer(web.ServerConfig{
		Addr:           cfg.HTTPAddr,
		Service:        cfg.Service,
		AllowedOrigins: cfg.Origins(),
		Ping:           database.Ping,
	}, web.NewReportHandlers(users, computer, templates, cfg.ReportLocation()))

	return server.Run()
}
