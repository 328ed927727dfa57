// Package config loads service configuration from the environment, an optional
// .env file and an optional config.yml in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Service names accepted by Load.
const (
	ServiceAPI     = "api"
	ServiceReports = "reports"
)

// Config holds the settings shared by both services.
type Config struct {
	Service string `mapstructure:"-"`

	HTTPAddr       string `mapstructure:"HTTP_ADDR"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	RedisURL      string        `mapstructure:"REDIS_URL"`
	StatsCacheTTL time.Duration `mapstructure:"STATS_CACHE_TTL"`

	ReportUTCOffsetHours int `mapstructure:"REPORT_UTC_OFFSET_HOURS"`
	BcryptCost           int `mapstructure:"BCRYPT_COST"`

	SpotifyID         string `mapstructure:"SPOTIFY_ID"`
	SpotifySecret     string `mapstructure:"SPOTIFY_SECRET"`
	LastFMAPIKey      string `mapstructure:"LASTFM_API_KEY"`
	EnrichConcurrency int    `mapstructure:"ENRICH_CONCURRENCY"`

	LoginRateLimit int `mapstructure:"LOGIN_RATE_LIMIT"`
}

// Load reads configuration for the named service.
func Load(service string) (*Config, error) {
	if service != ServiceAPI && service != ServiceReports {
		return nil, fmt.Errorf("unknown service %q", service)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v, service)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Service = service

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	addr := ":5000"
	if service == ServiceReports {
		addr = ":5001"
	}
	v.SetDefault("HTTP_ADDR", addr)
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "moodtracker")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("STATS_CACHE_TTL", "60s")
	v.SetDefault("REPORT_UTC_OFFSET_HOURS", -3)
	v.SetDefault("BCRYPT_COST", bcrypt.DefaultCost)
	v.SetDefault("SPOTIFY_ID", "")
	v.SetDefault("SPOTIFY_SECRET", "")
	v.SetDefault("LASTFM_API_KEY", "")
	v.SetDefault("ENRICH_CONCURRENCY", 5)
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.MongoDatabase == "" {
		errs = append(errs, errors.New("MONGO_DATABASE is required"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.StatsCacheTTL < 0 {
		errs = append(errs, errors.New("STATS_CACHE_TTL must not be negative"))
	}
	if c.ReportUTCOffsetHours < -14 || c.ReportUTCOffsetHours > 14 {
		errs = append(errs, errors.New("REPORT_UTC_OFFSET_HOURS must be within -14 and 14"))
	}
	if c.EnrichConcurrency < 1 {
		errs = append(errs, errors.New("ENRICH_CONCURRENCY must be positive"))
	}
	if c.LoginRateLimit < 0 {
		errs = append(errs, errors.New("LOGIN_RATE_LIMIT must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// ReportLocation is the fixed zone used for report timestamps.
func (c *Config) ReportLocation() *time.Location {
	offset := c.ReportUTCOffsetHours * 3600
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.ReportUTCOffsetHours), offset)
}

// SpotifyEnabled reports whether both Spotify credentials are set.
func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyID != "" && c.SpotifySecret != ""
}
