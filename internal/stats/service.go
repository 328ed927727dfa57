// Package stats computes windowed mood statistics for a user.
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/registramood/moodtracker/internal/db"
)

// Window bounds in days.
const (
	MinWindowDays = 1
	MaxWindowDays = 3650
)

// TopSongsLimit is the number of songs reported per window.
const TopSongsLimit = 5

// Activity levels.
const (
	ActivityHigh   = "High"
	ActivityMedium = "Medium"
	ActivityLow    = "Low"
)

// Trends reported by ComparePeriods.
const (
	TrendIncreased = "increased"
	TrendDecreased = "decreased"
	TrendUnchanged = "unchanged"
)

// UserReader resolves the subject of a report.
type UserReader interface {
	Get(ctx context.Context, id primitive.ObjectID) (*db.User, error)
}

// EntryAggregator runs the mood entry queries the statistics are built from.
type EntryAggregator interface {
	MoodDistribution(ctx context.Context, userID primitive.ObjectID, since time.Time) ([]db.MoodCount, error)
	CountForUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
	DistinctDays(ctx context.Context, userID primitive.ObjectID, since time.Time) ([]string, error)
	TopSongs(ctx context.Context, userID primitive.ObjectID, since time.Time, limit int64) ([]db.SongCount, error)
}

var (
	_ UserReader      = (*db.UserRepository)(nil)
	_ EntryAggregator = (*db.MoodEntryRepository)(nil)
)

// Computer is implemented by Service and CachedService.
type Computer interface {
	ComputeMoodStats(ctx context.Context, userID string, days int) (*MoodStats, error)
	ComparePeriods(ctx context.Context, userID string, days1, days2 int) (*Comparison, error)
}

// UserSummary identifies the subject of a report.
type UserSummary struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	UserType string `json:"user_type"`
}

// MoodCount is one emoji group.
type MoodCount struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// SongCount is one top-songs row.
type SongCount struct {
	SongID string `json:"song_id"`
	Title  string `json:"song_title"`
	Artist string `json:"song_artist"`
	Count  int    `json:"count"`
}

// Summary holds the derived labels of a report.
type Summary struct {
	ActivityLevel string `json:"activity_level"`
	Consistency   string `json:"consistency"`
	MoodVariety   int    `json:"mood_variety"`
}

// MoodStats is the statistics of one user over a trailing window.
type MoodStats struct {
	ReportID              string      `json:"report_id"`
	UserID                string      `json:"user_id"`
	User                  UserSummary `json:"user_info"`
	WindowDays            int         `json:"period_days"`
	WindowStart           time.Time   `json:"window_start"`
	TotalEntriesPeriod    int         `json:"total_entries_period"`
	TotalEntriesAllTime   int64       `json:"total_entries_all_time"`
	UniqueDaysWithEntries int         `json:"unique_days_with_entries"`
	MoodDistribution      []MoodCount `json:"mood_distribution"`
	MostCommonMood        *string     `json:"most_common_mood"`
	TopSongs              []SongCount `json:"top_songs"`
	Summary               Summary     `json:"report_summary"`
	GeneratedAt           time.Time   `json:"generated_at"`
}

// PeriodComparison is the difference in entry totals between two windows.
type PeriodComparison struct {
	Period1        string `json:"period1"`
	Period2        string `json:"period2"`
	EntriesPeriod1 int    `json:"entries_period1"`
	EntriesPeriod2 int    `json:"entries_period2"`
	Difference     int    `json:"difference"`
	Trend          string `json:"trend"`
}

// Comparison is the result of ComparePeriods.
type Comparison struct {
	UserID      string           `json:"user_id"`
	Comparison  PeriodComparison `json:"comparison"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Service computes statistics straight from the store.
type Service struct {
	users   UserReader
	entries EntryAggregator
	now     func() time.Time
	newID   func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithReportIDs replaces the report id generator.
func WithReportIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a statistics service.
func NewService(users UserReader, entries EntryAggregator, opts ...Option) *Service {
	s := &Service{
		users:   users,
		entries: entries,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateWindow checks that days is within the accepted window range.
func ValidateWindow(field string, days int) error {
	if days < MinWindowDays || days > MaxWindowDays {
		return db.NewValidationError(field, fmt.Sprintf("%s must be between %d and %d", field, MinWindowDays, MaxWindowDays))
	}
	return nil
}

// ComputeMoodStats computes a user's statistics over the last days days.
//
// Distribution groups are ordered by count, then emoji; top songs by count,
// then title, then song id. Equal inputs and clock give equal output apart
// from the report id.
func (s *Service) ComputeMoodStats(ctx context.Context, userID string, days int) (*MoodStats, error) {
	if err := ValidateWindow("days", days); err != nil {
		return nil, err
	}
	oid, err := db.ParseID(userID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Get(ctx, oid)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	since := now.AddDate(0, 0, -days)

	groups, err := s.entries.MoodDistribution(ctx, oid, since)
	if err != nil {
		return nil, fmt.Errorf("computing mood distribution: %w", err)
	}
	allTime, err := s.entries.CountForUser(ctx, oid)
	if err != nil {
		return nil, fmt.Errorf("counting entries: %w", err)
	}
	dates, err := s.entries.DistinctDays(ctx, oid, since)
	if err != nil {
		return nil, fmt.Errorf("counting days with entries: %w", err)
	}
	songs, err := s.entries.TopSongs(ctx, oid, since, TopSongsLimit)
	if err != nil {
		return nil, fmt.Errorf("computing top songs: %w", err)
	}

	distribution := make([]MoodCount, len(groups))
	total := 0
	for i, g := range groups {
		distribution[i] = MoodCount{Emoji: g.Emoji, Count: g.Count}
		total += g.Count
	}
	sortDistribution(distribution)

	var mostCommon *string
	if len(distribution) > 0 {
		emoji := distribution[0].Emoji
		mostCommon = &emoji
	}

	top := make([]SongCount, len(songs))
	for i, sc := range songs {
		top[i] = SongCount{SongID: sc.SongID.Hex(), Title: sc.Title, Artist: sc.Artist, Count: sc.Count}
	}
	sortTopSongs(top)
	if len(top) > TopSongsLimit {
		top = top[:TopSongsLimit]
	}

	uniqueDays := len(dates)

	return &MoodStats{
		ReportID: s.newID(),
		UserID:   oid.Hex(),
		User: UserSummary{
			Username: user.Username,
			Email:    user.Email,
			UserType: user.UserType,
		},
		WindowDays:            days,
		WindowStart:           since,
		TotalEntriesPeriod:    total,
		TotalEntriesAllTime:   allTime,
		UniqueDaysWithEntries: uniqueDays,
		MoodDistribution:      distribution,
		MostCommonMood:        mostCommon,
		TopSongs:              top,
		Summary: Summary{
			ActivityLevel: ActivityLevel(total),
			Consistency:   Consistency(uniqueDays, days),
			MoodVariety:   len(distribution),
		},
		GeneratedAt: now,
	}, nil
}

// ComparePeriods computes both windows independently and reports how the
// entry total of the first differs from the second.
func (s *Service) ComparePeriods(ctx context.Context, userID string, days1, days2 int) (*Comparison, error) {
	return comparePeriods(ctx, s, userID, days1, days2)
}

func comparePeriods(ctx context.Context, c Computer, userID string, days1, days2 int) (*Comparison, error) {
	if err := ValidateWindow("days1", days1); err != nil {
		return nil, err
	}
	if err := ValidateWindow("days2", days2); err != nil {
		return nil, err
	}

	first, err := c.ComputeMoodStats(ctx, userID, days1)
	if err != nil {
		return nil, err
	}
	second, err := c.ComputeMoodStats(ctx, userID, days2)
	if err != nil {
		return nil, err
	}

	generated := first.GeneratedAt
	if second.GeneratedAt.After(generated) {
		generated = second.GeneratedAt
	}

	diff := first.TotalEntriesPeriod - second.TotalEntriesPeriod
	return &Comparison{
		UserID: first.UserID,
		Comparison: PeriodComparison{
			Period1:        PeriodLabel(days1),
			Period2:        PeriodLabel(days2),
			EntriesPeriod1: first.TotalEntriesPeriod,
			EntriesPeriod2: second.TotalEntriesPeriod,
			Difference:     diff,
			Trend:          Trend(diff),
		},
		GeneratedAt: generated,
	}, nil
}

// ActivityLevel labels an in-window entry total.
func ActivityLevel(total int) string {
	switch {
	case total > 20:
		return ActivityHigh
	case total > 10:
		return ActivityMedium
	default:
		return ActivityLow
	}
}

// Consistency describes how many days of the window have entries.
func Consistency(uniqueDays, days int) string {
	return fmt.Sprintf("%d/%d days with entries", uniqueDays, days)
}

// PeriodLabel names a trailing window.
func PeriodLabel(days int) string {
	if days == 1 {
		return "Last 1 day"
	}
	return fmt.Sprintf("Last %d days", days)
}

// Trend labels the sign of a difference.
func Trend(diff int) string {
	switch {
	case diff > 0:
		return TrendIncreased
	case diff < 0:
		return TrendDecreased
	default:
		return TrendUnchanged
	}
}

func sortDistribution(d []MoodCount) {
	sort.SliceStable(d, func(i, j int) bool {
		if d[i].Count != d[j].Count {
			return d[i].Count > d[j].Count
		}
		return d[i].Emoji < d[j].Emoji
	})
}

func sortTopSongs(s []SongCount) {
	sort.SliceStable(s, func(i, j int) bool {
		a, b := s[i], s[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.SongID < b.SongID
	})
}
