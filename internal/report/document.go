// Package report turns mood statistics into HTML and PDF documents.
package report

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/registramood/moodtracker/internal/stats"
)

// Brand signs every report.
const Brand = "Registra.Mood"

const notAvailable = "N/A"

// Options controls the audience and time zone of a report.
type Options struct {
	// Professional switches the wording to the clinician-facing variant.
	Professional bool
	// Location is the zone used for the generation timestamp. Default: UTC.
	Location *time.Location
}

// Row is a label/value line of the summary table. Plain is Value without emoji.
type Row struct {
	Label string
	Value string
	Plain string
}

// DistributionRow is one emoji group with its share of the period total.
type DistributionRow struct {
	Emoji       string
	Name        string
	Count       int
	Percentage  float64
	PercentText string
}

// SongRow is one ranked top song.
type SongRow struct {
	Rank   int
	Title  string
	Artist string
	Count  int
}

// Document is a renderer-neutral mood report.
type Document struct {
	ReportID        string
	Title           string
	SubjectLabel    string
	SubjectName     string
	Period          string
	WindowDays      int
	GeneratedAt     time.Time
	GeneratedAtText string
	Professional    bool
	Summary         []Row
	Distribution    []DistributionRow
	TopSongs        []SongRow
	Observations    []string
	Footer          string
	Signature       string
}

// Build lays out a report for st.
func Build(st *stats.MoodStats, opts Options) Document {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	generated := st.GeneratedAt.In(loc)

	doc := Document{
		ReportID:        st.ReportID,
		Title:           "Mood Report",
		SubjectLabel:    "User",
		SubjectName:     st.User.Username,
		Period:          stats.PeriodLabel(st.WindowDays),
		WindowDays:      st.WindowDays,
		GeneratedAt:     generated,
		GeneratedAtText: generated.Format("02/01/2006 at 15:04"),
		Professional:    opts.Professional,
		Footer:          "This is your personal mood report. Use it to keep track of your well-being.",
		Signature:       fmt.Sprintf("Generated by %s on %s", Brand, generated.Format("02/01/2006")),
	}
	if opts.Professional {
		doc.SubjectLabel = "Patient"
		doc.Footer = "This report was generated for professional psychological follow-up."
	}

	mostCommon, mostCommonPlain := notAvailable, notAvailable
	if st.MostCommonMood != nil {
		name := MoodName(*st.MostCommonMood)
		mostCommon = fmt.Sprintf("%s (%s)", *st.MostCommonMood, name)
		mostCommonPlain = name
	}
	doc.Summary = []Row{
		plainRow("Entries (period)", strconv.Itoa(st.TotalEntriesPeriod)),
		plainRow("Entries (all time)", strconv.FormatInt(st.TotalEntriesAllTime, 10)),
		plainRow("Days with entries", fmt.Sprintf("%d/%d", st.UniqueDaysWithEntries, st.WindowDays)),
		{Label: "Most common mood", Value: mostCommon, Plain: mostCommonPlain},
		plainRow("Mood variety", strconv.Itoa(len(st.MoodDistribution))),
	}

	doc.Distribution = make([]DistributionRow, len(st.MoodDistribution))
	for i, m := range st.MoodDistribution {
		p := Percentage(m.Count, st.TotalEntriesPeriod)
		doc.Distribution[i] = DistributionRow{
			Emoji:       m.Emoji,
			Name:        MoodName(m.Emoji),
			Count:       m.Count,
			Percentage:  p,
			PercentText: strconv.FormatFloat(p, 'f', -1, 64) + "%",
		}
	}

	doc.TopSongs = make([]SongRow, 0, len(st.TopSongs))
	for i, s := range st.TopSongs {
		doc.TopSongs = append(doc.TopSongs, SongRow{
			Rank:   i + 1,
			Title:  orNA(s.Title),
			Artist: orNA(s.Artist),
			Count:  s.Count,
		})
	}

	doc.Observations = observations(st)
	return doc
}

// Percentage is count's share of total, rounded to one decimal. A zero total yields 0.
func Percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}

func observations(st *stats.MoodStats) []string {
	if st.TotalEntriesPeriod == 0 {
		return []string{"No entries recorded in this period."}
	}
	obs := []string{"Activity level: " + st.Summary.ActivityLevel}
	if st.MostCommonMood != nil {
		obs = append(obs, "Predominant mood: "+MoodName(*st.MostCommonMood))
	}
	obs = append(obs, fmt.Sprintf("Logged a mood on %d of %d days", st.UniqueDaysWithEntries, st.WindowDays))
	if len(st.TopSongs) > 0 {
		obs = append(obs, fmt.Sprintf("Most logged song: %q", orNA(st.TopSongs[0].Title)))
	}
	return obs
}

func plainRow(label, value string) Row {
	return Row{Label: label, Value: value, Plain: value}
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
