package report

import (
	"bytes"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/registramood/moodtracker/internal/stats"
	"github.com/registramood/moodtracker/web"
)

func sampleStats() *stats.MoodStats {
	happy := "😊"
	return &stats.MoodStats{
		ReportID:              "3f9a7c52-0000-4000-8000-000000000001",
		UserID:                "665f1c2e8a1b2c3d4e5f6a7b",
		User:                  stats.UserSummary{Username: "ana", Email: "ana@example.com", UserType: "patient"},
		WindowDays:            30,
		TotalEntriesPeriod:    20,
		TotalEntriesAllTime:   42,
		UniqueDaysWithEntries: 12,
		MoodDistribution: []stats.MoodCount{
			{Emoji: "😊", Count: 15},
			{Emoji: "😢", Count: 5},
		},
		MostCommonMood: &happy,
		TopSongs: []stats.SongCount{
			{SongID: "a", Title: "Clube da Esquina", Artist: "Milton Nascimento", Count: 7},
			{SongID: "b", Title: "Águas de Março", Artist: "Elis Regina", Count: 3},
		},
		Summary:     stats.Summary{ActivityLevel: stats.ActivityMedium, Consistency: "12/30 days with entries", MoodVariety: 2},
		GeneratedAt: time.Date(2024, 6, 30, 15, 4, 0, 0, time.UTC),
	}
}

func emptyStats() *stats.MoodStats {
	return &stats.MoodStats{
		ReportID:    "3f9a7c52-0000-4000-8000-000000000002",
		User:        stats.UserSummary{Username: "bia"},
		WindowDays:  7,
		Summary:     stats.Summary{ActivityLevel: stats.ActivityLow, Consistency: "0/7 days with entries"},
		GeneratedAt: time.Date(2024, 6, 30, 1, 0, 0, 0, time.UTC),
	}
}

func TestMoodName(t *testing.T) {
	tests := []struct {
		emoji string
		want  string
	}{
		{"😊", "Happy"},
		{"😢", "Sad"},
		{"😡", "Angry"},
		{"😰", "Anxious"},
		{"😴", "Tired"},
		{"🥳", "Excited"},
		{"😍", "In love"},
		{"🤔", "Thoughtful"},
		{"🦄", UnknownMood},
		{"", UnknownMood},
	}
	for _, tt := range tests {
		if got := MoodName(tt.emoji); got != tt.want {
			t.Errorf("MoodName(%q) = %q, want %q", tt.emoji, got, tt.want)
		}
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name         string
		count, total int
		want         float64
	}{
		{"zero total", 3, 0, 0},
		{"three quarters", 15, 20, 75},
		{"one third", 1, 3, 33.3},
		{"two thirds", 2, 3, 66.7},
		{"all", 4, 4, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percentage(tt.count, tt.total); got != tt.want {
				t.Errorf("Percentage(%d, %d) = %v, want %v", tt.count, tt.total, got, tt.want)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	doc := Build(sampleStats(), Options{Location: time.FixedZone("UTC-3", -3*3600)})

	if doc.SubjectLabel != "User" {
		t.Errorf("SubjectLabel = %q, want User", doc.SubjectLabel)
	}
	if doc.Period != "Last 30 days" {
		t.Errorf("Period = %q", doc.Period)
	}
	if doc.GeneratedAtText != "30/06/2024 at 12:04" {
		t.Errorf("GeneratedAtText = %q, want local UTC-3 time", doc.GeneratedAtText)
	}
	if !strings.Contains(doc.Footer, "personal") {
		t.Errorf("Footer = %q, want personal wording", doc.Footer)
	}
	if doc.Signature != "Generated by Registra.Mood on 30/06/2024" {
		t.Errorf("Signature = %q", doc.Signature)
	}

	wantSummary := []Row{
		{Label: "Entries (period)", Value: "20", Plain: "20"},
		{Label: "Entries (all time)", Value: "42", Plain: "42"},
		{Label: "Days with entries", Value: "12/30", Plain: "12/30"},
		{Label: "Most common mood", Value: "😊 (Happy)", Plain: "Happy"},
		{Label: "Mood variety", Value: "2", Plain: "2"},
	}
	if len(doc.Summary) != len(wantSummary) {
		t.Fatalf("Summary has %d rows, want %d", len(doc.Summary), len(wantSummary))
	}
	for i, want := range wantSummary {
		if doc.Summary[i] != want {
			t.Errorf("Summary[%d] = %+v, want %+v", i, doc.Summary[i], want)
		}
	}

	if len(doc.Distribution) != 2 {
		t.Fatalf("Distribution has %d rows, want 2", len(doc.Distribution))
	}
	if d := doc.Distribution[0]; d.Name != "Happy" || d.Percentage != 75 || d.PercentText != "75%" {
		t.Errorf("Distribution[0] = %+v", d)
	}
	if d := doc.Distribution[1]; d.Name != "Sad" || d.PercentText != "25%" {
		t.Errorf("Distribution[1] = %+v", d)
	}

	if len(doc.TopSongs) != 2 || doc.TopSongs[0].Rank != 1 || doc.TopSongs[1].Rank != 2 {
		t.Errorf("TopSongs = %+v", doc.TopSongs)
	}

	wantObs := []string{
		"Activity level: Medium",
		"Predominant mood: Happy",
		"Logged a mood on 12 of 30 days",
		`Most logged song: "Clube da Esquina"`,
	}
	if strings.Join(doc.Observations, "|") != strings.Join(wantObs, "|") {
		t.Errorf("Observations = %q, want %q", doc.Observations, wantObs)
	}
}

func TestBuildProfessional(t *testing.T) {
	doc := Build(sampleStats(), Options{Professional: true})

	if doc.SubjectLabel != "Patient" {
		t.Errorf("SubjectLabel = %q, want Patient", doc.SubjectLabel)
	}
	if !strings.Contains(doc.Footer, "professional") {
		t.Errorf("Footer = %q, want professional wording", doc.Footer)
	}
	if doc.GeneratedAtText != "30/06/2024 at 15:04" {
		t.Errorf("GeneratedAtText = %q, want UTC when no location is set", doc.GeneratedAtText)
	}
}

func TestBuildEmptyPeriod(t *testing.T) {
	doc := Build(emptyStats(), Options{})

	if len(doc.Observations) != 1 || doc.Observations[0] != "No entries recorded in this period." {
		t.Errorf("Observations = %q", doc.Observations)
	}
	if doc.Summary[3].Value != notAvailable || doc.Summary[3].Plain != notAvailable {
		t.Errorf("most common mood row = %+v, want N/A", doc.Summary[3])
	}
	if len(doc.Distribution) != 0 || len(doc.TopSongs) != 0 {
		t.Errorf("expected empty tables, got %d distribution and %d songs", len(doc.Distribution), len(doc.TopSongs))
	}
}

func TestBuildZeroTotalPercentages(t *testing.T) {
	st := emptyStats()
	st.MoodDistribution = []stats.MoodCount{{Emoji: "😊", Count: 2}}

	doc := Build(st, Options{})
	if doc.Distribution[0].Percentage != 0 || doc.Distribution[0].PercentText != "0%" {
		t.Errorf("Distribution[0] = %+v, want 0%%", doc.Distribution[0])
	}
}

func TestRenderHTML(t *testing.T) {
	tmpl, err := NewTemplates(web.TemplatesFS)
	if err != nil {
		t.Fatalf("NewTemplates: %v", err)
	}

	var buf bytes.Buffer
	if err := tmpl.RenderHTML(&buf, Build(sampleStats(), Options{Professional: true})); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"<!DOCTYPE html>",
		"Patient:</strong> ana",
		"😊 (Happy)",
		"Clube da Esquina",
		"Águas de Março",
		"75%",
		"Predominant mood: Happy",
		"Generated by Registra.Mood",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("html output missing %q", want)
		}
	}
}

func TestRenderHTMLEmpty(t *testing.T) {
	tmpl, err := NewTemplates(web.TemplatesFS)
	if err != nil {
		t.Fatalf("NewTemplates: %v", err)
	}

	var buf bytes.Buffer
	if err := tmpl.RenderHTML(&buf, Build(emptyStats(), Options{})); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "Mood distribution") {
		t.Error("empty report should not render the distribution table")
	}
	if !strings.Contains(out, "No entries recorded in this period.") {
		t.Error("empty report should say no entries were recorded")
	}
}

func TestTemplatesEscapeUserInput(t *testing.T) {
	tmpl, err := NewTemplates(web.TemplatesFS)
	if err != nil {
		t.Fatalf("NewTemplates: %v", err)
	}
	st := sampleStats()
	st.User.Username = "<script>alert(1)</script>"

	var buf bytes.Buffer
	if err := tmpl.RenderHTML(&buf, Build(st, Options{})); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if strings.Contains(buf.String(), "<script>") {
		t.Error("username was not escaped")
	}
}

func TestTemplatesErrors(t *testing.T) {
	if _, err := NewTemplates(fstest.MapFS{}); err == nil {
		t.Error("NewTemplates with no pages: expected error")
	}

	fsys := fstest.MapFS{
		"layouts/base.html": {Data: []byte(`{{define "base"}}{{template "content" .}}{{end}}`)},
		"pages/hello.html":  {Data: []byte(`{{define "content"}}hi {{.}}{{end}}`)},
	}
	tmpl, err := NewTemplates(fsys)
	if err != nil {
		t.Fatalf("NewTemplates: %v", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Render(&buf, "hello", "there"); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf.String() != "hi there" {
		t.Errorf("Render = %q, want %q", buf.String(), "hi there")
	}
	if err := tmpl.Render(&buf, "missing", nil); err == nil {
		t.Error("Render of unknown page: expected error")
	}
}

func TestRenderPDF(t *testing.T) {
	tests := []struct {
		name string
		st   *stats.MoodStats
		opts Options
	}{
		{"with entries", sampleStats(), Options{Professional: true}},
		{"empty period", emptyStats(), Options{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := RenderPDF(&buf, Build(tt.st, tt.opts)); err != nil {
				t.Fatalf("RenderPDF: %v", err)
			}
			if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
				t.Errorf("output does not start with a PDF header: %q", buf.Bytes()[:min(16, buf.Len())])
			}
		})
	}
}

func TestRenderPDFLongTitles(t *testing.T) {
	st := sampleStats()
	st.TopSongs[0].Title = strings.Repeat("Very long song title ", 20)

	var buf bytes.Buffer
	if err := RenderPDF(&buf, Build(st, Options{})); err != nil {
		t.Fatalf("RenderPDF: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("empty pdf output")
	}
}
