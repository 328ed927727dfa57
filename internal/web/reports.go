package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/registramood/moodtracker/internal/metrics"
	"github.com/registramood/moodtracker/internal/records"
	"github.com/registramood/moodtracker/internal/report"
	"github.com/registramood/moodtracker/internal/stats"
)

// Default windows for GET /reports/{userID}/compare.
const (
	DefaultCompareDays1 = 30
	DefaultCompareDays2 = 60
)

// ReportHandlers serves statistics and rendered reports.
type ReportHandlers struct {
	users     *records.Users
	stats     stats.Computer
	templates *report.Templates
	location  *time.Location
}

// NewReportHandlers creates the reports service handlers. Report timestamps
// are shown in loc.
func NewReportHandlers(users *records.Users, st stats.Computer, templates *report.Templates, loc *time.Location) *ReportHandlers {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportHandlers{users: users, stats: st, templates: templates, location: loc}
}

// Register mounts the report routes.
func (h *ReportHandlers) Register(r chi.Router) {
	r.Get("/users", h.ListUsers)
	r.Route("/reports/{userID}", func(r chi.Router) {
		r.Get("/stats", h.Stats)
		r.Get("/compare", h.Compare)
		r.Get("/html", h.HTML)
		r.Get("/pdf", h.PDF)
	})
}

// ListUsers handles GET /users.
func (h *ReportHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Stats handles GET /reports/{userID}/stats?days=.
func (h *ReportHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	st, _, ok := h.compute(w, r)
	if !ok {
		return
	}
	metrics.ReportsGenerated.WithLabelValues("json").Inc()
	writeJSON(w, http.StatusOK, st)
}

// Compare handles GET /reports/{userID}/compare?days1=&days2=.
func (h *ReportHandlers) Compare(w http.ResponseWriter, r *http.Request) {
	days1, err := queryInt(r, "days1", DefaultCompareDays1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	days2, err := queryInt(r, "days2", DefaultCompareDays2)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cmp, err := h.stats.ComparePeriods(r.Context(), chi.URLParam(r, "userID"), days1, days2)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

// HTML handles GET /reports/{userID}/html?days=&professional=.
func (h *ReportHandlers) HTML(w http.ResponseWriter, r *http.Request) {
	st, opts, ok := h.compute(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.templates.RenderHTML(&buf, report.Build(st, opts)); err != nil {
		writeError(w, r, fmt.Errorf("rendering html report: %w", err))
		return
	}
	metrics.ReportsGenerated.WithLabelValues("html").Inc()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// PDF handles GET /reports/{userID}/pdf?days=&professional=.
func (h *ReportHandlers) PDF(w http.ResponseWriter, r *http.Request) {
	st, opts, ok := h.compute(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.RenderPDF(&buf, report.Build(st, opts)); err != nil {
		writeError(w, r, fmt.Errorf("rendering pdf report: %w", err))
		return
	}
	metrics.ReportsGenerated.WithLabelValues("pdf").Inc()

	filename := fmt.Sprintf("mood_report_%s_%s.pdf", st.UserID, st.GeneratedAt.In(opts.Location).Format("20060102"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// compute parses the shared report query and computes statistics. It writes
// the error response itself and reports ok=false on failure.
func (h *ReportHandlers) compute(w http.ResponseWriter, r *http.Request) (*stats.MoodStats, report.Options, bool) {
	opts := report.Options{Location: h.location}

	days, err := queryInt(r, "days", DefaultStatsDays)
	if err != nil {
		writeError(w, r, err)
		return nil, opts, false
	}
	if opts.Professional, err = queryBool(r, "professional"); err != nil {
		writeError(w, r, err)
		return nil, opts, false
	}

	st, err := h.stats.ComputeMoodStats(r.Context(), chi.URLParam(r, "userID"), days)
	if err != nil {
		writeError(w, r, err)
		return nil, opts, false
	}
	return st, opts, true
}
