package logging

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
)

func capture(t *testing.T, cfg Config) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	cfg.Output = &buf
	Init(cfg)
	t.Cleanup(func() { Init(Config{}) })
	return &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("log line %q is not JSON: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestInitLevelAndService(t *testing.T) {
	buf := capture(t, Config{Level: "warn", Service: "api"})

	Info().Msg("hidden")
	Warn().Msg("shown")

	got := lines(t, buf)
	if len(got) != 1 {
		t.Fatalf("got %d log lines, want 1: %s", len(got), buf.String())
	}
	if got[0]["message"] != "shown" || got[0]["service"] != "api" || got[0]["level"] != "warn" {
		t.Errorf("log line = %v", got[0])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "debug",
		"WARNING": "warn",
		"error":   "error",
		"":        "info",
		"bogus":   "info",
	}
	for in, want := range tests {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestRequestLogger(t *testing.T) {
	buf := capture(t, Config{Level: "info"})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Get("/songs/{id}", func(w http.ResponseWriter, r *http.Request) {
		Ctx(r.Context()).Info().Msg("inside handler")
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/songs/42", nil))

	got := lines(t, buf)
	if len(got) != 2 {
		t.Fatalf("got %d log lines, want 2: %s", len(got), buf.String())
	}
	if got[0]["request_id"] == nil || got[0]["request_id"] != got[1]["request_id"] {
		t.Errorf("request ids differ or are missing: %v / %v", got[0]["request_id"], got[1]["request_id"])
	}
	req := got[1]
	if req["route"] != "/songs/{id}" || req["path"] != "/songs/42" || req["status"] != float64(http.StatusTeapot) {
		t.Errorf("request line = %v", req)
	}
}
