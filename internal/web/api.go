package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/registramood/moodtracker/internal/records"
	"github.com/registramood/moodtracker/internal/stats"
)

// DefaultStatsDays is the statistics window used when days is omitted.
const DefaultStatsDays = 30

// APIHandlers serves users, songs and mood entries.
type APIHandlers struct {
	users *records.Users
	songs *records.Songs
	moods *records.Moods
	stats stats.Computer

	loginLimit int
}

// NewAPIHandlers creates the API service handlers.
func NewAPIHandlers(users *records.Users, songs *records.Songs, moods *records.Moods, st stats.Computer) *APIHandlers {
	return &APIHandlers{users: users, songs: songs, moods: moods, stats: st}
}

// WithLoginRateLimit caps login attempts per client IP per minute. Zero disables the cap.
func (h *APIHandlers) WithLoginRateLimit(perMinute int) *APIHandlers {
	h.loginLimit = perMinute
	return h
}

// Register mounts the API routes.
func (h *APIHandlers) Register(r chi.Router) {
	if h.loginLimit > 0 {
		r.With(httprate.LimitByIP(h.loginLimit, time.Minute)).Post("/auth/login", h.Login)
	} else {
		r.Post("/auth/login", h.Login)
	}

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.CreateUser)
		r.Get("/", h.ListUsers)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetUser)
			r.Patch("/", h.UpdateUser)
			r.Delete("/", h.DeleteUser)
			r.Get("/moods", h.ListUserMoods)
			r.Get("/moods/detailed", h.ListUserMoodsDetailed)
			r.Get("/stats", h.UserStats)
		})
	})

	r.Route("/songs", func(r chi.Router) {
		r.Post("/", h.CreateSong)
		r.Get("/", h.ListSongs)
		r.Get("/search", h.SearchSongs)
		r.Post("/enrich", h.EnrichSongs)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSong)
			r.Patch("/", h.UpdateSong)
			r.Delete("/", h.DeleteSong)
			r.Post("/reconcile", h.ReconcileSong)
		})
	})

	r.Route("/moods", func(r chi.Router) {
		r.Post("/", h.CreateMood)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetMood)
			r.Patch("/", h.UpdateMood)
			r.Delete("/", h.DeleteMood)
		})
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks credentials (POST /auth/login). No session is issued.
func (h *APIHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// CreateUser handles POST /users.
func (h *APIHandlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in records.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.users.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// ListUsers handles GET /users.
func (h *APIHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// GetUser handles GET /users/{id}.
func (h *APIHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateUser handles PATCH /users/{id}.
func (h *APIHandlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var p records.UserPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.users.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /users/{id}.
func (h *APIHandlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUserMoods handles GET /users/{id}/moods?limit=.
func (h *APIHandlers) ListUserMoods(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", records.DefaultMoodLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := h.moods.List(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListUserMoodsDetailed handles GET /users/{id}/moods/detailed?limit=.
func (h *APIHandlers) ListUserMoodsDetailed(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", records.DefaultMoodDetailLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	details, err := h.moods.ListWithSongs(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// UserStats handles GET /users/{id}/stats?days=.
func (h *APIHandlers) UserStats(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", DefaultStatsDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.stats.ComputeMoodStats(r.Context(), chi.URLParam(r, "id"), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// CreateSong handles POST /songs.
func (h *APIHandlers) CreateSong(w http.ResponseWriter, r *http.Request) {
	var in records.CreateSongInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	song, err := h.songs.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, song)
}

// ListSongs handles GET /songs?user_id=&limit=.
func (h *APIHandlers) ListSongs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", records.DefaultSongLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	songs, err := h.songs.List(r.Context(), r.URL.Query().Get("user_id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

// SearchSongs handles GET /songs/search?q=&limit=.
func (h *APIHandlers) SearchSongs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", records.DefaultSongLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	songs, err := h.songs.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

// EnrichSongs handles POST /songs/enrich?limit=.
func (h *APIHandlers) EnrichSongs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", records.DefaultEnrichBatchLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	outcomes, err := h.songs.BackfillGenres(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomes)
}

// GetSong handles GET /songs/{id}.
func (h *APIHandlers) GetSong(w http.ResponseWriter, r *http.Request) {
	song, err := h.songs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

// UpdateSong handles PATCH /songs/{id}.
func (h *APIHandlers) UpdateSong(w http.ResponseWriter, r *http.Request) {
	var p records.SongPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	song, err := h.songs.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

// DeleteSong handles DELETE /songs/{id}.
func (h *APIHandlers) DeleteSong(w http.ResponseWriter, r *http.Request) {
	if err := h.songs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReconcileSong handles POST /songs/{id}/reconcile.
func (h *APIHandlers) ReconcileSong(w http.ResponseWriter, r *http.Request) {
	song, err := h.moods.ReconcilePlayCount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

// CreateMood handles POST /moods.
func (h *APIHandlers) CreateMood(w http.ResponseWriter, r *http.Request) {
	var in records.CreateMoodInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := h.moods.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// GetMood handles GET /moods/{id}.
func (h *APIHandlers) GetMood(w http.ResponseWriter, r *http.Request) {
	entry, err := h.moods.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// UpdateMood handles PATCH /moods/{id}.
func (h *APIHandlers) UpdateMood(w http.ResponseWriter, r *http.Request) {
	var p records.MoodPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := h.moods.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// DeleteMood handles DELETE /moods/{id}.
func (h *APIHandlers) DeleteMood(w http.ResponseWriter, r *http.Request) {
	if err := h.moods.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
