package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/registramood/moodtracker/internal/db"
	"github.com/registramood/moodtracker/internal/logging"
	"github.com/registramood/moodtracker/internal/records"
)

// Error codes returned in the "code" field of error bodies.
const (
	codeValidation   = "VALIDATION_ERROR"
	codeInvalidID    = "INVALID_ID"
	codeNotFound     = "NOT_FOUND"
	codeConflict     = "CONFLICT"
	codeUnauthorized = "UNAUTHORIZED"
	codeUnavailable  = "UNAVAILABLE"
	codeStore        = "STORE_ERROR"
	codeInternal     = "INTERNAL_ERROR"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

func logCtx(r *http.Request) *zerolog.Logger {
	return logging.Ctx(r.Context())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("writing response body")
	}
}

func writeErrorBody(w http.ResponseWriter, status int, code, message, field string) {
	writeJSON(w, status, errorBody{Error: message, Code: code, Field: field})
}

// writeError maps err onto a status code and error body. Store and unknown
// failures are logged and reported without their details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *db.ValidationError
	switch {
	case errors.As(err, &verr):
		writeErrorBody(w, http.StatusBadRequest, codeValidation, verr.Message, verr.Field)
	case errors.Is(err, db.ErrInvalidID):
		writeErrorBody(w, http.StatusBadRequest, codeInvalidID, err.Error(), "")
	case errors.Is(err, db.ErrNotFound):
		writeErrorBody(w, http.StatusNotFound, codeNotFound, err.Error(), "")
	case errors.Is(err, db.ErrConflict):
		writeErrorBody(w, http.StatusConflict, codeConflict, err.Error(), "")
	case errors.Is(err, records.ErrInvalidCredentials):
		writeErrorBody(w, http.StatusUnauthorized, codeUnauthorized, err.Error(), "")
	case errors.Is(err, records.ErrNoGenreSource):
		writeErrorBody(w, http.StatusServiceUnavailable, codeUnavailable, err.Error(), "")
	case errors.Is(err, db.ErrStore):
		logCtx(r).Error().Err(err).Msg("store failure")
		writeErrorBody(w, http.StatusInternalServerError, codeStore, "database error", "")
	case errors.Is(err, context.Canceled):
		logCtx(r).Debug().Err(err).Msg("request cancelled")
	default:
		logCtx(r).Error().Err(err).Msg("unhandled error")
		writeErrorBody(w, http.StatusInternalServerError, codeInternal, "internal server error", "")
	}
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return db.NewValidationError("body", fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// queryInt parses a positive integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, db.NewValidationError(name, name+" must be a positive integer")
	}
	return n, nil
}

// queryBool parses a boolean query parameter, returning false when absent.
func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, db.NewValidationError(name, name+" must be a boolean")
	}
	return b, nil
}
