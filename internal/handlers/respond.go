package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/maneesh/fasttranscribe/internal/drivesync"
	"github.com/maneesh/fasttranscribe/internal/folders"
	"github.com/maneesh/fasttranscribe/internal/intake"
	"github.com/maneesh/fasttranscribe/internal/jobs"
	"github.com/maneesh/fasttranscribe/internal/logging"
	"github.com/maneesh/fasttranscribe/internal/preview"
	"github.com/maneesh/fasttranscribe/internal/session"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, folders.ErrNotFound),
		errors.Is(err, jobs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, folders.ErrInvalidName),
		errors.Is(err, folders.ErrNotFolder),
		errors.Is(err, intake.ErrUnsupportedType),
		errors.Is(err, intake.ErrEmptyName),
		errors.Is(err, preview.ErrNotFile),
		errors.Is(err, session.ErrInvalidEmail):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrInvalidCredentials),
		errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, folders.ErrExists),
		errors.Is(err, jobs.ErrJobActive),
		errors.Is(err, drivesync.ErrSyncRunning):
		return http.StatusConflict
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sendServiceError writes err with its mapped status. Internal errors are
// logged and hidden from the client.
func sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.WithContext(r.Context()).Error("request failed", zap.Error(err))
		sendError(w, status, "internal server error")
		return
	}
	sendError(w, status, err.Error())
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
