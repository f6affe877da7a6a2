// Package handler implements the HTTP API surface of the ledger. Handlers
// declare narrow local interfaces for the service methods they call so the
// package does not depend on the concrete service implementation.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tempoledger/tempod/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a domain error to its HTTP status and writes it. The
// fallback message is used for errors with no client-safe mapping.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	status, msg := statusForError(err)
	if status == http.StatusInternalServerError {
		msg = fallback
	}
	writeError(w, status, msg)
}

// statusForError classifies domain errors into HTTP status codes. Unknown
// errors map to 500; callers log those before responding.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrAlreadyInUse),
		errors.Is(err, domain.ErrAlreadyPaused):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrLockHeld):
		return http.StatusConflict, "record busy, retry"
	case errors.Is(err, domain.ErrInvalidAuthority),
		errors.Is(err, domain.ErrInvalidMintAuthority),
		errors.Is(err, domain.ErrOwnerMismatch),
		errors.Is(err, domain.ErrHookFailed):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInsufficientDelegatedAmount),
		errors.Is(err, domain.ErrAccountFrozen),
		errors.Is(err, domain.ErrPauseNotAllowed),
		errors.Is(err, domain.ErrReUpNotAllowed):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSelfTransfer),
		errors.Is(err, domain.ErrMintMismatch),
		errors.Is(err, domain.ErrInvalidAccountData),
		errors.Is(err, domain.ErrMissingReUpPercentage),
		errors.Is(err, domain.ErrInvalidReUpPercentage),
		errors.Is(err, domain.ErrUnexpectedReUpPercentage),
		errors.Is(err, domain.ErrOverflow):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// parseListOpts extracts pagination and time-range parameters from the query
// string. Defaults: limit=50 (max 500), offset=0. since/until accept RFC 3339
// timestamps.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	opts := domain.ListOpts{Limit: limit, Offset: offset}
	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Since = &t
		}
	}
	if v := q.Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Until = &t
		}
	}
	return opts
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// optIdentity converts an optional string field to an identity pointer.
func optIdentity(s string) *domain.Identity {
	if s == "" {
		return nil
	}
	id := domain.Identity(s)
	return &id
}
