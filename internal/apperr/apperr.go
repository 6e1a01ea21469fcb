// Package apperr defines the error taxonomy shared by every handler and the
// single mapping from error kind to HTTP status. Handlers return these
// sentinels (possibly wrapped) and let WriteError pick the response shape.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	ErrInvalidProviderToken = errors.New("provider token is invalid or expired")
	ErrAccessTokenInvalid   = errors.New("access token is invalid")
	ErrAccessTokenExpired   = errors.New("access token has expired")
	ErrInvalidRefreshToken  = errors.New("refresh token is unknown")
	ErrRefreshTokenExpired  = errors.New("refresh token has expired")
	ErrUserNotFound         = errors.New("user not found")
	ErrCardNotFound         = errors.New("card not found")
	ErrAlreadyDrawnToday    = errors.New("daily card already drawn today")
	ErrNoImagesAvailable    = errors.New("no card images available")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrMalformedRequest     = errors.New("malformed request body")
)

// Envelope is the stable JSON error shape returned on every failure.
type Envelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Status resolves an error to its HTTP status code. Unknown errors are a 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrInvalidProviderToken),
		errors.Is(err, ErrAccessTokenInvalid),
		errors.Is(err, ErrAccessTokenExpired),
		errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrRefreshTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAlreadyDrawnToday):
		return http.StatusForbidden
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrCardNotFound),
		errors.Is(err, ErrNoImagesAvailable):
		return http.StatusNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrMalformedRequest):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Known reports whether err maps to a taxonomy entry rather than the catch-all.
func Known(err error) bool {
	return Status(err) != http.StatusInternalServerError
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError renders err through the taxonomy. Internal errors never leak
// their message; taxonomy errors surface their sentinel text. Store outages
// carry wrapped driver detail, so they also fall back to the sentinel.
func WriteError(w http.ResponseWriter, err error) {
	status := Status(err)
	message := err.Error()
	switch status {
	case http.StatusInternalServerError:
		message = "internal server error"
	case http.StatusServiceUnavailable:
		message = ErrStoreUnavailable.Error()
	}
	WriteJSON(w, status, Envelope{Error: true, Message: message})
}

// WriteStatusError renders a taxonomy error under a caller-chosen status,
// for the few routes whose contract differs from the default mapping
// (logout returns 400 for an unknown token).
func WriteStatusError(w http.ResponseWriter, status int, err error) {
	WriteJSON(w, status, Envelope{Error: true, Message: err.Error()})
}

// WriteMessage renders a plain-text failure in the envelope shape.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Envelope{Error: true, Message: message})
}
