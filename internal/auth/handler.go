package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"tarot-api/internal/apperr"
	"tarot-api/internal/oauth"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service  *Service
	google   oauth.Verifier
	facebook oauth.Verifier
}

func NewHandler(service *Service, google, facebook oauth.Verifier) *Handler {
	return &Handler{service: service, google: google, facebook: facebook}
}

type loginRequest struct {
	Token string `json:"token"`
	Lang  string `json:"lang"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Lang  string `json:"lang"`
}

// LoginGoogle handles POST /auth/google.
func (h *Handler) LoginGoogle(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.google)
}

// LoginFacebook handles POST /auth/facebook.
func (h *Handler) LoginFacebook(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.facebook)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, verifier oauth.Verifier) {
	var body loginRequest
	if !decodeBody(w, r, &body) {
		return
	}

	body.Token = strings.TrimSpace(body.Token)
	body.Lang = strings.TrimSpace(strings.ToLower(body.Lang))
	if body.Token == "" {
		apperr.WriteError(w, apperr.ErrMalformedRequest)
		return
	}

	tokens, err := h.service.Login(r.Context(), verifier, body.Token, body.Lang)
	if err != nil {
		h.fail(w, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, tokens)
}

// Me handles GET /auth/user. The user row may have been deleted after the
// access token was issued; that surfaces as a 404, not a 401.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		apperr.WriteError(w, apperr.ErrAccessTokenInvalid)
		return
	}

	user, err := h.service.store.GetUserBySubject(r.Context(), claims.Sub)
	if err != nil {
		h.fail(w, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, userResponse{
		Sub:   user.Sub,
		Email: user.Email,
		Name:  user.Name,
		Lang:  user.Lang,
	})
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decodeBody(w, r, &body) {
		return
	}

	tokens, err := h.service.Refresh(r.Context(), strings.TrimSpace(body.RefreshToken))
	if err != nil {
		h.fail(w, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, tokens)
}

// Logout handles POST /auth/logout. An unknown token is the caller's mistake,
// not an auth failure, so it comes back as a 400.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var body logoutRequest
	if !decodeBody(w, r, &body) {
		return
	}

	if err := h.service.Logout(r.Context(), strings.TrimSpace(body.RefreshToken)); err != nil {
		if errors.Is(err, apperr.ErrInvalidRefreshToken) {
			apperr.WriteStatusError(w, http.StatusBadRequest, err)
			return
		}
		h.fail(w, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if !apperr.Known(err) {
		sentry.CaptureException(err)
	}
	apperr.WriteError(w, err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		apperr.WriteError(w, apperr.ErrMalformedRequest)
		return false
	}

	return true
}
