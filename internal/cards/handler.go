package cards

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"tarot-api/internal/apperr"
	"tarot-api/internal/auth"
	"tarot-api/internal/storage"
)

// UserStore is the slice of the user store the daily draw needs.
// *auth.Repository implements it.
type UserStore interface {
	GetUserBySubject(ctx context.Context, sub string) (auth.User, error)
	MarkDrawn(ctx context.Context, sub string, today time.Time, cardKey string) error
}

// CardStore is implemented by *Repository; tests substitute fakes.
type CardStore interface {
	GetCard(ctx context.Context, key, lang string) (CardData, error)
	ListCards(ctx context.Context, lang string) ([]CardData, error)
}

type Handler struct {
	cards  CardStore
	users  UserStore
	images storage.ImageProvider
}

func NewHandler(cards CardStore, users UserStore, images storage.ImageProvider) *Handler {
	return &Handler{cards: cards, users: users, images: images}
}

// AllCards handles GET /cards/all_cards.
func (h *Handler) AllCards(w http.ResponseWriter, r *http.Request) {
	lang := normalizeLang(r.URL.Query().Get("lang"))

	cards, err := h.cards.ListCards(r.Context(), lang)
	if err != nil {
		h.fail(w, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, cards)
}

// CardDescription handles GET /cards/card_description/{key}.
func (h *Handler) CardDescription(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PathValue("key"))
	if key == "" {
		apperr.WriteError(w, apperr.ErrCardNotFound)
		return
	}
	lang := normalizeLang(r.URL.Query().Get("lang"))

	card, err := h.cards.GetCard(r.Context(), key, lang)
	if err != nil {
		h.fail(w, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, map[string]string{
		"name":        card.Name,
		"description": card.Description,
	})
}

// DailyCard handles GET /cards/daily_card. The once-per-day rule is enforced
// by the store's conditional update, so two concurrent draws cannot both win.
func (h *Handler) DailyCard(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		apperr.WriteError(w, apperr.ErrAccessTokenInvalid)
		return
	}

	user, err := h.users.GetUserBySubject(r.Context(), claims.Sub)
	if err != nil {
		h.fail(w, err)
		return
	}

	image, err := h.images.RandomCardImage(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}

	name := FormatCardName(image.Key)
	description := ""
	card, err := h.cards.GetCard(r.Context(), image.Key, user.Lang)
	switch {
	case err == nil:
		name = card.Name
		description = card.Description
	case !errors.Is(err, apperr.ErrCardNotFound):
		h.fail(w, err)
		return
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	if err := h.users.MarkDrawn(r.Context(), user.Sub, today, image.Key); err != nil {
		h.fail(w, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, DailyCard{
		Name:        name,
		ImageURL:    image.URL,
		Key:         image.Key,
		Description: description,
	})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if !apperr.Known(err) {
		sentry.CaptureException(err)
	}
	apperr.WriteError(w, err)
}

func normalizeLang(lang string) string {
	return strings.TrimSpace(strings.ToLower(lang))
}
