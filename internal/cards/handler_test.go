package cards

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tarot-api/internal/apperr"
	"tarot-api/internal/auth"
	"tarot-api/internal/storage"
)

type fakeCardStore struct {
	cards       map[string]map[string]CardData // key -> lang -> row
	defaultLang string
}

func newFakeCardStore() *fakeCardStore {
	return &fakeCardStore{cards: make(map[string]map[string]CardData), defaultLang: "hu"}
}

func (s *fakeCardStore) add(key, lang, name, description string) {
	if s.cards[key] == nil {
		s.cards[key] = make(map[string]CardData)
	}
	s.cards[key][lang] = CardData{Key: key, Lang: lang, Name: name, Description: description}
}

func (s *fakeCardStore) GetCard(_ context.Context, key, lang string) (CardData, error) {
	translations, ok := s.cards[key]
	if !ok {
		return CardData{}, apperr.ErrCardNotFound
	}
	if card, ok := translations[lang]; ok {
		return card, nil
	}
	if card, ok := translations[s.defaultLang]; ok {
		return card, nil
	}
	return CardData{}, apperr.ErrCardNotFound
}

func (s *fakeCardStore) ListCards(_ context.Context, lang string) ([]CardData, error) {
	list := make([]CardData, 0, len(s.cards))
	for key := range s.cards {
		if card, err := s.GetCard(context.Background(), key, lang); err == nil {
			list = append(list, card)
		}
	}
	return list, nil
}

type fakeUserStore struct {
	users map[string]auth.User
	draws map[string]string // sub -> yyyy-mm-dd of last draw
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]auth.User), draws: make(map[string]string)}
}

func (s *fakeUserStore) GetUserBySubject(_ context.Context, sub string) (auth.User, error) {
	user, ok := s.users[sub]
	if !ok {
		return auth.User{}, apperr.ErrUserNotFound
	}
	return user, nil
}

func (s *fakeUserStore) MarkDrawn(_ context.Context, sub string, today time.Time, cardKey string) error {
	if _, ok := s.users[sub]; !ok {
		return apperr.ErrUserNotFound
	}
	day := today.Format("2006-01-02")
	if s.draws[sub] == day {
		return apperr.ErrAlreadyDrawnToday
	}
	s.draws[sub] = day
	return nil
}

type fakeImageProvider struct {
	image storage.CardImage
	err   error
}

func (p *fakeImageProvider) RandomCardImage(context.Context) (storage.CardImage, error) {
	if p.err != nil {
		return storage.CardImage{}, p.err
	}
	return p.image, nil
}

func drawRequest(sub string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/cards/daily_card", nil)
	ctx := auth.ContextWithClaims(req.Context(), auth.Claims{Sub: sub})
	return req.WithContext(ctx)
}

func TestDailyCard_Success(t *testing.T) {
	t.Parallel()

	cardStore := newFakeCardStore()
	cardStore.add("major-arcana_the-fool", "hu", "A Bolond", "Új kezdetek.")
	cardStore.add("major-arcana_the-fool", "en", "The Fool", "New beginnings.")

	userStore := newFakeUserStore()
	userStore.users["g-123"] = auth.User{Sub: "g-123", Lang: "en"}

	images := &fakeImageProvider{image: storage.CardImage{
		Key: "major-arcana_the-fool",
		URL: "https://cdn.example.com/major-arcana_the-fool.png",
	}}

	handler := NewHandler(cardStore, userStore, images)
	w := httptest.NewRecorder()
	handler.DailyCard(w, drawRequest("g-123"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	var card DailyCard
	if err := json.Unmarshal(w.Body.Bytes(), &card); err != nil {
		t.Fatalf("unmarshal daily card: %v", err)
	}
	if card.Key != "major-arcana_the-fool" {
		t.Errorf("key = %q, want drawn key", card.Key)
	}
	if card.Name != "The Fool" || card.Description != "New beginnings." {
		t.Errorf("card = %+v, want the english translation", card)
	}
	if card.ImageURL == "" {
		t.Error("expected image_url")
	}
}

func TestDailyCard_SecondDrawSameDayForbidden(t *testing.T) {
	t.Parallel()

	userStore := newFakeUserStore()
	userStore.users["g-123"] = auth.User{Sub: "g-123", Lang: "hu"}
	images := &fakeImageProvider{image: storage.CardImage{Key: "major-arcana_the-fool", URL: "u"}}
	handler := NewHandler(newFakeCardStore(), userStore, images)

	w := httptest.NewRecorder()
	handler.DailyCard(w, drawRequest("g-123"))
	if w.Code != http.StatusOK {
		t.Fatalf("first draw status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	handler.DailyCard(w, drawRequest("g-123"))
	if w.Code != http.StatusForbidden {
		t.Fatalf("second draw status = %d, want 403", w.Code)
	}
}

func TestDailyCard_NextDaySucceeds(t *testing.T) {
	t.Parallel()

	userStore := newFakeUserStore()
	userStore.users["g-123"] = auth.User{Sub: "g-123", Lang: "hu"}
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	userStore.draws["g-123"] = yesterday

	images := &fakeImageProvider{image: storage.CardImage{Key: "major-arcana_the-fool", URL: "u"}}
	handler := NewHandler(newFakeCardStore(), userStore, images)

	w := httptest.NewRecorder()
	handler.DailyCard(w, drawRequest("g-123"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 on the next calendar date, body %s", w.Code, w.Body.String())
	}
}

func TestDailyCard_NoImagesAvailable(t *testing.T) {
	t.Parallel()

	userStore := newFakeUserStore()
	userStore.users["g-123"] = auth.User{Sub: "g-123", Lang: "hu"}
	images := &fakeImageProvider{err: apperr.ErrNoImagesAvailable}
	handler := NewHandler(newFakeCardStore(), userStore, images)

	w := httptest.NewRecorder()
	handler.DailyCard(w, drawRequest("g-123"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestDailyCard_UserDeleted(t *testing.T) {
	t.Parallel()

	images := &fakeImageProvider{image: storage.CardImage{Key: "k", URL: "u"}}
	handler := NewHandler(newFakeCardStore(), newFakeUserStore(), images)

	w := httptest.NewRecorder()
	handler.DailyCard(w, drawRequest("g-123"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestDailyCard_FormatsNameWhenNoTranslation(t *testing.T) {
	t.Parallel()

	userStore := newFakeUserStore()
	userStore.users["g-123"] = auth.User{Sub: "g-123", Lang: "en"}
	images := &fakeImageProvider{image: storage.CardImage{Key: "major-arcana_the-magician", URL: "u"}}
	handler := NewHandler(newFakeCardStore(), userStore, images)

	w := httptest.NewRecorder()
	handler.DailyCard(w, drawRequest("g-123"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	var card DailyCard
	if err := json.Unmarshal(w.Body.Bytes(), &card); err != nil {
		t.Fatalf("unmarshal daily card: %v", err)
	}
	if card.Name != "The Magician" {
		t.Errorf("name = %q, want formatted fallback name", card.Name)
	}
}

func TestCardDescription_FallsBackToDefaultLanguage(t *testing.T) {
	t.Parallel()

	cardStore := newFakeCardStore()
	cardStore.add("major-arcana_the-fool", "hu", "A Bolond", "Új kezdetek.")
	handler := NewHandler(cardStore, newFakeUserStore(), &fakeImageProvider{})

	req := httptest.NewRequest(http.MethodGet, "/cards/card_description/major-arcana_the-fool?lang=de", nil)
	req.SetPathValue("key", "major-arcana_the-fool")
	w := httptest.NewRecorder()
	handler.CardDescription(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["name"] != "A Bolond" || body["description"] != "Új kezdetek." {
		t.Errorf("body = %v, want the default-language translation", body)
	}
}

func TestCardDescription_UnknownKey(t *testing.T) {
	t.Parallel()

	handler := NewHandler(newFakeCardStore(), newFakeUserStore(), &fakeImageProvider{})

	req := httptest.NewRequest(http.MethodGet, "/cards/card_description/nope", nil)
	req.SetPathValue("key", "nope")
	w := httptest.NewRecorder()
	handler.CardDescription(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestAllCards(t *testing.T) {
	t.Parallel()

	cardStore := newFakeCardStore()
	cardStore.add("major-arcana_the-fool", "hu", "A Bolond", "Új kezdetek.")
	cardStore.add("major-arcana_the-magician", "hu", "A Mágus", "Akarat.")
	handler := NewHandler(cardStore, newFakeUserStore(), &fakeImageProvider{})

	req := httptest.NewRequest(http.MethodGet, "/cards/all_cards?lang=hu", nil)
	w := httptest.NewRecorder()
	handler.AllCards(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var list []CardData
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("len = %d, want 2", len(list))
	}
}
