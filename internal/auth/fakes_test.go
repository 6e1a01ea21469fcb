package auth

import (
	"context"
	"sync"
	"time"

	"tarot-api/internal/apperr"
	"tarot-api/internal/oauth"
)

// fakeStore is an in-memory Store with the same single-use rotation
// semantics as the SQL repository.
type fakeStore struct {
	mu      sync.Mutex
	users   map[string]User
	tokens  map[string]fakeTokenRow
	upserts int

	failWith error
}

type fakeTokenRow struct {
	userSub   string
	expiresAt time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  make(map[string]User),
		tokens: make(map[string]fakeTokenRow),
	}
}

func (s *fakeStore) UpsertUser(_ context.Context, sub, email, name, lang string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return User{}, s.failWith
	}

	if lang == "" {
		lang = "hu"
	}
	s.upserts++

	user, ok := s.users[sub]
	if !ok {
		user = User{Sub: sub, CreatedAt: time.Now().UTC()}
	}
	user.Email = email
	user.Name = name
	user.Lang = lang
	s.users[sub] = user

	return user, nil
}

func (s *fakeStore) GetUserBySubject(_ context.Context, sub string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return User{}, s.failWith
	}

	user, ok := s.users[sub]
	if !ok {
		return User{}, apperr.ErrUserNotFound
	}
	return user, nil
}

func (s *fakeStore) CreateRefreshToken(_ context.Context, userSub, rawToken string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return s.failWith
	}

	s.tokens[rawToken] = fakeTokenRow{userSub: userSub, expiresAt: expiresAt}
	return nil
}

func (s *fakeStore) RotateRefreshToken(_ context.Context, rawOldToken, rawNewToken string, newExpiresAt time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return "", s.failWith
	}

	row, ok := s.tokens[rawOldToken]
	if !ok {
		return "", apperr.ErrInvalidRefreshToken
	}
	delete(s.tokens, rawOldToken)

	if time.Now().UTC().After(row.expiresAt) {
		return "", apperr.ErrRefreshTokenExpired
	}

	s.tokens[rawNewToken] = fakeTokenRow{userSub: row.userSub, expiresAt: newExpiresAt}
	return row.userSub, nil
}

func (s *fakeStore) DeleteRefreshToken(_ context.Context, rawToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return s.failWith
	}

	if _, ok := s.tokens[rawToken]; !ok {
		return apperr.ErrInvalidRefreshToken
	}
	delete(s.tokens, rawToken)
	return nil
}

// fakeVerifier returns a fixed identity or a fixed error.
type fakeVerifier struct {
	identity oauth.Identity
	err      error
}

func (v *fakeVerifier) Verify(context.Context, string) (oauth.Identity, error) {
	if v.err != nil {
		return oauth.Identity{}, v.err
	}
	return v.identity, nil
}
