package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tarot-api/internal/apperr"
	"tarot-api/internal/oauth"
)

const (
	defaultAccessTTL  = 60 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour

	refreshTokenBytes = 48
)

// Store is the persistence surface the session lifecycle needs.
// *Repository implements it; tests substitute fakes.
type Store interface {
	UpsertUser(ctx context.Context, sub, email, name, lang string) (User, error)
	GetUserBySubject(ctx context.Context, sub string) (User, error)
	CreateRefreshToken(ctx context.Context, userSub, rawToken string, expiresAt time.Time) error
	RotateRefreshToken(ctx context.Context, rawOldToken, rawNewToken string, newExpiresAt time.Time) (string, error)
	DeleteRefreshToken(ctx context.Context, rawToken string) error
}

// Service owns the session lifecycle: provider login, access-token issuance
// and verification, refresh rotation and logout.
type Service struct {
	store      Store
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewService(store Store, jwtSecret string) *Service {
	return &Service{
		store:      store,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
}

func (s *Service) WithTokenTTLs(accessTTL, refreshTTL time.Duration) {
	if accessTTL > 0 {
		s.accessTTL = accessTTL
	}
	if refreshTTL > 0 {
		s.refreshTTL = refreshTTL
	}
}

// Login verifies the provider token, upserts the local user and mints a
// fresh token pair.
func (s *Service) Login(ctx context.Context, verifier oauth.Verifier, providerToken, lang string) (Tokens, error) {
	identity, err := verifier.Verify(ctx, providerToken)
	if err != nil {
		return Tokens{}, err
	}

	user, err := s.store.UpsertUser(ctx, identity.Subject, identity.Email, identity.Name, lang)
	if err != nil {
		return Tokens{}, err
	}

	return s.issueTokens(ctx, user)
}

// Refresh rotates the refresh token and issues a new access token from the
// user's current profile, so a name or email changed at the provider since
// the original login shows up in the new claims.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	if refreshToken == "" {
		return Tokens{}, apperr.ErrInvalidRefreshToken
	}

	newRefresh, err := newRefreshToken()
	if err != nil {
		return Tokens{}, fmt.Errorf("generate rotated refresh token: %w", err)
	}

	userSub, err := s.store.RotateRefreshToken(ctx, refreshToken, newRefresh, time.Now().UTC().Add(s.refreshTTL))
	if err != nil {
		return Tokens{}, err
	}

	user, err := s.store.GetUserBySubject(ctx, userSub)
	if err != nil {
		return Tokens{}, err
	}

	access, expiresIn, err := s.issueAccessToken(user.Sub, user.Name, user.Email)
	if err != nil {
		return Tokens{}, err
	}

	return Tokens{
		AccessToken:  access,
		RefreshToken: newRefresh,
		TokenType:    "bearer",
		ExpiresIn:    expiresIn,
	}, nil
}

// Logout deletes the stored refresh token. Already-issued access tokens stay
// valid until their embedded expiry; there is no revocation list.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return apperr.ErrInvalidRefreshToken
	}
	return s.store.DeleteRefreshToken(ctx, refreshToken)
}

// DecodeAccessToken verifies signature and expiry. Expiry is reported as its
// own error so callers can distinguish a stale token from a forged one.
func (s *Service) DecodeAccessToken(tokenStr string) (Claims, error) {
	mapClaims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, mapClaims, func(token *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, apperr.ErrAccessTokenExpired
		}
		return Claims{}, apperr.ErrAccessTokenInvalid
	}
	if !token.Valid {
		return Claims{}, apperr.ErrAccessTokenInvalid
	}
	if tokenType, _ := mapClaims["typ"].(string); tokenType != "access" {
		return Claims{}, apperr.ErrAccessTokenInvalid
	}

	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return Claims{}, apperr.ErrAccessTokenInvalid
	}

	claims := Claims{Sub: sub}
	claims.Name, _ = mapClaims["name"].(string)
	claims.Email, _ = mapClaims["email"].(string)
	if iat, ok := mapClaims["iat"].(float64); ok {
		claims.IssuedAt = time.Unix(int64(iat), 0).UTC()
	}
	if exp, ok := mapClaims["exp"].(float64); ok {
		claims.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	}

	return claims, nil
}

func (s *Service) issueTokens(ctx context.Context, user User) (Tokens, error) {
	access, expiresIn, err := s.issueAccessToken(user.Sub, user.Name, user.Email)
	if err != nil {
		return Tokens{}, err
	}

	refreshToken, err := newRefreshToken()
	if err != nil {
		return Tokens{}, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.store.CreateRefreshToken(ctx, user.Sub, refreshToken, time.Now().UTC().Add(s.refreshTTL)); err != nil {
		return Tokens{}, err
	}

	return Tokens{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    expiresIn,
	}, nil
}

func (s *Service) issueAccessToken(sub, name, email string) (string, int64, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": sub,
		"iat": now.Unix(),
		"exp": now.Add(s.accessTTL).Unix(),
		"typ": "access",
	}
	if name != "" {
		claims["name"] = name
	}
	if email != "" {
		claims["email"] = email
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	encoded, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, fmt.Errorf("sign access token: %w", err)
	}

	return encoded, int64(s.accessTTL.Seconds()), nil
}

// newRefreshToken returns a fixed-length, URL-safe opaque value. Uniqueness
// rests on the randomness; no collision check is performed.
func newRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
