package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tarot-api/internal/apperr"
)

const facebookGraphURL = "https://graph.facebook.com/me"

// FacebookVerifier resolves a client-supplied Facebook access token to the
// profile behind it via the Graph API. Facebook tokens are opaque, so the
// lookup itself is the verification.
type FacebookVerifier struct {
	graphURL   string
	httpClient *http.Client
}

func NewFacebookVerifier() *FacebookVerifier {
	return &FacebookVerifier{
		graphURL: facebookGraphURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type facebookProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (f *FacebookVerifier) Verify(ctx context.Context, providerToken string) (Identity, error) {
	providerToken = strings.TrimSpace(providerToken)
	if providerToken == "" {
		return Identity{}, apperr.ErrInvalidProviderToken
	}

	params := url.Values{}
	params.Set("fields", "id,name,email")
	params.Set("access_token", providerToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.graphURL+"?"+params.Encode(), nil)
	if err != nil {
		return Identity{}, fmt.Errorf("build graph api request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("graph api request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Identity{}, fmt.Errorf("read graph api response: %w", err)
	}

	var profile facebookProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return Identity{}, fmt.Errorf("decode graph api response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || profile.Error != nil {
		return Identity{}, apperr.ErrInvalidProviderToken
	}
	if profile.ID == "" {
		return Identity{}, apperr.ErrInvalidProviderToken
	}

	return Identity{
		Subject: profile.ID,
		Email:   profile.Email,
		Name:    profile.Name,
	}, nil
}
