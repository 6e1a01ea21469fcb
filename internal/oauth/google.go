package oauth

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"

	"tarot-api/internal/apperr"
)

// GoogleVerifier validates Google-issued ID tokens against the configured
// OAuth client id.
type GoogleVerifier struct {
	clientID string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{
		clientID: clientID,
		validate: idtoken.Validate,
	}
}

func (g *GoogleVerifier) Verify(ctx context.Context, providerToken string) (Identity, error) {
	providerToken = strings.TrimSpace(providerToken)
	if providerToken == "" {
		return Identity{}, apperr.ErrInvalidProviderToken
	}

	payload, err := g.validate(ctx, providerToken, g.clientID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", apperr.ErrInvalidProviderToken, err)
	}
	if payload.Subject == "" {
		return Identity{}, apperr.ErrInvalidProviderToken
	}

	return Identity{
		Subject:       payload.Subject,
		Email:         claimString(payload.Claims, "email"),
		Name:          claimString(payload.Claims, "name"),
		EmailVerified: claimBool(payload.Claims, "email_verified"),
		Picture:       claimString(payload.Claims, "picture"),
	}, nil
}

func claimString(claims map[string]any, key string) string {
	value, _ := claims[key].(string)
	return value
}

func claimBool(claims map[string]any, key string) bool {
	switch value := claims[key].(type) {
	case bool:
		return value
	case string:
		return value == "true"
	default:
		return false
	}
}
