// Package oauth verifies externally-issued identity tokens and extracts the
// profile claims the rest of the service keys on. It never reimplements JWK
// fetching or signature math; each provider delegates to the provider's own
// verification surface.
package oauth

import "context"

// Identity is the claim set extracted from a verified provider token.
// Subject is the only field guaranteed to be present.
type Identity struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified bool
	Picture       string
}

// Verifier validates a provider token and returns the identity behind it.
// Rejection of any kind (signature, audience, expiry, missing subject)
// surfaces as apperr.ErrInvalidProviderToken.
type Verifier interface {
	Verify(ctx context.Context, providerToken string) (Identity, error)
}
