package auth

import "time"

// User is a row in the users table. Sub is the provider-issued subject id and
// the only stable join key; email, name and lang follow whatever the provider
// and client said at the most recent login.
type User struct {
	Sub          string     `json:"sub"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Lang         string     `json:"lang"`
	CreatedAt    time.Time  `json:"created_at"`
	LastDrawDate *time.Time `json:"last_draw_date,omitempty"`
}

// Tokens is the credential pair returned by login and refresh.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Claims is the decoded payload of an access token.
type Claims struct {
	Sub       string
	Name      string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// CleanupResult reports what the maintenance sweep removed.
type CleanupResult struct {
	DeletedRefreshTokens int64 `json:"deleted_refresh_tokens"`
	DeletedDrawRecords   int64 `json:"deleted_draw_records"`
}
