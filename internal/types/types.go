// Package types holds the domain model shared by the repository, service
// and handler layers.
package types

import (
	"time"
)

// Account is a linked mail account. Email is unique across all accounts
// and the provider is fixed for the account's lifetime.
type Account struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Provider  string    `json:"provider"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Credential is the stored token set for an account. Exactly one row per
// account; tokens are encrypted at rest and decrypted on read.
type Credential struct {
	ID           int64     `json:"id"`
	AccountID    int64     `json:"account_id"`
	AccessToken  string    `json:"-"`
	RefreshToken *string   `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CredentialInput is a fresh token payload from a provider exchange.
// RefreshToken is nil when the provider omitted one; an existing stored
// refresh token is preserved in that case.
type CredentialInput struct {
	AccessToken  string
	RefreshToken *string
	ExpiresAt    time.Time
}

// UserInfo is the caller-facing identity slice of a callback response.
type UserInfo struct {
	Email string `json:"email"`
}

// TokenData is the caller-facing token slice of a callback response.
type TokenData struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken *string   `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResponse is the body returned by a successful OAuth callback.
type AuthResponse struct {
	User     UserInfo  `json:"user"`
	Token    TokenData `json:"token"`
	Provider string    `json:"provider"`
	Linked   bool      `json:"linked"`
}
