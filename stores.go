package siteauth

import (
	"context"
	"time"
)

// Account links an external identity (an OAuth login, a verified email) to a User
type Account struct {
	UserID            string    `json:"user_id"`
	Type              string    `json:"type"`     // "oauth", "email"
	Provider          string    `json:"provider"` // "github", "google", "resend"
	ProviderAccountID string    `json:"provider_account_id"`
	AccessToken       string    `json:"access_token,omitempty"`
	RefreshToken      string    `json:"refresh_token,omitempty"`
	TokenType         string    `json:"token_type,omitempty"`
	Scope             string    `json:"scope,omitempty"`
	ExpiresAt         time.Time `json:"expires_at,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Session is a persisted session row, created by OAuth and email-link sign-ins
type Session struct {
	SessionToken string    `json:"session_token"`
	UserID       string    `json:"user_id"`
	Expires      time.Time `json:"expires"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsExpired returns true once the session's expiry has passed
func (s *Session) IsExpired() bool {
	return time.Now().After(s.Expires)
}

// VerificationToken backs a magic link.  Only the hash of the emailed token is stored.
type VerificationToken struct {
	Identifier string    `json:"identifier"`
	TokenHash  string    `json:"token_hash"`
	Expires    time.Time `json:"expires"`
}

// IsExpired returns true once the token can no longer be used
func (t *VerificationToken) IsExpired() bool {
	return time.Now().After(t.Expires)
}

// UserStore manages durable user records.
// Lookups return ErrUserNotFound (possibly wrapped) when no row matches.
type UserStore interface {
	// GetUserByID retrieves a user by internal id
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail retrieves a user by normalized email
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetUserByHandle retrieves a user by public handle
	GetUserByHandle(ctx context.Context, handle string) (*User, error)

	// CreateUser inserts a new user.  Fails with ErrEmailExists or ErrHandleTaken on conflicts.
	CreateUser(ctx context.Context, user *User) error

	// UpdateUser writes back every mutable field of an existing user
	UpdateUser(ctx context.Context, user *User) error
}

// AccountStore manages the provider accounts linked to users
type AccountStore interface {
	// GetAccount looks up the account for a provider scoped id (ErrAccountNotFound if missing)
	GetAccount(ctx context.Context, provider, providerAccountID string) (*Account, error)

	// LinkAccount creates or updates (provider, providerAccountID) -> user
	LinkAccount(ctx context.Context, account *Account) error

	// GetUserAccounts lists every account linked to a user
	GetUserAccounts(ctx context.Context, userID string) ([]*Account, error)
}

// SessionStore manages persisted sessions
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error

	// GetSessionAndUser returns the session and its user in one go.
	// Returns ErrSessionNotFound when the token is unknown or its user is gone.
	GetSessionAndUser(ctx context.Context, sessionToken string) (*Session, *User, error)

	DeleteSession(ctx context.Context, sessionToken string) error

	// DeleteUserSessions removes every session of a user (sign out everywhere)
	DeleteUserSessions(ctx context.Context, userID string) error

	// DeleteExpiredSessions removes sessions whose expiry has passed
	DeleteExpiredSessions(ctx context.Context) error
}

// VerificationTokenStore manages single use magic link tokens
type VerificationTokenStore interface {
	CreateVerificationToken(ctx context.Context, token *VerificationToken) error

	// UseVerificationToken atomically fetches and deletes the token.
	// Returns ErrTokenNotFound if it does not exist (or was already used).
	UseVerificationToken(ctx context.Context, identifier, tokenHash string) (*VerificationToken, error)
}

// IdentityStore is everything the auth core needs from the identity store
type IdentityStore interface {
	UserStore
	AccountStore
	SessionStore
	VerificationTokenStore
}
