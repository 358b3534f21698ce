package siteauth

import (
	"strings"
	"time"
)

// ProviderKind tags which sign-in mechanism produced a Principal
type ProviderKind string

const (
	KindOAuth       ProviderKind = "oauth"
	KindEmail       ProviderKind = "email"
	KindCredentials ProviderKind = "credentials"
)

// Well known provider names
const (
	ProviderGithub      = "github"
	ProviderGoogle      = "google"
	ProviderResend      = "resend"
	ProviderCredentials = "credentials"
)

// SessionStrategy says which mechanism is authoritative for a request
type SessionStrategy string

const (
	StrategyDatabase SessionStrategy = "database"
	StrategyJWT      SessionStrategy = "jwt"
)

// StrategyFor returns the session strategy used after signing in with the given kind.
// OAuth and email-link logins get a persisted session row, credentials get a signed token.
func StrategyFor(kind ProviderKind) SessionStrategy {
	if kind == KindCredentials {
		return StrategyJWT
	}
	return StrategyDatabase
}

// User is the durable identity
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"password_hash,omitempty"`
	Name          string     `json:"name,omitempty"`
	Handle        string     `json:"handle,omitempty"`
	Role          Role       `json:"role"`
	Image         string     `json:"image,omitempty"`
	EmailVerified *time.Time `json:"email_verified,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HasPassword is true for users that can sign in with credentials
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Principal is the raw result of a successful authentication attempt.
// It is produced by a provider adapter and consumed once by SiteAuth.CompleteSignIn.
type Principal struct {
	Kind       ProviderKind
	Provider   string
	ExternalID string // provider scoped id, or the user id for credentials
	Email      string
	Name       string
	Image      string

	// Set only when the principal already maps to a known user (credentials)
	UserID string
}

// Valid reports whether every field a provider must supply is present.
func (p *Principal) Valid() bool {
	if p == nil || p.Provider == "" || p.ExternalID == "" {
		return false
	}
	switch p.Kind {
	case KindOAuth:
		return true
	case KindEmail:
		return p.Email != ""
	case KindCredentials:
		return p.UserID != "" && p.Email != ""
	}
	return false
}

// AppSession is what pages read.  Never stored, always derived per request.
type AppSession struct {
	UserID   string          `json:"id"`
	Role     Role            `json:"role,omitempty"`
	Handle   string          `json:"handle,omitempty"`
	Email    string          `json:"email,omitempty"`
	Name     string          `json:"name,omitempty"`
	Image    string          `json:"image,omitempty"`
	Strategy SessionStrategy `json:"strategy"`
}

// NormalizeEmail lower cases and trims an address for lookups
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
