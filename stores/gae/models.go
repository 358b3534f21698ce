//go:build !wasm
// +build !wasm

package gae

import (
	"time"

	"cloud.google.com/go/datastore"
	sa "github.com/repairloader/siteauth"
)

// UserEntity is the Datastore entity for users
type UserEntity struct {
	Key           *datastore.Key `datastore:"__key__"`
	Email         string         `datastore:"email"`
	PasswordHash  string         `datastore:"password_hash,noindex"`
	Name          string         `datastore:"name,noindex"`
	Handle        string         `datastore:"handle"`
	Role          string         `datastore:"role"`
	Image         string         `datastore:"image,noindex"`
	EmailVerified time.Time      `datastore:"email_verified,noindex"`
	CreatedAt     time.Time      `datastore:"created_at"`
	UpdatedAt     time.Time      `datastore:"updated_at"`
	Version       int            `datastore:"version"`
}

func (e *UserEntity) ToUser() *sa.User {
	u := &sa.User{
		ID:           e.Key.Name,
		Email:        e.Email,
		PasswordHash: e.PasswordHash,
		Name:         e.Name,
		Handle:       e.Handle,
		Role:         sa.ParseRole(e.Role),
		Image:        e.Image,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
	if !e.EmailVerified.IsZero() {
		verified := e.EmailVerified
		u.EmailVerified = &verified
	}
	return u
}

func UserToEntity(u *sa.User, key *datastore.Key) *UserEntity {
	e := &UserEntity{
		Key:          key,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Name:         u.Name,
		Handle:       u.Handle,
		Role:         string(u.Role),
		Image:        u.Image,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if u.EmailVerified != nil {
		e.EmailVerified = *u.EmailVerified
	}
	return e
}

// UniqueEntity reserves an email or handle for one user.
// Key name is the normalized email (KindUserEmail) or the handle (KindHandle).
type UniqueEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	UserID    string         `datastore:"user_id"`
	CreatedAt time.Time      `datastore:"created_at"`
}

// AccountEntity is the Datastore entity for linked provider accounts
// Key format: Provider + ":" + ProviderAccountID
type AccountEntity struct {
	Key               *datastore.Key `datastore:"__key__"`
	UserID            string         `datastore:"user_id"`
	Type              string         `datastore:"type"`
	Provider          string         `datastore:"provider"`
	ProviderAccountID string         `datastore:"provider_account_id"`
	AccessToken       string         `datastore:"access_token,noindex"`
	RefreshToken      string         `datastore:"refresh_token,noindex"`
	TokenType         string         `datastore:"token_type,noindex"`
	Scope             string         `datastore:"scope,noindex"`
	ExpiresAt         time.Time      `datastore:"expires_at,noindex"`
	CreatedAt         time.Time      `datastore:"created_at"`
}

func (e *AccountEntity) ToAccount() *sa.Account {
	return &sa.Account{
		UserID:            e.UserID,
		Type:              e.Type,
		Provider:          e.Provider,
		ProviderAccountID: e.ProviderAccountID,
		AccessToken:       e.AccessToken,
		RefreshToken:      e.RefreshToken,
		TokenType:         e.TokenType,
		Scope:             e.Scope,
		ExpiresAt:         e.ExpiresAt,
		CreatedAt:         e.CreatedAt,
	}
}

func AccountToEntity(a *sa.Account, key *datastore.Key) *AccountEntity {
	return &AccountEntity{
		Key:               key,
		UserID:            a.UserID,
		Type:              a.Type,
		Provider:          a.Provider,
		ProviderAccountID: a.ProviderAccountID,
		AccessToken:       a.AccessToken,
		RefreshToken:      a.RefreshToken,
		TokenType:         a.TokenType,
		Scope:             a.Scope,
		ExpiresAt:         a.ExpiresAt,
		CreatedAt:         a.CreatedAt,
	}
}

// SessionEntity is the Datastore entity for persisted sessions
// Key: the session token
type SessionEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	UserID    string         `datastore:"user_id"`
	Expires   time.Time      `datastore:"expires"`
	CreatedAt time.Time      `datastore:"created_at"`
}

// VerificationTokenEntity is the Datastore entity for magic link tokens
// Key format: Identifier + ":" + TokenHash
type VerificationTokenEntity struct {
	Key        *datastore.Key `datastore:"__key__"`
	Identifier string         `datastore:"identifier"`
	TokenHash  string         `datastore:"token_hash"`
	Expires    time.Time      `datastore:"expires"`
}
