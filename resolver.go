package siteauth

import (
	"context"
	"errors"
	"log/slog"
)

// SessionContext is whatever authentication context the current request carries.
// At most one of the fields is expected to be set.
type SessionContext struct {
	// User is the user behind a persisted session row (OAuth, email link)
	User *User

	// TokenSubject is the verified subject of a session token (credentials)
	TokenSubject string
}

// IsEmpty is true for anonymous requests
func (c SessionContext) IsEmpty() bool {
	return c.User == nil && c.TokenSubject == ""
}

// SessionResolver turns a SessionContext into the AppSession pages read
type SessionResolver struct {
	Users UserStore
}

func NewSessionResolver(users UserStore) *SessionResolver {
	return &SessionResolver{Users: users}
}

// Resolve builds the AppSession for a request, or returns nil for anonymous.
//
// With a persisted-session user the fields are copied as is.  With a token
// subject the user row is always re-read so role and handle are current.  A
// user that no longer exists leaves role and handle empty; any other lookup
// failure makes the request anonymous.
func (s *SessionResolver) Resolve(ctx context.Context, sc SessionContext) *AppSession {
	if sc.User != nil {
		return sessionFromUser(sc.User, StrategyDatabase)
	}
	if sc.TokenSubject == "" {
		return nil
	}

	user, err := s.Users.GetUserByID(ctx, sc.TokenSubject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return &AppSession{UserID: sc.TokenSubject, Strategy: StrategyJWT}
		}
		slog.Warn("session lookup failed, treating request as anonymous", "user_id", sc.TokenSubject, "error", err)
		return nil
	}
	out := sessionFromUser(user, StrategyJWT)
	// the token subject is authoritative for the id
	out.UserID = sc.TokenSubject
	return out
}

func sessionFromUser(user *User, strategy SessionStrategy) *AppSession {
	return &AppSession{
		UserID:   user.ID,
		Role:     user.Role,
		Handle:   user.Handle,
		Email:    user.Email,
		Name:     user.Name,
		Image:    user.Image,
		Strategy: strategy,
	}
}
