package siteauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// NewCreateUserFunc creates a CreateUserFunc that registers password users in the store
func NewCreateUserFunc(users UserStore) CreateUserFunc {
	return func(ctx context.Context, creds *Credentials) (*User, error) {
		email := NormalizeEmail(creds.Email)
		if email == "" {
			return nil, fmt.Errorf("email required")
		}

		// Check if the email already exists
		existing, err := users.GetUserByEmail(ctx, email)
		if err == nil && existing != nil {
			return nil, ErrEmailExists
		} else if err != nil && !errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("looking up email: %w", err)
		}

		if creds.Handle != "" {
			if taken, err := users.GetUserByHandle(ctx, creds.Handle); err == nil && taken != nil {
				return nil, ErrHandleTaken
			} else if err != nil && !errors.Is(err, ErrUserNotFound) {
				return nil, fmt.Errorf("looking up handle: %w", err)
			}
		}

		passwordHash, err := HashPassword(creds.Password)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		user := &User{
			ID:           NewID(),
			Email:        email,
			PasswordHash: passwordHash,
			Name:         creds.Name,
			Handle:       creds.Handle,
			Role:         RoleUser,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}

		slog.Info("created password user", "user_id", user.ID)
		return user, nil
	}
}

// SetPassword replaces (or adds) the password of an existing user
func SetPassword(ctx context.Context, users UserStore, email, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	user, err := users.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now()
	if err := users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	slog.Info("password updated", "user_id", user.ID)
	return nil
}

// SetRole changes a user's role.  Sessions pick the change up on their next request.
func SetRole(ctx context.Context, users UserStore, userID string, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	user, err := users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	user.Role = role
	user.UpdatedAt = time.Now()
	return users.UpdateUser(ctx, user)
}

// NewID generates an id for users and accounts
func NewID() string {
	return uuid.NewString()
}
