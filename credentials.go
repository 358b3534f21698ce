package siteauth

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// Credentials represents what a user submits to sign up with a password
type Credentials struct {
	Email    string // Required
	Password string // Required
	Name     string // Optional display name
	Handle   string // Optional public handle
}

// CredentialsVerifier authenticates an email/password pair.
// Every rejection other than missing input is ErrInvalidCredentials, whatever the cause.
type CredentialsVerifier func(ctx context.Context, email, password string) (*Principal, error)

// SignupValidator validates credentials during signup
type SignupValidator func(creds *Credentials) *AuthError

// CreateUserFunc creates a new password user
type CreateUserFunc func(ctx context.Context, creds *Credentials) (*User, error)

const MinPasswordLength = 8

var (
	emailRegex  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	handleRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)
)

// dummyHash is compared against when there is no stored hash so that a miss
// costs about as much as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("siteauth-no-such-user"), bcrypt.DefaultCost)

// IsValidEmail does a basic format check
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// IsValidHandle checks the 3-20 letters, digits, underscores and hyphens rule
func IsValidHandle(handle string) bool {
	return handleRegex.MatchString(handle)
}

// DefaultSignupValidator provides the site's default validation for signup
var DefaultSignupValidator SignupValidator = func(creds *Credentials) *AuthError {
	if creds.Email == "" {
		return NewAuthError(ErrCodeMissingField, "Email is required", "email")
	}
	if creds.Password == "" {
		return NewAuthError(ErrCodeMissingField, "Password is required", "password")
	}
	if !IsValidEmail(creds.Email) {
		return NewAuthError(ErrCodeInvalidEmail, "Invalid email format", "email")
	}
	if creds.Handle != "" && !IsValidHandle(creds.Handle) {
		return NewAuthError(ErrCodeInvalidHandle, "Handle must be 3-20 characters and contain only letters, numbers, underscores, and hyphens", "handle")
	}
	if len(creds.Password) < MinPasswordLength {
		return NewAuthError(ErrCodeWeakPassword, fmt.Sprintf("Password must be at least %d characters", MinPasswordLength), "password")
	}
	return nil
}

// HashPassword hashes a plaintext password with bcrypt's default cost
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// NewCredentialsVerifier creates a CredentialsVerifier backed by a UserStore
func NewCredentialsVerifier(users UserStore) CredentialsVerifier {
	return func(ctx context.Context, email, password string) (*Principal, error) {
		// Obviously invalid input never touches the store
		if email == "" || password == "" {
			return nil, ErrMissingCredentials
		}

		user, err := users.GetUserByEmail(ctx, NormalizeEmail(email))
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("looking up user: %w", err)
		}

		if user == nil || !user.HasPassword() {
			// OAuth or email-link only accounts have no hash and can never match
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}

		return &Principal{
			Kind:       KindCredentials,
			Provider:   ProviderCredentials,
			ExternalID: user.ID,
			UserID:     user.ID,
			Email:      user.Email,
			Name:       user.Name,
			Image:      user.Image,
		}, nil
	}
}
