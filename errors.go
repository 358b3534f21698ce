package siteauth

import (
	"errors"
	"net/http"
)

var (
	ErrMissingCredentials = errors.New("email and password required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrAccountNotFound    = errors.New("account not found")
	ErrTokenNotFound      = errors.New("token not found")
	ErrTokenExpired       = errors.New("token expired")
	ErrEmailExists        = errors.New("email already registered")
	ErrHandleTaken        = errors.New("handle already taken")
	ErrProviderFailure    = errors.New("authentication failed")
	ErrAccountNotLinked   = errors.New("email belongs to a user without this provider account")
)

// Error codes sent back to the sign-in and sign-up pages as ?error=<code>
const (
	ErrCodeOAuthSignin           = "OAuthSignin"
	ErrCodeOAuthCallback         = "OAuthCallback"
	ErrCodeOAuthAccountNotLinked = "OAuthAccountNotLinked"
	ErrCodeEmailSignin           = "EmailSignin"
	ErrCodeVerification          = "Verification"
	ErrCodeCredentialsSignin     = "CredentialsSignin"
	ErrCodeConfiguration         = "Configuration"
	ErrCodeSessionRequired       = "SessionRequired"

	ErrCodeMissingField  = "MissingField"
	ErrCodeInvalidEmail  = "InvalidEmail"
	ErrCodeInvalidHandle = "InvalidHandle"
	ErrCodeWeakPassword  = "WeakPassword"
	ErrCodeEmailExists   = "EmailExists"
	ErrCodeHandleTaken   = "HandleTaken"
	ErrCodeSignupFailed  = "SignupFailed"
)

// AuthError is a failure that is safe to show to the user
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Field   string `json:"field,omitempty"`
}

func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

func (e *AuthError) Error() string {
	return e.Message
}

// StatusCode picks the HTTP status used when the error is returned as JSON
func (e *AuthError) StatusCode() int {
	switch e.Code {
	case ErrCodeMissingField, ErrCodeInvalidEmail, ErrCodeInvalidHandle, ErrCodeWeakPassword:
		return http.StatusBadRequest
	case ErrCodeEmailExists, ErrCodeHandleTaken:
		return http.StatusConflict
	case ErrCodeConfiguration:
		return http.StatusInternalServerError
	}
	return http.StatusUnauthorized
}

// AuthErrorHandler lets an app render its own failure response.  Returns true if handled.
type AuthErrorHandler func(err *AuthError, w http.ResponseWriter, r *http.Request) bool
