package siteauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// CredentialsAuth handles email/password sign-in.  Sessions started this way
// are stateless tokens.
type CredentialsAuth struct {
	// Checks the submitted email and password
	Verify CredentialsVerifier

	// Handler called after successful authentication
	HandlePrincipal PrincipalHandler

	// OnLoginError is called when sign-in fails. If nil, returns JSON error.
	OnLoginError AuthErrorHandler

	// Form field names
	EmailField    string
	PasswordField string
}

// ServeHTTP handles sign-in posts, as a form or a JSON body
func (a *CredentialsAuth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if a.Verify == nil || a.HandlePrincipal == nil {
		a.handleLoginError(NewAuthError(ErrCodeConfiguration, "Sign-in not configured", ""), w, r)
		return
	}

	email, password, err := a.parseLoginForm(r)
	if err != nil {
		slog.Info("unreadable sign-in request", "error", err)
	}

	principal, err := a.Verify(r.Context(), email, password)
	if err != nil {
		// Every failure looks the same to the client
		if !errors.Is(err, ErrInvalidCredentials) && !errors.Is(err, ErrMissingCredentials) {
			slog.Warn("credentials check failed", "error", err)
		}
		a.handleLoginError(NewAuthError(ErrCodeCredentialsSignin, "Invalid email or password", ""), w, r)
		return
	}

	a.HandlePrincipal(w, r, principal, nil)
}

func (a *CredentialsAuth) parseLoginForm(r *http.Request) (email, password string, err error) {
	emailField := a.getEmailField()
	passwordField := a.getPasswordField()

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var data map[string]any
		if err = json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return "", "", fmt.Errorf("invalid post body")
		}
		email, _ = data[emailField].(string)
		password, _ = data[passwordField].(string)
		return email, password, nil
	}

	if err = r.ParseForm(); err != nil {
		return "", "", fmt.Errorf("error parsing form")
	}
	return r.PostFormValue(emailField), r.PostFormValue(passwordField), nil
}

func (a *CredentialsAuth) getEmailField() string {
	if a.EmailField != "" {
		return a.EmailField
	}
	return "email"
}

func (a *CredentialsAuth) getPasswordField() string {
	if a.PasswordField != "" {
		return a.PasswordField
	}
	return "password"
}

// handleLoginError handles login errors using the configured handler or default JSON
func (a *CredentialsAuth) handleLoginError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnLoginError != nil && a.OnLoginError(err, w, r) {
		return
	}
	writeAuthError(w, err)
}
