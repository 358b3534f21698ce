package siteauth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// SignupHandler registers password users and signs them in on success
type SignupHandler struct {
	// Validates credentials during signup.  Defaults to DefaultSignupValidator
	Validate SignupValidator

	// Creates a new user
	CreateUser CreateUserFunc

	// Handler called with the new user's credentials principal
	HandlePrincipal PrincipalHandler

	// OnSignupError is called when signup fails. If nil, returns JSON error.
	OnSignupError AuthErrorHandler
}

// ServeHTTP processes user registration
func (h *SignupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.CreateUser == nil || h.HandlePrincipal == nil {
		h.handleSignupError(NewAuthError(ErrCodeConfiguration, "Signup not configured", ""), w, r)
		return
	}

	creds, parseErr := h.parseSignupForm(r)
	if parseErr != nil {
		h.handleSignupError(parseErr, w, r)
		return
	}

	validate := h.Validate
	if validate == nil {
		validate = DefaultSignupValidator
	}
	if authErr := validate(creds); authErr != nil {
		h.handleSignupError(authErr, w, r)
		return
	}

	user, err := h.CreateUser(r.Context(), creds)
	switch {
	case errors.Is(err, ErrEmailExists):
		h.handleSignupError(NewAuthError(ErrCodeEmailExists, "An account with this email already exists", "email"), w, r)
		return
	case errors.Is(err, ErrHandleTaken):
		h.handleSignupError(NewAuthError(ErrCodeHandleTaken, "Handle is already taken", "handle"), w, r)
		return
	case err != nil:
		slog.Error("error creating user", "error", err)
		h.handleSignupError(NewAuthError(ErrCodeSignupFailed, "Could not create account", ""), w, r)
		return
	}

	h.HandlePrincipal(w, r, &Principal{
		Kind:       KindCredentials,
		Provider:   ProviderCredentials,
		ExternalID: user.ID,
		UserID:     user.ID,
		Email:      user.Email,
		Name:       user.Name,
	}, nil)
}

func (h *SignupHandler) parseSignupForm(r *http.Request) (*Credentials, *AuthError) {
	creds := &Credentials{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var data map[string]any
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return nil, NewAuthError(ErrCodeMissingField, "Invalid request body", "")
		}
		creds.Email, _ = data["email"].(string)
		creds.Password, _ = data["password"].(string)
		creds.Name, _ = data["name"].(string)
		creds.Handle, _ = data["handle"].(string)
	} else {
		if err := r.ParseForm(); err != nil {
			return nil, NewAuthError(ErrCodeMissingField, "Invalid form data", "")
		}
		creds.Email = r.PostFormValue("email")
		creds.Password = r.PostFormValue("password")
		creds.Name = r.PostFormValue("name")
		creds.Handle = r.PostFormValue("handle")
	}
	creds.Email = NormalizeEmail(creds.Email)
	creds.Name = strings.TrimSpace(creds.Name)
	creds.Handle = strings.TrimSpace(creds.Handle)
	return creds, nil
}

// handleSignupError handles signup errors using the configured handler or default JSON
func (h *SignupHandler) handleSignupError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if h.OnSignupError != nil && h.OnSignupError(err, w, r) {
		return
	}
	writeAuthError(w, err)
}
