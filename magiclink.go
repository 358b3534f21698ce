package siteauth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// EmailLinkAuth signs users in with a single use link sent to their inbox
type EmailLinkAuth struct {
	Tokens VerificationTokenStore
	Sender SendEmail

	// Absolute site URL the emailed link points at
	BaseURL string

	// Path of HandleCallback.  Defaults to /auth/callback/resend
	CallbackPath string

	// Where the browser goes after the link was sent.  Defaults to /login?check=email
	CheckEmailURL string

	// How long a link stays valid.  Defaults to VerificationTokenExpiry
	TokenExpiry time.Duration

	// Handler called after the link was followed
	HandlePrincipal PrincipalHandler

	// OnError is called when either step fails. If nil, returns JSON error.
	OnError AuthErrorHandler
}

func (e *EmailLinkAuth) Name() string { return ProviderResend }

func (e *EmailLinkAuth) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	e.HandleStart(w, r)
}

func (e *EmailLinkAuth) HandleCallback(w http.ResponseWriter, r *http.Request) {
	e.HandleVerify(w, r)
}

// HandleStart stores a verification token and mails the sign-in link
func (e *EmailLinkAuth) HandleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if e.Tokens == nil || e.Sender == nil {
		e.handleError(NewAuthError(ErrCodeConfiguration, "Email sign-in not configured", ""), w, r)
		return
	}

	email := NormalizeEmail(e.parseEmail(r))
	if !IsValidEmail(email) {
		e.handleError(NewAuthError(ErrCodeEmailSignin, "Enter a valid email address", "email"), w, r)
		return
	}

	token, err := GenerateSecureToken()
	if err != nil {
		slog.Error("[MAGIC_LINK] token generation failed", "error", err)
		e.handleError(NewAuthError(ErrCodeEmailSignin, "Could not send sign-in link", ""), w, r)
		return
	}

	expiry := e.tokenExpiry()
	ctx := r.Context()
	err = e.Tokens.CreateVerificationToken(ctx, &VerificationToken{
		Identifier: email,
		TokenHash:  HashToken(token),
		Expires:    time.Now().Add(expiry),
	})
	if err != nil {
		slog.Error("[MAGIC_LINK] storing token failed", "error", err)
		e.handleError(NewAuthError(ErrCodeEmailSignin, "Could not send sign-in link", ""), w, r)
		return
	}

	if err := e.Sender.SendSignInLink(ctx, email, e.link(token, email), expiry); err != nil {
		slog.Error("[MAGIC_LINK] sending email failed", "error", err)
		e.handleError(NewAuthError(ErrCodeEmailSignin, "Could not send sign-in link", ""), w, r)
		return
	}

	slog.Info("[MAGIC_LINK] sign-in link sent")
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	http.Redirect(w, r, e.checkEmailURL(), http.StatusFound)
}

// HandleVerify consumes the token from a followed link.  Tokens are single use.
func (e *EmailLinkAuth) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if e.Tokens == nil || e.HandlePrincipal == nil {
		e.handleError(NewAuthError(ErrCodeConfiguration, "Email sign-in not configured", ""), w, r)
		return
	}
	token := r.URL.Query().Get("token")
	email := NormalizeEmail(r.URL.Query().Get("email"))
	if token == "" || email == "" {
		e.handleError(NewAuthError(ErrCodeVerification, "Invalid sign-in link", ""), w, r)
		return
	}

	vt, err := e.Tokens.UseVerificationToken(r.Context(), email, HashToken(token))
	if err != nil {
		if !errors.Is(err, ErrTokenNotFound) {
			slog.Error("[MAGIC_LINK] token lookup failed", "error", err)
		}
		e.handleError(NewAuthError(ErrCodeVerification, "Sign-in link is invalid or was already used", ""), w, r)
		return
	}
	if vt.IsExpired() {
		e.handleError(NewAuthError(ErrCodeVerification, "Sign-in link has expired", ""), w, r)
		return
	}

	e.HandlePrincipal(w, r, &Principal{
		Kind:       KindEmail,
		Provider:   ProviderResend,
		ExternalID: email,
		Email:      email,
	}, nil)
}

func (e *EmailLinkAuth) parseEmail(r *http.Request) string {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var data struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
			return ""
		}
		return data.Email
	}
	return r.PostFormValue("email")
}

func (e *EmailLinkAuth) link(token, email string) string {
	path := e.CallbackPath
	if path == "" {
		path = "/auth/callback/" + ProviderResend
	}
	q := url.Values{"token": {token}, "email": {email}}
	return strings.TrimSuffix(e.BaseURL, "/") + path + "?" + q.Encode()
}

func (e *EmailLinkAuth) tokenExpiry() time.Duration {
	if e.TokenExpiry > 0 {
		return e.TokenExpiry
	}
	return VerificationTokenExpiry
}

func (e *EmailLinkAuth) checkEmailURL() string {
	if e.CheckEmailURL != "" {
		return e.CheckEmailURL
	}
	return "/login?check=email"
}

func (e *EmailLinkAuth) handleError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if e.OnError != nil && e.OnError(err, w, r) {
		return
	}
	writeAuthError(w, err)
}
