package siteauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"golang.org/x/oauth2"
)

// PrincipalHandler is called by a provider adapter once it has authenticated someone.
// token is nil for everything but OAuth.
type PrincipalHandler func(w http.ResponseWriter, r *http.Request, principal *Principal, token *oauth2.Token)

// Provider is a sign-in mechanism mounted at /signin/<name> and /callback/<name>
type Provider interface {
	Name() string
	HandleSignIn(w http.ResponseWriter, r *http.Request)
	HandleCallback(w http.ResponseWriter, r *http.Request)
}

const callbackURLKey = "callbackUrl"

type SiteAuth struct {
	mux        *http.ServeMux
	Session    *scs.SessionManager
	Middleware Middleware

	// Prefix for cookie names
	AppName string

	// Must be passed in
	Store IdentityStore

	Resolver *SessionResolver
	Tokens   *TokenIssuer

	// Absolute site URL, used for emailed links and to accept absolute callback URLs
	BaseURL string

	// Sign-in page that failures are sent back to
	LoginURL string

	// Sign-up page that signup failures are sent back to
	SignupURL string

	SessionCookieName string
	TokenCookieName   string
	SecureCookies     bool

	// Lifetime of both session rows and session tokens.  Defaults to 30 days
	SessionMaxAge time.Duration

	// Signs session tokens.  Read from AUTH_SECRET when empty
	SecretKey string

	providers map[string]Provider
}

func New(appName string, store IdentityStore) *SiteAuth {
	return (&SiteAuth{AppName: appName, Store: store}).EnsureDefaults()
}

func (a *SiteAuth) EnsureDefaults() *SiteAuth {
	if a.AppName == "" {
		a.AppName = "siteauth"
	}
	if a.SessionMaxAge <= 0 {
		a.SessionMaxAge = DefaultSessionMaxAge
	}
	if a.LoginURL == "" {
		a.LoginURL = "/login"
	}
	if a.SignupURL == "" {
		a.SignupURL = "/signup"
	}
	if a.SessionCookieName == "" {
		a.SessionCookieName = a.AppName + ".session-token"
	}
	if a.TokenCookieName == "" {
		a.TokenCookieName = a.AppName + ".token"
	}
	if a.SecretKey == "" {
		a.SecretKey = strings.TrimSpace(os.Getenv("AUTH_SECRET"))
		if a.SecretKey == "" {
			// Tokens will not survive a restart
			slog.Warn("AUTH_SECRET not set, using a random signing key")
			a.SecretKey, _ = GenerateSecureToken()
		}
	}
	if a.Tokens == nil {
		a.Tokens = NewTokenIssuer(a.SecretKey, a.AppName, a.SessionMaxAge)
	}
	if a.Resolver == nil && a.Store != nil {
		a.Resolver = NewSessionResolver(a.Store)
	}
	if a.Session == nil {
		a.Session = scs.New()
		a.Session.Lifetime = time.Hour
		a.Session.Cookie.Name = a.AppName + ".flow"
		a.Session.Cookie.HttpOnly = true
		a.Session.Cookie.SameSite = http.SameSiteLaxMode
		a.Session.Cookie.Secure = a.SecureCookies
	}
	if a.Middleware.LoginURL == "" {
		a.Middleware.LoginURL = a.LoginURL
	}
	if a.Middleware.SessionFromRequest == nil {
		a.Middleware.SessionFromRequest = a.SessionFromRequest
	}
	if a.providers == nil {
		a.providers = map[string]Provider{}
	}
	return a
}

// Handler returns the auth routes.  Mount it under /auth with the prefix stripped.
func (a *SiteAuth) Handler() http.Handler {
	return a.Session.LoadAndSave(a.setupRoutes().mux)
}

// AddProvider mounts a provider's sign-in and callback routes
func (a *SiteAuth) AddProvider(p Provider) *SiteAuth {
	a.EnsureDefaults().setupRoutes()
	name := p.Name()
	if _, exists := a.providers[name]; exists {
		slog.Warn("provider registered twice, ignoring", "provider", name)
		return a
	}
	a.providers[name] = p
	a.mux.Handle("/signin/"+name, a.rememberCallbackURL(http.HandlerFunc(p.HandleSignIn)))
	a.mux.HandleFunc("/callback/"+name, p.HandleCallback)
	slog.Info("sign-in provider enabled", "provider", name)
	return a
}

// HandleCredentials mounts the password sign-in handler
func (a *SiteAuth) HandleCredentials(h http.Handler) *SiteAuth {
	a.EnsureDefaults().setupRoutes()
	a.mux.Handle("POST /callback/"+ProviderCredentials, a.rememberCallbackURL(h))
	return a
}

// HandleSignup mounts the signup handler
func (a *SiteAuth) HandleSignup(h http.Handler) *SiteAuth {
	a.EnsureDefaults().setupRoutes()
	a.mux.Handle("POST /signup", a.rememberCallbackURL(h))
	return a
}

func (a *SiteAuth) setupRoutes() *SiteAuth {
	if a.mux == nil {
		a.mux = http.NewServeMux()
		a.mux.HandleFunc("/signout", a.HandleSignOut)
		a.mux.HandleFunc("GET /session", a.handleSession)
		a.mux.HandleFunc("/signin/{provider}", a.handleUnknownProvider)
		a.mux.HandleFunc("/callback/{provider}", a.handleUnknownProvider)
	}
	return a
}

// Providers that are not configured answer with a Configuration error
func (a *SiteAuth) handleUnknownProvider(w http.ResponseWriter, r *http.Request) {
	slog.Warn("sign-in with unconfigured provider", "provider", r.PathValue("provider"))
	a.HandleLoginError(NewAuthError(ErrCodeConfiguration, "Sign-in provider is not configured", ""), w, r)
}

// CompleteSignIn is the PrincipalHandler every adapter reports to.
//
// OAuth and email-link principals are mapped onto a User (creating one on first
// sign-in) and get a persisted session.  Credentials principals already name a
// User and get a signed token.  Either way the other path's cookie is cleared.
func (a *SiteAuth) CompleteSignIn(w http.ResponseWriter, r *http.Request, principal *Principal, token *oauth2.Token) {
	ctx := r.Context()
	if !principal.Valid() {
		slog.Warn("incomplete principal from provider")
		a.HandleLoginError(NewAuthError(errorCodeForKind(principal), "Authentication failed", ""), w, r)
		return
	}

	var err error
	switch principal.Kind {
	case KindOAuth:
		var user *User
		if user, err = a.ensureOAuthUser(ctx, principal, token); err == nil {
			err = a.startSession(w, r, user)
		}
	case KindEmail:
		var user *User
		if user, err = a.ensureEmailUser(ctx, principal); err == nil {
			err = a.startSession(w, r, user)
		}
	case KindCredentials:
		err = a.startTokenSession(w, r, principal.UserID)
	}
	if errors.Is(err, ErrAccountNotLinked) {
		slog.Warn("sign-in refused for unlinked account", "provider", principal.Provider)
		a.HandleLoginError(NewAuthError(ErrCodeOAuthAccountNotLinked, "This email is already registered with another sign-in method", ""), w, r)
		return
	}
	if err != nil {
		slog.Error("sign-in failed", "provider", principal.Provider, "error", err)
		a.HandleLoginError(NewAuthError(errorCodeForKind(principal), "Authentication failed", ""), w, r)
		return
	}

	slog.Info("signed in", "provider", principal.Provider, "strategy", StrategyFor(principal.Kind))
	target := a.popCallbackURL(ctx)
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"url": target})
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func errorCodeForKind(p *Principal) string {
	if p == nil {
		return ErrCodeOAuthCallback
	}
	switch p.Kind {
	case KindEmail:
		return ErrCodeVerification
	case KindCredentials:
		return ErrCodeCredentialsSignin
	}
	return ErrCodeOAuthCallback
}

// ensureOAuthUser maps an OAuth principal to a User.  Signing in again with the
// same provider account updates the profile instead of creating another user.
// A provider email that matches an existing user is refused with
// ErrAccountNotLinked rather than linked.
func (a *SiteAuth) ensureOAuthUser(ctx context.Context, p *Principal, token *oauth2.Token) (*User, error) {
	account, err := a.Store.GetAccount(ctx, p.Provider, p.ExternalID)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	var user *User
	if account != nil {
		user, err = a.Store.GetUserByID(ctx, account.UserID)
		if err != nil {
			return nil, fmt.Errorf("loading linked user: %w", err)
		}
		if applyProfile(user, p) {
			user.UpdatedAt = time.Now()
			if err := a.Store.UpdateUser(ctx, user); err != nil {
				return nil, fmt.Errorf("updating profile: %w", err)
			}
		}
	} else {
		if email := NormalizeEmail(p.Email); email != "" {
			_, err := a.Store.GetUserByEmail(ctx, email)
			if err == nil {
				return nil, ErrAccountNotLinked
			}
			if !errors.Is(err, ErrUserNotFound) {
				return nil, fmt.Errorf("looking up email: %w", err)
			}
		}
		if user, err = a.findOrCreateUser(ctx, p); err != nil {
			return nil, err
		}
		account = &Account{
			UserID:            user.ID,
			Type:              string(KindOAuth),
			Provider:          p.Provider,
			ProviderAccountID: p.ExternalID,
			CreatedAt:         time.Now(),
		}
	}

	if token != nil {
		account.AccessToken = token.AccessToken
		account.RefreshToken = token.RefreshToken
		account.TokenType = token.TokenType
		account.ExpiresAt = token.Expiry
		if scope, ok := token.Extra("scope").(string); ok {
			account.Scope = scope
		}
	}
	if err := a.Store.LinkAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("linking account: %w", err)
	}
	return user, nil
}

// ensureEmailUser maps a verified email address to a User
func (a *SiteAuth) ensureEmailUser(ctx context.Context, p *Principal) (*User, error) {
	user, err := a.findOrCreateUser(ctx, p)
	if err != nil {
		return nil, err
	}
	if user.EmailVerified == nil {
		now := time.Now()
		user.EmailVerified = &now
		user.UpdatedAt = now
		if err := a.Store.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("marking email verified: %w", err)
		}
	}

	_, err = a.Store.GetAccount(ctx, p.Provider, p.ExternalID)
	if errors.Is(err, ErrAccountNotFound) {
		err = a.Store.LinkAccount(ctx, &Account{
			UserID:            user.ID,
			Type:              string(KindEmail),
			Provider:          p.Provider,
			ProviderAccountID: p.ExternalID,
			CreatedAt:         time.Now(),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("linking email account: %w", err)
	}
	return user, nil
}

func (a *SiteAuth) findOrCreateUser(ctx context.Context, p *Principal) (*User, error) {
	email := NormalizeEmail(p.Email)
	if email != "" {
		user, err := a.Store.GetUserByEmail(ctx, email)
		if err == nil {
			if applyProfile(user, p) {
				user.UpdatedAt = time.Now()
				if err := a.Store.UpdateUser(ctx, user); err != nil {
					return nil, fmt.Errorf("updating profile: %w", err)
				}
			}
			return user, nil
		}
		if !errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("looking up email: %w", err)
		}
	}

	now := time.Now()
	user := &User{
		ID:        NewID(),
		Email:     email,
		Name:      p.Name,
		Image:     p.Image,
		Role:      RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.Store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	slog.Info("created user", "user_id", user.ID, "provider", p.Provider)
	return user, nil
}

// applyProfile copies provider profile fields onto the user, returning true if anything changed
func applyProfile(user *User, p *Principal) bool {
	changed := false
	if p.Name != "" && user.Name != p.Name {
		user.Name = p.Name
		changed = true
	}
	if p.Image != "" && user.Image != p.Image {
		user.Image = p.Image
		changed = true
	}
	if user.Email == "" && p.Email != "" {
		user.Email = NormalizeEmail(p.Email)
		changed = true
	}
	return changed
}

// startSession creates a persisted session row and drops any session token
func (a *SiteAuth) startSession(w http.ResponseWriter, r *http.Request, user *User) error {
	ctx := r.Context()
	a.dropCurrentSession(ctx, r)

	sessionToken, err := GenerateSecureToken()
	if err != nil {
		return err
	}
	now := time.Now()
	session := &Session{
		SessionToken: sessionToken,
		UserID:       user.ID,
		Expires:      now.Add(a.SessionMaxAge),
		CreatedAt:    now,
	}
	if err := a.Store.CreateSession(ctx, session); err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	a.setCookie(w, a.SessionCookieName, sessionToken, session.Expires)
	a.clearCookie(w, a.TokenCookieName)
	return nil
}

// startTokenSession issues a session token and drops any persisted session
func (a *SiteAuth) startTokenSession(w http.ResponseWriter, r *http.Request, userID string) error {
	a.dropCurrentSession(r.Context(), r)
	tokenString, expires, err := a.Tokens.Issue(userID)
	if err != nil {
		return err
	}
	a.setCookie(w, a.TokenCookieName, tokenString, expires)
	a.clearCookie(w, a.SessionCookieName)
	return nil
}

func (a *SiteAuth) dropCurrentSession(ctx context.Context, r *http.Request) {
	c, err := r.Cookie(a.SessionCookieName)
	if err != nil || c.Value == "" {
		return
	}
	if err := a.Store.DeleteSession(ctx, c.Value); err != nil && !errors.Is(err, ErrSessionNotFound) {
		slog.Warn("failed to delete previous session", "error", err)
	}
}

// SessionContextFromRequest collects the authentication context a request carries.
// A live persisted session wins over a session token.
func (a *SiteAuth) SessionContextFromRequest(r *http.Request) SessionContext {
	var sessionToken string
	if c, err := r.Cookie(a.SessionCookieName); err == nil {
		sessionToken = c.Value
	}
	return a.SessionContextFromTokens(r.Context(), sessionToken, a.tokensFromRequest(r)...)
}

// SessionContextFromTokens does the work of SessionContextFromRequest for
// callers that carry credentials outside of an http.Request (gRPC metadata).
// The session row wins over signed tokens.
func (a *SiteAuth) SessionContextFromTokens(ctx context.Context, sessionToken string, tokens ...string) SessionContext {
	if sessionToken != "" {
		session, user, err := a.Store.GetSessionAndUser(ctx, sessionToken)
		switch {
		case err == nil && session.IsExpired():
			if err := a.Store.DeleteSession(ctx, sessionToken); err != nil {
				slog.Warn("failed to delete expired session", "error", err)
			}
		case err == nil:
			return SessionContext{User: user}
		case errors.Is(err, ErrSessionNotFound):
		default:
			slog.Warn("session lookup failed, treating request as anonymous", "error", err)
			return SessionContext{}
		}
	}

	for _, tokenString := range tokens {
		subject, err := a.Tokens.Verify(tokenString)
		if err == nil {
			return SessionContext{TokenSubject: subject}
		}
		slog.Debug("rejected session token", "error", err)
	}
	return SessionContext{}
}

// SessionFromTokens resolves the AppSession for a session token and/or signed tokens
func (a *SiteAuth) SessionFromTokens(ctx context.Context, sessionToken string, tokens ...string) *AppSession {
	return a.Resolver.Resolve(ctx, a.SessionContextFromTokens(ctx, sessionToken, tokens...))
}

func (a *SiteAuth) tokensFromRequest(r *http.Request) (out []string) {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		out = append(out, strings.TrimPrefix(auth, "Bearer "))
	}
	for _, c := range r.CookiesNamed(a.TokenCookieName) {
		if c.Value != "" {
			out = append(out, c.Value)
		}
	}
	return
}

// SessionFromRequest resolves the AppSession for a request, nil when anonymous
func (a *SiteAuth) SessionFromRequest(r *http.Request) *AppSession {
	return a.Resolver.Resolve(r.Context(), a.SessionContextFromRequest(r))
}

// HandleSignOut deletes the persisted session and clears both cookies
func (a *SiteAuth) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a.dropCurrentSession(ctx, r)
	a.clearCookie(w, a.SessionCookieName)
	a.clearCookie(w, a.TokenCookieName)
	if err := a.Session.Destroy(ctx); err != nil {
		slog.Warn("error clearing flow session", "error", err)
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	http.Redirect(w, r, a.safeCallbackURL(r.FormValue("to")), http.StatusFound)
}

func (a *SiteAuth) handleSession(w http.ResponseWriter, r *http.Request) {
	session := a.SessionFromRequest(r)
	if session == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// rememberCallbackURL keeps the page to return to across the provider round trip
func (a *SiteAuth) rememberCallbackURL(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if target := r.FormValue(callbackURLKey); target != "" {
			a.Session.Put(r.Context(), callbackURLKey, a.safeCallbackURL(target))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *SiteAuth) popCallbackURL(ctx context.Context) string {
	return a.safeCallbackURL(a.Session.PopString(ctx, callbackURLKey))
}

// safeCallbackURL only lets through local paths, or absolute URLs on BaseURL's host
func (a *SiteAuth) safeCallbackURL(raw string) string {
	if raw == "" {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "/"
	}
	if u.Scheme != "" || u.Host != "" {
		base, err := url.Parse(a.BaseURL)
		if a.BaseURL == "" || err != nil || base.Host != u.Host || base.Scheme != u.Scheme {
			return "/"
		}
		raw = u.RequestURI()
	}
	if !isLocalPath(raw) {
		return "/"
	}
	return raw
}

// isLocalPath rejects scheme-relative forms browsers resolve to another host
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}

// HandleLoginError sends a sign-in failure back to the login page (or as JSON)
func (a *SiteAuth) HandleLoginError(err *AuthError, w http.ResponseWriter, r *http.Request) bool {
	return a.redirectWithError(a.LoginURL, err, w, r)
}

// HandleSignupError sends a signup failure back to the signup page (or as JSON)
func (a *SiteAuth) HandleSignupError(err *AuthError, w http.ResponseWriter, r *http.Request) bool {
	return a.redirectWithError(a.SignupURL, err, w, r)
}

func (a *SiteAuth) redirectWithError(page string, err *AuthError, w http.ResponseWriter, r *http.Request) bool {
	if wantsJSON(r) {
		writeAuthError(w, err)
		return true
	}
	http.Redirect(w, r, page+"?error="+url.QueryEscape(err.Code), http.StatusFound)
	return true
}

func (a *SiteAuth) setCookie(w http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *SiteAuth) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("error writing response", "error", err)
	}
}

// writeAuthError is the default failure response when no AuthErrorHandler takes it
func writeAuthError(w http.ResponseWriter, err *AuthError) {
	writeJSON(w, err.StatusCode(), err)
}
