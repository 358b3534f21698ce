package siteauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

type appSessionKey struct{}

type Middleware struct {
	// Where anonymous page requests are sent
	LoginURL string

	// Query parameter carrying the page to return to after sign-in
	CallbackURLParam string

	SessionFromRequest func(r *http.Request) *AppSession
}

/**
 * Ensures that config values have reasonable defaults.
 */
func (m *Middleware) EnsureReasonableDefaults() {
	if m.LoginURL == "" {
		m.LoginURL = "/login"
	}
	if m.CallbackURLParam == "" {
		m.CallbackURLParam = callbackURLKey
	}
}

// AppSessionFromContext returns the session ExtractSession stored, nil for anonymous requests
func AppSessionFromContext(ctx context.Context) *AppSession {
	s, _ := ctx.Value(appSessionKey{}).(*AppSession)
	return s
}

// ContextWithAppSession stores a resolved session for downstream handlers
func ContextWithAppSession(ctx context.Context, s *AppSession) context.Context {
	return context.WithValue(ctx, appSessionKey{}, s)
}

/**
 * Resolves the session of the request and makes it available through
 * AppSessionFromContext.
 *
 * Note this does not perform any redirects for anonymous requests.
 * To also enforce a session exists, use RequireSession.
 */
func (m *Middleware) ExtractSession(next http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, r = m.session(r)
		next.ServeHTTP(w, r)
	})
}

// RequireSession sends anonymous page requests to the login page and
// anonymous API requests a 401.
func (m *Middleware) RequireSession(next http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, r := m.session(r)
		if session == nil {
			m.deny(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole is RequireSession plus a minimum role, answering 403 below it
func (m *Middleware) RequireRole(role Role) func(http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, r := m.session(r)
			if session == nil {
				m.deny(w, r)
				return
			}
			if !session.Role.AtLeast(role) {
				slog.Info("insufficient role", "user_id", session.UserID, "role", session.Role, "required", role)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// session returns the already resolved session or resolves it now
func (m *Middleware) session(r *http.Request) (*AppSession, *http.Request) {
	if s := AppSessionFromContext(r.Context()); s != nil {
		return s, r
	}
	if m.SessionFromRequest == nil {
		slog.Warn("No session resolver configured.  Please set one")
		return nil, r
	}
	s := m.SessionFromRequest(r)
	if s == nil {
		return nil, r
	}
	return s, r.WithContext(ContextWithAppSession(r.Context(), s))
}

func (m *Middleware) deny(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeAuthError(w, NewAuthError(ErrCodeSessionRequired, "Sign in required", ""))
		return
	}
	original := r.URL.RequestURI()
	encoded := strings.ReplaceAll(url.QueryEscape(original), "+", "%20")
	http.Redirect(w, r, fmt.Sprintf("%s?%s=%s", m.LoginURL, m.CallbackURLParam, encoded), http.StatusFound)
}
