package siteauth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	sa "github.com/repairloader/siteauth"
)

// stubMiddleware signs in whoever sends X-Test-Role
func stubMiddleware() *sa.Middleware {
	return &sa.Middleware{
		SessionFromRequest: func(r *http.Request) *sa.AppSession {
			role := r.Header.Get("X-Test-Role")
			if role == "" {
				return nil
			}
			return &sa.AppSession{UserID: "u1", Role: sa.Role(role), Strategy: sa.StrategyJWT}
		},
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sa.AppSessionFromContext(r.Context()) == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestExtractSession(t *testing.T) {
	handler := stubMiddleware().ExtractSession(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/forum", nil))
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected anonymous request to pass through without a session, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/forum", nil)
	req.Header.Set("X-Test-Role", "user")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected session in context, got %d", rr.Code)
	}
}

func TestRequireSession(t *testing.T) {
	handler := stubMiddleware().RequireSession(okHandler())

	t.Run("anonymous page request", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/forum/new?category=engines", nil))
		if rr.Code != http.StatusFound {
			t.Fatalf("Expected 302, got %d", rr.Code)
		}
		expected := "/login?callbackUrl=%2Fforum%2Fnew%3Fcategory%3Dengines"
		if got := rr.Header().Get("Location"); got != expected {
			t.Errorf("Expected %q, got %q", expected, got)
		}
	})

	t.Run("anonymous API request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/threads", nil)
		req.Header.Set("Accept", "application/json")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rr.Code)
		}
	})

	t.Run("signed in", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/forum/new", nil)
		req.Header.Set("X-Test-Role", "user")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rr.Code)
		}
	})
}

func TestRequireSessionCustomLogin(t *testing.T) {
	m := stubMiddleware()
	m.LoginURL = "/signin"
	m.CallbackURLParam = "next"

	rr := httptest.NewRecorder()
	m.RequireSession(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tools", nil))
	if got := rr.Header().Get("Location"); got != "/signin?next=%2Ftools" {
		t.Errorf("Unexpected redirect %q", got)
	}
}

func TestRequireRole(t *testing.T) {
	handler := stubMiddleware().RequireRole(sa.RoleModerator)(okHandler())

	tests := []struct {
		role     string
		expected int
	}{
		{"", http.StatusFound},
		{"user", http.StatusForbidden},
		{"moderator", http.StatusOK},
		{"admin", http.StatusOK},
		{"owner", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run("role "+tt.role, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/forum/moderate", nil)
			if tt.role != "" {
				req.Header.Set("X-Test-Role", tt.role)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rr.Code)
			}
		})
	}
}
