package site

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sa "github.com/repairloader/siteauth"
	"github.com/repairloader/siteauth/forum"
)

type fakeForum struct {
	tools      []*forum.Tool
	categories []*forum.CategorySummary
	recent     []*forum.ThreadSummary
	err        error
}

func (f *fakeForum) UpsertCategory(ctx context.Context, c *forum.Category) error { return nil }
func (f *fakeForum) UpsertTag(ctx context.Context, t *forum.Tag) error           { return nil }
func (f *fakeForum) UpsertTool(ctx context.Context, t *forum.Tool) error         { return nil }
func (f *fakeForum) ListCategories(ctx context.Context) ([]*forum.CategorySummary, error) {
	return f.categories, f.err
}
func (f *fakeForum) ListTags(ctx context.Context) ([]*forum.Tag, error)   { return nil, f.err }
func (f *fakeForum) ListTools(ctx context.Context) ([]*forum.Tool, error) { return f.tools, f.err }
func (f *fakeForum) CountThreads(ctx context.Context) (int64, error)      { return 42, f.err }
func (f *fakeForum) CountUsers(ctx context.Context) (int64, error)        { return 7, f.err }
func (f *fakeForum) RecentThreads(ctx context.Context, limit int) ([]*forum.ThreadSummary, error) {
	return f.recent, f.err
}

func newFakeForum() *fakeForum {
	f := &fakeForum{}
	for _, t := range forum.DefaultTools {
		tool := t
		f.tools = append(f.tools, &tool)
	}
	windows := forum.DefaultCategories[0]
	latest := &forum.ThreadSummary{
		Thread:   forum.Thread{ID: "t1", Slug: "bsod-on-boot", Title: "BSOD on boot", CreatedAt: time.Now()},
		Author:   &forum.Author{ID: "u1", Handle: "solder_king"},
		Category: &windows,
	}
	f.categories = []*forum.CategorySummary{{Category: windows, ThreadCount: 3, LatestThread: latest}}
	f.recent = []*forum.ThreadSummary{latest}
	return f
}

// newTestServer resolves a session only when the request carries the "signed-in" cookie
func newTestServer(t *testing.T, store forum.Store, providers Providers) *Server {
	t.Helper()
	auth := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Auth-Path", r.URL.Path)
		w.WriteHeader(http.StatusTeapot)
	})
	middleware := &sa.Middleware{
		SessionFromRequest: func(r *http.Request) *sa.AppSession {
			if _, err := r.Cookie("signed-in"); err == nil {
				return &sa.AppSession{UserID: "u1", Handle: "fixer", Role: sa.RoleUser, Strategy: sa.StrategyDatabase}
			}
			return nil
		},
	}
	s, err := NewServer(store, auth, middleware, providers)
	require.NoError(t, err)
	return s
}

func get(s http.Handler, path string, signedIn bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if signedIn {
		req.AddCookie(&http.Cookie{Name: "signed-in", Value: "1"})
	}
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, newFakeForum(), Providers{})
	rr := get(s, "/healthz", false)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestAuthMountStripsPrefix(t *testing.T) {
	s := newTestServer(t, newFakeForum(), Providers{})
	rr := get(s, "/auth/session", false)
	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "/session", rr.Header().Get("X-Auth-Path"))
}

func TestHomePage(t *testing.T) {
	s := newTestServer(t, newFakeForum(), Providers{})

	rr := get(s, "/", false)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Fix Tech Problems.")
	assert.Contains(t, body, "System Info")
	assert.Contains(t, body, "Network Doctor")
	assert.NotContains(t, body, "Windows Troubleshooter", "only the featured tools are shown")
	assert.Contains(t, body, `href="/login"`)

	rr = get(s, "/", true)
	assert.Contains(t, rr.Body.String(), "fixer")
	assert.Contains(t, rr.Body.String(), "Sign out")
}

func TestLoginPage(t *testing.T) {
	t.Run("only configured providers", func(t *testing.T) {
		s := newTestServer(t, newFakeForum(), Providers{GitHub: true, Email: true, Credentials: true})
		body := get(s, "/login", false).Body.String()
		assert.Contains(t, body, "Continue with GitHub")
		assert.NotContains(t, body, "Continue with Google")
		assert.Contains(t, body, `action="/auth/signin/resend"`)
		assert.Contains(t, body, `action="/auth/callback/credentials"`)
	})

	t.Run("error and check email notices", func(t *testing.T) {
		s := newTestServer(t, newFakeForum(), Providers{Email: true})
		body := get(s, "/login?error=Verification", false).Body.String()
		assert.Contains(t, body, "invalid or has expired")

		body = get(s, "/login?error=SomethingNew", false).Body.String()
		assert.Contains(t, body, "Something went wrong")

		body = get(s, "/login?check=email", false).Body.String()
		assert.Contains(t, body, "Check your email")
	})

	t.Run("callback url is carried along", func(t *testing.T) {
		s := newTestServer(t, newFakeForum(), Providers{GitHub: true, Credentials: true})
		body := get(s, "/login?callbackUrl=%2Fforum%2Fnew", false).Body.String()
		assert.Contains(t, body, `href="/auth/signin/github?callbackUrl=%2Fforum%2Fnew"`)
		assert.Contains(t, body, `name="callbackUrl" value="/forum/new"`)
	})

	t.Run("signed in users go home", func(t *testing.T) {
		s := newTestServer(t, newFakeForum(), Providers{})
		rr := get(s, "/login", true)
		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "/", rr.Header().Get("Location"))
	})
}

func TestSignupPage(t *testing.T) {
	s := newTestServer(t, newFakeForum(), Providers{Google: true})
	rr := get(s, "/signup?error=HandleTaken", false)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "already taken")
	assert.Contains(t, body, `action="/auth/signup"`)
	assert.Contains(t, body, "Sign up with Google")
}

func TestForumPage(t *testing.T) {
	s := newTestServer(t, newFakeForum(), Providers{})
	rr := get(s, "/forum", false)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "<strong>42</strong> Discussions")
	assert.Contains(t, body, "<strong>7</strong> Members")
	assert.Contains(t, body, "Windows")
	assert.Contains(t, body, "BSOD on boot")
	assert.Contains(t, body, "solder_king")
}

func TestForumPageStoreFailure(t *testing.T) {
	store := newFakeForum()
	store.err = errors.New("db down")
	s := newTestServer(t, store, Providers{})
	rr := get(s, "/forum", false)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "db down")
}

func TestNewThreadRequiresSession(t *testing.T) {
	s := newTestServer(t, newFakeForum(), Providers{})

	rr := get(s, "/forum/new", false)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login?callbackUrl=%2Fforum%2Fnew", rr.Header().Get("Location"))

	rr = get(s, "/forum/new", true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Posting as fixer")
}

func TestToolsPage(t *testing.T) {
	s := newTestServer(t, newFakeForum(), Providers{})
	body := get(s, "/tools", false).Body.String()
	for _, tool := range forum.DefaultTools {
		assert.Contains(t, body, tool.Name)
	}
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, newFakeForum(), Providers{})
	rr := get(s, "/guides", false)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Page not found")
}
