package oauth2_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/repairloader/siteauth"
	"github.com/repairloader/siteauth/oauth2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	oauth2lib "golang.org/x/oauth2"
)

// mockOAuthServer plays both the token endpoint and the provider's profile API
type mockOAuthServer struct {
	server *httptest.Server

	userResponse   map[string]any
	emailsResponse []map[string]any
	tokenError     bool
	userInfoError  bool
	emailsCalled   bool
	lastAuthHeader string
}

func newMockOAuthServer() *mockOAuthServer {
	mock := &mockOAuthServer{}
	mux := http.NewServeMux()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if mock.tokenError {
			http.Error(w, "token exchange failed", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "mock_access_token",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "mock_refresh_token",
		})
	})

	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		mock.lastAuthHeader = r.Header.Get("Authorization")
		if mock.userInfoError {
			http.Error(w, "user info failed", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mock.userResponse)
	})

	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		mock.emailsCalled = true
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mock.emailsResponse)
	})

	mock.server = httptest.NewServer(mux)
	return mock
}

func (m *mockOAuthServer) Close() {
	m.server.Close()
}

func (m *mockOAuthServer) endpoint() oauth2lib.Endpoint {
	return oauth2lib.Endpoint{
		AuthURL:  m.server.URL + "/auth",
		TokenURL: m.server.URL + "/token",
	}
}

// recorder captures what a provider reports
type recorder struct {
	principal *siteauth.Principal
	token     *oauth2lib.Token
	errCode   string
}

func (rec *recorder) handle(w http.ResponseWriter, r *http.Request, p *siteauth.Principal, token *oauth2lib.Token) {
	rec.principal = p
	rec.token = token
	w.WriteHeader(http.StatusOK)
}

func (rec *recorder) onError(err *siteauth.AuthError, w http.ResponseWriter, r *http.Request) bool {
	rec.errCode = err.Code
	http.Redirect(w, r, "/login?error="+err.Code, http.StatusFound)
	return true
}

func callbackRequest(code, state, cookie string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/callback/github?code="+code+"&state="+state, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: cookie})
	}
	return req
}

func newTestGithub(mock *mockOAuthServer, rec *recorder) *oauth2.GithubOAuth2 {
	gh := oauth2.NewGithubOAuth2("test-client-id", "test-client-secret", "http://localhost:8080/auth/callback/github", rec.handle)
	gh.UserInfoURL = mock.server.URL + "/user"
	gh.EmailsURL = mock.server.URL + "/user/emails"
	gh.SetHTTPClient(mock.server.Client())
	gh.SetOAuthEndpoint(mock.endpoint())
	return gh
}

func TestOauthRedirector(t *testing.T) {
	config := &oauth2lib.Config{
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost:8080/callback",
		Scopes:      []string{"email"},
		Endpoint: oauth2lib.Endpoint{
			AuthURL:  "https://provider.example.com/auth",
			TokenURL: "https://provider.example.com/token",
		},
	}

	rr := httptest.NewRecorder()
	oauth2.OauthRedirector(config)(rr, httptest.NewRequest(http.MethodGet, "/signin/github", nil))

	require.Equal(t, http.StatusFound, rr.Code)
	location, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(location.String(), "https://provider.example.com/auth"))
	assert.Equal(t, "test-client-id", location.Query().Get("client_id"))
	assert.Equal(t, "code", location.Query().Get("response_type"))

	var state *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "oauthstate" {
			state = c
		}
	}
	require.NotNil(t, state)
	assert.Equal(t, location.Query().Get("state"), state.Value)
	assert.True(t, state.HttpOnly)
}

func TestGithubCallback(t *testing.T) {
	mock := newMockOAuthServer()
	defer mock.Close()

	t.Run("rejects missing state cookie", func(t *testing.T) {
		rec := &recorder{}
		gh := newTestGithub(mock, rec)

		rr := httptest.NewRecorder()
		gh.HandleCallback(rr, callbackRequest("code", "state", ""))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), siteauth.ErrCodeOAuthCallback)
		assert.Nil(t, rec.principal)
	})

	t.Run("rejects mismatched state", func(t *testing.T) {
		rec := &recorder{}
		gh := newTestGithub(mock, rec)
		gh.OnError = rec.onError

		rr := httptest.NewRecorder()
		gh.HandleCallback(rr, callbackRequest("code", "wrong_state", "correct_state"))

		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "/login?error=OAuthCallback", rr.Header().Get("Location"))
		assert.Equal(t, siteauth.ErrCodeOAuthCallback, rec.errCode)
		assert.Nil(t, rec.principal)
	})

	t.Run("successful callback", func(t *testing.T) {
		rec := &recorder{}
		gh := newTestGithub(mock, rec)
		mock.userResponse = map[string]any{
			"id":         456,
			"login":      "fixer",
			"name":       "Fix It Felix",
			"email":      "Felix@Example.com",
			"avatar_url": "https://avatars.example.com/456",
		}
		mock.emailsCalled = false

		rr := httptest.NewRecorder()
		gh.HandleCallback(rr, callbackRequest("valid_code", "valid_state", "valid_state"))

		require.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, rec.principal)
		assert.Equal(t, siteauth.KindOAuth, rec.principal.Kind)
		assert.Equal(t, siteauth.ProviderGithub, rec.principal.Provider)
		assert.Equal(t, "456", rec.principal.ExternalID)
		assert.Equal(t, "felix@example.com", rec.principal.Email)
		assert.Equal(t, "Fix It Felix", rec.principal.Name)
		assert.Equal(t, "https://avatars.example.com/456", rec.principal.Image)
		assert.Empty(t, rec.principal.UserID)
		require.NotNil(t, rec.token)
		assert.Equal(t, "mock_access_token", rec.token.AccessToken)
		assert.Equal(t, "Bearer mock_access_token", mock.lastAuthHeader)
		assert.False(t, mock.emailsCalled)
	})

	t.Run("falls back to the primary verified email", func(t *testing.T) {
		rec := &recorder{}
		gh := newTestGithub(mock, rec)
		mock.userResponse = map[string]any{"id": 789, "login": "privateperson"}
		mock.emailsResponse = []map[string]any{
			{"email": "old@example.com", "primary": false, "verified": true},
			{"email": "unverified@example.com", "primary": false, "verified": false},
			{"email": "main@example.com", "primary": true, "verified": true},
		}

		rr := httptest.NewRecorder()
		gh.HandleCallback(rr, callbackRequest("valid_code", "s", "s"))

		require.NotNil(t, rec.principal)
		assert.True(t, mock.emailsCalled)
		assert.Equal(t, "main@example.com", rec.principal.Email)
		assert.Equal(t, "privateperson", rec.principal.Name)
	})

	t.Run("fails on token exchange failure", func(t *testing.T) {
		rec := &recorder{}
		gh := newTestGithub(mock, rec)
		gh.OnError = rec.onError
		mock.tokenError = true
		defer func() { mock.tokenError = false }()

		rr := httptest.NewRecorder()
		gh.HandleCallback(rr, callbackRequest("bad_code", "s", "s"))

		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, siteauth.ErrCodeOAuthCallback, rec.errCode)
		assert.Nil(t, rec.principal)
	})

	t.Run("fails on user info failure", func(t *testing.T) {
		rec := &recorder{}
		gh := newTestGithub(mock, rec)
		gh.OnError = rec.onError
		mock.userInfoError = true
		defer func() { mock.userInfoError = false }()

		rr := httptest.NewRecorder()
		gh.HandleCallback(rr, callbackRequest("valid_code", "s", "s"))

		assert.Equal(t, siteauth.ErrCodeOAuthCallback, rec.errCode)
		assert.Nil(t, rec.principal)
	})

	t.Run("provider denied access", func(t *testing.T) {
		rec := &recorder{}
		gh := newTestGithub(mock, rec)
		gh.OnError = rec.onError

		req := httptest.NewRequest(http.MethodGet, "/callback/github?error=access_denied&state=s", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "s"})
		rr := httptest.NewRecorder()
		gh.HandleCallback(rr, req)

		assert.Equal(t, siteauth.ErrCodeOAuthCallback, rec.errCode)
		assert.Nil(t, rec.principal)
	})
}

func TestUnconfiguredProvider(t *testing.T) {
	t.Setenv("GITHUB_ID", "")
	t.Setenv("GITHUB_SECRET", "")
	rec := &recorder{}
	gh := oauth2.NewGithubOAuth2("", "", "", rec.handle)
	gh.OnError = rec.onError

	assert.False(t, gh.Enabled())
	rr := httptest.NewRecorder()
	gh.HandleSignIn(rr, httptest.NewRequest(http.MethodGet, "/signin/github", nil))

	assert.Equal(t, siteauth.ErrCodeConfiguration, rec.errCode)
	assert.Equal(t, "/login?error=Configuration", rr.Header().Get("Location"))
}

func TestGoogleCallback(t *testing.T) {
	mock := newMockOAuthServer()
	defer mock.Close()

	newGoogle := func(rec *recorder) *oauth2.GoogleOAuth2 {
		g := oauth2.NewGoogleOAuth2("google-id", "google-secret", "http://localhost:8080/auth/callback/google", rec.handle)
		g.UserInfoURL = mock.server.URL + "/user"
		g.SetHTTPClient(mock.server.Client())
		g.SetOAuthEndpoint(mock.endpoint())
		return g
	}

	t.Run("verified email", func(t *testing.T) {
		rec := &recorder{}
		mock.userResponse = map[string]any{
			"id":             "g-100",
			"email":          "tech@example.com",
			"verified_email": true,
			"name":           "Tech",
			"picture":        "https://lh3.example.com/p",
		}

		rr := httptest.NewRecorder()
		newGoogle(rec).HandleCallback(rr, callbackRequest("code", "s", "s"))

		require.NotNil(t, rec.principal)
		assert.Equal(t, siteauth.ProviderGoogle, rec.principal.Provider)
		assert.Equal(t, "g-100", rec.principal.ExternalID)
		assert.Equal(t, "tech@example.com", rec.principal.Email)
		assert.Equal(t, "https://lh3.example.com/p", rec.principal.Image)
	})

	t.Run("unverified email is dropped", func(t *testing.T) {
		rec := &recorder{}
		mock.userResponse = map[string]any{
			"id":             "g-101",
			"email":          "someone@example.com",
			"verified_email": false,
		}

		rr := httptest.NewRecorder()
		newGoogle(rec).HandleCallback(rr, callbackRequest("code", "s", "s"))

		require.NotNil(t, rec.principal)
		assert.Empty(t, rec.principal.Email)
	})
}
