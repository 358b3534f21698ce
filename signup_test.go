package siteauth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	sa "github.com/repairloader/siteauth"
	"golang.org/x/oauth2"
)

func newRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

func newFormRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// TestSignupFlow tests registration through the mounted handler
func TestSignupFlow(t *testing.T) {
	site := setupSite(t)
	createPasswordUser(t, site.Store, "taken@example.com", "password123", "taken")

	tests := []struct {
		name     string
		form     url.Values
		location string
	}{
		{
			name:     "successful signup",
			form:     url.Values{"email": {"New@Example.com"}, "password": {"password123"}, "handle": {"newbie"}, "callbackUrl": {"/forum"}},
			location: "/forum",
		},
		{
			name:     "duplicate email",
			form:     url.Values{"email": {"taken@example.com"}, "password": {"password123"}},
			location: "/signup?error=EmailExists",
		},
		{
			name:     "taken handle",
			form:     url.Values{"email": {"other@example.com"}, "password": {"password123"}, "handle": {"taken"}},
			location: "/signup?error=HandleTaken",
		},
		{
			name:     "weak password",
			form:     url.Values{"email": {"weak@example.com"}, "password": {"pass"}},
			location: "/signup?error=WeakPassword",
		},
		{
			name:     "invalid email",
			form:     url.Values{"email": {"nope"}, "password": {"password123"}},
			location: "/signup?error=InvalidEmail",
		},
		{
			name:     "invalid handle",
			form:     url.Values{"email": {"h@example.com"}, "password": {"password123"}, "handle": {"no way"}},
			location: "/signup?error=InvalidHandle",
		},
		{
			name:     "missing email",
			form:     url.Values{"password": {"password123"}},
			location: "/signup?error=MissingField",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := site.browser(t)
			resp := site.postForm(t, client, "/auth/signup", tt.form)
			expectRedirect(t, resp, tt.location)

			signedIn := site.cookie(client, "repairloader.token") != ""
			if wantSignedIn := !strings.Contains(tt.location, "error="); signedIn != wantSignedIn {
				t.Errorf("Expected signed in = %v, got %v", wantSignedIn, signedIn)
			}
		})
	}

	user, err := site.Store.GetUserByEmail(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("Expected the new user to exist: %v", err)
	}
	if user.Handle != "newbie" || user.Role != sa.RoleUser {
		t.Errorf("Unexpected user %+v", user)
	}
}

func TestSignupJSONErrors(t *testing.T) {
	site := setupSite(t)

	req, _ := http.NewRequest(http.MethodPost, site.Server.URL+"/auth/signup", strings.NewReader(`{"email":"a@x.com","password":"short"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := site.browser(t).Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestSignupWithoutErrorHandler(t *testing.T) {
	called := false
	handler := &sa.SignupHandler{
		CreateUser: func(ctx context.Context, creds *sa.Credentials) (*sa.User, error) {
			return nil, sa.ErrEmailExists
		},
		HandlePrincipal: func(w http.ResponseWriter, r *http.Request, p *sa.Principal, _ *oauth2.Token) {
			called = true
		},
	}

	rr := newRecorder()
	handler.ServeHTTP(rr, newFormRequest("/signup", url.Values{"email": {"a@x.com"}, "password": {"password123"}}))

	if called {
		t.Error("Expected no principal for a failed signup")
	}
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), sa.ErrCodeEmailExists) {
		t.Errorf("Expected EmailExists in body, got %s", rr.Body.String())
	}
}
