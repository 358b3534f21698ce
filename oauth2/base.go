package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/repairloader/siteauth"
	"golang.org/x/oauth2"
)

// BaseOAuth2 holds what every OAuth provider shares: the client config, the
// state cookie handshake and the code exchange.  Providers only supply
// fetchPrincipal.
type BaseOAuth2 struct {
	ClientId     string
	ClientSecret string
	CallbackURL  string

	// Handler called with the authenticated principal and the provider token
	HandlePrincipal siteauth.PrincipalHandler

	// OnError is called when the flow fails. If nil, returns JSON error.
	OnError siteauth.AuthErrorHandler

	name           string
	oauthConfig    oauth2.Config
	httpClient     *http.Client
	fetchPrincipal func(ctx context.Context, client *http.Client) (*siteauth.Principal, error)
}

func newBaseOAuth2(name, clientId, clientSecret, callbackUrl string, handle siteauth.PrincipalHandler) *BaseOAuth2 {
	return &BaseOAuth2{
		ClientId:        clientId,
		ClientSecret:    clientSecret,
		CallbackURL:     callbackUrl,
		HandlePrincipal: handle,
		name:            name,
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
		},
	}
}

func (b *BaseOAuth2) Name() string { return b.name }

// Enabled is false until both client id and secret are set
func (b *BaseOAuth2) Enabled() bool {
	return b.ClientId != "" && b.ClientSecret != ""
}

// SetHTTPClient replaces the client used to talk to the provider (tests)
func (b *BaseOAuth2) SetHTTPClient(client *http.Client) {
	b.httpClient = client
}

// SetOAuthEndpoint replaces the provider's auth and token URLs (tests)
func (b *BaseOAuth2) SetOAuthEndpoint(endpoint oauth2.Endpoint) {
	b.oauthConfig.Endpoint = endpoint
}

// ExchangeContext carries the injected HTTP client into golang.org/x/oauth2
func (b *BaseOAuth2) ExchangeContext(ctx context.Context) context.Context {
	if b.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	}
	return ctx
}

// HandleSignIn sends the browser to the provider's consent page
func (b *BaseOAuth2) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	if !b.Enabled() {
		b.fail(w, r, siteauth.ErrCodeConfiguration, "provider is not configured")
		return
	}
	OauthRedirector(&b.oauthConfig)(w, r)
}

// HandleCallback checks the state, exchanges the code and reports the principal
func (b *BaseOAuth2) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if !b.Enabled() {
		b.fail(w, r, siteauth.ErrCodeConfiguration, "provider is not configured")
		return
	}
	oauthState, _ := r.Cookie(stateCookieName)
	clearStateCookie(w)
	if oauthState == nil || oauthState.Value == "" {
		b.fail(w, r, siteauth.ErrCodeOAuthCallback, "missing oauth state")
		return
	}
	if r.FormValue("state") != oauthState.Value {
		b.fail(w, r, siteauth.ErrCodeOAuthCallback, "invalid oauth state")
		return
	}
	if providerErr := r.FormValue("error"); providerErr != "" {
		b.fail(w, r, siteauth.ErrCodeOAuthCallback, "provider denied the request: "+providerErr)
		return
	}

	ctx := b.ExchangeContext(r.Context())
	token, err := b.oauthConfig.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		b.fail(w, r, siteauth.ErrCodeOAuthCallback, fmt.Sprintf("code exchange failed: %v", err))
		return
	}

	principal, err := b.fetchPrincipal(ctx, b.oauthConfig.Client(ctx, token))
	if err != nil {
		b.fail(w, r, siteauth.ErrCodeOAuthCallback, fmt.Sprintf("fetching profile failed: %v", err))
		return
	}
	if !principal.Valid() {
		b.fail(w, r, siteauth.ErrCodeOAuthCallback, "provider profile is incomplete")
		return
	}
	b.HandlePrincipal(w, r, principal, token)
}

func (b *BaseOAuth2) fail(w http.ResponseWriter, r *http.Request, code, reason string) {
	slog.Info("oauth sign-in failed", "provider", b.name, "reason", reason)
	authErr := siteauth.NewAuthError(code, "Authentication failed", "")
	if b.OnError != nil && b.OnError(authErr, w, r) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(authErr.StatusCode())
	json.NewEncoder(w).Encode(authErr)
}

// getJSON fetches a provider API resource with the token-carrying client
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	response, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer response.Body.Close()

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("failed read response: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", url, response.StatusCode)
	}
	if err := json.Unmarshal(contents, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
