package oauth2

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/repairloader/siteauth"
	"golang.org/x/oauth2/google"
)

type GoogleOAuth2 struct {
	*BaseOAuth2

	// Can be overridden for testing
	UserInfoURL string
}

type googleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func NewGoogleOAuth2(clientId string, clientSecret string, callbackUrl string, handle siteauth.PrincipalHandler) *GoogleOAuth2 {
	if clientId == "" {
		clientId = os.Getenv("GOOGLE_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GOOGLE_SECRET")
	}

	out := &GoogleOAuth2{
		BaseOAuth2:  newBaseOAuth2(siteauth.ProviderGoogle, clientId, clientSecret, callbackUrl, handle),
		UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
	out.oauthConfig.Endpoint = google.Endpoint
	out.oauthConfig.Scopes = []string{
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/userinfo.profile",
	}
	out.fetchPrincipal = out.getPrincipal
	return out
}

func (g *GoogleOAuth2) getPrincipal(ctx context.Context, client *http.Client) (*siteauth.Principal, error) {
	var user googleUser
	if err := getJSON(ctx, client, g.UserInfoURL, &user); err != nil {
		return nil, fmt.Errorf("failed getting user info from google: %w", err)
	}
	email := user.Email
	if !user.VerifiedEmail {
		// an unverified address must not link to an existing account
		email = ""
	}
	return &siteauth.Principal{
		Kind:       siteauth.KindOAuth,
		Provider:   siteauth.ProviderGoogle,
		ExternalID: user.ID,
		Email:      siteauth.NormalizeEmail(email),
		Name:       user.Name,
		Image:      user.Picture,
	}, nil
}
