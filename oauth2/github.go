package oauth2

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/repairloader/siteauth"
	"golang.org/x/oauth2/github"
)

type GithubOAuth2 struct {
	*BaseOAuth2

	// UserInfoURL is the URL to fetch user info from. Defaults to GitHub's API.
	// Can be overridden for testing.
	UserInfoURL string

	// EmailsURL lists the user's addresses, used when the profile hides the email
	EmailsURL string
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func NewGithubOAuth2(clientId string, clientSecret string, callbackUrl string, handle siteauth.PrincipalHandler) *GithubOAuth2 {
	if clientId == "" {
		clientId = strings.TrimSpace(os.Getenv("GITHUB_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("GITHUB_SECRET"))
	}

	out := &GithubOAuth2{
		BaseOAuth2:  newBaseOAuth2(siteauth.ProviderGithub, clientId, clientSecret, callbackUrl, handle),
		UserInfoURL: "https://api.github.com/user",
		EmailsURL:   "https://api.github.com/user/emails",
	}
	out.oauthConfig.Endpoint = github.Endpoint
	out.oauthConfig.Scopes = []string{"read:user", "user:email"}
	out.fetchPrincipal = out.getPrincipal
	return out
}

func (g *GithubOAuth2) getPrincipal(ctx context.Context, client *http.Client) (*siteauth.Principal, error) {
	var user githubUser
	if err := getJSON(ctx, client, g.UserInfoURL, &user); err != nil {
		return nil, fmt.Errorf("failed getting user info from github: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("github user has no id")
	}

	email := user.Email
	if email == "" {
		var err error
		if email, err = g.primaryEmail(ctx, client); err != nil {
			return nil, err
		}
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}
	return &siteauth.Principal{
		Kind:       siteauth.KindOAuth,
		Provider:   siteauth.ProviderGithub,
		ExternalID: strconv.FormatInt(user.ID, 10),
		Email:      siteauth.NormalizeEmail(email),
		Name:       name,
		Image:      user.AvatarURL,
	}, nil
}

// primaryEmail picks the primary verified address, or any verified one
func (g *GithubOAuth2) primaryEmail(ctx context.Context, client *http.Client) (string, error) {
	var emails []githubEmail
	if err := getJSON(ctx, client, g.EmailsURL, &emails); err != nil {
		return "", fmt.Errorf("failed getting emails from github: %w", err)
	}
	fallback := ""
	for _, e := range emails {
		if !e.Verified {
			continue
		}
		if e.Primary {
			return e.Email, nil
		}
		if fallback == "" {
			fallback = e.Email
		}
	}
	return fallback, nil
}
