package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/numeria/internal/server/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Provider names.
const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

const (
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	githubUserURL     = "https://api.github.com/user"
	githubEmailsURL   = "https://api.github.com/user/emails"
)

// maxProfileBody caps how much of a provider profile response is read.
const maxProfileBody = 1 << 20

// OAuthProvider is one external identity provider.
type OAuthProvider interface {
	Name() string
	Config() *oauth2.Config
	// FetchProfile reads the signed-in identity using client, which already
	// carries the access token.
	FetchProfile(ctx context.Context, client *http.Client) (*models.OAuthProfile, error)
}

// GoogleProvider signs users in through Google's OpenID Connect endpoints.
type GoogleProvider struct {
	config      *oauth2.Config
	UserInfoURL string
}

// NewGoogleProvider returns a Google provider for the given client.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		UserInfoURL: googleUserInfoURL,
	}
}

func (p *GoogleProvider) Name() string           { return ProviderGoogle }
func (p *GoogleProvider) Config() *oauth2.Config { return p.config }

func (p *GoogleProvider) FetchProfile(ctx context.Context, client *http.Client) (*models.OAuthProfile, error) {
	var payload struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := getJSON(ctx, client, p.UserInfoURL, &payload); err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	if payload.Sub == "" {
		return nil, errors.New("google userinfo: missing subject")
	}
	return &models.OAuthProfile{
		ID:            payload.Sub,
		Email:         strings.ToLower(payload.Email),
		Name:          firstNonEmpty(payload.Name, payload.Email),
		EmailVerified: payload.EmailVerified,
	}, nil
}

// GitHubProvider signs users in through GitHub OAuth apps. The account email
// comes from /user/emails because /user only shows the public one.
type GitHubProvider struct {
	config    *oauth2.Config
	UserURL   string
	EmailsURL string
}

// NewGitHubProvider returns a GitHub provider for the given client.
func NewGitHubProvider(clientID, clientSecret, redirectURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoints.GitHub,
			Scopes:       []string{"read:user", "user:email"},
		},
		UserURL:   githubUserURL,
		EmailsURL: githubEmailsURL,
	}
}

func (p *GitHubProvider) Name() string           { return ProviderGitHub }
func (p *GitHubProvider) Config() *oauth2.Config { return p.config }

func (p *GitHubProvider) FetchProfile(ctx context.Context, client *http.Client) (*models.OAuthProfile, error) {
	var user struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := getJSON(ctx, client, p.UserURL, &user); err != nil {
		return nil, fmt.Errorf("github user: %w", err)
	}
	if user.ID == 0 {
		return nil, errors.New("github user: missing id")
	}
	profile := &models.OAuthProfile{
		ID:    strconv.FormatInt(user.ID, 10),
		Email: strings.ToLower(user.Email),
		Name:  firstNonEmpty(user.Name, user.Login),
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	// Without the user:email scope the list is unavailable; keep the public
	// email as unverified.
	if err := getJSON(ctx, client, p.EmailsURL, &emails); err != nil {
		return profile, nil
	}
	for _, e := range emails {
		if e.Primary {
			profile.Email = strings.ToLower(e.Email)
			profile.EmailVerified = e.Verified
			break
		}
	}
	return profile, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, maxProfileBody)).Decode(out)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
