// Package githubapp talks to GitHub on behalf of the PolicyBolt GitHub App.
package githubapp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v61/github"
	"golang.org/x/oauth2"
)

// installationTokenTTL is how long GitHub keeps installation tokens valid.
const installationTokenTTL = time.Hour

type ClientProvider interface {
	// ExchangeCode trades an OAuth callback code for a user access token.
	ExchangeCode(ctx context.Context, code string) (string, error)
	// UserClient returns a client authenticated as the user owning token.
	UserClient(ctx context.Context, token string) (*github.Client, error)
	// InstallationToken mints a fresh installation access token.
	InstallationToken(ctx context.Context, installationID int64) (string, time.Time, error)
}

type AppClientProvider struct {
	AppID        int64
	PrivateKey   []byte
	ClientID     string
	ClientSecret string
	Hostname     string

	// TokenURL overrides the OAuth token endpoint derived from Hostname.
	TokenURL string
	// Transport is used for installation token requests. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

func (p *AppClientProvider) hostname() string {
	if p.Hostname == "" {
		return "github.com"
	}
	return p.Hostname
}

func (p *AppClientProvider) enterprise() bool {
	return p.hostname() != "github.com"
}

func (p *AppClientProvider) apiBaseURL() string {
	if p.enterprise() {
		return fmt.Sprintf("https://%s/api/v3", p.hostname())
	}
	return "https://api.github.com"
}

// InstallURL is the page where a user installs the app on their repositories.
func InstallURL(hostname, appSlug, state string) string {
	if hostname == "" {
		hostname = "github.com"
	}
	return fmt.Sprintf("https://%s/apps/%s/installations/new?state=%s", hostname, appSlug, state)
}

func (p *AppClientProvider) oauthConfig() *oauth2.Config {
	tokenURL := p.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://%s/login/oauth/access_token", p.hostname())
	}
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   fmt.Sprintf("https://%s/login/oauth/authorize", p.hostname()),
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (p *AppClientProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	tok, err := p.oauthConfig().Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange oauth code: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("received empty access token in OAuth response")
	}
	return tok.AccessToken, nil
}

func (p *AppClientProvider) UserClient(ctx context.Context, token string) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	if p.enterprise() {
		base := p.apiBaseURL() + "/"
		upload := fmt.Sprintf("https://%s/api/uploads/", p.hostname())
		return client.WithEnterpriseURLs(base, upload)
	}
	return client, nil
}

func (p *AppClientProvider) InstallationToken(ctx context.Context, installationID int64) (string, time.Time, error) {
	tr := p.Transport
	if tr == nil {
		tr = http.DefaultTransport
	}
	itr, err := ghinstallation.New(tr, p.AppID, installationID, p.PrivateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("error initialising github app installation: %w", err)
	}
	itr.BaseURL = strings.TrimRight(p.apiBaseURL(), "/")

	issued := time.Now()
	token, err := itr.Token(ctx)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("error minting installation token: %w", err)
	}
	return token, issued.Add(installationTokenTTL), nil
}

// InstallationOwnedBy reports whether installationID is among the
// installations visible to the user behind client.
func InstallationOwnedBy(ctx context.Context, client *github.Client, installationID int64) (bool, error) {
	opts := &github.ListOptions{PerPage: 100}
	for {
		installations, resp, err := client.Apps.ListUserInstallations(ctx, opts)
		if err != nil {
			return false, fmt.Errorf("list user installations: %w", err)
		}
		for _, inst := range installations {
			if inst.GetID() == installationID {
				return true, nil
			}
		}
		if resp == nil || resp.NextPage == 0 {
			return false, nil
		}
		opts.Page = resp.NextPage
	}
}
