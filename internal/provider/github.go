package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/fyrsmithlabs/ghsock/internal/config"
)

// GitHub locates a repository and the credentials used against it.
type GitHub struct {
	Owner string
	Repo  string
	Token config.Secret
	// BaseURL overrides the REST endpoint, for GitHub Enterprise or tests.
	BaseURL string
}

func (g GitHub) validate(needRepo bool) error {
	if g.Owner == "" {
		return fmt.Errorf("github owner is required")
	}
	if needRepo && g.Repo == "" {
		return fmt.Errorf("github repo is required")
	}
	return nil
}

// newGitHubClient creates a GitHub client. Without a token the client is
// anonymous unless requireToken is set.
func newGitHubClient(ctx context.Context, g GitHub, requireToken bool) (*github.Client, error) {
	var hc *http.Client
	switch {
	case g.Token.IsSet():
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: g.Token.Value()})
		hc = oauth2.NewClient(ctx, ts)
	case requireToken:
		return nil, fmt.Errorf("GitHub token not set")
	}

	client := github.NewClient(hc)
	if g.BaseURL != "" {
		base := g.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		client.BaseURL = u
	}
	return client, nil
}

// statusOf safely extracts the HTTP status code from a GitHub response.
func statusOf(resp *github.Response) int {
	if resp != nil && resp.Response != nil {
		return resp.Response.StatusCode
	}
	return 0
}

func rateOf(resp *github.Response) github.Rate {
	if resp == nil {
		return github.Rate{}
	}
	return resp.Rate
}
