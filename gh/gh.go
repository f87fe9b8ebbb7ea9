/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gh wraps the GitHub API operations the release-notes flow
// needs: reading and updating releases, and fetching the issues, pull
// requests, and diffs the model asks about.
package gh

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"chainguard.dev/herald/retry"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"
)

// maxDiffBytes caps pull request diffs so a giant refactor cannot blow
// out the model's context window.
const maxDiffBytes = 50_000

// Client talks to the GitHub API for a single repository.
type Client struct {
	gh    *github.Client
	owner string
	repo  string
}

type settings struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*settings)

// WithBaseURL points the client at a different API endpoint, typically a
// test server.
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = u }
}

// WithHTTPClient substitutes the underlying HTTP client, bypassing the
// default auth and retry transports.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// New builds a client for the "owner/repo" slug. An empty token makes
// unauthenticated requests, which is enough for public repositories.
func New(ownerRepo, token string, opts ...Option) (*Client, error) {
	owner, repo, ok := strings.Cut(ownerRepo, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("invalid owner/repo: %s", ownerRepo)
	}

	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	httpClient := s.httpClient
	if httpClient == nil {
		tr, err := retry.NewTransport(retry.DefaultConfig(), nil)
		if err != nil {
			return nil, err
		}
		var transport http.RoundTripper = tr
		if token != "" {
			transport = &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
				Base:   transport,
			}
		}
		httpClient = &http.Client{Transport: transport}
	}

	client := github.NewClient(httpClient)
	if s.baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(s.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parsing base URL: %w", err)
		}
		client.BaseURL = u
	}

	return &Client{gh: client, owner: owner, repo: repo}, nil
}

// ReleaseByTag finds the release for a tag. Draft releases do not
// resolve through the by-tag endpoint, so a miss falls back to scanning
// recent releases. Returns (nil, nil) when no release exists.
func (c *Client) ReleaseByTag(ctx context.Context, tag string) (*github.RepositoryRelease, error) {
	release, resp, err := c.gh.Repositories.GetReleaseByTag(ctx, c.owner, c.repo, tag)
	if err == nil {
		return release, nil
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		return nil, fmt.Errorf("getting release %s: %w", tag, err)
	}

	clog.FromContext(ctx).Debugf("No published release for %s, checking recent releases for drafts", tag)
	releases, err := c.RecentReleases(ctx, 10)
	if err != nil {
		return nil, err
	}
	for _, r := range releases {
		if r.GetTagName() == tag {
			return r, nil
		}
	}
	return nil, nil
}

// RecentReleases returns up to n of the most recent releases, drafts
// included.
func (c *Client) RecentReleases(ctx context.Context, n int) ([]*github.RepositoryRelease, error) {
	releases, _, err := c.gh.Repositories.ListReleases(ctx, c.owner, c.repo, &github.ListOptions{PerPage: n})
	if err != nil {
		return nil, fmt.Errorf("listing releases: %w", err)
	}
	return releases, nil
}

// UpdateRelease replaces the title and body of an existing release.
func (c *Client) UpdateRelease(ctx context.Context, id int64, title, body string) error {
	_, _, err := c.gh.Repositories.EditRelease(ctx, c.owner, c.repo, id, &github.RepositoryRelease{
		Name: github.Ptr(title),
		Body: github.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("updating release %d: %w", id, err)
	}
	return nil
}

// Issue fetches a single issue.
func (c *Client) Issue(ctx context.Context, number int) (*github.Issue, error) {
	issue, _, err := c.gh.Issues.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, fmt.Errorf("getting issue #%d: %w", number, err)
	}
	return issue, nil
}

// PullRequest fetches a single pull request.
func (c *Client) PullRequest(ctx context.Context, number int) (*github.PullRequest, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, fmt.Errorf("getting PR #%d: %w", number, err)
	}
	return pr, nil
}

// PullRequestDiff fetches the unified diff for a pull request, truncated
// to maxDiffBytes.
func (c *Client) PullRequestDiff(ctx context.Context, number int) (string, error) {
	diff, _, err := c.gh.PullRequests.GetRaw(ctx, c.owner, c.repo, number, github.RawOptions{Type: github.Diff})
	if err != nil {
		return "", fmt.Errorf("getting diff for PR #%d: %w", number, err)
	}
	if len(diff) > maxDiffBytes {
		diff = diff[:maxDiffBytes] + "...\n\n[diff truncated at 50KB]"
	}
	return diff, nil
}
