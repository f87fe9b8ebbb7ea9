/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package links extracts URLs from generated release notes and probes
// them, so the agent can ask the model to fix dead references before
// anything is published.
package links

import (
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
)

// urlPattern is a permissive match for absolute http(s) URLs. Trailing
// punctuation that commonly follows a link in prose is trimmed after
// matching rather than encoded in the pattern.
var urlPattern = regexp.MustCompile(`https?://[^\s\)\]>]+`)

// Extract returns the unique absolute http(s) URLs found in texts, in
// first-seen order.
func Extract(texts ...string) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, text := range texts {
		for _, m := range urlPattern.FindAllString(text, -1) {
			u := strings.TrimRight(m, ".,;")
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}

// Broken is a URL that failed verification and why.
type Broken struct {
	URL    string
	Reason string
}

// Verifier probes URLs over HTTP.
type Verifier struct {
	client *http.Client
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithHTTPClient overrides the default probing client.
func WithHTTPClient(c *http.Client) Option {
	return func(v *Verifier) {
		v.client = c
	}
}

// NewVerifier returns a Verifier with a bounded-timeout client that
// follows at most five redirects.
func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{
		client: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("stopped after 5 redirects")
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify probes every URL found in texts and returns the broken ones in
// extraction order. An empty result means every link resolved. Empty
// input performs no network calls.
func (v *Verifier) Verify(ctx context.Context, texts ...string) []Broken {
	urls := Extract(texts...)
	if len(urls) == 0 {
		return nil
	}
	log := clog.FromContext(ctx)
	log.Debugf("Verifying %d links", len(urls))

	var broken []Broken
	for _, u := range urls {
		if reason, bad := v.check(ctx, u); bad {
			log.With("url", u, "reason", reason).Warn("Broken link")
			broken = append(broken, Broken{URL: u, Reason: reason})
		}
	}
	return broken
}

// check probes one URL. A 404 is broken, a 405 retries with GET, and
// any transport failure is broken with the error text as the reason.
// Other statuses pass: for link purposes a 500 still proves the
// resource exists.
func (v *Verifier) check(ctx context.Context, url string) (string, bool) {
	status, err := v.probe(ctx, http.MethodHead, url)
	if err != nil {
		return err.Error(), true
	}
	switch status {
	case http.StatusNotFound:
		return "404", true
	case http.StatusMethodNotAllowed:
		status, err = v.probe(ctx, http.MethodGet, url)
		if err != nil {
			return err.Error(), true
		}
		if status == http.StatusNotFound {
			return "404", true
		}
	}
	return "", false
}

func (v *Verifier) probe(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
