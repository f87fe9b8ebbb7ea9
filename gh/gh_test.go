/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gh_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chainguard.dev/herald/gh"
)

// newTestClient serves the given handler and returns a client for the
// octo/demo repository pointed at it.
func newTestClient(t *testing.T, token string, handler http.Handler) *gh.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := gh.New("octo/demo", token, gh.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestNewRejectsBadSlug(t *testing.T) {
	t.Parallel()

	for _, slug := range []string{"nonsense", "/demo", "octo/"} {
		_, err := gh.New(slug, "")
		if err == nil {
			t.Errorf("New(%q) succeeded, wanted error", slug)
		} else if !strings.Contains(err.Error(), "invalid owner/repo") {
			t.Errorf("New(%q) error = %v, wanted invalid owner/repo", slug, err)
		}
	}
}

func TestReleaseByTag(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/releases/tags/v1.0.0", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"id": 7, "tag_name": "v1.0.0", "name": "First", "body": "notes"}`)
	})
	client := newTestClient(t, "", mux)

	release, err := client.ReleaseByTag(context.Background(), "v1.0.0")
	if err != nil {
		t.Fatalf("ReleaseByTag: %v", err)
	}
	if release == nil {
		t.Fatal("ReleaseByTag returned nil release")
	}
	if got, want := release.GetID(), int64(7); got != want {
		t.Errorf("ID = %d, wanted = %d", got, want)
	}
	if got, want := release.GetName(), "First"; got != want {
		t.Errorf("Name = %q, wanted = %q", got, want)
	}
	if got, want := release.GetBody(), "notes"; got != want {
		t.Errorf("Body = %q, wanted = %q", got, want)
	}
}

func TestReleaseByTagFindsDraft(t *testing.T) {
	t.Parallel()

	var perPage string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/releases/tags/v1.1.0", http.NotFound)
	mux.HandleFunc("/repos/octo/demo/releases", func(w http.ResponseWriter, r *http.Request) {
		perPage = r.URL.Query().Get("per_page")
		fmt.Fprint(w, `[{"id": 2, "tag_name": "v1.1.0", "draft": true, "body": "draft notes"}]`)
	})
	client := newTestClient(t, "", mux)

	release, err := client.ReleaseByTag(context.Background(), "v1.1.0")
	if err != nil {
		t.Fatalf("ReleaseByTag: %v", err)
	}
	if release == nil {
		t.Fatal("ReleaseByTag returned nil, wanted draft release")
	}
	if got, want := release.GetID(), int64(2); got != want {
		t.Errorf("ID = %d, wanted = %d", got, want)
	}
	if !release.GetDraft() {
		t.Error("Draft = false, wanted = true")
	}
	if perPage != "10" {
		t.Errorf("per_page = %q, wanted = %q", perPage, "10")
	}
}

func TestReleaseByTagMissing(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/releases/tags/v9.9.9", http.NotFound)
	mux.HandleFunc("/repos/octo/demo/releases", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	client := newTestClient(t, "", mux)

	release, err := client.ReleaseByTag(context.Background(), "v9.9.9")
	if err != nil {
		t.Fatalf("ReleaseByTag: %v", err)
	}
	if release != nil {
		t.Errorf("ReleaseByTag = %+v, wanted nil", release)
	}
}

func TestReleaseByTagPropagatesErrors(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/releases/tags/v1.0.0", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message": "bad request"}`, http.StatusBadRequest)
	})
	client := newTestClient(t, "", mux)

	_, err := client.ReleaseByTag(context.Background(), "v1.0.0")
	if err == nil {
		t.Fatal("ReleaseByTag succeeded, wanted error")
	}
	if !strings.Contains(err.Error(), "getting release v1.0.0") {
		t.Errorf("error = %v, wanted getting release context", err)
	}
}

func TestUpdateRelease(t *testing.T) {
	t.Parallel()

	var got struct {
		Name *string `json:"name"`
		Body *string `json:"body"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/releases/7", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, wanted = %s", r.Method, http.MethodPatch)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		fmt.Fprint(w, `{"id": 7}`)
	})
	client := newTestClient(t, "", mux)

	if err := client.UpdateRelease(context.Background(), 7, "v1.0.0: Big Fixes", "All the fixes."); err != nil {
		t.Fatalf("UpdateRelease: %v", err)
	}
	if got.Name == nil || *got.Name != "v1.0.0: Big Fixes" {
		t.Errorf("name = %v, wanted = %q", got.Name, "v1.0.0: Big Fixes")
	}
	if got.Body == nil || *got.Body != "All the fixes." {
		t.Errorf("body = %v, wanted = %q", got.Body, "All the fixes.")
	}
}

func TestRecentReleases(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/releases", func(w http.ResponseWriter, r *http.Request) {
		if got, want := r.URL.Query().Get("per_page"), "5"; got != want {
			t.Errorf("per_page = %q, wanted = %q", got, want)
		}
		fmt.Fprint(w, `[{"id": 1, "tag_name": "v1.1.0"}, {"id": 2, "tag_name": "v1.0.0"}]`)
	})
	client := newTestClient(t, "", mux)

	releases, err := client.RecentReleases(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentReleases: %v", err)
	}
	if len(releases) != 2 {
		t.Fatalf("got %d releases, wanted 2", len(releases))
	}
	if got, want := releases[0].GetTagName(), "v1.1.0"; got != want {
		t.Errorf("TagName = %q, wanted = %q", got, want)
	}
}

func TestIssue(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/issues/42", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"number": 42,
			"title": "Crash on empty input",
			"state": "closed",
			"user": {"login": "octocat"},
			"labels": [{"name": "bug"}],
			"body": "It crashes."
		}`)
	})
	client := newTestClient(t, "", mux)

	issue, err := client.Issue(context.Background(), 42)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if got, want := issue.GetTitle(), "Crash on empty input"; got != want {
		t.Errorf("Title = %q, wanted = %q", got, want)
	}
	if got, want := issue.GetState(), "closed"; got != want {
		t.Errorf("State = %q, wanted = %q", got, want)
	}
	if got, want := issue.GetUser().GetLogin(), "octocat"; got != want {
		t.Errorf("Login = %q, wanted = %q", got, want)
	}
	if len(issue.Labels) != 1 || issue.Labels[0].GetName() != "bug" {
		t.Errorf("Labels = %v, wanted [bug]", issue.Labels)
	}
}

func TestPullRequest(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/pulls/12", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"number": 12,
			"title": "Add retry transport",
			"user": {"login": "hubber"},
			"labels": [{"name": "enhancement"}],
			"body": "Retries transient failures."
		}`)
	})
	client := newTestClient(t, "", mux)

	pr, err := client.PullRequest(context.Background(), 12)
	if err != nil {
		t.Fatalf("PullRequest: %v", err)
	}
	if got, want := pr.GetTitle(), "Add retry transport"; got != want {
		t.Errorf("Title = %q, wanted = %q", got, want)
	}
	if got, want := pr.GetUser().GetLogin(), "hubber"; got != want {
		t.Errorf("Login = %q, wanted = %q", got, want)
	}
}

func TestPullRequestDiff(t *testing.T) {
	t.Parallel()

	const diff = "diff --git a/main.go b/main.go\n+added line\n"
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/pulls/12", func(w http.ResponseWriter, r *http.Request) {
		if accept := r.Header.Get("Accept"); !strings.Contains(accept, "diff") {
			t.Errorf("Accept = %q, wanted diff media type", accept)
		}
		fmt.Fprint(w, diff)
	})
	client := newTestClient(t, "", mux)

	got, err := client.PullRequestDiff(context.Background(), 12)
	if err != nil {
		t.Fatalf("PullRequestDiff: %v", err)
	}
	if got != diff {
		t.Errorf("PullRequestDiff = %q, wanted = %q", got, diff)
	}
}

func TestPullRequestDiffTruncates(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/pulls/13", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 60_000))
	})
	client := newTestClient(t, "", mux)

	got, err := client.PullRequestDiff(context.Background(), 13)
	if err != nil {
		t.Fatalf("PullRequestDiff: %v", err)
	}
	if !strings.HasSuffix(got, "[diff truncated at 50KB]") {
		t.Errorf("truncated diff missing marker, got tail %q", got[len(got)-40:])
	}
	if len(got) >= 60_000 {
		t.Errorf("len = %d, wanted < 60000", len(got))
	}
}

func TestAuthorizationHeader(t *testing.T) {
	t.Parallel()

	var auth string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/issues/1", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"number": 1}`)
	})
	client := newTestClient(t, "s3cr3t", mux)

	if _, err := client.Issue(context.Background(), 1); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if got, want := auth, "Bearer s3cr3t"; got != want {
		t.Errorf("Authorization = %q, wanted = %q", got, want)
	}
}
