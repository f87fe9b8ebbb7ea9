/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package release

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"chainguard.dev/herald/config"
	"chainguard.dev/herald/gh"
	"chainguard.dev/herald/gitrepo"
	"chainguard.dev/herald/llm"
	"chainguard.dev/herald/tools"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// fakeClient replays scripted turns and records everything sent to it.
type fakeClient struct {
	mu      sync.Mutex
	turns   []*llm.TurnResponse
	user    string
	systems []string
	sends   int
}

func (f *fakeClient) NewConversation(userMessage string) llm.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = userMessage
	return nil
}

func (f *fakeClient) AppendToolResults(llm.Conversation, []llm.ToolResult) {}

func (f *fakeClient) SendTurn(_ context.Context, system string, _ llm.Conversation, _ []llm.ToolDefinition) (*llm.TurnResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	f.systems = append(f.systems, system)
	if len(f.turns) == 0 {
		return nil, errors.New("fake client: no scripted turns left")
	}
	turn := f.turns[0]
	f.turns = f.turns[1:]
	return turn, nil
}

func submitTurn(usage llm.Usage, changelog, title, body string) *llm.TurnResponse {
	return &llm.TurnResponse{
		ToolCalls: []llm.ToolCall{{
			ID:   "call_submit",
			Name: "submit_release_notes",
			Input: map[string]any{
				"changelog":     changelog,
				"release_title": title,
				"release_body":  body,
			},
		}},
		StopReason: llm.StopToolUse,
		Usage:      usage,
	}
}

func textTurn(usage llm.Usage, text string) *llm.TurnResponse {
	return &llm.TurnResponse{Text: text, StopReason: llm.StopEndTurn, Usage: usage}
}

// initRepo builds a repository with two tagged releases.
func initRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	r, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	wt, err := r.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}

	commit := func(msg, tag string) {
		t.Helper()
		if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
			t.Fatalf("Add: %v", err)
		}
		hash, err := wt.Commit(msg, &git.CommitOptions{
			Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
		})
		if err != nil {
			t.Fatalf("Commit: %v", err)
		}
		if _, err := r.CreateTag(tag, hash, nil); err != nil {
			t.Fatalf("CreateTag: %v", err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Hello\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	commit("initial commit", "v0.9.0")
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	commit("feat: add main (#1)", "v1.0.0")
	return dir
}

// newRunContext assembles a runContext the way gather would, with link
// verification off so tests never probe the network.
func newRunContext(t *testing.T, dir string, client llm.Client, github *gh.Client) *runContext {
	t.Helper()

	repo, err := gitrepo.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return &runContext{
		repo:      repo,
		registry:  tools.New(repo, github),
		github:    github,
		client:    client,
		model:     "claude-sonnet-4-5",
		ownerRepo: "octo/demo",
		tag:       "v1.0.0",
		prevTag:   "v0.9.0",
	}
}

func ghClient(t *testing.T, mux *http.ServeMux) *gh.Client {
	t.Helper()

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client, err := gh.New("octo/demo", "", gh.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("gh.New: %v", err)
	}
	return client
}

func TestGenerateBasic(t *testing.T) {
	t.Parallel()

	client := &fakeClient{turns: []*llm.TurnResponse{
		submitTurn(llm.Usage{InputTokens: 100, OutputTokens: 50},
			"### Added\n- Main function", "Initial Release", "First release."),
	}}
	rctx := newRunContext(t, initRepo(t), client, nil)

	res, err := generate(context.Background(), rctx, false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.ReleaseTitle != "Initial Release" {
		t.Errorf("ReleaseTitle = %q", res.ReleaseTitle)
	}
	if !strings.Contains(res.Changelog, "Main function") {
		t.Errorf("Changelog = %q", res.Changelog)
	}

	if !strings.Contains(client.user, "Generate release notes for **v1.0.0** (previous release: v0.9.0).") {
		t.Errorf("user prompt missing opening:\n%s", client.user)
	}
	if !strings.Contains(client.user, "feat: add main (#1)") {
		t.Errorf("user prompt missing git log:\n%s", client.user)
	}
	if !strings.Contains(client.user, "## Referenced PRs") {
		t.Errorf("user prompt missing PR section:\n%s", client.user)
	}
	for _, section := range []string{"## Existing GitHub Release Body", "## Recent Releases"} {
		if strings.Contains(client.user, section) {
			t.Errorf("user prompt has %q without a GitHub client", section)
		}
	}
}

func TestGenerateWithGitHubContext(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/releases/tags/v1.0.0", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 1, "tag_name": "v1.0.0", "name": "v1.0.0", "body": "Existing notes"}`)
	})
	mux.HandleFunc("/repos/octo/demo/releases", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id": 2, "tag_name": "v1.0.0", "name": "v1.0.0", "body": "Existing notes"},
			{"id": 3, "tag_name": "v0.9.0", "name": "v0.9.0", "body": "Previous notes"},
			{"id": 4, "tag_name": "v0.8.0", "name": "v0.8.0", "body": ""},
			{"id": 5, "tag_name": "v0.7.0", "name": "v0.7.0", "body": "Old notes"},
			{"id": 6, "tag_name": "v0.6.0", "name": "v0.6.0", "body": "Ancient notes"}
		]`)
	})

	client := &fakeClient{turns: []*llm.TurnResponse{
		submitTurn(llm.Usage{}, "### Added\n- Feature", "Title", "Body"),
	}}
	rctx := newRunContext(t, initRepo(t), client, ghClient(t, mux))
	rctx.systemExtra = "Mention the mascot."
	rctx.context = "demo is a sample service."

	res, err := generate(context.Background(), rctx, false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.ReleaseTitle != "Title" || res.ReleaseBody != "Body" {
		t.Errorf("generate = %+v", res)
	}

	// The existing release body and style examples ride along in the
	// prompt: same-tag and empty-body releases are skipped, and at most
	// two examples are kept.
	for _, want := range []string{
		"## Existing GitHub Release Body",
		"Existing notes",
		"## Recent Releases",
		"### v0.9.0",
		"Previous notes",
		"### v0.7.0",
		"## Project Context",
		"demo is a sample service.",
	} {
		if !strings.Contains(client.user, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
	for _, reject := range []string{"### v0.8.0", "### v0.6.0", "Ancient notes"} {
		if strings.Contains(client.user, reject) {
			t.Errorf("user prompt should not contain %q", reject)
		}
	}
	if len(client.systems) != 1 || !strings.HasSuffix(client.systems[0], "Mention the mascot.") {
		t.Errorf("system prompt missing extra instructions")
	}
}

func TestGenerateSkipsStyleWhenDisabled(t *testing.T) {
	t.Parallel()

	var listed int
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/releases/tags/v1.0.0", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 1, "tag_name": "v1.0.0", "body": "Existing notes"}`)
	})
	mux.HandleFunc("/repos/octo/demo/releases", func(w http.ResponseWriter, r *http.Request) {
		listed++
		fmt.Fprint(w, `[]`)
	})

	client := &fakeClient{turns: []*llm.TurnResponse{
		submitTurn(llm.Usage{}, "c", "t", "b"),
	}}
	rctx := newRunContext(t, initRepo(t), client, ghClient(t, mux))
	matchStyle := false
	rctx.defaults.MatchStyle = &matchStyle

	if _, err := generate(context.Background(), rctx, false); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if listed != 0 {
		t.Errorf("release list fetched %d times, wanted = 0", listed)
	}
}

func TestGenerateToleratesStyleFetchFailure(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/releases/tags/v1.0.0", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 1, "tag_name": "v1.0.0", "body": "Existing notes"}`)
	})
	mux.HandleFunc("/repos/octo/demo/releases", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	client := &fakeClient{turns: []*llm.TurnResponse{
		submitTurn(llm.Usage{}, "c", "t", "b"),
	}}
	rctx := newRunContext(t, initRepo(t), client, ghClient(t, mux))

	if _, err := generate(context.Background(), rctx, false); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if strings.Contains(client.user, "## Recent Releases") {
		t.Errorf("user prompt has style examples after a fetch failure")
	}
}

func TestGeneratePropagatesReleaseLookupError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/releases/tags/v1.0.0", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})
	mux.HandleFunc("/repos/octo/demo/releases", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	client := &fakeClient{turns: []*llm.TurnResponse{
		submitTurn(llm.Usage{}, "c", "t", "b"),
	}}
	rctx := newRunContext(t, initRepo(t), client, ghClient(t, mux))

	if _, err := generate(context.Background(), rctx, false); err == nil {
		t.Error("generate succeeded despite a failed release lookup")
	}
}

func TestPublishUpdatesRelease(t *testing.T) {
	t.Parallel()

	var patched int
	var patchBody string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/releases/tags/v1.0.0", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 42, "tag_name": "v1.0.0", "name": "v1.0.0", "body": "old"}`)
	})
	mux.HandleFunc("/repos/octo/demo/releases/42", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, wanted = PATCH", r.Method)
		}
		patched++
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(r.Body); err != nil {
			t.Errorf("reading PATCH body: %v", err)
		}
		patchBody = buf.String()
		fmt.Fprint(w, `{"id": 42}`)
	})

	rctx := newRunContext(t, initRepo(t), &fakeClient{}, ghClient(t, mux))
	opts := &Options{Tag: "v1.0.0", GitHubRelease: true}

	if err := publish(context.Background(), opts, rctx, "v1.0.0: Title", "Body"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if patched != 1 {
		t.Fatalf("patched = %d, wanted = 1", patched)
	}
	for _, want := range []string{`"name":"v1.0.0: Title"`, `"body":"Body"`} {
		if !strings.Contains(patchBody, want) {
			t.Errorf("PATCH body missing %s:\n%s", want, patchBody)
		}
	}
}

func TestPublishDryRunSkipsUpdate(t *testing.T) {
	t.Parallel()

	rctx := newRunContext(t, initRepo(t), &fakeClient{}, nil)
	opts := &Options{Tag: "v1.0.0", GitHubRelease: true, DryRun: true}

	if err := publish(context.Background(), opts, rctx, "Title", "Body"); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestPublishWarnsWhenNoReleaseExists(t *testing.T) {
	t.Parallel()

	var patched int
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/releases/tags/v1.0.0", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/repos/octo/demo/releases", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/repos/octo/demo/releases/", func(w http.ResponseWriter, r *http.Request) {
		patched++
	})

	rctx := newRunContext(t, initRepo(t), &fakeClient{}, ghClient(t, mux))
	opts := &Options{Tag: "v1.0.0", GitHubRelease: true}

	if err := publish(context.Background(), opts, rctx, "Title", "Body"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if patched != 0 {
		t.Errorf("patched = %d, wanted = 0", patched)
	}
}

func TestUpdateChangelogInsert(t *testing.T) {
	t.Parallel()

	dir := initRepo(t)
	existing := "# Changelog\n\n## [Unreleased]\n\n## [0.9.0] - 2025-01-01\n### Fixed\n- Bug\n"
	if err := os.WriteFile(filepath.Join(dir, "CHANGELOG.md"), []byte(existing), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	updated := "# Changelog\n\n## [Unreleased]\n\n## [1.0.0] - 2026-08-25\n### Added\n- Main function\n\n## [0.9.0] - 2025-01-01\n### Fixed\n- Bug\n"
	client := &fakeClient{turns: []*llm.TurnResponse{
		textTurn(llm.Usage{InputTokens: 200, OutputTokens: 100}, updated),
	}}
	rctx := newRunContext(t, dir, client, nil)

	if err := updateChangelog(context.Background(), rctx, "### Added\n- Main function", false); err != nil {
		t.Fatalf("updateChangelog: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "CHANGELOG.md"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, want := range []string{"[1.0.0]", "Main function", "[0.9.0]"} {
		if !strings.Contains(string(got), want) {
			t.Errorf("CHANGELOG.md missing %q:\n%s", want, got)
		}
	}

	for _, want := range []string{
		"Version: v1.0.0",
		"Release URL: https://github.com/octo/demo/releases/tag/v1.0.0",
		"New changelog entry:\n### Added\n- Main function",
	} {
		if !strings.Contains(client.user, want) {
			t.Errorf("merge prompt missing %q:\n%s", want, client.user)
		}
	}
	if len(client.systems) != 1 || !strings.Contains(client.systems[0], "precise CHANGELOG.md editor") {
		t.Errorf("merge system prompt = %v", client.systems)
	}
}

func TestUpdateChangelogSeedsNewFile(t *testing.T) {
	t.Parallel()

	dir := initRepo(t)
	updated := "# Changelog\n\n## [Unreleased]\n\n## [1.0.0] - 2026-08-25\n### Added\n- Main function\n"
	client := &fakeClient{turns: []*llm.TurnResponse{textTurn(llm.Usage{}, updated)}}
	rctx := newRunContext(t, dir, client, nil)

	if err := updateChangelog(context.Background(), rctx, "### Added\n- Main function", false); err != nil {
		t.Fatalf("updateChangelog: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "CHANGELOG.md"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != updated {
		t.Errorf("CHANGELOG.md = %q, wanted = %q", got, updated)
	}
	// Absent a file, the merge starts from the seed skeleton.
	if !strings.Contains(client.user, "# Changelog\n\n## [Unreleased]") {
		t.Errorf("merge prompt missing seed:\n%s", client.user)
	}
}

func TestUpdateChangelogDryRun(t *testing.T) {
	t.Parallel()

	dir := initRepo(t)
	original := "# Changelog\n\n## [Unreleased]\n"
	if err := os.WriteFile(filepath.Join(dir, "CHANGELOG.md"), []byte(original), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	client := &fakeClient{turns: []*llm.TurnResponse{
		textTurn(llm.Usage{}, "# Changelog\n\n## [Unreleased]\n\n## [1.0.0]\n### Added\n- Stuff\n"),
	}}
	rctx := newRunContext(t, dir, client, nil)

	if err := updateChangelog(context.Background(), rctx, "### Added\n- Stuff", true); err != nil {
		t.Fatalf("updateChangelog: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "CHANGELOG.md"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != original {
		t.Errorf("CHANGELOG.md = %q, wanted untouched %q", got, original)
	}
	if client.sends != 1 {
		t.Errorf("sends = %d, wanted = 1", client.sends)
	}
}

func TestUpdateChangelogStitchesTail(t *testing.T) {
	t.Parallel()

	dir := initRepo(t)
	existing := `# Changelog

## [Unreleased]

## [3.0.0] - 2025-03-01
### Added
- Three

## [2.0.0] - 2025-02-01
### Added
- Two

## [1.0.0] - 2025-01-01
### Added
- One

## [0.9.0] - 2024-12-01
### Fixed
- Zero nine
`
	if err := os.WriteFile(filepath.Join(dir, "CHANGELOG.md"), []byte(existing), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	updatedHead := `# Changelog

## [Unreleased]

## [4.0.0] - 2025-04-01
### Added
- New feature

## [3.0.0] - 2025-03-01
### Added
- Three

## [2.0.0] - 2025-02-01
### Added
- Two

## [1.0.0] - 2025-01-01
### Added
- One
`
	client := &fakeClient{turns: []*llm.TurnResponse{textTurn(llm.Usage{}, updatedHead)}}
	rctx := newRunContext(t, dir, client, nil)
	rctx.tag = "v4.0.0"
	rctx.prevTag = "v3.0.0"

	if err := updateChangelog(context.Background(), rctx, "### Added\n- New feature", false); err != nil {
		t.Fatalf("updateChangelog: %v", err)
	}

	// Only the head goes to the model; the tail is stitched back.
	if strings.Contains(client.user, "[0.9.0]") {
		t.Errorf("merge prompt contains the tail:\n%s", client.user)
	}
	got, err := os.ReadFile(filepath.Join(dir, "CHANGELOG.md"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, want := range []string{"[4.0.0]", "New feature", "[0.9.0]", "Zero nine"} {
		if !strings.Contains(string(got), want) {
			t.Errorf("CHANGELOG.md missing %q", want)
		}
	}
	if !strings.HasSuffix(string(got), "- Zero nine\n") {
		t.Errorf("CHANGELOG.md tail mangled:\n%s", got)
	}
}

func TestReadChangelogEntry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	contents := "## [1.0.0]\n### Added\n- Feature\n\n## [0.9.0]\n### Fixed\n- Bug\n"
	if err := os.WriteFile(filepath.Join(dir, "CHANGELOG.md"), []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got := readChangelogEntry(dir, "v1.0.0")
	if !strings.Contains(got, "Feature") || strings.Contains(got, "0.9.0") {
		t.Errorf("readChangelogEntry = %q", got)
	}
	if got := readChangelogEntry(dir, "v2.0.0"); got != "" {
		t.Errorf("readChangelogEntry = %q, wanted empty for unknown version", got)
	}
	if got := readChangelogEntry(t.TempDir(), "v1.0.0"); got != "" {
		t.Errorf("readChangelogEntry = %q, wanted empty without a file", got)
	}
}

func TestGatherRequiresTag(t *testing.T) {
	t.Parallel()

	_, err := gather(context.Background(), &Options{})
	if err == nil || err.Error() != "tag is required" {
		t.Errorf("gather error = %v", err)
	}
}

func TestGatherRequiresGitHubToken(t *testing.T) {
	t.Parallel()

	_, err := gather(context.Background(), &Options{Tag: "v1.0.0", GitHubRelease: true})
	if err == nil || err.Error() != "GITHUB_TOKEN is required for --github-release" {
		t.Errorf("gather error = %v", err)
	}
}

func TestGatherRequiresAnthropicKey(t *testing.T) {
	t.Parallel()

	_, err := gather(context.Background(), &Options{
		Tag:  "v1.0.0",
		Dir:  initRepo(t),
		Repo: "octo/demo",
	})
	if err == nil || err.Error() != "ANTHROPIC_API_KEY not set" {
		t.Errorf("gather error = %v", err)
	}
}

func TestGatherPrecedence(t *testing.T) {
	t.Parallel()

	dir := initRepo(t)
	rootConfig := "defaults:\n  model: root-model\n  repo: config/repo\n  max_tokens: 1234\n"
	if err := os.WriteFile(filepath.Join(dir, config.Filename), []byte(rootConfig), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Flags beat the config file.
	rctx, err := gather(context.Background(), &Options{
		Tag:    "v1.0.0",
		Dir:    dir,
		Model:  "flag-model",
		Client: &fakeClient{},
	})
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if rctx.model != "flag-model" {
		t.Errorf("model = %q, wanted = %q", rctx.model, "flag-model")
	}
	if rctx.ownerRepo != "config/repo" {
		t.Errorf("ownerRepo = %q, wanted = %q", rctx.ownerRepo, "config/repo")
	}
	if rctx.prevTag != "v0.9.0" {
		t.Errorf("prevTag = %q, wanted = %q", rctx.prevTag, "v0.9.0")
	}

	// The config file fills in what flags leave unset.
	rctx, err = gather(context.Background(), &Options{
		Tag:    "v1.0.0",
		Dir:    dir,
		Client: &fakeClient{},
	})
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if rctx.model != "root-model" {
		t.Errorf("model = %q, wanted = %q", rctx.model, "root-model")
	}

	// An explicit --config path wins over the repo-root file.
	custom := filepath.Join(t.TempDir(), "other.yaml")
	if err := os.WriteFile(custom, []byte("defaults:\n  model: custom-model\n  repo: octo/demo\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	rctx, err = gather(context.Background(), &Options{
		Tag:        "v1.0.0",
		Dir:        dir,
		ConfigPath: custom,
		Client:     &fakeClient{},
	})
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if rctx.model != "custom-model" {
		t.Errorf("model = %q, wanted = %q", rctx.model, "custom-model")
	}
}

func TestGatherVerifyLinks(t *testing.T) {
	t.Parallel()

	dir := initRepo(t)
	base := Options{Tag: "v1.0.0", Dir: dir, Repo: "octo/demo", Client: &fakeClient{}}

	rctx, err := gather(context.Background(), &base)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if !rctx.verifyLinks {
		t.Error("verifyLinks = false, wanted default on")
	}

	off := base
	off.NoVerifyLinks = true
	rctx, err = gather(context.Background(), &off)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if rctx.verifyLinks {
		t.Error("verifyLinks = true despite NoVerifyLinks")
	}
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	client := &fakeClient{turns: []*llm.TurnResponse{
		submitTurn(llm.Usage{InputTokens: 100, OutputTokens: 50},
			"### Added\n- Main function", "Initial Release", "First release."),
	}}

	var stdout, stderr bytes.Buffer
	err := Run(context.Background(), Options{
		Tag:    "v1.0.0",
		Dir:    initRepo(t),
		Repo:   "octo/demo",
		Client: client,
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The title gets the tag prefix it lacked.
	want := "# v1.0.0: Initial Release\n\nFirst release.\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, wanted = %q", stdout.String(), want)
	}
	if !strings.Contains(stderr.String(), "Tokens: 100 input + 50 output = 150 total") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRunKeepsPrefixedTitle(t *testing.T) {
	t.Parallel()

	client := &fakeClient{turns: []*llm.TurnResponse{
		submitTurn(llm.Usage{}, "### Added\n- Feature", "v1.0.0 - Feature Release", "Added feature."),
	}}

	output := filepath.Join(t.TempDir(), "notes.md")
	err := Run(context.Background(), Options{
		Tag:    "v1.0.0",
		Dir:    initRepo(t),
		Repo:   "octo/demo",
		Output: output,
		Client: client,
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if want := "# v1.0.0 - Feature Release\n\nAdded feature."; string(got) != want {
		t.Errorf("output file = %q, wanted = %q", got, want)
	}
}

func TestRunConcise(t *testing.T) {
	t.Parallel()

	client := &fakeClient{turns: []*llm.TurnResponse{
		submitTurn(llm.Usage{}, "### Added\n- Main function", "Initial Release", "First release."),
	}}

	var stdout bytes.Buffer
	err := Run(context.Background(), Options{
		Tag:     "v1.0.0",
		Dir:     initRepo(t),
		Repo:    "octo/demo",
		Concise: true,
		Client:  client,
		Stdout:  &stdout,
		Stderr:  &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := "### Added\n- Main function\n"; stdout.String() != want {
		t.Errorf("stdout = %q, wanted = %q", stdout.String(), want)
	}
}

func TestRunMergesChangelog(t *testing.T) {
	t.Parallel()

	dir := initRepo(t)
	merged := "# Changelog\n\n## [Unreleased]\n\n## [1.0.0] - 2026-08-25\n### Added\n- Main function\n"
	client := &fakeClient{turns: []*llm.TurnResponse{
		submitTurn(llm.Usage{InputTokens: 100, OutputTokens: 50},
			"### Added\n- Main function", "v1.0.0", "First release."),
		textTurn(llm.Usage{InputTokens: 200, OutputTokens: 100}, merged),
	}}

	var stderr bytes.Buffer
	err := Run(context.Background(), Options{
		Tag:       "v1.0.0",
		Dir:       dir,
		Repo:      "octo/demo",
		Changelog: true,
		Client:    client,
		Stdout:    &bytes.Buffer{},
		Stderr:    &stderr,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "CHANGELOG.md"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != merged {
		t.Errorf("CHANGELOG.md = %q, wanted = %q", got, merged)
	}
	// The token summary reports the agent's usage only; the merge call
	// logs its own.
	if !strings.Contains(stderr.String(), "Tokens: 100 input + 50 output = 150 total") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRunWritesStats(t *testing.T) {
	t.Parallel()

	client := &fakeClient{turns: []*llm.TurnResponse{
		{
			ToolCalls: []llm.ToolCall{
				{ID: "call_1", Name: "read_file", Input: map[string]any{"path": "README.md"}},
			},
			StopReason: llm.StopToolUse,
			Usage:      llm.Usage{InputTokens: 100, OutputTokens: 50},
		},
		submitTurn(llm.Usage{InputTokens: 200, OutputTokens: 75},
			"### Added\n- Feature", "v1.0.0", "Body."),
	}}

	var stderr bytes.Buffer
	err := Run(context.Background(), Options{
		Tag:    "v1.0.0",
		Dir:    initRepo(t),
		Repo:   "octo/demo",
		Stats:  true,
		Client: client,
		Stdout: &bytes.Buffer{},
		Stderr: &stderr,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, want := range []string{
		"Metric", "Model", "claude-sonnet-4-5",
		"Turns", "Input tokens", "300", "Output tokens", "125",
		"Cache hits", "Tool calls", "read_file", "submit_release_notes",
	} {
		if !strings.Contains(stderr.String(), want) {
			t.Errorf("stats table missing %q:\n%s", want, stderr.String())
		}
	}
}
