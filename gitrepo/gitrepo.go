/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gitrepo reads release-relevant history out of a local git
// repository: tags, commit logs, commit patches, tracked files, and
// sandboxed worktree file access. All output is plain text shaped for
// prompts and tool results.
package gitrepo

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"golang.org/x/mod/semver"
)

// Repo wraps an opened repository and its worktree root.
type Repo struct {
	repo *git.Repository
	root string
}

// Open locates the repository containing path, searching upward the way
// git itself does.
func Open(path string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}
	return &Repo{repo: repo, root: wt.Filesystem.Root()}, nil
}

// Root returns the absolute path of the worktree root.
func (r *Repo) Root() string {
	return r.root
}

// OwnerRepo resolves the "owner/repo" slug from the origin remote.
func (r *Repo) OwnerRepo() (string, error) {
	remote, err := r.repo.Remote("origin")
	if err != nil {
		return "", errors.New("no origin remote found")
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", errors.New("no origin remote found")
	}
	return ParseOwnerRepo(urls[0])
}

// ParseOwnerRepo extracts "owner/repo" from a GitHub remote URL in SSH
// (git@github.com:owner/repo.git) or HTTP(S) form.
func ParseOwnerRepo(url string) (string, error) {
	if rest, ok := strings.CutPrefix(url, "git@github.com:"); ok {
		return strings.TrimSuffix(rest, ".git"), nil
	}
	for _, prefix := range []string{"https://github.com/", "http://github.com/"} {
		if rest, ok := strings.CutPrefix(url, prefix); ok {
			return strings.TrimSuffix(rest, ".git"), nil
		}
	}
	return "", fmt.Errorf("cannot parse GitHub repo from remote URL: %s", url)
}

// Tags returns all tag names newest first, ordered by semantic version
// where tags parse as versions and lexically otherwise.
func (r *Repo) Tags() ([]string, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	var tags []string
	if err := iter.ForEach(func(ref *plumbing.Reference) error {
		tags = append(tags, ref.Name().Short())
		return nil
	}); err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	slices.SortStableFunc(tags, func(a, b string) int {
		return compareVersions(b, a)
	})
	return tags, nil
}

// PreviousTag returns the tag that precedes current in version order.
func (r *Repo) PreviousTag(current string) (string, error) {
	tags, err := r.Tags()
	if err != nil {
		return "", err
	}
	for i, tag := range tags {
		if tag == current && i+1 < len(tags) {
			return tags[i+1], nil
		}
	}
	return "", fmt.Errorf("no previous tag found before %s", current)
}

// compareVersions orders two tag names, preferring semantic version
// comparison so v0.10.0 sorts above v0.9.0.
func compareVersions(a, b string) int {
	va, vb := a, b
	if !strings.HasPrefix(va, "v") {
		va = "v" + va
	}
	if !strings.HasPrefix(vb, "v") {
		vb = "v" + vb
	}
	if semver.IsValid(va) && semver.IsValid(vb) {
		if c := semver.Compare(va, vb); c != 0 {
			return c
		}
	}
	return strings.Compare(a, b)
}
