/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gitrepo

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

var prNumberPattern = regexp.MustCompile(`\(#(\d+)\)`)

// ExtractPRNumbers returns the distinct pull request numbers referenced
// as "(#123)" in a commit log, in first-seen order.
func ExtractPRNumbers(log string) []int {
	seen := make(map[int]bool)
	var numbers []int
	for _, m := range prNumberPattern.FindAllStringSubmatch(log, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		numbers = append(numbers, n)
	}
	return numbers
}

// LogBetween returns "shorthash subject" lines for the commits reachable
// from to but not from from, oldest first.
func (r *Repo) LogBetween(from, to string) (string, error) {
	exclude, err := r.ancestors(from)
	if err != nil {
		return "", err
	}
	iter, err := r.logFrom(to, nil)
	if err != nil {
		return "", err
	}
	var lines []string
	if err := iter.ForEach(func(c *object.Commit) error {
		if exclude[c.Hash] {
			return nil
		}
		lines = append(lines, fmt.Sprintf("%s %s", shortHash(c.Hash), subject(c)))
		return nil
	}); err != nil {
		return "", fmt.Errorf("reading log: %w", err)
	}
	slices.Reverse(lines)
	return strings.Join(lines, "\n"), nil
}

// Commits returns "shorthash author date subject" lines newest first for
// from..to, or the full history of to when from is empty. A non-empty
// path restricts output to commits touching it; limit caps the number of
// lines.
func (r *Repo) Commits(from, to, path string, limit int) (string, error) {
	if to == "" {
		to = "HEAD"
	}
	exclude, err := r.ancestors(from)
	if err != nil {
		return "", err
	}
	var filter func(string) bool
	if path != "" {
		filter = func(p string) bool {
			return p == path || strings.HasPrefix(p, path+"/")
		}
	}
	iter, err := r.logFrom(to, filter)
	if err != nil {
		return "", err
	}
	var lines []string
	if err := iter.ForEach(func(c *object.Commit) error {
		if exclude[c.Hash] {
			return nil
		}
		lines = append(lines, fmt.Sprintf("%s %s %s %s",
			shortHash(c.Hash), c.Author.Name, c.Author.When.Format("2006-01-02"), subject(c)))
		if limit > 0 && len(lines) >= limit {
			return storer.ErrStop
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("reading log: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}

// Show renders a commit the way git show --stat --patch does: header and
// message, per-file stats, then the patch against the first parent (or
// the empty tree for root commits).
func (r *Repo) Show(ctx context.Context, ref string) (string, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", ref, err)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return "", fmt.Errorf("reading commit %s: %w", ref, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "commit %s\n", commit.Hash)
	fmt.Fprintf(&b, "Author: %s <%s>\n", commit.Author.Name, commit.Author.Email)
	fmt.Fprintf(&b, "Date:   %s\n\n", commit.Author.When.Format("Mon Jan 2 15:04:05 2006 -0700"))
	for _, line := range strings.Split(strings.TrimRight(commit.Message, "\n"), "\n") {
		fmt.Fprintf(&b, "    %s\n", line)
	}
	b.WriteString("\n")

	commitTree, err := commit.Tree()
	if err != nil {
		return "", fmt.Errorf("reading tree: %w", err)
	}
	parentTree := &object.Tree{}
	if commit.NumParents() > 0 {
		parent, err := commit.Parents().Next()
		if err != nil {
			return "", fmt.Errorf("reading parent: %w", err)
		}
		if parentTree, err = parent.Tree(); err != nil {
			return "", fmt.Errorf("reading parent tree: %w", err)
		}
	}
	patch, err := parentTree.PatchContext(ctx, commitTree)
	if err != nil {
		return "", fmt.Errorf("diffing %s: %w", ref, err)
	}
	b.WriteString(patch.Stats().String())
	b.WriteString(patch.String())
	return b.String(), nil
}

// ancestors returns the set of commits reachable from ref, or nil when
// ref is empty.
func (r *Repo) ancestors(ref string) (map[plumbing.Hash]bool, error) {
	if ref == "" {
		return nil, nil
	}
	iter, err := r.logFrom(ref, nil)
	if err != nil {
		return nil, err
	}
	seen := make(map[plumbing.Hash]bool)
	if err := iter.ForEach(func(c *object.Commit) error {
		seen[c.Hash] = true
		return nil
	}); err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}
	return seen, nil
}

func (r *Repo) logFrom(ref string, pathFilter func(string) bool) (object.CommitIter, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", ref, err)
	}
	iter, err := r.repo.Log(&git.LogOptions{From: *hash, PathFilter: pathFilter})
	if err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}
	return iter, nil
}

func shortHash(h plumbing.Hash) string {
	return h.String()[:7]
}

func subject(c *object.Commit) string {
	s, _, _ := strings.Cut(c.Message, "\n")
	return strings.TrimSpace(s)
}
