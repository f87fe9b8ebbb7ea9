/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gitrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
)

// maxGrepMatches caps matches per file so one noisy file cannot flood a
// tool result.
const maxGrepMatches = 50

// Files returns the paths tracked in the index, in index order.
func (r *Repo) Files() ([]string, error) {
	idx, err := r.repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	files := make([]string, 0, len(idx.Entries))
	for _, entry := range idx.Entries {
		files = append(files, entry.Name)
	}
	return files, nil
}

// Grep searches the committed tree for a regular expression and returns
// "path:line:content" lines, at most maxGrepMatches per file. A glob
// restricts which files are searched.
func (r *Repo) Grep(pattern, glob string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern: %w", err)
	}
	opts := &git.GrepOptions{Patterns: []*regexp.Regexp{re}}
	if glob != "" {
		ps, err := globToRegexp(glob)
		if err != nil {
			return nil, fmt.Errorf("compiling glob: %w", err)
		}
		opts.PathSpecs = []*regexp.Regexp{ps}
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}
	results, err := wt.Grep(opts)
	if err != nil {
		return nil, err
	}
	perFile := make(map[string]int)
	var lines []string
	for _, res := range results {
		if perFile[res.FileName] >= maxGrepMatches {
			continue
		}
		perFile[res.FileName]++
		lines = append(lines, fmt.Sprintf("%s:%d:%s", res.FileName, res.LineNumber, res.Content))
	}
	return lines, nil
}

// MatchGlob reports whether a slash-separated path matches a shell-style
// glob. Globs without a path separator match against any path component,
// like git pathspecs.
func MatchGlob(glob, path string) (bool, error) {
	re, err := globToRegexp(glob)
	if err != nil {
		return false, err
	}
	return re.MatchString(path), nil
}

// globToRegexp compiles a glob into an anchored regexp. ** crosses
// directory boundaries, * and ? stay within one path component.
func globToRegexp(glob string) (*regexp.Regexp, error) {
	var b strings.Builder
	if strings.ContainsRune(glob, '/') {
		b.WriteString("^")
	} else {
		b.WriteString("(?:^|.*/)")
	}
	for i := 0; i < len(glob); i++ {
		switch glob[i] {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' {
				// Fold a trailing slash into the ** so "a/**/b" also
				// matches "a/b".
				i++
				if i+1 < len(glob) && glob[i+1] == '/' {
					i++
					b.WriteString("(?:.*/)?")
				} else {
					b.WriteString(".*")
				}
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(glob[i])))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// ReadFile returns the contents of a worktree file. The path must be
// relative and must stay inside the repository root after resolving
// symlinks.
func (r *Repo) ReadFile(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("path escapes repo root: %s", path)
	}
	resolved, err := filepath.EvalSymlinks(filepath.Join(r.root, path))
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	rootResolved, err := filepath.EvalSymlinks(r.root)
	if err != nil {
		return "", fmt.Errorf("cannot resolve repo root: %w", err)
	}
	if resolved != rootResolved && !strings.HasPrefix(resolved, rootResolved+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes repo root: %s", path)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return string(data), nil
}
