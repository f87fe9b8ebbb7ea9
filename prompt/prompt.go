/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package prompt builds the system and user messages that frame a
// release-notes run. The agent loop treats both as opaque text.
package prompt

import (
	"fmt"
	"strings"
)

const systemCore = `You are an expert technical writer generating release notes for a software project.

You have access to tools to browse the repository:
- read_file: Read file contents (path relative to repo root)
- list_files: List tracked files, optionally filtered by glob
- grep: Search file contents with a regular expression
- git_show: Show a commit's message, stats, and diff
- get_commits: List commits between refs or for a specific file path
- get_pr: Fetch GitHub PR details (title, body, labels, author)
- get_pr_diff: Fetch the diff for a GitHub PR
- get_issue: Fetch GitHub issue details (title, body, labels, state, author)

Use these tools to understand what changed and why. Read relevant source files, PR descriptions, and diffs to write accurate, insightful release notes.

When you are done researching, call the submit_release_notes tool exactly once with three fields:

changelog: A concise changelog entry using Keep a Changelog categories. No version header, just the categorized items. Example:

### Added
- New feature X for doing Y (#123)

### Fixed
- Resolved crash when Z (#456)

release_title: A catchy, concise title for the GitHub release (no # prefix).

release_body: Detailed GitHub release notes in markdown, following this template:
- A brief narrative summary of the release (2-3 sentences)
- An optional "## Highlights" section for headline features
- A "## What's Changed" section listing notable changes, with PR links and contributor mentions (@username) where relevant
- An optional "## Breaking Changes" section with migration notes
- An optional "## New Contributors" section
- A closing "Full Changelog" comparison link

Write clearly and concisely. Focus on what matters to users. Do NOT fabricate changes. Only describe what you can verify from the git log, PRs, and source code, and never invent URLs.`

const (
	emojiClause   = `Tasteful emoji are welcome in the release title and section headings.`
	noEmojiClause = `Do not use emoji anywhere in the output.`
)

// System renders the agent's system prompt. extra carries repo-provided
// instructions from .herald.yaml and is appended verbatim.
func System(emoji bool, extra string) string {
	var b strings.Builder
	b.WriteString(systemCore)
	if emoji {
		b.WriteString("\n\n" + emojiClause)
	} else {
		b.WriteString("\n\n" + noEmojiClause)
	}
	if extra != "" {
		b.WriteString("\n\n" + extra)
	}
	return b.String()
}

// UserContext carries everything the opening user message tells the
// model. Optional fields are omitted from the message when empty.
type UserContext struct {
	Tag             string
	PrevTag         string
	OwnerRepo       string
	GitLog          string
	PRNumbers       []int
	ChangelogEntry  string
	ExistingRelease string
	Context         string
	RecentReleases  []StyleExample
}

// StyleExample is a prior release shown to the model as a voice and
// formatting reference.
type StyleExample struct {
	Tag  string
	Body string
}

// User renders the opening user message for a release-notes run.
func User(uc UserContext) string {
	parts := []string{fmt.Sprintf(
		"Generate release notes for **%s** (previous release: %s).\n\n"+
			"Repository: https://github.com/%s\n"+
			"Compare: https://github.com/%s/compare/%s...%s\n\n"+
			"## Git Log\n```\n%s\n```",
		uc.Tag, uc.PrevTag, uc.OwnerRepo, uc.OwnerRepo, uc.PrevTag, uc.Tag, uc.GitLog)}

	if len(uc.PRNumbers) > 0 {
		refs := make([]string, 0, len(uc.PRNumbers))
		for _, n := range uc.PRNumbers {
			refs = append(refs, fmt.Sprintf("#%d", n))
		}
		parts = append(parts, fmt.Sprintf(
			"\n## Referenced PRs\n%s\n\nUse the `get_pr` and `get_pr_diff` tools to understand these changes in detail.",
			strings.Join(refs, ", ")))
	}

	if uc.ChangelogEntry != "" {
		parts = append(parts, fmt.Sprintf(
			"\n## Existing CHANGELOG.md Entry\nHere is the current auto-generated entry - use it as a starting point and improve it:\n```\n%s\n```",
			uc.ChangelogEntry))
	}

	if uc.ExistingRelease != "" {
		parts = append(parts, fmt.Sprintf(
			"\n## Existing GitHub Release Body\nHere are the current auto-generated release notes - editorialize and improve them:\n```\n%s\n```",
			uc.ExistingRelease))
	}

	if len(uc.RecentReleases) > 0 {
		var b strings.Builder
		b.WriteString("\n## Recent Releases\nMatch the voice and structure of these recent release notes:")
		for _, r := range uc.RecentReleases {
			fmt.Fprintf(&b, "\n\n### %s\n```\n%s\n```", r.Tag, r.Body)
		}
		parts = append(parts, b.String())
	}

	if uc.Context != "" {
		parts = append(parts, "\n## Project Context\n"+uc.Context)
	}

	parts = append(parts, "\nBrowse the repository as needed to understand the changes, then call submit_release_notes with your final release notes.")

	return strings.Join(parts, "\n")
}
