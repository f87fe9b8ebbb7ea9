/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package changelog manipulates Keep a Changelog style CHANGELOG.md
// content as plain strings.
package changelog

import (
	"strings"
	"time"
	"unicode"
)

// Seed is the starter content used when a repository has no
// CHANGELOG.md yet.
const Seed = "# Changelog\n\n## [Unreleased]\n"

// Entry extracts the section for tag, matching either "## [X.Y.Z]" or
// "## X.Y.Z" headers (with or without a leading v on the tag). It
// returns "" when the version has no section.
func Entry(content, tag string) string {
	version := strings.TrimPrefix(tag, "v")
	start := strings.Index(content, "## ["+version+"]")
	if start < 0 {
		start = strings.Index(content, "## "+version)
	}
	if start < 0 {
		return ""
	}
	rest := content[start:]
	end := len(content)
	if i := strings.Index(rest[3:], "\n## "); i >= 0 {
		end = start + 3 + i
	}
	return strings.TrimSpace(content[start:end])
}

// SplitRecent splits content into a head holding at most max versioned
// "## " sections and the untouched tail. The head is what gets sent to
// the model for merging, which keeps prompts small for long-lived
// changelogs. An [Unreleased] section does not count against max.
func SplitRecent(content string, max int) (head, tail string) {
	versions := 0
	searchStart := 0
	for {
		pos := strings.Index(content[searchStart:], "\n## ")
		if pos < 0 {
			break
		}
		absPos := searchStart + pos
		headerStart := absPos + 1

		if !isUnreleasedHeader(content[headerStart:]) {
			versions++
		}
		if versions >= max {
			// Split just after this section so the header's content
			// stays in the head.
			after := content[headerStart+3:]
			if next := strings.Index(after, "\n## "); next >= 0 {
				splitAt := headerStart + 3 + next + 1
				return content[:splitAt], content[splitAt:]
			}
			break
		}
		searchStart = absPos + 4
	}
	return content, ""
}

func isUnreleasedHeader(line string) bool {
	after, ok := strings.CutPrefix(line, "## ")
	if !ok {
		return false
	}
	after = strings.TrimLeftFunc(after, unicode.IsSpace)
	return strings.HasPrefix(after, "[Unreleased]") || strings.HasPrefix(after, "Unreleased")
}

// Today returns the current UTC date the way version headers record
// it.
func Today() string {
	return time.Now().UTC().Format(time.DateOnly)
}
