/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"strings"

	"chainguard.dev/herald/tools"
)

// parseFallback salvages release notes from free text when the model
// never calls submit_release_notes. A leading "# Title" heading becomes
// the release title and the remainder serves as both body and
// changelog; without a heading the whole text is the body and the
// first line (capped at 80 runes) names the release. Empty text is not
// salvageable.
func parseFallback(text string) (*tools.Submission, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	if rest, ok := strings.CutPrefix(text, "# "); ok {
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			title := strings.TrimSpace(rest[:nl])
			body := strings.TrimSpace(rest[nl+1:])
			if body != "" {
				return &tools.Submission{
					Changelog:    body,
					ReleaseTitle: title,
					ReleaseBody:  body,
				}, true
			}
		}
	}

	firstLine := text
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		firstLine = text[:nl]
	}
	title := strings.TrimSpace(strings.TrimLeft(firstLine, "#"))
	if runes := []rune(title); len(runes) > 80 {
		title = string(runes[:80])
	}
	return &tools.Submission{
		Changelog:    text,
		ReleaseTitle: title,
		ReleaseBody:  text,
	}, true
}
