/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package release

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"chainguard.dev/herald/changelog"
	"github.com/chainguard-dev/clog"
)

// maxMergeVersions bounds how much changelog history rides along in the
// merge prompt. The rest of the file is stitched back verbatim.
const maxMergeVersions = 3

// changelogEditorSystem instructs the single-turn merge of a new entry
// into the head of an existing CHANGELOG.md.
const changelogEditorSystem = `You are a precise CHANGELOG.md editor. Given the top portion of an existing CHANGELOG.md and a new version entry, produce the updated content.

Rules:
- Match the formatting conventions of the existing file (header style, spacing, link patterns)
- Insert the new version section after any [Unreleased] section, before existing version entries
- If an entry for this exact version already exists, replace it with the new content
- Use the date and release URL provided to format the version header
- If the file uses linked headers like ## [X.Y.Z](url) - date, follow that pattern
- If the file uses plain headers like ## X.Y.Z, follow that pattern
- Preserve the [Unreleased] section header (keep it even if empty)
- Preserve all other existing entries exactly as-is
- Output ONLY the raw markdown content - no code fences, no explanations`

// updateChangelog merges the new entry into CHANGELOG.md through a
// single-turn model call. Only the head of the file is sent, which
// keeps the merge cheap on repositories with long histories.
func updateChangelog(ctx context.Context, rctx *runContext, entry string, dryRun bool) error {
	log := clog.FromContext(ctx)

	path := filepath.Join(rctx.repo.Root(), "CHANGELOG.md")
	existing := changelog.Seed
	if contents, err := os.ReadFile(path); err == nil {
		existing = string(contents)
	}
	head, tail := changelog.SplitRecent(existing, maxMergeVersions)

	releaseURL := fmt.Sprintf("https://github.com/%s/releases/tag/%s", rctx.ownerRepo, rctx.tag)
	userMsg := fmt.Sprintf("Version: %s\nDate: %s\nRelease URL: %s\n\nNew changelog entry:\n%s\n\nCurrent CHANGELOG.md (top portion):\n%s",
		rctx.tag, changelog.Today(), releaseURL, entry, head)

	conv := rctx.client.NewConversation(userMsg)
	resp, err := rctx.client.SendTurn(ctx, changelogEditorSystem, conv, nil)
	if err != nil {
		return err
	}
	log.Infof("Changelog update tokens: %d input + %d output",
		resp.Usage.InputTokens, resp.Usage.OutputTokens)

	if dryRun {
		return nil
	}
	full := resp.Text
	if tail != "" {
		full += tail
	}
	content := strings.TrimRight(full, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	log.Infof("Wrote %s", path)
	return nil
}
