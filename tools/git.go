/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/herald/gitrepo"
	"chainguard.dev/herald/llm"
)

const (
	// maxFileBytes caps read_file output.
	maxFileBytes = 100_000
	// maxShowBytes caps git_show output.
	maxShowBytes = 50_000
	// maxCommits caps get_commits output lines.
	maxCommits = 200
)

type readFileInput struct {
	Path string `json:"path" jsonschema:"required" jsonschema_description:"File path relative to repo root"`
}

func readFileDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "read_file",
		Description: "Read the contents of a file in the repository. Path is relative to the repo root.",
		InputSchema: schemaFor[readFileInput](),
	}
}

func (r *Registry) readFile(_ context.Context, input map[string]any) (string, error) {
	path, ok := stringParam(input, "path")
	if !ok {
		return "", errors.New("read_file: missing 'path' parameter")
	}
	contents, err := r.repo.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}
	if len(contents) > maxFileBytes {
		return contents[:maxFileBytes] + "...\n\n[file truncated at 100KB]", nil
	}
	return contents, nil
}

type listFilesInput struct {
	Pattern string `json:"pattern" jsonschema_description:"Optional glob pattern to filter files (e.g. 'src/**/*.go')"`
}

func listFilesDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "list_files",
		Description: "List files tracked by git in the repository. Optionally filter by a glob pattern.",
		InputSchema: schemaFor[listFilesInput](),
	}
}

func (r *Registry) listFiles(_ context.Context, input map[string]any) (string, error) {
	files, err := r.repo.Files()
	if err != nil {
		return "", fmt.Errorf("list_files: %w", err)
	}
	if pattern, ok := stringParam(input, "pattern"); ok && pattern != "" {
		matched := make([]string, 0, len(files))
		for _, f := range files {
			ok, err := gitrepo.MatchGlob(pattern, f)
			if err != nil {
				return "", fmt.Errorf("list_files: %w", err)
			}
			if ok {
				matched = append(matched, f)
			}
		}
		files = matched
	}
	return strings.Join(files, "\n"), nil
}

type grepInput struct {
	Pattern string `json:"pattern" jsonschema:"required" jsonschema_description:"Regex pattern to search for"`
	Glob    string `json:"glob" jsonschema_description:"Optional file glob to restrict search (e.g. '*.go')"`
}

func grepDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "grep",
		Description: "Search file contents with a regular expression. Returns matching lines with file paths and line numbers.",
		InputSchema: schemaFor[grepInput](),
	}
}

func (r *Registry) grep(_ context.Context, input map[string]any) (string, error) {
	pattern, ok := stringParam(input, "pattern")
	if !ok {
		return "", errors.New("grep: missing 'pattern' parameter")
	}
	glob, _ := stringParam(input, "glob")
	lines, err := r.repo.Grep(pattern, glob)
	if err != nil {
		return "", fmt.Errorf("grep: %w", err)
	}
	if len(lines) == 0 {
		return "No matches found.", nil
	}
	return strings.Join(lines, "\n"), nil
}

type gitShowInput struct {
	Ref string `json:"ref" jsonschema:"required" jsonschema_description:"Commit SHA, tag, branch, or other git ref"`
}

func gitShowDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "git_show",
		Description: "Show full details of a commit (message, author, diff).",
		InputSchema: schemaFor[gitShowInput](),
	}
}

func (r *Registry) gitShow(ctx context.Context, input map[string]any) (string, error) {
	ref, ok := stringParam(input, "ref")
	if !ok {
		return "", errors.New("git_show: missing 'ref' parameter")
	}
	out, err := r.repo.Show(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("git_show: %w", err)
	}
	if len(out) > maxShowBytes {
		return out[:maxShowBytes] + "...\n\n[output truncated at 50KB]", nil
	}
	return out, nil
}

type getCommitsInput struct {
	From string `json:"from" jsonschema_description:"Start ref (exclusive). If omitted, shows recent commits."`
	To   string `json:"to" jsonschema_description:"End ref (inclusive). Defaults to HEAD."`
	Path string `json:"path" jsonschema_description:"Filter to commits touching this path"`
}

func getCommitsDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "get_commits",
		Description: "List commits between refs or for a specific file path.",
		InputSchema: schemaFor[getCommitsInput](),
	}
}

func (r *Registry) getCommits(_ context.Context, input map[string]any) (string, error) {
	from, _ := stringParam(input, "from")
	to, _ := stringParam(input, "to")
	path, _ := stringParam(input, "path")
	out, err := r.repo.Commits(from, to, path, maxCommits)
	if err != nil {
		return "", fmt.Errorf("get_commits: %w", err)
	}
	if out == "" {
		return "No commits found.", nil
	}
	return out, nil
}
