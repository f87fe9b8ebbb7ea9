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

	"chainguard.dev/herald/llm"
	"github.com/google/go-github/v84/github"
)

type getPRInput struct {
	Number int `json:"number" jsonschema:"required" jsonschema_description:"PR number"`
}

func getPRDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "get_pr",
		Description: "Fetch details of a GitHub pull request (title, body, labels, author).",
		InputSchema: schemaFor[getPRInput](),
	}
}

func (r *Registry) getPR(ctx context.Context, input map[string]any) (string, error) {
	number, ok := intParam(input, "number")
	if !ok {
		return "", errors.New("get_pr: missing 'number' parameter")
	}
	pr, err := r.github.PullRequest(ctx, number)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PR #%d: %s\nAuthor: @%s\nLabels: %s\n\n%s",
		pr.GetNumber(), pr.GetTitle(), pr.GetUser().GetLogin(),
		labelNames(pr.Labels), orNoDescription(pr.GetBody())), nil
}

type getPRDiffInput struct {
	Number int `json:"number" jsonschema:"required" jsonschema_description:"PR number"`
}

func getPRDiffDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "get_pr_diff",
		Description: "Fetch the diff of a GitHub pull request.",
		InputSchema: schemaFor[getPRDiffInput](),
	}
}

func (r *Registry) getPRDiff(ctx context.Context, input map[string]any) (string, error) {
	number, ok := intParam(input, "number")
	if !ok {
		return "", errors.New("get_pr_diff: missing 'number' parameter")
	}
	return r.github.PullRequestDiff(ctx, number)
}

type getIssueInput struct {
	Number int `json:"number" jsonschema:"required" jsonschema_description:"Issue number"`
}

func getIssueDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "get_issue",
		Description: "Fetch details of a GitHub issue (title, body, labels, state, author).",
		InputSchema: schemaFor[getIssueInput](),
	}
}

func (r *Registry) getIssue(ctx context.Context, input map[string]any) (string, error) {
	number, ok := intParam(input, "number")
	if !ok {
		return "", errors.New("get_issue: missing 'number' parameter")
	}
	issue, err := r.github.Issue(ctx, number)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Issue #%d: %s\nState: %s\nAuthor: @%s\nLabels: %s\n\n%s",
		issue.GetNumber(), issue.GetTitle(), issue.GetState(), issue.GetUser().GetLogin(),
		labelNames(issue.Labels), orNoDescription(issue.GetBody())), nil
}

func labelNames(labels []*github.Label) string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.GetName())
	}
	return strings.Join(names, ", ")
}

func orNoDescription(body string) string {
	if body == "" {
		return "(no description)"
	}
	return body
}
