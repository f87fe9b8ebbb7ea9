/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package tools implements the research tools the model can call while
// writing release notes: reading files, listing and searching the repo,
// inspecting commits, and fetching GitHub PRs and issues, plus the
// terminal submit_release_notes definition. A Registry owns the tool
// set, a per-run result cache, and the concurrent dispatch of one
// turn's calls.
package tools

import (
	"context"
	"fmt"

	"chainguard.dev/herald/gh"
	"chainguard.dev/herald/gitrepo"
	"chainguard.dev/herald/llm"
	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

// defaultConcurrency bounds how many cache-miss tool calls from one turn
// run at once.
const defaultConcurrency = 8

type tool struct {
	def llm.ToolDefinition
	run func(context.Context, map[string]any) (string, error)
	// github marks tools that need the GitHub client.
	github bool
}

// Registry is the tool set for one run.
type Registry struct {
	repo        *gitrepo.Repo
	github      *gh.Client
	cache       *Cache
	concurrency int
	tools       []tool
}

// Option configures a Registry.
type Option func(*Registry)

// WithConcurrency overrides the per-turn dispatch fan-out bound.
func WithConcurrency(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// New builds the registry. A nil GitHub client leaves the repo-local
// tools working and degrades the GitHub-backed ones to errors.
func New(repo *gitrepo.Repo, github *gh.Client, opts ...Option) *Registry {
	r := &Registry{
		repo:        repo,
		github:      github,
		cache:       NewCache(),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.tools = []tool{
		{def: readFileDefinition(), run: r.readFile},
		{def: listFilesDefinition(), run: r.listFiles},
		{def: grepDefinition(), run: r.grep},
		{def: gitShowDefinition(), run: r.gitShow},
		{def: getCommitsDefinition(), run: r.getCommits},
		// submit_release_notes is intercepted by the loop, never dispatched.
		{def: submitDefinition()},
		{def: getPRDefinition(), run: r.getPR, github: true},
		{def: getPRDiffDefinition(), run: r.getPRDiff, github: true},
		{def: getIssueDefinition(), run: r.getIssue, github: true},
	}
	return r
}

// CacheHits returns how many tool calls were answered from the result
// cache so far.
func (r *Registry) CacheHits() int {
	return r.cache.Hits()
}

// Definitions returns the tool definitions to offer the model. The
// GitHub-backed tools are omitted when no client is configured.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		if t.github && r.github == nil {
			continue
		}
		defs = append(defs, t.def)
	}
	return defs
}

// Dispatch executes a single tool call.
func (r *Registry) Dispatch(ctx context.Context, call llm.ToolCall) (string, error) {
	for _, t := range r.tools {
		if t.def.Name != call.Name || t.run == nil {
			continue
		}
		if t.github && r.github == nil {
			return "", fmt.Errorf("%s requires GITHUB_TOKEN to be set", call.Name)
		}
		return t.run(ctx, call.Input)
	}
	return "", fmt.Errorf("unknown tool: %s", call.Name)
}

// RunAll executes one turn's tool calls: cache hits are answered without
// side effects, misses fan out concurrently, and the results come back
// in the order the calls were issued. Failures become is_error results
// so the model can correct course; they are never cached.
func (r *Registry) RunAll(ctx context.Context, calls []llm.ToolCall) []llm.ToolResult {
	log := clog.FromContext(ctx)
	results := make([]llm.ToolResult, len(calls))

	var misses []int
	for i, call := range calls {
		if cached, ok := r.cache.Get(call.Name, call.Input); ok {
			log.With("tool", call.Name).Debug("Tool cache hit")
			results[i] = llm.ToolResult{ToolCallID: call.ID, Content: cached}
			continue
		}
		misses = append(misses, i)
	}

	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for _, i := range misses {
		call := calls[i]
		g.Go(func() error {
			out, err := r.Dispatch(ctx, call)
			if err != nil {
				log.With("tool", call.Name, "error", err).Warn("Tool call failed")
				results[i] = llm.ToolResult{ToolCallID: call.ID, Content: "Error: " + err.Error(), IsError: true}
				return nil
			}
			results[i] = llm.ToolResult{ToolCallID: call.ID, Content: out}
			return nil
		})
	}
	// Tool failures are reported through results, never as errors.
	_ = g.Wait()

	for _, i := range misses {
		if !results[i].IsError {
			r.cache.Insert(calls[i].Name, calls[i].Input, results[i].Content)
		}
	}
	return results
}

// stringParam fetches a string argument from a tool input.
func stringParam(input map[string]any, key string) (string, bool) {
	s, ok := input[key].(string)
	return s, ok
}

// intParam fetches an integer argument. JSON decoding delivers numbers
// as float64.
func intParam(input map[string]any, key string) (int, bool) {
	switch v := input[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}
