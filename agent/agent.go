/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package agent drives the multi-turn, tool-calling conversation that
// produces release notes. Each turn either dispatches the model's tool
// calls and continues, or ends the run: a valid submit_release_notes
// call (with healthy links) succeeds, and everything else fails after
// at most MaxIterations turns.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/herald/links"
	"chainguard.dev/herald/llm"
	"chainguard.dev/herald/metrics"
	"chainguard.dev/herald/tools"
)

// DefaultMaxIterations bounds the number of model turns in one run.
const DefaultMaxIterations = 25

// Config wires one run of the loop.
type Config struct {
	Client llm.Client
	Tools  *tools.Registry

	System      string
	UserMessage string

	// Model is a metrics dimension only; the Client already knows what
	// to call.
	Model string

	// VerifyLinks probes every URL in a submission and asks the model
	// to resubmit when any are broken.
	VerifyLinks bool

	// MaxIterations overrides DefaultMaxIterations when positive.
	MaxIterations int

	// Verifier and Metrics default to links.NewVerifier() and
	// metrics.NewRecorder() when nil.
	Verifier *links.Verifier
	Metrics  *metrics.Recorder
}

// Result is the finished run: the submitted release notes plus
// accounting for the whole conversation.
type Result struct {
	Changelog    string
	ReleaseTitle string
	ReleaseBody  string

	Usage      llm.Usage
	Iterations int
	// ToolCounts tallies the model's tool calls by name.
	ToolCounts map[string]int
}

// Run executes the loop until the model submits release notes, fails,
// or exhausts the iteration budget.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	log := clog.FromContext(ctx)

	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	verifier := cfg.Verifier
	if verifier == nil {
		verifier = links.NewVerifier()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewRecorder()
	}

	conv := cfg.Client.NewConversation(cfg.UserMessage)
	defs := cfg.Tools.Definitions()
	var usage llm.Usage
	counts := make(map[string]int)

	for iteration := 1; iteration <= maxIterations; iteration++ {
		log.Infof("Agent iteration %d/%d", iteration, maxIterations)

		resp, err := cfg.Client.SendTurn(ctx, cfg.System, conv, defs)
		if err != nil {
			return nil, err
		}
		usage = usage.Add(resp.Usage)
		recorder.RecordTurn(ctx, cfg.Model, resp.Usage)
		log.Infof("Usage: %d input, %d output tokens", resp.Usage.InputTokens, resp.Usage.OutputTokens)

		for _, call := range resp.ToolCalls {
			counts[call.Name]++
			recorder.RecordToolCall(ctx, cfg.Model, call.Name)
		}

		result := func(sub *tools.Submission) *Result {
			return &Result{
				Changelog:    sub.Changelog,
				ReleaseTitle: sub.ReleaseTitle,
				ReleaseBody:  sub.ReleaseBody,
				Usage:        usage,
				Iterations:   iteration,
				ToolCounts:   counts,
			}
		}

		// The submit tool ends the run; it is never dispatched.
		if call := findSubmission(resp.ToolCalls); call != nil {
			sub, err := tools.ParseSubmission(call.Input)
			if err != nil {
				return nil, err
			}
			if !cfg.VerifyLinks {
				return result(sub), nil
			}
			broken := verifier.Verify(ctx, sub.Changelog, sub.ReleaseTitle, sub.ReleaseBody)
			if len(broken) == 0 {
				return result(sub), nil
			}
			log.Warnf("Submission has %d broken links, asking the model to resubmit", len(broken))
			cfg.Client.AppendToolResults(conv, rejectSubmission(ctx, cfg.Tools, resp.ToolCalls, broken))
			continue
		}

		if len(resp.ToolCalls) == 0 {
			if resp.StopReason == llm.StopEndTurn {
				if sub, ok := parseFallback(resp.Text); ok {
					log.Warn("Model replied with text instead of calling submit_release_notes, parsing it directly")
					return result(sub), nil
				}
				return nil, errors.New("model finished without calling submit_release_notes")
			}
			return nil, fmt.Errorf("model stopped (%s) without calling submit_release_notes", resp.StopReason)
		}

		cfg.Client.AppendToolResults(conv, cfg.Tools.RunAll(ctx, resp.ToolCalls))
	}

	return nil, fmt.Errorf("agent loop exceeded %d iterations", maxIterations)
}

func findSubmission(calls []llm.ToolCall) *llm.ToolCall {
	for i := range calls {
		if calls[i].Name == tools.SubmitToolName {
			return &calls[i]
		}
	}
	return nil
}

// rejectSubmission answers every tool call in a turn whose submission
// had broken links: ordinary calls are dispatched as usual and the
// submit call gets a synthetic error asking for a fixed resubmission.
// Every call gets a result so the conversation stays well formed.
func rejectSubmission(ctx context.Context, reg *tools.Registry, calls []llm.ToolCall, broken []links.Broken) []llm.ToolResult {
	msg := brokenLinksMessage(broken)
	results := make([]llm.ToolResult, len(calls))

	var others []llm.ToolCall
	var positions []int
	for i, call := range calls {
		if call.Name == tools.SubmitToolName {
			results[i] = llm.ToolResult{ToolCallID: call.ID, Content: msg, IsError: true}
			continue
		}
		others = append(others, call)
		positions = append(positions, i)
	}
	for j, res := range reg.RunAll(ctx, others) {
		results[positions[j]] = res
	}
	return results
}

func brokenLinksMessage(broken []links.Broken) string {
	var b strings.Builder
	b.WriteString("The submission contains broken links:\n")
	for _, l := range broken {
		fmt.Fprintf(&b, "- %s (%s)\n", l.URL, l.Reason)
	}
	b.WriteString("\nFix or remove these links, then call submit_release_notes again.")
	return b.String()
}
