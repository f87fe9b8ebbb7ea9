/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package llm normalizes two model-provider wire protocols behind one
// tool-calling client interface. The orchestration loop depends only on
// this package's types, never on a vendor SDK.
package llm

import (
	"context"
	"fmt"
)

// Usage counts tokens consumed by model calls.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Add returns the componentwise sum of two usage counts.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
	}
}

// Total returns input plus output tokens.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// ToolDefinition describes one tool offered to the model.
type ToolDefinition struct {
	// Name uniquely identifies the tool within a run.
	Name string
	// Description tells the model what the tool does.
	Description string
	// InputSchema is a JSON-Schema-shaped description of the tool's
	// arguments: {"type": "object", "properties": {...}, "required": [...]}.
	InputSchema map[string]any
}

// ToolCall is a model-requested invocation of a named tool.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResult answers a ToolCall and is fed back into the conversation.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// StopReason is the provider-reported cause for ending a turn,
// normalized across providers.
type StopReason string

const (
	// StopToolUse means the model wants tool results before continuing.
	StopToolUse StopReason = "tool_use"
	// StopEndTurn means the model finished its response.
	StopEndTurn StopReason = "end_turn"
	// StopMaxTokens means generation hit the response token limit.
	StopMaxTokens StopReason = "max_tokens"
	// StopUnknown covers provider stop values with no normalized peer.
	StopUnknown StopReason = "unknown"
)

// TurnResponse is one normalized model turn.
type TurnResponse struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason StopReason
	Usage      Usage
}

// Conversation accumulates provider-native message history. Values are
// created by a Client and are only meaningful to the client that
// created them.
type Conversation interface {
	isConversation()
}

// Client drives a tool-calling conversation against one model provider.
type Client interface {
	// NewConversation starts a conversation holding a single user
	// message. No I/O is performed.
	NewConversation(userMessage string) Conversation

	// AppendToolResults adds tool outcomes to the conversation in the
	// provider's native shape.
	AppendToolResults(conv Conversation, results []ToolResult)

	// SendTurn sends the full conversation plus tool definitions and
	// returns the model's next turn, appending the raw turn to conv on
	// success. This is the only operation that performs I/O.
	SendTurn(ctx context.Context, system string, conv Conversation, tools []ToolDefinition) (*TurnResponse, error)
}

// APIError is a non-success provider response after retries, or a
// response body that cannot be decoded into the expected shape.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
}

// schemaProperties pulls the "properties" object out of a tool input
// schema, tolerating a missing key.
func schemaProperties(schema map[string]any) map[string]any {
	if p, ok := schema["properties"].(map[string]any); ok {
		return p
	}
	return map[string]any{}
}

// schemaRequired pulls the "required" list out of a tool input schema.
// Schemas built by hand use []string; schemas round-tripped through
// JSON carry []any.
func schemaRequired(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
