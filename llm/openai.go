/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// openaiClient implements Client against the Chat Completions API,
// which also covers OpenAI-compatible local endpoints.
type openaiClient struct {
	client    openai.Client
	model     string
	maxTokens int64
}

func newOpenAIClient(opts Options) (*openaiClient, error) {
	ropts := []option.RequestOption{
		option.WithHTTPClient(opts.HTTPClient),
		option.WithMaxRetries(0),
	}
	// Local OpenAI-compatible endpoints often run keyless; only send
	// an Authorization header when a key was supplied.
	if opts.APIKey != "" {
		ropts = append(ropts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		ropts = append(ropts, option.WithBaseURL(opts.BaseURL))
	}
	return &openaiClient{
		client:    openai.NewClient(ropts...),
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
	}, nil
}

// openaiConversation holds Chat Completions history. The system prompt
// is not stored; SendTurn prepends it on every call.
type openaiConversation struct {
	messages []openai.ChatCompletionMessageParamUnion
}

func (*openaiConversation) isConversation() {}

func (c *openaiClient) NewConversation(userMessage string) Conversation {
	return &openaiConversation{
		messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(userMessage),
		},
	}
}

// AppendToolResults appends one role="tool" message per result.
func (c *openaiClient) AppendToolResults(conv Conversation, results []ToolResult) {
	oc := conv.(*openaiConversation)
	for _, r := range results {
		oc.messages = append(oc.messages, openai.ToolMessage(r.Content, r.ToolCallID))
	}
}

func (c *openaiClient) SendTurn(ctx context.Context, system string, conv Conversation, tools []ToolDefinition) (*TurnResponse, error) {
	oc := conv.(*openaiConversation)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(oc.messages)+1)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, oc.messages...)

	params := openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(c.model),
		Messages:  messages,
		MaxTokens: openai.Int(c.maxTokens),
	}
	if len(tools) > 0 {
		params.Tools = openaiTools(tools)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, openaiAPIError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, &APIError{Provider: "openai", Message: "no choices in response"}
	}
	choice := completion.Choices[0]

	resp := &TurnResponse{
		Text:       choice.Message.Content,
		StopReason: openaiStopReason(choice.FinishReason),
		Usage: Usage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
		},
	}
	for _, call := range choice.Message.ToolCalls {
		// Models occasionally emit malformed argument strings; treat
		// those as an empty object so the tool can report the problem
		// back instead of the whole run failing.
		input := map[string]any{}
		if args := call.Function.Arguments; args != "" {
			if err := json.Unmarshal([]byte(args), &input); err != nil {
				input = map[string]any{}
			}
		}
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: input,
		})
	}

	oc.messages = append(oc.messages, choice.Message.ToParam())
	return resp, nil
}

func openaiTools(defs []ToolDefinition) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(defs))
	for _, def := range defs {
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        def.Name,
			Description: openai.String(def.Description),
			Parameters:  openai.FunctionParameters(def.InputSchema),
		}))
	}
	return out
}

func openaiStopReason(reason string) StopReason {
	switch reason {
	case "tool_calls":
		return StopToolUse
	case "stop":
		return StopEndTurn
	case "length":
		return StopMaxTokens
	default:
		return StopUnknown
	}
}

func openaiAPIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return &APIError{
			Provider:   "openai",
			StatusCode: apierr.StatusCode,
			Message:    apierr.Error(),
		}
	}
	return fmt.Errorf("openai: %w", err)
}
