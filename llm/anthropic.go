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

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
)

// anthropicClient implements Client against the Anthropic Messages API.
type anthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func newAnthropicClient(opts Options) (*anthropicClient, error) {
	if opts.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	ropts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(opts.HTTPClient),
		// Retries happen in the injected transport, not the SDK.
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		ropts = append(ropts, option.WithBaseURL(opts.BaseURL))
	}
	return &anthropicClient{
		client:    anthropic.NewClient(ropts...),
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
	}, nil
}

// anthropicConversation holds Messages API history.
type anthropicConversation struct {
	messages []anthropic.MessageParam
}

func (*anthropicConversation) isConversation() {}

func (c *anthropicClient) NewConversation(userMessage string) Conversation {
	return &anthropicConversation{
		messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(userMessage),
			},
		}},
	}
}

// AppendToolResults groups every result into a single user message, the
// shape the Messages API expects after an assistant tool_use turn.
func (c *anthropicClient) AppendToolResults(conv Conversation, results []ToolResult) {
	ac := conv.(*anthropicConversation)
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(results))
	for _, r := range results {
		block := anthropic.ToolResultBlockParam{
			ToolUseID: r.ToolCallID,
			Content: []anthropic.ToolResultBlockParamContentUnion{{
				OfText: &anthropic.TextBlockParam{Text: r.Content},
			}},
		}
		if r.IsError {
			block.IsError = anthropic.Bool(true)
		}
		blocks = append(blocks, anthropic.ContentBlockParamUnion{OfToolResult: &block})
	}
	ac.messages = append(ac.messages, anthropic.MessageParam{
		Role:    anthropic.MessageParamRoleUser,
		Content: blocks,
	})
}

func (c *anthropicClient) SendTurn(ctx context.Context, system string, conv Conversation, tools []ToolDefinition) (*TurnResponse, error) {
	ac := conv.(*anthropicConversation)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  ac.messages,
		Tools:     anthropicTools(tools),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, anthropicAPIError(err)
	}

	resp := &TurnResponse{
		StopReason: anthropicStopReason(message.StopReason),
		Usage: Usage{
			InputTokens:  message.Usage.InputTokens,
			OutputTokens: message.Usage.OutputTokens,
		},
	}
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			resp.Text += block.Text
		case "tool_use":
			var input map[string]any
			if err := json.Unmarshal(block.Input, &input); err != nil {
				return nil, &APIError{
					Provider: "anthropic",
					Message:  fmt.Sprintf("decoding %s tool input: %v", block.Name, err),
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}

	ac.messages = append(ac.messages, message.ToParam())
	return resp, nil
}

func anthropicTools(defs []ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        def.Name,
				Description: anthropic.String(def.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type:       constant.Object("object"),
					Properties: schemaProperties(def.InputSchema),
					Required:   schemaRequired(def.InputSchema),
				},
			},
		})
	}
	return out
}

func anthropicStopReason(r anthropic.StopReason) StopReason {
	switch r {
	case anthropic.StopReasonToolUse:
		return StopToolUse
	case anthropic.StopReasonEndTurn:
		return StopEndTurn
	case anthropic.StopReasonMaxTokens:
		return StopMaxTokens
	default:
		return StopUnknown
	}
}

func anthropicAPIError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return &APIError{
			Provider:   "anthropic",
			StatusCode: apierr.StatusCode,
			Message:    apierr.Error(),
		}
	}
	return fmt.Errorf("anthropic: %w", err)
}
