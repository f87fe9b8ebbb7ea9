/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chainguard.dev/herald/retry"
)

// Provider identifies a model API vendor.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// ParseProvider converts a user-supplied provider name.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(s) {
	case "anthropic":
		return ProviderAnthropic, nil
	case "openai":
		return ProviderOpenAI, nil
	default:
		return "", fmt.Errorf("unknown provider: %q", s)
	}
}

// DetectProvider guesses the provider from a model name: claude models
// are Anthropic, everything else is OpenAI-compatible.
func DetectProvider(model string) Provider {
	if strings.HasPrefix(model, "claude") {
		return ProviderAnthropic
	}
	return ProviderOpenAI
}

// Options configures a provider client.
type Options struct {
	Provider  Provider
	Model     string
	MaxTokens int64
	APIKey    string
	// BaseURL overrides the provider's default endpoint. Useful for
	// proxies and local OpenAI-compatible servers.
	BaseURL string
	// HTTPClient carries the retry policy. When nil, a client wrapping
	// http.DefaultTransport with the default policy is used.
	HTTPClient *http.Client
}

// New constructs the client for opts.Provider.
func New(opts Options) (Client, error) {
	if opts.Model == "" {
		return nil, errors.New("model is required")
	}
	if opts.MaxTokens <= 0 {
		return nil, errors.New("max tokens must be positive")
	}
	if opts.HTTPClient == nil {
		tr, err := retry.NewTransport(retry.DefaultConfig(), nil)
		if err != nil {
			return nil, err
		}
		opts.HTTPClient = &http.Client{Transport: tr}
	}
	switch opts.Provider {
	case ProviderAnthropic:
		return newAnthropicClient(opts)
	case ProviderOpenAI:
		return newOpenAIClient(opts)
	default:
		return nil, fmt.Errorf("unknown provider: %q", opts.Provider)
	}
}
