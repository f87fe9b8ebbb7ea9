/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package config reads the optional .herald.yaml at the repository
// root. Every key is optional; flags override file values, and file
// values override built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Filename is the config file looked up at the repository root.
const Filename = ".herald.yaml"

// Config mirrors .herald.yaml.
type Config struct {
	// SystemExtra is appended to the system prompt verbatim.
	SystemExtra string `yaml:"system_extra"`
	// Context is included in every user prompt.
	Context  string   `yaml:"context"`
	Defaults Defaults `yaml:"defaults"`
}

// Defaults are fallbacks for flags the caller did not pass. The bool
// fields are pointers so an explicit false is distinguishable from
// unset.
type Defaults struct {
	Model       string `yaml:"model"`
	MaxTokens   int    `yaml:"max_tokens"`
	Provider    string `yaml:"provider"`
	BaseURL     string `yaml:"base_url"`
	Repo        string `yaml:"repo"`
	Emoji       *bool  `yaml:"emoji"`
	VerifyLinks *bool  `yaml:"verify_links"`
	MatchStyle  *bool  `yaml:"match_style"`
}

// GetEmoji reports whether release notes may use emoji. Unset means
// true.
func (d Defaults) GetEmoji() bool {
	return d.Emoji == nil || *d.Emoji
}

// GetVerifyLinks reports whether submitted URLs are probed. Unset
// means true.
func (d Defaults) GetVerifyLinks() bool {
	return d.VerifyLinks == nil || *d.VerifyLinks
}

// GetMatchStyle reports whether recent release bodies are fetched as
// style examples. Unset means true.
func (d Defaults) GetMatchStyle() bool {
	return d.MatchStyle == nil || *d.MatchStyle
}

// Load reads .herald.yaml under repoRoot. A missing file returns
// (nil, nil).
func Load(repoRoot string) (*Config, error) {
	path := filepath.Join(repoRoot, Filename)
	contents, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadFile reads a config from an explicit path. Unlike Load, a missing
// file is an error: the caller asked for this file specifically.
func LoadFile(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// Template is the commented starter config written by "herald init".
func Template() string {
	return template
}

const template = `# herald configuration. Every key is optional.

# Extra instructions appended to the system prompt.
# Use this to customize tone, style, or project-specific conventions.
#system_extra: ""

# Extra context included in every user prompt.
# Useful for project descriptions or recurring context.
#context: ""

defaults:
  #model: "claude-sonnet-4-5"
  #max_tokens: 4096
  #provider: "anthropic"
  #base_url: ""
  #repo: "owner/repo"
  #emoji: true
  #verify_links: true
  #match_style: true
`
