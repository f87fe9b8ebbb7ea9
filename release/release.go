/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package release orchestrates one release-notes run end to end:
// resolve options against .herald.yaml and the environment, gather
// repository and GitHub context, run the agent, then deliver the result
// to stdout or a file, the GitHub release, and CHANGELOG.md.
package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"chainguard.dev/herald/agent"
	"chainguard.dev/herald/changelog"
	"chainguard.dev/herald/config"
	"chainguard.dev/herald/gh"
	"chainguard.dev/herald/gitrepo"
	"chainguard.dev/herald/llm"
	"chainguard.dev/herald/prompt"
	"chainguard.dev/herald/tools"
	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

const (
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 4096

	// styleExampleLimit bounds how many recent release bodies ride along
	// in the prompt as style examples.
	styleExampleLimit = 2
)

// Env holds the credentials read from the environment.
type Env struct {
	GitHubToken     string `env:"GITHUB_TOKEN"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	LLMAPIKey       string `env:"LLM_API_KEY"`
}

// Options configures one run. Zero values defer to .herald.yaml and
// then to built-in defaults.
type Options struct {
	// Tag names the release being described. Required.
	Tag string
	// PrevTag overrides the detected previous tag.
	PrevTag string

	GitHubRelease bool
	Changelog     bool
	Concise       bool
	DryRun        bool
	Stats         bool
	// NoVerifyLinks skips probing the URLs in the submission.
	NoVerifyLinks bool

	Repo      string
	Model     string
	MaxTokens int
	Provider  string
	BaseURL   string
	// Output writes the notes to a file instead of stdout.
	Output string
	// ConfigPath overrides the .herald.yaml discovered at the repo root.
	ConfigPath string

	Env Env

	// Dir is where repository discovery starts. Defaults to ".".
	Dir string

	// Client overrides the provider client built from the resolved
	// options. Tests inject fakes here.
	Client llm.Client
	// GitHubBaseURL points the GitHub client at a test server.
	GitHubBaseURL string

	// Stdout and Stderr default to os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
}

// runContext is everything gather resolves before the agent runs.
type runContext struct {
	repo        *gitrepo.Repo
	registry    *tools.Registry
	github      *gh.Client
	client      llm.Client
	model       string
	ownerRepo   string
	tag         string
	prevTag     string
	defaults    config.Defaults
	systemExtra string
	context     string
	verifyLinks bool
}

// Run executes one release-notes run.
func Run(ctx context.Context, opts Options) error {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	rctx, err := gather(ctx, &opts)
	if err != nil {
		return err
	}

	res, err := generate(ctx, rctx, opts.DryRun)
	if err != nil {
		return err
	}

	title := res.ReleaseTitle
	if !strings.HasPrefix(title, rctx.tag) {
		title = rctx.tag + ": " + title
	}

	if err := publish(ctx, &opts, rctx, title, res.ReleaseBody); err != nil {
		return err
	}

	if opts.Changelog {
		if err := updateChangelog(ctx, rctx, res.Changelog, opts.DryRun); err != nil {
			return err
		}
	}

	// The agent's usage only; the changelog merge reports its own.
	fmt.Fprintf(stderr, "Tokens: %d input + %d output = %d total\n",
		res.Usage.InputTokens, res.Usage.OutputTokens, res.Usage.Total())
	if opts.Stats {
		writeStats(stderr, rctx.model, rctx.registry.CacheHits(), res)
	}

	text := "# " + title + "\n\n" + res.ReleaseBody
	if opts.Concise {
		text = res.Changelog
	}
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(text), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", opts.Output, err)
		}
		return nil
	}
	fmt.Fprintln(stdout, text)
	return nil
}

// gather resolves every option against the config file and environment
// and opens the repository and API clients.
func gather(ctx context.Context, opts *Options) (*runContext, error) {
	log := clog.FromContext(ctx)

	if opts.Tag == "" {
		return nil, errors.New("tag is required")
	}
	if opts.GitHubRelease && opts.Env.GitHubToken == "" {
		return nil, errors.New("GITHUB_TOKEN is required for --github-release")
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	repo, err := gitrepo.Open(dir)
	if err != nil {
		return nil, err
	}
	log.Infof("Repo root: %s", repo.Root())

	var cfg *config.Config
	if opts.ConfigPath != "" {
		cfg, err = config.LoadFile(opts.ConfigPath)
	} else {
		cfg, err = config.Load(repo.Root())
	}
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	defaults := cfg.Defaults

	model := firstNonEmpty(opts.Model, defaults.Model, defaultModel)
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaults.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	ownerRepo := firstNonEmpty(opts.Repo, defaults.Repo)
	if ownerRepo == "" {
		if ownerRepo, err = repo.OwnerRepo(); err != nil {
			return nil, err
		}
	}
	log.Infof("Repo: %s", ownerRepo)

	provider, err := resolveProvider(opts.Provider, defaults.Provider, model)
	if err != nil {
		return nil, err
	}
	log.Infof("Provider: %s, model: %s", provider, model)

	client := opts.Client
	if client == nil {
		apiKey, err := apiKeyFor(provider, opts.Env)
		if err != nil {
			return nil, err
		}
		if client, err = llm.New(llm.Options{
			Provider:  provider,
			Model:     model,
			MaxTokens: int64(maxTokens),
			APIKey:    apiKey,
			BaseURL:   firstNonEmpty(opts.BaseURL, defaults.BaseURL),
		}); err != nil {
			return nil, err
		}
	}

	prevTag := opts.PrevTag
	if prevTag == "" {
		if prevTag, err = repo.PreviousTag(opts.Tag); err != nil {
			return nil, err
		}
	}
	log.Infof("Range: %s..%s", prevTag, opts.Tag)

	var github *gh.Client
	if opts.Env.GitHubToken != "" {
		var ghOpts []gh.Option
		if opts.GitHubBaseURL != "" {
			ghOpts = append(ghOpts, gh.WithBaseURL(opts.GitHubBaseURL))
		}
		if github, err = gh.New(ownerRepo, opts.Env.GitHubToken, ghOpts...); err != nil {
			return nil, err
		}
	}

	return &runContext{
		repo:        repo,
		registry:    tools.New(repo, github),
		github:      github,
		client:      client,
		model:       model,
		ownerRepo:   ownerRepo,
		tag:         opts.Tag,
		prevTag:     prevTag,
		defaults:    defaults,
		systemExtra: cfg.SystemExtra,
		context:     cfg.Context,
		verifyLinks: !opts.NoVerifyLinks && defaults.GetVerifyLinks(),
	}, nil
}

// generate assembles the prompts and drives the agent to a submission.
func generate(ctx context.Context, rctx *runContext, dryRun bool) (*agent.Result, error) {
	log := clog.FromContext(ctx)

	gitLog, err := rctx.repo.LogBetween(rctx.prevTag, rctx.tag)
	if err != nil {
		return nil, err
	}
	prNumbers := gitrepo.ExtractPRNumbers(gitLog)
	log.Infof("Found %d commits, %d PRs", countLines(gitLog), len(prNumbers))

	entry := readChangelogEntry(rctx.repo.Root(), rctx.tag)

	var existingRelease string
	var recent []prompt.StyleExample
	if rctx.github != nil {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			rel, err := rctx.github.ReleaseByTag(gctx, rctx.tag)
			if err != nil {
				return err
			}
			if rel != nil {
				existingRelease = rel.GetBody()
			}
			return nil
		})
		g.Go(func() error {
			if !rctx.defaults.GetMatchStyle() {
				return nil
			}
			// Style examples are a nice-to-have; a fetch failure only
			// costs us the examples.
			releases, err := rctx.github.RecentReleases(gctx, styleExampleLimit+1)
			if err != nil {
				log.Infof("Failed to fetch recent releases for style matching: %v", err)
				return nil
			}
			for _, r := range releases {
				if r.GetTagName() == rctx.tag || r.GetBody() == "" {
					continue
				}
				recent = append(recent, prompt.StyleExample{Tag: r.GetTagName(), Body: r.GetBody()})
				if len(recent) == styleExampleLimit {
					break
				}
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	user := prompt.User(prompt.UserContext{
		Tag:             rctx.tag,
		PrevTag:         rctx.prevTag,
		OwnerRepo:       rctx.ownerRepo,
		GitLog:          gitLog,
		PRNumbers:       prNumbers,
		ChangelogEntry:  entry,
		ExistingRelease: existingRelease,
		Context:         rctx.context,
		RecentReleases:  recent,
	})

	return agent.Run(ctx, agent.Config{
		Client:      rctx.client,
		Tools:       rctx.registry,
		System:      prompt.System(rctx.defaults.GetEmoji(), rctx.systemExtra),
		UserMessage: user,
		Model:       rctx.model,
		VerifyLinks: !dryRun && rctx.verifyLinks,
	})
}

// publish rewrites the GitHub release for the tag. A missing release is
// a warning, not an error: the release may simply not be cut yet.
func publish(ctx context.Context, opts *Options, rctx *runContext, title, body string) error {
	if !opts.GitHubRelease || opts.DryRun {
		return nil
	}
	rel, err := rctx.github.ReleaseByTag(ctx, rctx.tag)
	if err != nil {
		return err
	}
	if rel == nil {
		clog.FromContext(ctx).Warnf("No GitHub release found for %s; skipping update", rctx.tag)
		return nil
	}
	return rctx.github.UpdateRelease(ctx, rel.GetID(), title, body)
}

// readChangelogEntry pulls the existing CHANGELOG.md section for the
// tag, if both exist.
func readChangelogEntry(root, tag string) string {
	contents, err := os.ReadFile(filepath.Join(root, "CHANGELOG.md"))
	if err != nil {
		return ""
	}
	return changelog.Entry(string(contents), tag)
}

func resolveProvider(flag, configured, model string) (llm.Provider, error) {
	if flag != "" {
		return llm.ParseProvider(flag)
	}
	if configured != "" {
		return llm.ParseProvider(configured)
	}
	return llm.DetectProvider(model), nil
}

// apiKeyFor resolves credentials for a provider. OpenAI-compatible
// servers often need no key, so an empty result is allowed there.
func apiKeyFor(provider llm.Provider, env Env) (string, error) {
	switch provider {
	case llm.ProviderAnthropic:
		if env.AnthropicAPIKey == "" {
			return "", errors.New("ANTHROPIC_API_KEY not set")
		}
		return env.AnthropicAPIKey, nil
	case llm.ProviderOpenAI:
		if env.OpenAIAPIKey != "" {
			return env.OpenAIAPIKey, nil
		}
		return env.LLMAPIKey, nil
	}
	return "", fmt.Errorf("unknown provider: %q", provider)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
