/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"chainguard.dev/herald/release"
)

const generateUsage = `Usage:
  herald generate [flags] <tag> [<prev-tag>]

Generates release notes for <tag> and prints them to stdout.

Flags:
  --tag string         Tag to describe (alternative to the positional form)
  --prev-tag string    Previous tag to diff against (default: auto-detect)
  --repo string        GitHub "owner/repo" (default: origin remote)
  --model string       Model to use (default: claude-sonnet-4-5)
  --provider string    anthropic or openai (default: detect from model)
  --max-tokens int     Max response tokens per turn (default: 4096)
  --base-url string    API base URL override
  --config string      Config file path (default: .herald.yaml at repo root)
  --output string      Write the notes to a file instead of stdout
  --concise            Print the changelog entry instead of full notes
  --github-release     Update the GitHub release for the tag
  --changelog          Merge the new entry into CHANGELOG.md
  --no-verify-links    Skip probing links in the submission
  --dry-run            Skip writes to GitHub and CHANGELOG.md
  --stats              Print a run-stats table to stderr`

func generate(ctx context.Context, e env, args []string) error {
	opts, err := parseGenerateArgs(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	opts.Env = e.Env
	if opts.Model == "" {
		opts.Model = e.Model
	}
	if opts.BaseURL == "" {
		opts.BaseURL = e.BaseURL
	}

	return release.Run(ctx, opts)
}

func parseGenerateArgs(args []string) (release.Options, error) {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, generateUsage)
	}

	var opts release.Options
	fs.StringVar(&opts.Tag, "tag", "", "tag to describe")
	fs.StringVar(&opts.PrevTag, "prev-tag", "", "previous tag")
	fs.StringVar(&opts.Repo, "repo", "", `GitHub "owner/repo"`)
	fs.StringVar(&opts.Model, "model", "", "model to use")
	fs.StringVar(&opts.Provider, "provider", "", "anthropic or openai")
	fs.IntVar(&opts.MaxTokens, "max-tokens", 0, "max response tokens per turn")
	fs.StringVar(&opts.BaseURL, "base-url", "", "API base URL override")
	fs.StringVar(&opts.ConfigPath, "config", "", "config file path")
	fs.StringVar(&opts.Output, "output", "", "output file path")
	fs.BoolVar(&opts.Concise, "concise", false, "print the changelog entry only")
	fs.BoolVar(&opts.GitHubRelease, "github-release", false, "update the GitHub release")
	fs.BoolVar(&opts.Changelog, "changelog", false, "merge into CHANGELOG.md")
	fs.BoolVar(&opts.NoVerifyLinks, "no-verify-links", false, "skip link verification")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "skip writes")
	fs.BoolVar(&opts.Stats, "stats", false, "print run stats")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	// Flags may follow the positional tag, as in "herald v1.2.3 --changelog".
	var positionals []string
	for fs.NArg() > 0 {
		positionals = append(positionals, fs.Arg(0))
		if err := fs.Parse(fs.Args()[1:]); err != nil {
			return opts, err
		}
	}
	for _, arg := range positionals {
		switch {
		case opts.Tag == "":
			opts.Tag = arg
		case opts.PrevTag == "":
			opts.PrevTag = arg
		default:
			return opts, fmt.Errorf("unexpected argument %q", arg)
		}
	}
	if opts.Tag == "" {
		return opts, errors.New("generate requires a tag, as the first argument or with --tag")
	}
	return opts, nil
}
