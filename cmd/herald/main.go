/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Command herald turns repository history into editorialized release
// notes with an LLM agent.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chainguard.dev/herald/release"
	"github.com/chainguard-dev/clog"
	"github.com/sethvargo/go-envconfig"
)

const usage = `herald generates release notes from repository history with an LLM.

Usage:
  herald generate [flags] <tag> [<prev-tag>]
  herald init [--force]

Commands:
  generate    Generate release notes for a tagged release (default)
  init        Write a starter .herald.yaml to the repository root

Environment:
  ANTHROPIC_API_KEY   Anthropic key, required for claude models
  OPENAI_API_KEY      Key for OpenAI-compatible APIs (LLM_API_KEY also works)
  GITHUB_TOKEN        Enables the GitHub research tools and --github-release
  HERALD_MODEL        Default model when --model is not passed
  HERALD_BASE_URL     Default API base URL override
  HERALD_LOG_LEVEL    debug, info, warn, or error (default warn)

Flags:
  -h, --help  Show this help message`

type env struct {
	release.Env

	Model    string `env:"HERALD_MODEL"`
	BaseURL  string `env:"HERALD_BASE_URL"`
	LogLevel string `env:"HERALD_LOG_LEVEL, default=warn"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted, exiting")
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var e env
	if err := envconfig.Process(ctx, &e); err != nil {
		return fmt.Errorf("processing environment: %w", err)
	}
	ctx = clog.WithLogger(ctx, clog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(e.LogLevel),
	})))

	if len(args) == 0 {
		return printUsage()
	}
	switch args[0] {
	case "generate":
		return generate(ctx, e, args[1:])
	case "init":
		return initConfig(args[1:])
	case "help", "-h", "--help":
		return printUsage()
	default:
		// Flat invocation: "herald v1.2.3 --changelog" is shorthand for
		// "herald generate v1.2.3 --changelog".
		return generate(ctx, e, args)
	}
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func printUsage() error {
	fmt.Println(strings.TrimSpace(usage))
	return nil
}
