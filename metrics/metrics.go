/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package metrics emits OpenTelemetry counters for release-notes runs.
package metrics

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"chainguard.dev/herald/llm"
)

const meterName = "chainguard.dev/herald"

// Recorder counts model turns, token usage, and tool calls. Without a
// registered meter provider every counter is a no-op, so recording is
// always safe.
type Recorder struct {
	turns        metric.Int64Counter
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	toolCalls    metric.Int64Counter
}

// NewRecorder builds a Recorder on the global meter provider.
func NewRecorder() *Recorder {
	return newRecorder(otel.GetMeterProvider())
}

func newRecorder(provider metric.MeterProvider) *Recorder {
	meter := provider.Meter(meterName, metric.WithInstrumentationVersion("1.0.0"))

	// A counter that fails to initialize degrades to a no-op rather
	// than failing the run.
	counter := func(name, description, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name,
			metric.WithDescription(description),
			metric.WithUnit(unit))
		if err != nil {
			slog.Warn("Failed to create counter, metric will be disabled", "error", err, "counter", name)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Recorder{
		turns:        counter("herald.agent.turns", "Model turns taken during a run", "{turns}"),
		inputTokens:  counter("herald.token.input", "Input tokens consumed by model turns", "{tokens}"),
		outputTokens: counter("herald.token.output", "Output tokens produced by model turns", "{tokens}"),
		toolCalls:    counter("herald.tool.calls", "Tool calls requested by the model", "{calls}"),
	}
}

// RecordTurn counts one model turn and its token usage.
func (r *Recorder) RecordTurn(ctx context.Context, model string, usage llm.Usage) {
	attrs := metric.WithAttributes(attribute.String("model", model))
	r.turns.Add(ctx, 1, attrs)
	r.inputTokens.Add(ctx, usage.InputTokens, attrs)
	r.outputTokens.Add(ctx, usage.OutputTokens, attrs)
}

// RecordToolCall counts one dispatched tool call.
func (r *Recorder) RecordToolCall(ctx context.Context, model, tool string) {
	r.toolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("tool", tool),
	))
}
