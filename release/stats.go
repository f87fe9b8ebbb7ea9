/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package release

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"chainguard.dev/herald/agent"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// writeStats renders the run-summary table: model, turns, tokens, and
// per-tool call counts nested under the total.
func writeStats(w io.Writer, model string, cacheHits int, res *agent.Result) {
	fmt.Fprintln(w)
	table := statsTable([]string{"Metric", "Value"}, w)

	total := 0
	for _, n := range res.ToolCounts {
		total += n
	}
	rows := [][]string{
		{"Model", model},
		{"Turns", strconv.Itoa(res.Iterations)},
		{"Input tokens", strconv.FormatInt(res.Usage.InputTokens, 10)},
		{"Output tokens", strconv.FormatInt(res.Usage.OutputTokens, 10)},
		{"Cache hits", strconv.Itoa(cacheHits)},
		{"Tool calls", strconv.Itoa(total)},
	}
	for _, name := range slices.Sorted(maps.Keys(res.ToolCounts)) {
		rows = append(rows, []string{"  " + name, strconv.Itoa(res.ToolCounts[name])})
	}
	for _, row := range rows {
		_ = table.Append(row)
	}
	_ = table.Render()
}

// statsTable builds a left-aligned markdown table writing to w.
func statsTable(headers []string, w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		// TrimSpace off preserves the indent on per-tool rows.
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}
