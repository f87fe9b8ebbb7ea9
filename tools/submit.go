/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tools

import (
	"encoding/json"
	"fmt"

	"chainguard.dev/herald/llm"
)

// SubmitToolName is the terminal tool: the loop intercepts it instead of
// dispatching, so the registry carries only its definition.
const SubmitToolName = "submit_release_notes"

// Submission is the payload of a submit_release_notes call.
type Submission struct {
	Changelog    string `json:"changelog"     jsonschema:"required" jsonschema_description:"Concise changelog entry using Keep a Changelog categories (### Added, ### Fixed, etc). No version header - just the categorized items."`
	ReleaseTitle string `json:"release_title" jsonschema:"required" jsonschema_description:"A catchy, concise title for the GitHub release (no # prefix)."`
	ReleaseBody  string `json:"release_body"  jsonschema:"required" jsonschema_description:"Detailed GitHub release notes in markdown. Follow the template from the system prompt: narrative summary, optional Highlights, What's Changed, optional Breaking Changes, optional New Contributors, and a Full Changelog link."`
}

func submitDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        SubmitToolName,
		Description: "Submit the final release notes. Call this exactly once when you are done researching and are ready to deliver the release notes.",
		InputSchema: schemaFor[Submission](),
	}
}

// ParseSubmission validates that every field of a submission is present
// as a string and decodes it.
func ParseSubmission(input map[string]any) (*Submission, error) {
	for _, field := range []string{"changelog", "release_title", "release_body"} {
		if _, ok := input[field].(string); !ok {
			return nil, fmt.Errorf("missing %s in submission", field)
		}
	}
	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encoding submission: %w", err)
	}
	sub := &Submission{}
	if err := json.Unmarshal(data, sub); err != nil {
		return nil, fmt.Errorf("decoding submission: %w", err)
	}
	return sub, nil
}
