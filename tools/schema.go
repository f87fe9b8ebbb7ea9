/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// schemaFor reflects a tool input struct into the JSON-Schema map shape
// the providers expect: {"type": "object", "properties": ..., "required": ...}.
// Required fields are marked with `jsonschema:"required"`, descriptions
// with `jsonschema_description` so they can contain commas.
func schemaFor[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  true,
		DoNotReference:             true,
	}
	var zero T
	s := reflector.Reflect(&zero)
	s.Version = ""
	return mustSchemaMap(s)
}

// mustSchemaMap converts a reflected schema to a plain map via a JSON
// round trip. Panics only if a tool input struct is not marshalable,
// which a test catches at build time.
func mustSchemaMap(s *jsonschema.Schema) map[string]any {
	data, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}
