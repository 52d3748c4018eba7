package modelrunner

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// responseSchemaJSON is the shape check applied to an extracted model
// response before normalization. It is deliberately loose: confidence is
// untyped because the merge engine clamps non-numeric values itself, and
// only the action's presence as a string is structural.
const responseSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://lumina.dev/schemas/model-response.json",
  "type": "object",
  "required": ["action"],
  "properties": {
    "action": { "type": "string" },
    "parameters": { "type": ["object", "string"] }
  }
}`

// Extractor pulls the first well-formed JSON object out of raw model text
// and checks it against the response schema. Safe for concurrent use.
type Extractor struct {
	schema *jsonschema.Schema
}

// NewExtractor compiles the embedded response schema.
func NewExtractor() (*Extractor, error) {
	c := jsonschema.NewCompiler()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(responseSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal response schema: %w", err)
	}
	if err := c.AddResource("https://lumina.dev/schemas/model-response.json", doc); err != nil {
		return nil, fmt.Errorf("add response schema resource: %w", err)
	}

	compiled, err := c.Compile("https://lumina.dev/schemas/model-response.json")
	if err != nil {
		return nil, fmt.Errorf("compile response schema: %w", err)
	}

	return &Extractor{schema: compiled}, nil
}

// Extract scans raw for the first well-formed {...} JSON object, ignoring
// any surrounding prose, and returns it decoded when it passes the response
// schema. Returns nil when no usable object exists — absence, not an error,
// because the pipeline falls back to the rule path.
func (e *Extractor) Extract(raw string) map[string]any {
	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' {
			continue
		}

		dec := json.NewDecoder(strings.NewReader(raw[i:]))

		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			continue
		}

		if err := e.schema.Validate(obj); err != nil {
			continue
		}
		return obj
	}
	return nil
}
