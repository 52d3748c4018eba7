package pipeline

import (
	"github.com/lumina-vs/orchestrator/pkg/schema"
)

// NodeTiming is the recorded wall-clock time for one pipeline node.
type NodeTiming struct {
	Ms float64 `json:"ms"`
}

// Telemetry accumulates per-node timings for one pipeline run.
type Telemetry struct {
	Nodes map[string]NodeTiming `json:"nodes"`
}

// Context is the mutable state threaded through all five pipeline stages
// for one input. Fields are populated progressively; the zero value of a
// field means the owning stage has not run yet. A Context lives for exactly
// one call and is then either discarded or retained as the diagnostic
// "last context" snapshot.
type Context struct {
	Input     string
	Timestamp int64 // milliseconds

	// preprocess
	NormalizedInput string
	OriginalInput   string
	Truncated       bool

	// classify
	Classification *schema.Classification
	RuleResult     *schema.Classification
	LLMResult      *schema.Classification

	// extract
	Action     schema.Action
	Target     string
	Parameters map[string]any
	Confidence float64
	Source     string

	// validate
	Validated bool

	// finalize
	Intent *schema.Intent

	// failure detail retained for diagnostics only
	Err string

	Telemetry        Telemetry
	telemetryEnabled bool
}

// NewContext creates the stage-zero context with input and timestamp set.
func NewContext(input string, timestamp int64, telemetryEnabled bool) *Context {
	return &Context{
		Input:            input,
		Timestamp:        timestamp,
		Telemetry:        Telemetry{Nodes: map[string]NodeTiming{}},
		telemetryEnabled: telemetryEnabled,
	}
}

// RecordNodeTiming satisfies graph.TimingSink. Writes are discarded when
// telemetry is disabled.
func (c *Context) RecordNodeTiming(node string, ms float64) {
	if !c.telemetryEnabled {
		return
	}
	c.Telemetry.Nodes[node] = NodeTiming{Ms: ms}
}

// Snapshot renders the context as a plain map for the diagnostics surface,
// where it can be fed through jq transforms. Keys follow the stage that
// populates them.
func (c *Context) Snapshot() map[string]any {
	snap := map[string]any{
		"input":     c.Input,
		"timestamp": c.Timestamp,
	}
	if c.NormalizedInput != "" || c.OriginalInput != "" {
		snap["normalized_input"] = c.NormalizedInput
		snap["original_input"] = c.OriginalInput
	}
	if c.Truncated {
		snap["truncated"] = true
	}
	if c.Classification != nil {
		snap["classification"] = classificationMap(*c.Classification)
	}
	if c.RuleResult != nil {
		snap["rule_result"] = classificationMap(*c.RuleResult)
	}
	if c.LLMResult != nil {
		snap["llm_result"] = classificationMap(*c.LLMResult)
	}
	if c.Source != "" {
		snap["action"] = string(c.Action)
		snap["target"] = c.Target
		snap["parameters"] = c.Parameters
		snap["confidence"] = c.Confidence
		snap["classification_source"] = c.Source
	}
	if c.Validated {
		snap["validated"] = true
	}
	if c.Intent != nil {
		snap["intent"] = map[string]any{
			"action":     string(c.Intent.Action),
			"target":     c.Intent.Target,
			"parameters": c.Intent.Parameters,
			"confidence": c.Intent.Confidence,
			"timestamp":  c.Intent.Timestamp,
		}
	}
	if c.Err != "" {
		snap["error"] = c.Err
	}
	if c.telemetryEnabled {
		nodes := make(map[string]any, len(c.Telemetry.Nodes))
		for name, timing := range c.Telemetry.Nodes {
			nodes[name] = map[string]any{"ms": timing.Ms}
		}
		snap["telemetry"] = map[string]any{"nodes": nodes}
	}
	return snap
}

func classificationMap(c schema.Classification) map[string]any {
	return map[string]any{
		"action":     string(c.Action),
		"target":     c.Target,
		"parameters": c.Parameters,
		"confidence": c.Confidence,
		"source":     c.Source,
	}
}
