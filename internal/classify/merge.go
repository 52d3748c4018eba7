package classify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/lumina-vs/orchestrator/internal/expressions"
	"github.com/lumina-vs/orchestrator/pkg/schema"
)

// DefaultAcceptPolicy is the guardrail condition deciding whether a
// structurally valid model classification may override the rule result.
// The arithmetic is load-bearing: the model must clear an absolute floor
// and must not be meaningfully less confident than the rule path. Tests
// depend on the exact boundary behavior, so keep the formula as is.
const DefaultAcceptPolicy = `llm.confidence >= max(0.55, rule.confidence - 0.05)`

// Merger reconciles the model path with the rule path. The acceptance
// condition is an Expr expression evaluated with the two classifications
// bound as `llm` and `rule`; a failing or non-boolean policy falls back to
// the built-in formula so a bad config can never disable the guardrail.
type Merger struct {
	policy string
	engine *expressions.ExprEngine
	logger *slog.Logger
}

// NewMerger creates a Merger with the given acceptance policy expression.
// An empty policy selects DefaultAcceptPolicy.
func NewMerger(policy string, logger *slog.Logger) *Merger {
	if policy == "" {
		policy = DefaultAcceptPolicy
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{
		policy: policy,
		engine: expressions.NewExprEngine(),
		logger: logger,
	}
}

// Normalize converts a raw decoded model response into a Classification.
// It fails soft — returning nil — when the response is absent, not an
// object, or carries no action after trimming. Malformed parameters become
// an empty map and the confidence is clamped, so a non-nil result is always
// safe to merge.
func Normalize(raw map[string]any) *schema.Classification {
	if raw == nil {
		return nil
	}

	action, _ := raw["action"].(string)
	action = strings.TrimSpace(action)
	if action == "" {
		return nil
	}

	target, _ := raw["target"].(string)
	target = strings.ToLower(strings.TrimSpace(target))

	params := map[string]any{}
	switch p := raw["parameters"].(type) {
	case map[string]any:
		params = p
	case string:
		var parsed map[string]any
		if err := json.Unmarshal([]byte(p), &parsed); err == nil && parsed != nil {
			params = parsed
		}
	}

	confidence := 0.5
	if v, ok := raw["confidence"]; ok {
		if f, numeric := asFloat(v); numeric {
			confidence = f
		} else {
			confidence = 0.0
		}
	}

	return &schema.Classification{
		Action:     schema.Action(action),
		Target:     target,
		Parameters: params,
		Confidence: schema.ClampConfidence(confidence),
		Source:     schema.SourceLLM,
	}
}

// Merge starts from the rule classification as the baseline and adopts the
// model classification only when it is structurally valid against the
// closed vocabularies and clears the acceptance policy. The returned
// confidence is always clamped.
func (m *Merger) Merge(ctx context.Context, model *schema.Classification, rule schema.Classification) schema.Classification {
	result := rule.Clone()

	if model != nil && m.structurallyValid(*model) && m.accept(ctx, *model, rule) {
		result = model.Clone()
		if result.Parameters == nil {
			result.Parameters = map[string]any{}
		}
	}

	result.Confidence = schema.ClampConfidence(result.Confidence)
	return result
}

// structurallyValid checks the model classification against the closed
// vocabularies. Actions without a target constraint pass regardless of target.
func (m *Merger) structurallyValid(c schema.Classification) bool {
	if !schema.ValidAction(c.Action) {
		return false
	}
	target := strings.ToLower(c.Target)
	switch c.Action {
	case schema.ActionSetRenderMode:
		return schema.ValidRenderMode(target)
	case schema.ActionAddEffect, schema.ActionRemoveEffect:
		return schema.ValidEffect(target)
	}
	return true
}

// accept evaluates the policy expression; on any policy failure it falls
// back to the built-in threshold formula.
func (m *Merger) accept(ctx context.Context, model, rule schema.Classification) bool {
	out, err := m.engine.Evaluate(ctx, m.policy, map[string]any{
		"llm":  policyEnv(model),
		"rule": policyEnv(rule),
	})
	if err == nil {
		if decision, ok := out.(bool); ok {
			return decision
		}
		m.logger.Warn("accept policy returned non-boolean, using built-in threshold",
			slog.String("policy", m.policy))
	} else {
		m.logger.Warn("accept policy evaluation failed, using built-in threshold",
			slog.String("policy", m.policy),
			slog.String("error", err.Error()))
	}

	floor := 0.55
	if rule.Confidence-0.05 > floor {
		floor = rule.Confidence - 0.05
	}
	return model.Confidence >= floor
}

// policyEnv exposes a classification to the policy expression.
func policyEnv(c schema.Classification) map[string]any {
	return map[string]any{
		"action":     string(c.Action),
		"target":     c.Target,
		"confidence": c.Confidence,
		"source":     c.Source,
	}
}

// Unknown is the standardized guardrail fallback used when classification
// cannot proceed at all (e.g. empty normalized input). The reason travels
// in the target field.
func Unknown(reason string) schema.Classification {
	return schema.Classification{
		Action:     schema.ActionUnknown,
		Target:     reason,
		Parameters: map[string]any{},
		Confidence: 0.2,
		Source:     schema.SourceGuardrail,
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
