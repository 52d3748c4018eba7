package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-vs/orchestrator/pkg/schema"
)

func ruleResult(action schema.Action, target string, confidence float64) schema.Classification {
	return schema.Classification{
		Action:     action,
		Target:     target,
		Parameters: map[string]any{},
		Confidence: confidence,
		Source:     schema.SourceRule,
	}
}

func TestNormalize(t *testing.T) {
	t.Run("nil input", func(t *testing.T) {
		assert.Nil(t, Normalize(nil))
	})

	t.Run("missing action", func(t *testing.T) {
		assert.Nil(t, Normalize(map[string]any{"target": "blur"}))
	})

	t.Run("blank action", func(t *testing.T) {
		assert.Nil(t, Normalize(map[string]any{"action": "   "}))
	})

	t.Run("target lowercased and trimmed", func(t *testing.T) {
		got := Normalize(map[string]any{"action": "add_effect", "target": " BLUR "})
		require.NotNil(t, got)
		assert.Equal(t, "blur", got.Target)
		assert.Equal(t, schema.SourceLLM, got.Source)
	})

	t.Run("string parameters parsed", func(t *testing.T) {
		got := Normalize(map[string]any{
			"action":     "add_effect",
			"target":     "blur",
			"parameters": `{"intensity": 0.7}`,
		})
		require.NotNil(t, got)
		assert.Equal(t, 0.7, got.Parameters["intensity"])
	})

	t.Run("malformed parameters become empty", func(t *testing.T) {
		got := Normalize(map[string]any{
			"action":     "add_effect",
			"parameters": `{broken`,
		})
		require.NotNil(t, got)
		assert.Empty(t, got.Parameters)
	})

	t.Run("non-object parameters become empty", func(t *testing.T) {
		got := Normalize(map[string]any{
			"action":     "add_effect",
			"parameters": `[1, 2]`,
		})
		require.NotNil(t, got)
		assert.Empty(t, got.Parameters)
	})

	t.Run("missing confidence defaults to 0.5", func(t *testing.T) {
		got := Normalize(map[string]any{"action": "help"})
		require.NotNil(t, got)
		assert.Equal(t, 0.5, got.Confidence)
	})

	t.Run("non-numeric confidence clamps to zero", func(t *testing.T) {
		got := Normalize(map[string]any{"action": "help", "confidence": "very sure"})
		require.NotNil(t, got)
		assert.Equal(t, 0.0, got.Confidence)
	})

	t.Run("out-of-range confidence clamps", func(t *testing.T) {
		got := Normalize(map[string]any{"action": "help", "confidence": 1.8})
		require.NotNil(t, got)
		assert.Equal(t, 1.0, got.Confidence)
	})
}

func TestMerge_NoModelIsIdempotent(t *testing.T) {
	m := NewMerger("", nil)
	rule := ruleResult(schema.ActionAddEffect, "blur", 0.7)

	got := m.Merge(context.Background(), nil, rule)
	assert.Equal(t, rule, got)

	// A second pass changes nothing.
	again := m.Merge(context.Background(), nil, got)
	assert.Equal(t, got, again)
}

func TestMerge_AdoptsConfidentValidModel(t *testing.T) {
	m := NewMerger("", nil)
	rule := ruleResult(schema.ActionUnknown, "", 0.5)
	model := &schema.Classification{
		Action:     schema.ActionSetRenderMode,
		Target:     "depth_map",
		Parameters: map[string]any{},
		Confidence: 0.9,
		Source:     schema.SourceLLM,
	}

	got := m.Merge(context.Background(), model, rule)
	assert.Equal(t, schema.ActionSetRenderMode, got.Action)
	assert.Equal(t, "depth_map", got.Target)
	assert.Equal(t, schema.SourceLLM, got.Source)
}

func TestMerge_RejectsInvalidEffectTarget(t *testing.T) {
	m := NewMerger("", nil)
	rule := ruleResult(schema.ActionAddEffect, "blur", 0.7)
	model := &schema.Classification{
		Action:     schema.ActionAddEffect,
		Target:     "notreal",
		Parameters: map[string]any{},
		Confidence: 0.9,
		Source:     schema.SourceLLM,
	}

	got := m.Merge(context.Background(), model, rule)
	assert.Equal(t, "blur", got.Target, "hallucinated target must not override the rule path")
	assert.Equal(t, schema.SourceRule, got.Source)
}

func TestMerge_RejectsUnknownAction(t *testing.T) {
	m := NewMerger("", nil)
	rule := ruleResult(schema.ActionHelp, "", 0.95)
	model := &schema.Classification{
		Action:     "fly_to_the_moon",
		Parameters: map[string]any{},
		Confidence: 0.99,
		Source:     schema.SourceLLM,
	}

	got := m.Merge(context.Background(), model, rule)
	assert.Equal(t, schema.ActionHelp, got.Action)
}

func TestMerge_ThresholdBoundaries(t *testing.T) {
	m := NewMerger("", nil)

	cases := []struct {
		name      string
		ruleConf  float64
		modelConf float64
		adopted   bool
	}{
		{"floor exactly met", 0.4, 0.55, true},
		{"below floor", 0.4, 0.54, false},
		{"within margin of strong rule", 0.95, 0.90, true},
		{"outside margin of strong rule", 0.95, 0.89, false},
		{"equal confidence", 0.7, 0.7, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := ruleResult(schema.ActionAddEffect, "blur", tc.ruleConf)
			model := &schema.Classification{
				Action:     schema.ActionSetRenderMode,
				Target:     "stylized",
				Parameters: map[string]any{},
				Confidence: tc.modelConf,
				Source:     schema.SourceLLM,
			}

			got := m.Merge(context.Background(), model, rule)
			if tc.adopted {
				assert.Equal(t, schema.SourceLLM, got.Source)
			} else {
				assert.Equal(t, schema.SourceRule, got.Source)
			}
		})
	}
}

func TestMerge_BrokenPolicyFallsBackToBuiltin(t *testing.T) {
	m := NewMerger(`llm.confidence +`, nil) // does not compile
	rule := ruleResult(schema.ActionUnknown, "", 0.5)
	model := &schema.Classification{
		Action:     schema.ActionHelp,
		Parameters: map[string]any{},
		Confidence: 0.9,
		Source:     schema.SourceLLM,
	}

	got := m.Merge(context.Background(), model, rule)
	assert.Equal(t, schema.ActionHelp, got.Action, "built-in threshold should still admit the model")

	model.Confidence = 0.3
	got = m.Merge(context.Background(), model, rule)
	assert.Equal(t, schema.ActionUnknown, got.Action, "built-in threshold should still reject the model")
}

func TestMerge_ClampsFinalConfidence(t *testing.T) {
	m := NewMerger("", nil)
	rule := ruleResult(schema.ActionHelp, "", 3.0)

	got := m.Merge(context.Background(), nil, rule)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestUnknown(t *testing.T) {
	got := Unknown("empty_input")
	assert.Equal(t, schema.ActionUnknown, got.Action)
	assert.Equal(t, "empty_input", got.Target)
	assert.Equal(t, 0.2, got.Confidence)
	assert.Equal(t, schema.SourceGuardrail, got.Source)
	assert.Empty(t, got.Parameters)
}
