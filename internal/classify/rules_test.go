package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lumina-vs/orchestrator/pkg/schema"
)

func TestClassify_RenderModes(t *testing.T) {
	cases := []struct {
		text   string
		target string
	}{
		{"show me the depth map", "depth_map"},
		{"make it artistic", "stylized"},
		{"back to the original view", "passthrough"},
		{"isolate the subject", "segmented"},
		{"show surface bumps", "normal_map"},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got := Classify(tc.text)
			assert.Equal(t, schema.ActionSetRenderMode, got.Action)
			assert.Equal(t, tc.target, got.Target)
			assert.Equal(t, 0.75, got.Confidence)
			assert.Equal(t, schema.SourceRule, got.Source)
		})
	}
}

func TestClassify_Effects(t *testing.T) {
	got := Classify("make it look dreamy")
	assert.Equal(t, schema.ActionAddEffect, got.Action)
	assert.Equal(t, "bloom", got.Target)
	assert.Equal(t, 0.7, got.Confidence)

	got = Classify("remove the grain")
	assert.Equal(t, schema.ActionRemoveEffect, got.Action)
	assert.Equal(t, "noise", got.Target)

	got = Classify("turn the glow off")
	assert.Equal(t, schema.ActionRemoveEffect, got.Action)
	assert.Equal(t, "bloom", got.Target)
}

func TestClassify_EffectWithIntensity(t *testing.T) {
	got := Classify("add subtle blur")
	assert.Equal(t, schema.ActionAddEffect, got.Action)
	assert.Equal(t, "blur", got.Target)
	assert.Equal(t, 0.3, got.Parameters["intensity"])

	got = Classify("add blur at 50%")
	assert.Equal(t, 0.5, got.Parameters["intensity"])

	got = Classify("add some blur")
	_, has := got.Parameters["intensity"]
	assert.False(t, has, "no intensity requested, none should be attached")
}

func TestClassify_ControlChain(t *testing.T) {
	cases := []struct {
		text       string
		action     schema.Action
		confidence float64
	}{
		{"take a screenshot", schema.ActionCaptureFrame, 0.9},
		{"record this", schema.ActionStartRecording, 0.85},
		{"stop", schema.ActionStopRecording, 0.85},
		{"reset everything", schema.ActionReset, 0.9},
		{"help", schema.ActionHelp, 0.95},
		{"what can i do here", schema.ActionHelp, 0.95},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got := Classify(tc.text)
			assert.Equal(t, tc.action, got.Action)
			assert.Equal(t, tc.confidence, got.Confidence)
			assert.Empty(t, got.Target)
		})
	}
}

// The chain is exclusive: "capture" outranks "record" even when both appear.
func TestClassify_ControlChainExclusive(t *testing.T) {
	got := Classify("capture a photo of the recording")
	assert.Equal(t, schema.ActionCaptureFrame, got.Action)
}

// Render modes outrank effects: "normal" resolves to passthrough even in
// text that also mentions an intensity adjective.
func TestClassify_PrecedenceRenderModeOverEffect(t *testing.T) {
	got := Classify("normal glow")
	assert.Equal(t, schema.ActionSetRenderMode, got.Action)
	assert.Equal(t, "passthrough", got.Target)
}

func TestClassify_Unknown(t *testing.T) {
	got := Classify("do something mysterious")
	assert.Equal(t, schema.ActionUnknown, got.Action)
	assert.Equal(t, 0.5, got.Confidence)
	assert.Empty(t, got.Target)
	assert.Empty(t, got.Parameters)
}

func TestExtractIntensity(t *testing.T) {
	cases := []struct {
		text string
		want float64
		ok   bool
	}{
		{"add blur 50%", 0.5, true},
		{"30 % grain please", 0.3, true},
		{"blur at 120%", 1.2, true}, // raw ratio; clamping happens downstream
		{"a subtle touch", 0.3, true},
		{"something moderate", 0.5, true},
		{"make it intense", 0.8, true},
		{"75% first, then 20%", 0.75, true},
		{"just blur", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got, ok := ExtractIntensity(tc.text)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}
