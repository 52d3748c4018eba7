// Package classify implements the deterministic rule path and the
// merge/guardrail engine that reconciles it with the model path.
package classify

import (
	"strings"

	"github.com/lumina-vs/orchestrator/pkg/schema"
)

// keywordTable maps one target to its trigger keywords. Tables are ordered
// slices: several keywords are ambiguous across categories ("normal" is both
// a render mode and an intensity adjective), so a fixed iteration order is
// what makes classification deterministic.
type keywordTable struct {
	target   string
	keywords []string
}

var renderModeKeywords = []keywordTable{
	{string(schema.RenderModePassthrough), []string{"normal", "passthrough", "original", "clear"}},
	{string(schema.RenderModeStylized), []string{"stylize", "artistic", "style", "paint"}},
	{string(schema.RenderModeSegmented), []string{"segment", "separate", "isolate", "mask"}},
	{string(schema.RenderModeDepthMap), []string{"depth", "3d", "distance"}},
	{string(schema.RenderModeNormalMap), []string{"normal", "surface", "bumps"}},
}

var effectKeywords = []keywordTable{
	{string(schema.EffectBlur), []string{"blur", "soft", "smooth", "fuzzy"}},
	{string(schema.EffectBloom), []string{"bloom", "glow", "dreamy", "ethereal"}},
	{string(schema.EffectColorGrade), []string{"color", "grade", "tint", "warm", "cool"}},
	{string(schema.EffectVignette), []string{"vignette", "border", "frame", "dark edges"}},
	{string(schema.EffectChromaticAberration), []string{"chromatic", "rgb split", "glitch"}},
	{string(schema.EffectNoise), []string{"noise", "grain", "film", "vintage"}},
	{string(schema.EffectSharpen), []string{"sharpen", "crisp", "detail", "enhance"}},
}

var (
	captureKeywords = []string{"capture", "screenshot", "photo", "snap"}
	recordKeywords  = []string{"record", "start recording", "video"}
	stopKeywords    = []string{"stop", "end recording"}
	resetKeywords   = []string{"reset", "clear", "default"}
	helpKeywords    = []string{"help", "what can", "how to"}
)

// Classify runs keyword classification over already-normalized text.
// Priority is render mode > effect > control words; the first match wins
// with no fallthrough. Unmatched text yields unknown at confidence 0.5.
func Classify(normalized string) schema.Classification {
	result := schema.Classification{
		Action:     schema.ActionUnknown,
		Parameters: map[string]any{},
		Confidence: 0.5,
		Source:     schema.SourceRule,
	}

	for _, table := range renderModeKeywords {
		if containsAny(normalized, table.keywords) {
			result.Action = schema.ActionSetRenderMode
			result.Target = table.target
			result.Confidence = 0.75
			return result
		}
	}

	for _, table := range effectKeywords {
		if containsAny(normalized, table.keywords) {
			if strings.Contains(normalized, "remove") || strings.Contains(normalized, "off") {
				result.Action = schema.ActionRemoveEffect
			} else {
				result.Action = schema.ActionAddEffect
			}
			result.Target = table.target
			result.Confidence = 0.7

			if intensity, ok := ExtractIntensity(normalized); ok {
				result.Parameters["intensity"] = intensity
			}
			return result
		}
	}

	// Control words form an exclusive chain, not independent rules.
	switch {
	case containsAny(normalized, captureKeywords):
		result.Action = schema.ActionCaptureFrame
		result.Confidence = 0.9
	case containsAny(normalized, recordKeywords):
		result.Action = schema.ActionStartRecording
		result.Confidence = 0.85
	case containsAny(normalized, stopKeywords):
		result.Action = schema.ActionStopRecording
		result.Confidence = 0.85
	case containsAny(normalized, resetKeywords):
		result.Action = schema.ActionReset
		result.Confidence = 0.9
	case containsAny(normalized, helpKeywords):
		result.Action = schema.ActionHelp
		result.Confidence = 0.95
	}

	return result
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
