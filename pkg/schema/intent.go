package schema

import "encoding/json"

// Action enumerates the intents the host application understands.
type Action string

const (
	ActionSetRenderMode   Action = "set_render_mode"
	ActionAddEffect       Action = "add_effect"
	ActionRemoveEffect    Action = "remove_effect"
	ActionAdjustParameter Action = "adjust_parameter"
	ActionCaptureFrame    Action = "capture_frame"
	ActionStartRecording  Action = "start_recording"
	ActionStopRecording   Action = "stop_recording"
	ActionReset           Action = "reset"
	ActionHelp            Action = "help"
	ActionUnknown         Action = "unknown"
)

// Actions lists every recognized action.
var Actions = []Action{
	ActionSetRenderMode,
	ActionAddEffect,
	ActionRemoveEffect,
	ActionAdjustParameter,
	ActionCaptureFrame,
	ActionStartRecording,
	ActionStopRecording,
	ActionReset,
	ActionHelp,
	ActionUnknown,
}

var validActions = func() map[Action]bool {
	m := make(map[Action]bool, len(Actions))
	for _, a := range Actions {
		m[a] = true
	}
	return m
}()

// ValidAction reports whether a is a member of the closed action vocabulary.
func ValidAction(a Action) bool { return validActions[a] }

// RenderMode enumerates the rendering styles of the host engine.
// Values match the engine-side definitions.
type RenderMode string

const (
	RenderModePassthrough RenderMode = "passthrough"
	RenderModeStylized    RenderMode = "stylized"
	RenderModeSegmented   RenderMode = "segmented"
	RenderModeDepthMap    RenderMode = "depth_map"
	RenderModeNormalMap   RenderMode = "normal_map"
)

// RenderModes lists every render mode in declaration order.
var RenderModes = []RenderMode{
	RenderModePassthrough,
	RenderModeStylized,
	RenderModeSegmented,
	RenderModeDepthMap,
	RenderModeNormalMap,
}

var validModes = func() map[string]bool {
	m := make(map[string]bool, len(RenderModes))
	for _, rm := range RenderModes {
		m[string(rm)] = true
	}
	return m
}()

// ValidRenderMode reports whether target names a render mode.
func ValidRenderMode(target string) bool { return validModes[target] }

// Effect enumerates the post-processing effects of the host engine.
type Effect string

const (
	EffectBlur                Effect = "blur"
	EffectBloom               Effect = "bloom"
	EffectColorGrade          Effect = "color_grade"
	EffectVignette            Effect = "vignette"
	EffectChromaticAberration Effect = "chromatic_aberration"
	EffectNoise               Effect = "noise"
	EffectSharpen             Effect = "sharpen"
)

// Effects lists every effect in declaration order.
var Effects = []Effect{
	EffectBlur,
	EffectBloom,
	EffectColorGrade,
	EffectVignette,
	EffectChromaticAberration,
	EffectNoise,
	EffectSharpen,
}

var validEffects = func() map[string]bool {
	m := make(map[string]bool, len(Effects))
	for _, e := range Effects {
		m[string(e)] = true
	}
	return m
}()

// ValidEffect reports whether target names an effect.
func ValidEffect(target string) bool { return validEffects[target] }

// ClampConfidence clamps a confidence value into [0.0, 1.0].
// NaN clamps to 0.
func ClampConfidence(v float64) float64 {
	if !(v > 0) { // also catches NaN
		return 0.0
	}
	if v > 1 {
		return 1.0
	}
	return v
}

// Intent is the structured result handed back to the host application.
//
// Parameters is a JSON-encoded string rather than a nested object. The
// Kotlin/C++ consumer deserializes into a fixed struct whose parameters
// field is a string, so the double encoding is part of the wire contract.
type Intent struct {
	Action     Action  `json:"action"`
	Target     string  `json:"target"`
	Parameters string  `json:"parameters"`
	Confidence float64 `json:"confidence"`
	Timestamp  int64   `json:"timestamp"`
}

// JSON serializes the intent for the host boundary.
func (i Intent) JSON() (string, error) {
	data, err := json.Marshal(i)
	if err != nil {
		return "", NewError(ErrCodeExecution, "marshal intent").WithCause(err)
	}
	return string(data), nil
}

// Classification sources.
const (
	SourceRule      = "rule"
	SourceLLM       = "llm"
	SourceGuardrail = "guardrail"
)

// Classification is the intermediate record produced by the rule and model
// paths before merging. It never leaves the pipeline.
type Classification struct {
	Action     Action         `json:"action"`
	Target     string         `json:"target"`
	Parameters map[string]any `json:"parameters"`
	Confidence float64        `json:"confidence"`
	Source     string         `json:"source"`
}

// Clone returns a deep-enough copy: the parameters map is copied so the
// merge engine can start from the rule record without aliasing it.
func (c Classification) Clone() Classification {
	out := c
	if c.Parameters != nil {
		out.Parameters = make(map[string]any, len(c.Parameters))
		for k, v := range c.Parameters {
			out.Parameters[k] = v
		}
	}
	return out
}
