package orchestrator

import (
	"log/slog"
	"time"

	"github.com/lumina-vs/orchestrator/internal/classify"
	"github.com/lumina-vs/orchestrator/internal/history"
	"github.com/lumina-vs/orchestrator/internal/pipeline"
)

// Config is the construction-time configuration for an Orchestrator.
// Defaults come from DefaultConfig; New rejects nothing and fixes up
// non-positive values there.
type Config struct {
	// RuleConfidenceSkipLLM is the rule confidence at or above which the
	// model is not consulted.
	RuleConfidenceSkipLLM float64

	// MaxLLMTokens caps one completion.
	MaxLLMTokens int

	// MaxNormalizedLength truncates normalized input beyond this many
	// characters.
	MaxNormalizedLength int

	// DefaultEffectIntensity fills in parameter adjustments that name no
	// intensity.
	DefaultEffectIntensity float64

	// TelemetryEnabled turns per-node timing collection on.
	TelemetryEnabled bool

	// HistorySize bounds the in-memory intent history.
	HistorySize int

	// AcceptPolicy overrides the merge acceptance expression. Leave empty
	// for the built-in threshold.
	AcceptPolicy string

	// ModelBaseURL points at a llama.cpp server. Empty leaves the
	// orchestrator in rule-only mode regardless of discovered assets.
	ModelBaseURL string

	// ModelTimeout bounds one completion round-trip. Zero means the runner
	// default.
	ModelTimeout time.Duration

	// IntentLogPath is an optional libSQL URI (e.g. "file:/data/intents.db")
	// for the persistent intent log. Empty disables persistence.
	IntentLogPath string

	// Logger receives structured logs. Nil falls back to slog.Default.
	Logger *slog.Logger
}

// DefaultConfig returns the stock configuration: skip threshold 0.9, 96
// completion tokens, 512-character input cap, default intensity 0.5,
// telemetry on, history of 10.
func DefaultConfig() Config {
	return Config{
		RuleConfidenceSkipLLM:  pipeline.DefaultRuleConfidenceSkipLLM,
		MaxLLMTokens:           pipeline.DefaultMaxLLMTokens,
		MaxNormalizedLength:    pipeline.DefaultMaxNormalizedLength,
		DefaultEffectIntensity: pipeline.DefaultDefaultEffectIntensity,
		TelemetryEnabled:       true,
		HistorySize:            history.DefaultMaxEntries,
		AcceptPolicy:           classify.DefaultAcceptPolicy,
	}
}

func (c Config) pipelineConfig() pipeline.Config {
	return pipeline.Config{
		RuleConfidenceSkipLLM:  c.RuleConfidenceSkipLLM,
		MaxLLMTokens:           c.MaxLLMTokens,
		MaxNormalizedLength:    c.MaxNormalizedLength,
		DefaultEffectIntensity: c.DefaultEffectIntensity,
		TelemetryEnabled:       c.TelemetryEnabled,
		AcceptPolicy:           c.AcceptPolicy,
	}
}
