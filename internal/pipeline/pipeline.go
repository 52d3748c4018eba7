package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/lumina-vs/orchestrator/internal/classify"
	"github.com/lumina-vs/orchestrator/internal/graph"
	"github.com/lumina-vs/orchestrator/internal/logging"
	"github.com/lumina-vs/orchestrator/internal/modelrunner"
	"github.com/lumina-vs/orchestrator/pkg/schema"
)

// Tuning defaults. The skip threshold keeps the model out of the loop when
// the rule classifier is already confident; the length cap bounds work done
// per input.
const (
	DefaultRuleConfidenceSkipLLM  = 0.9
	DefaultMaxLLMTokens           = 96
	DefaultMaxNormalizedLength    = 512
	DefaultDefaultEffectIntensity = 0.5
)

// fillerPhrases are stripped from the normalized input before
// classification, in this order.
var fillerPhrases = []string{"please", "can you", "could you", "i want to", "i'd like to"}

// Config carries the per-pipeline tuning knobs. Zero values are replaced
// with the package defaults.
type Config struct {
	RuleConfidenceSkipLLM  float64
	MaxLLMTokens           int
	MaxNormalizedLength    int
	DefaultEffectIntensity float64
	TelemetryEnabled       bool
	AcceptPolicy           string
}

func (c Config) withDefaults() Config {
	if c.RuleConfidenceSkipLLM == 0 {
		c.RuleConfidenceSkipLLM = DefaultRuleConfidenceSkipLLM
	}
	if c.MaxLLMTokens == 0 {
		c.MaxLLMTokens = DefaultMaxLLMTokens
	}
	if c.MaxNormalizedLength == 0 {
		c.MaxNormalizedLength = DefaultMaxNormalizedLength
	}
	if c.DefaultEffectIntensity == 0 {
		c.DefaultEffectIntensity = DefaultDefaultEffectIntensity
	}
	if c.AcceptPolicy == "" {
		c.AcceptPolicy = classify.DefaultAcceptPolicy
	}
	return c
}

// Pipeline runs one input through the fixed five-node stage graph:
// preprocess, classify, extract, validate, finalize. A Pipeline is safe to
// reuse across calls; the caller serializes Run invocations.
type Pipeline struct {
	cfg       Config
	merger    *classify.Merger
	extractor *modelrunner.Extractor
	runner    modelrunner.Runner
	logger    *slog.Logger

	nodes map[string]graph.Node[*Context]
	order []string
}

// New builds a pipeline. runner may be nil, in which case classification is
// rule-only.
func New(cfg Config, runner modelrunner.Runner, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	extractor, err := modelrunner.NewExtractor()
	if err != nil {
		return nil, err
	}

	cfg = cfg.withDefaults()
	p := &Pipeline{
		cfg:       cfg,
		merger:    classify.NewMerger(cfg.AcceptPolicy, logger),
		extractor: extractor,
		runner:    runner,
		logger:    logger,
	}
	p.nodes = map[string]graph.Node[*Context]{
		"preprocess": {Name: "preprocess", Processor: p.preprocess},
		"classify":   {Name: "classify", Processor: p.classify, Dependencies: []string{"preprocess"}},
		"extract":    {Name: "extract", Processor: p.extract, Dependencies: []string{"classify"}},
		"validate":   {Name: "validate", Processor: p.validate, Dependencies: []string{"extract"}},
		"finalize":   {Name: "finalize", Processor: p.finalize, Dependencies: []string{"validate"}},
	}
	p.order = []string{"preprocess", "classify", "extract", "validate", "finalize"}
	if err := graph.Validate(p.nodes, p.order); err != nil {
		return nil, err
	}
	return p, nil
}

// SetRunner swaps the model runner. Callers must not have a Run in flight.
func (p *Pipeline) SetRunner(r modelrunner.Runner) {
	p.runner = r
}

// Config returns the effective configuration after defaults were applied.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Run executes all stages against a fresh context and returns it. The
// returned context carries the finalized Intent on success.
func (p *Pipeline) Run(ctx context.Context, input string, timestamp int64) (*Context, error) {
	state := NewContext(input, timestamp, p.cfg.TelemetryEnabled)
	return graph.Run(ctx, p.nodes, p.order, input, state)
}

// preprocess lowercases and trims the input, removes filler phrases, and
// truncates to the configured length cap.
func (p *Pipeline) preprocess(_ context.Context, input string, pc *Context) (*Context, error) {
	pc.OriginalInput = input
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, filler := range fillerPhrases {
		normalized = strings.TrimSpace(strings.ReplaceAll(normalized, filler, ""))
	}
	if runes := []rune(normalized); len(runes) > p.cfg.MaxNormalizedLength {
		normalized = string(runes[:p.cfg.MaxNormalizedLength])
		pc.Truncated = true
	}
	pc.NormalizedInput = normalized
	return pc, nil
}

// classify produces the merged classification. Empty input short-circuits
// to a guardrail record without touching the rule tables or the model. The
// model is consulted only when the rule classifier is below the skip
// threshold and a runner is present; a model failure is logged and the rule
// result stands.
func (p *Pipeline) classify(ctx context.Context, _ string, pc *Context) (*Context, error) {
	ctx = logging.WithNode(ctx, "classify")

	if pc.NormalizedInput == "" {
		guard := classify.Unknown("empty_input")
		pc.Classification = &guard
		pc.Confidence = guard.Confidence
		return pc, nil
	}

	rule := classify.Classify(pc.NormalizedInput)
	pc.RuleResult = &rule

	var model *schema.Classification
	if rule.Confidence < p.cfg.RuleConfidenceSkipLLM && p.runner != nil {
		raw, err := p.runner.Query(ctx, modelrunner.BuildPrompt(pc.NormalizedInput))
		if err != nil {
			logging.LogWith(ctx, p.logger).Warn("model query failed, keeping rule result",
				slog.String("error", err.Error()))
		} else if obj := p.extractor.Extract(raw); obj != nil {
			model = classify.Normalize(obj)
			pc.LLMResult = model
		}
	}

	merged := p.merger.Merge(ctx, model, rule)
	pc.Classification = &merged
	pc.Confidence = merged.Confidence
	return pc, nil
}

// extract flattens the winning classification into the top-level context
// fields. A missing parameter map becomes an empty one, and a parameter
// adjustment with no intensity receives the configured default.
func (p *Pipeline) extract(_ context.Context, _ string, pc *Context) (*Context, error) {
	cls := pc.Classification
	if cls == nil {
		guard := classify.Unknown("no_classification")
		cls = &guard
		pc.Classification = cls
	}
	pc.Action = cls.Action
	pc.Target = cls.Target
	if cls.Parameters != nil {
		pc.Parameters = cls.Parameters
	} else {
		pc.Parameters = map[string]any{}
	}
	if pc.Action == schema.ActionAdjustParameter {
		if _, ok := pc.Parameters["intensity"]; !ok {
			pc.Parameters["intensity"] = p.cfg.DefaultEffectIntensity
		}
	}
	pc.Confidence = cls.Confidence
	pc.Source = cls.Source
	return pc, nil
}

// validate demotes out-of-vocabulary actions to unknown (confidence capped
// at 0.3), caps confidence at 0.4 when a target fails its action's
// vocabulary, and clamps the final confidence into [0, 1].
func (p *Pipeline) validate(_ context.Context, _ string, pc *Context) (*Context, error) {
	if !schema.ValidAction(pc.Action) {
		pc.Action = schema.ActionUnknown
		if pc.Confidence > 0.3 {
			pc.Confidence = 0.3
		}
	}

	switch pc.Action {
	case schema.ActionSetRenderMode:
		if !schema.ValidRenderMode(pc.Target) {
			if pc.Confidence > 0.4 {
				pc.Confidence = 0.4
			}
		}
	case schema.ActionAddEffect, schema.ActionRemoveEffect:
		if !schema.ValidEffect(pc.Target) {
			if pc.Confidence > 0.4 {
				pc.Confidence = 0.4
			}
		}
	}

	pc.Confidence = schema.ClampConfidence(pc.Confidence)
	pc.Validated = true
	return pc, nil
}

// finalize serializes the parameters and assembles the immutable Intent.
func (p *Pipeline) finalize(_ context.Context, _ string, pc *Context) (*Context, error) {
	paramsJSON := "{}"
	if len(pc.Parameters) > 0 {
		if encoded, err := json.Marshal(pc.Parameters); err == nil {
			paramsJSON = string(encoded)
		}
	}

	ts := pc.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	pc.Intent = &schema.Intent{
		Action:     pc.Action,
		Target:     pc.Target,
		Parameters: paramsJSON,
		Confidence: pc.Confidence,
		Timestamp:  ts,
	}
	return pc, nil
}
