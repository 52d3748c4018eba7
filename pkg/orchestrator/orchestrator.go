// Package orchestrator is the embeddable surface of the intent pipeline: a
// host application constructs one Orchestrator, optionally points it at the
// model assets, and feeds it natural-language commands. Every call returns
// a finalized Intent; classification failures of any kind degrade to an
// unknown intent instead of propagating.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumina-vs/orchestrator/internal/expressions"
	"github.com/lumina-vs/orchestrator/internal/history"
	"github.com/lumina-vs/orchestrator/internal/logging"
	"github.com/lumina-vs/orchestrator/internal/modelrunner"
	"github.com/lumina-vs/orchestrator/internal/pipeline"
	"github.com/lumina-vs/orchestrator/pkg/schema"
)

// Orchestrator wires the pipeline, the history, the model runner, and the
// query engines together behind one mutex. One instance serializes all
// parses; the stage order inside a parse is fixed, so there is never stage
// concurrency.
type Orchestrator struct {
	mu     sync.Mutex
	cfg    Config
	logger *slog.Logger

	pipeline *pipeline.Pipeline
	buffer   *history.Buffer
	log      *history.Log
	runner   modelrunner.Runner
	assets   modelrunner.Assets

	queryEngine *expressions.CELEngine
	jqEngine    *expressions.GoJQEngine

	lastContext *pipeline.Context
	closed      bool
}

// New builds an orchestrator in rule-only mode. Call Initialize to attach
// the model.
func New(cfg Config) (*Orchestrator, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p, err := pipeline.New(cfg.pipelineConfig(), nil, logger)
	if err != nil {
		return nil, err
	}
	queryEngine, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:         cfg,
		logger:      logger,
		pipeline:    p,
		buffer:      history.NewBuffer(cfg.HistorySize),
		queryEngine: queryEngine,
		jqEngine:    expressions.NewGoJQEngine(),
	}

	if cfg.IntentLogPath != "" {
		log, err := history.OpenLog(cfg.IntentLogPath)
		if err != nil {
			return nil, err
		}
		if err := log.Migrate(context.Background()); err != nil {
			_ = log.Close()
			return nil, err
		}
		o.log = log
	}

	return o, nil
}

// Initialize discovers model assets under assetsPath and attaches an HTTP
// runner when both the assets and a configured model endpoint are present.
// Missing assets are not an error: the orchestrator stays rule-only.
func (o *Orchestrator) Initialize(ctx context.Context, assetsPath string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.assets = modelrunner.DiscoverAssets(assetsPath, o.logger)
	if !o.assets.Available() {
		o.logger.Info("model assets not found, running rule-only",
			slog.String("assets_path", assetsPath))
		return nil
	}
	if o.cfg.ModelBaseURL == "" {
		o.logger.Info("no model endpoint configured, running rule-only")
		return nil
	}

	runner := modelrunner.NewHTTPRunner(modelrunner.HTTPRunnerConfig{
		BaseURL:   o.cfg.ModelBaseURL,
		MaxTokens: o.cfg.MaxLLMTokens,
		Grammar:   o.assets.Grammar,
		Timeout:   o.cfg.ModelTimeout,
	})
	o.attachRunner(runner)
	o.logger.Info("model runner attached", slog.String("runner", runner.String()))
	return nil
}

// SetRunner attaches an explicit runner (e.g. a mock), replacing any
// previous one.
func (o *Orchestrator) SetRunner(r modelrunner.Runner) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attachRunner(r)
}

func (o *Orchestrator) attachRunner(r modelrunner.Runner) {
	if o.runner != nil {
		_ = o.runner.Close()
	}
	o.runner = r
	o.pipeline.SetRunner(r)
}

// ParseIntent classifies one natural-language command. It never fails: any
// stage error or panic becomes an unknown intent with low confidence and
// the original timestamp, with the failure detail retained in the
// diagnostic last context. History is updated either way.
func (o *Orchestrator) ParseIntent(ctx context.Context, text string) schema.Intent {
	o.mu.Lock()
	defer o.mu.Unlock()

	requestID := uuid.NewString()
	ctx = logging.WithRequestID(ctx, requestID)
	timestamp := time.Now().UnixMilli()

	intent, pc := o.runGuarded(ctx, text, timestamp)
	o.lastContext = pc
	o.buffer.Append(intent)

	if o.log != nil {
		rec := &history.Record{
			RequestID: requestID,
			Input:     text,
			Intent:    intent,
			Source:    pc.Source,
		}
		if err := o.log.Append(ctx, rec); err != nil {
			logging.LogWith(ctx, o.logger).Warn("intent log append failed",
				slog.String("error", err.Error()))
		}
	}

	return intent
}

// runGuarded is the outer guard: it converts stage errors and panics into
// the fallback intent so the caller never sees a propagated failure.
func (o *Orchestrator) runGuarded(ctx context.Context, text string, timestamp int64) (intent schema.Intent, pc *pipeline.Context) {
	defer func() {
		if r := recover(); r != nil {
			logging.LogWith(ctx, o.logger).Error("pipeline panicked",
				slog.Any("panic", r))
			if pc == nil {
				pc = pipeline.NewContext(text, timestamp, false)
			}
			pc.Err = fmt.Sprint(r)
			intent = fallbackIntent(timestamp)
			pc.Intent = &intent
		}
	}()

	pc, err := o.pipeline.Run(ctx, text, timestamp)
	if err != nil {
		logging.LogWith(ctx, o.logger).Error("pipeline failed",
			slog.String("error", err.Error()))
		pc.Err = err.Error()
		intent = fallbackIntent(timestamp)
		pc.Intent = &intent
		return intent, pc
	}
	if pc.Intent == nil {
		pc.Err = "pipeline produced no intent"
		intent = fallbackIntent(timestamp)
		pc.Intent = &intent
		return intent, pc
	}
	return *pc.Intent, pc
}

// fallbackIntent is what the host sees when the pipeline itself broke.
func fallbackIntent(timestamp int64) schema.Intent {
	return schema.Intent{
		Action:     schema.ActionUnknown,
		Target:     "internal_error",
		Parameters: "{}",
		Confidence: 0.1,
		Timestamp:  timestamp,
	}
}

// ParseIntentJSON parses and serializes in one step. The parameters field
// of the result is a JSON string inside the JSON document; the host
// contract wants the double encoding.
func (o *Orchestrator) ParseIntentJSON(ctx context.Context, text string) (string, error) {
	intent := o.ParseIntent(ctx, text)
	return intent.JSON()
}

// History returns the buffered intents, oldest first.
func (o *Orchestrator) History() []schema.Intent {
	return o.buffer.All()
}

// Recent returns up to n buffered intents, newest first.
func (o *Orchestrator) Recent(n int) []schema.Intent {
	return o.buffer.Recent(n)
}

// Log returns the persistent intent log, or nil when persistence is off.
func (o *Orchestrator) Log() *history.Log {
	return o.log
}

// LastContext returns a snapshot of the most recent pipeline context, or
// nil before the first parse.
func (o *Orchestrator) LastContext() map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastContext == nil {
		return nil
	}
	return o.lastContext.Snapshot()
}

// TransformLastContext runs a jq expression over the last context snapshot.
func (o *Orchestrator) TransformLastContext(ctx context.Context, expression string) (any, error) {
	snap := o.LastContext()
	if snap == nil {
		return nil, schema.NewError(schema.ErrCodeNotFound, "no pipeline context recorded yet")
	}
	return o.jqEngine.Evaluate(ctx, expression, snap)
}

// Query filters the buffered history with a CEL predicate. The expression
// sees one variable, `intent`, with action, target, parameters (decoded),
// confidence, and timestamp fields.
func (o *Orchestrator) Query(ctx context.Context, predicate string) ([]schema.Intent, error) {
	matched := []schema.Intent{}
	for _, intent := range o.buffer.All() {
		out, err := o.queryEngine.Evaluate(ctx, predicate, map[string]any{
			"intent": intentEnv(intent),
		})
		if err != nil {
			return nil, err
		}
		keep, ok := out.(bool)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"query predicate %q must return a boolean, got %T", predicate, out)
		}
		if keep {
			matched = append(matched, intent)
		}
	}
	return matched, nil
}

// intentEnv exposes an intent to a CEL predicate, with the parameters
// string decoded back into a map.
func intentEnv(intent schema.Intent) map[string]any {
	params := map[string]any{}
	if intent.Parameters != "" {
		_ = json.Unmarshal([]byte(intent.Parameters), &params)
	}
	return map[string]any{
		"action":     string(intent.Action),
		"target":     intent.Target,
		"parameters": params,
		"confidence": intent.Confidence,
		"timestamp":  intent.Timestamp,
	}
}

// Shutdown releases the model runner and the intent log. Idempotent.
func (o *Orchestrator) Shutdown() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true

	if o.runner != nil {
		_ = o.runner.Close()
		o.runner = nil
		o.pipeline.SetRunner(nil)
	}
	if o.log != nil {
		if err := o.log.Close(); err != nil {
			return err
		}
	}
	o.logger.Info("orchestrator shut down")
	return nil
}
