package modelrunner

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Default asset file names, matching what the host application ships.
const (
	ModelFileName   = "qwen-2.5-1.5b-instruct-q4_k_m.gguf"
	GrammarFileName = "qwen_grammar.gbnf"
)

// DiscoverAssets looks for the model and grammar files under assetsPath.
// Absence of either is not an error: the orchestrator degrades to rule-only
// mode without a model, and the runner works without a grammar.
func DiscoverAssets(assetsPath string, logger *slog.Logger) Assets {
	if logger == nil {
		logger = slog.Default()
	}

	var assets Assets

	modelPath := filepath.Join(assetsPath, ModelFileName)
	if _, err := os.Stat(modelPath); err == nil {
		assets.ModelPath = modelPath
	} else {
		logger.Info("model file not found, running in rule-only mode",
			slog.String("path", modelPath))
	}

	grammarPath := filepath.Join(assetsPath, GrammarFileName)
	if data, err := os.ReadFile(grammarPath); err == nil {
		assets.GrammarPath = grammarPath
		assets.Grammar = string(data)
	}

	return assets
}
