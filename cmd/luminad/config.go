package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all luminad configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	AssetsPath    string `json:"assets_path"`
	ModelURL      string `json:"model_url"`
	IntentLogPath string `json:"intent_log_path"`
	LogLevel      string `json:"log_level"`
	HistorySize   int    `json:"history_size"`
	Telemetry     bool   `json:"telemetry"`
	PruneKeep     int    `json:"prune_keep"`
	PruneCron     string `json:"prune_cron"`
	VacuumCron    string `json:"vacuum_cron"`
}

func defaultConfig() Config {
	return Config{
		AssetsPath:    filepath.Join(luminaDir(), "assets"),
		IntentLogPath: "file:" + filepath.Join(luminaDir(), "intents.db"),
		LogLevel:      "info",
		HistorySize:   10,
		Telemetry:     true,
		PruneKeep:     1000,
		PruneCron:     "0 * * * *",
		VacuumCron:    "0 3 * * *",
	}
}

func luminaDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".luminad"
	}
	return filepath.Join(home, ".luminad")
}

func settingsPath() string {
	return filepath.Join(luminaDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("LUMINAD_ASSETS_PATH"); v != "" {
		cfg.AssetsPath = v
	}
	if v := os.Getenv("LUMINAD_MODEL_URL"); v != "" {
		cfg.ModelURL = v
	}
	if v := os.Getenv("LUMINAD_INTENT_LOG"); v != "" {
		cfg.IntentLogPath = v
	}
	if v := os.Getenv("LUMINAD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LUMINAD_HISTORY_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistorySize = n
		}
	}
	if v := os.Getenv("LUMINAD_TELEMETRY"); v != "" {
		cfg.Telemetry = v == "true" || v == "1"
	}
	if v := os.Getenv("LUMINAD_PRUNE_KEEP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PruneKeep = n
		}
	}

	return cfg
}
