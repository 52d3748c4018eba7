// luminad runs the intent orchestrator as an MCP stdio server, or as a
// one-shot classifier for scripting.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lumina-vs/orchestrator/internal/logging"
	"github.com/lumina-vs/orchestrator/internal/scheduler"
	"github.com/lumina-vs/orchestrator/pkg/mcp"
	"github.com/lumina-vs/orchestrator/pkg/orchestrator"
)

func main() {
	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(cfg, logger)
	case "parse":
		if len(os.Args) < 3 {
			err = fmt.Errorf("usage: luminad parse <text>")
		} else {
			err = runParse(cfg, logger, strings.Join(os.Args[2:], " "))
		}
	case "version":
		printVersion()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\nusage: luminad [serve|parse <text>|version]\n", cmd)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("luminad exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newLogger writes to stderr; stdout belongs to the MCP transport.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}

func orchestratorConfig(cfg Config, logger *slog.Logger) orchestrator.Config {
	oc := orchestrator.DefaultConfig()
	oc.ModelBaseURL = cfg.ModelURL
	oc.IntentLogPath = cfg.IntentLogPath
	oc.HistorySize = cfg.HistorySize
	oc.TelemetryEnabled = cfg.Telemetry
	oc.Logger = logger
	return oc
}

// runServe starts the MCP stdio server and the maintenance scheduler, and
// blocks until the transport closes or a signal arrives.
func runServe(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := orchestrator.New(orchestratorConfig(cfg, logger))
	if err != nil {
		return err
	}
	defer func() { _ = orch.Shutdown() }()

	if err := orch.Initialize(ctx, cfg.AssetsPath); err != nil {
		return err
	}

	if log := orch.Log(); log != nil {
		sched := scheduler.New(logger)
		if err := sched.AddJob(scheduler.Job{Name: "prune", Cron: cfg.PruneCron, Run: func(ctx context.Context) error {
			removed, err := log.Prune(ctx, cfg.PruneKeep)
			if err == nil && removed > 0 {
				logger.Info("pruned intent log", slog.Int64("removed", removed))
			}
			return err
		}}); err != nil {
			return err
		}
		if err := sched.AddJob(scheduler.Job{Name: "vacuum", Cron: cfg.VacuumCron, Run: log.Vacuum}); err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = sched.Stop() }()
	}

	srv := mcp.NewIntentServer(mcp.IntentServerDeps{
		Orchestrator: orch,
		Logger:       logger,
	})
	logger.Info("luminad serving MCP over stdio")
	return srv.Serve(ctx)
}

// runParse classifies one command and prints the intent JSON to stdout.
func runParse(cfg Config, logger *slog.Logger, text string) error {
	oc := orchestratorConfig(cfg, logger)
	oc.IntentLogPath = "" // one-shot, no persistence

	orch, err := orchestrator.New(oc)
	if err != nil {
		return err
	}
	defer func() { _ = orch.Shutdown() }()

	ctx := context.Background()
	if err := orch.Initialize(ctx, cfg.AssetsPath); err != nil {
		return err
	}

	out, err := orch.ParseIntentJSON(ctx, text)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
