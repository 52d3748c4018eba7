// Package mcp exposes the orchestrator over the Model Context Protocol so
// agents can parse commands and inspect the intent history over stdio.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lumina-vs/orchestrator/pkg/orchestrator"
)

// IntentServerDeps holds the dependencies for creating an IntentServer.
type IntentServerDeps struct {
	Orchestrator *orchestrator.Orchestrator
	Logger       *slog.Logger
}

// IntentServer wraps an MCP server with intent-specific tool handlers.
type IntentServer struct {
	orch      *orchestrator.Orchestrator
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewIntentServer creates a new IntentServer with all 4 tools registered.
func NewIntentServer(deps IntentServerDeps) *IntentServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &IntentServer{
		orch:   deps.Orchestrator,
		logger: logger,
	}

	mcpSrv := server.NewMCPServer(
		"lumina-intent",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Lumina's intent orchestrator turns natural-language video-effect commands into structured intents. Use intent.parse to classify a command, intent.history to list recent intents, intent.query to filter them with a CEL predicate, and intent.context to inspect the last pipeline run."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *IntentServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *IntentServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 4 registered MCP tools as ServerTool entries.
func (s *IntentServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: parseTool(), Handler: s.handleParse},
		{Tool: historyTool(), Handler: s.handleHistory},
		{Tool: queryTool(), Handler: s.handleQuery},
		{Tool: contextTool(), Handler: s.handleContext},
	}
}

// --- Tool definitions ---

func parseTool() mcp.Tool {
	return mcp.NewTool("intent.parse",
		mcp.WithDescription("Classify a natural-language command into a structured intent"),
		mcp.WithString("input", mcp.Required(), mcp.Description("The command text, e.g. \"add a subtle blur\"")),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("intent.history",
		mcp.WithDescription("List recent intents, newest first"),
		mcp.WithNumber("limit", mcp.Description("Max entries to return (default: all buffered)")),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("intent.query",
		mcp.WithDescription("Filter the intent history with a CEL predicate over the `intent` variable"),
		mcp.WithString("predicate", mcp.Required(),
			mcp.Description("CEL boolean expression, e.g. intent.action == \"add_effect\" && intent.confidence >= 0.7"),
		),
	)
}

func contextTool() mcp.Tool {
	return mcp.NewTool("intent.context",
		mcp.WithDescription("Inspect the last pipeline context, optionally reshaped with a jq expression"),
		mcp.WithString("transform", mcp.Description("jq expression applied to the context snapshot (default: .)")),
	)
}
