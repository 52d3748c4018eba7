package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// handleParse classifies one command and returns the intent.
func (s *IntentServer) handleParse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := req.RequireString("input")
	if err != nil {
		return mcp.NewToolResultError("input is required"), nil
	}

	intent := s.orch.ParseIntent(ctx, input)
	return marshalResult(intent)
}

// handleHistory lists recent intents, newest first.
func (s *IntentServer) handleHistory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := intArg(req, "limit", 0)

	intents := s.orch.Recent(limit)
	return marshalResult(map[string]any{
		"intents": intents,
		"count":   len(intents),
	})
}

// handleQuery filters the history with a CEL predicate.
func (s *IntentServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	predicate, err := req.RequireString("predicate")
	if err != nil {
		return mcp.NewToolResultError("predicate is required"), nil
	}

	matched, queryErr := s.orch.Query(ctx, predicate)
	if queryErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", queryErr)), nil
	}

	return marshalResult(map[string]any{
		"intents": matched,
		"count":   len(matched),
	})
}

// handleContext returns the last pipeline context, through an optional jq transform.
func (s *IntentServer) handleContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transform := req.GetString("transform", ".")

	out, err := s.orch.TransformLastContext(ctx, transform)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("context transform failed: %v", err)), nil
	}

	return marshalResult(out)
}

// intArg extracts an integer argument from a tool request. JSON numbers
// arrive as float64.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
