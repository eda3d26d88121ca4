package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type healthResult struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Storage string `json:"storage"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status, version and configured storage
// backend ("none" when ingest and profiling are disabled).
func RegisterHealthTool(s *server.MCPServer, version, storageType string) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status, version and storage backend"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	if storageType == "" {
		storageType = "none"
	}

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := json.Marshal(healthResult{Status: "ok", Version: version, Storage: storageType})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}
