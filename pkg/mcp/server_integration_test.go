package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestServer_HTTPToolCallIsLogged verifies that a tool call arriving over
// the streamable HTTP transport reaches the handler and the tool-call hooks.
func TestServer_HTTPToolCallIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := NewServer("test-server", "1.0.0", zap.New(core))

	var receivedTable string
	tool := mcp.NewTool("echo-table", mcp.WithString("table"))
	s.RegisterTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		receivedTable = req.GetString("table", "")
		return mcp.NewToolResultText("ok"), nil
	})

	httpServer := s.NewStreamableHTTPServer()

	toolCallRequest := map[string]any{
		"jsonrpc": "2.0",
		"method":  "tools/call",
		"params": map[string]any{
			"name":      "echo-table",
			"arguments": map[string]any{"table": "raw_orders"},
		},
		"id": 1,
	}
	body, _ := json.Marshal(toolCallRequest)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	httpServer.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if receivedTable != "raw_orders" {
		t.Errorf("expected handler to receive table raw_orders, got %q", receivedTable)
	}
	if logs.FilterMessage("MCP tool call").Len() != 1 {
		t.Errorf("expected one tool call log entry, got %d", logs.FilterMessage("MCP tool call").Len())
	}
}
