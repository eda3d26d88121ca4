package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedToolCallLogger() (*ToolCallLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewToolCallLogger(zap.New(core)), logs
}

func toolRequest(name string, args map[string]any) *mcplib.CallToolRequest {
	req := &mcplib.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func TestToolCallLogger_SuccessfulCall(t *testing.T) {
	l, logs := newObservedToolCallLogger()
	req := toolRequest("list_key_decisions", map[string]any{"table_a": "raw_orders"})

	l.beforeCallTool(context.Background(), 1, req)
	l.afterCallTool(context.Background(), 1, req, mcplib.NewToolResultText(`{"decisions":[],"count":0}`))

	entries := logs.FilterMessage("MCP tool call").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["tool"] != "list_key_decisions" {
		t.Errorf("expected tool field, got %v", fields["tool"])
	}
	if entries[0].LoggerName != "mcp-tools" {
		t.Errorf("expected logger name mcp-tools, got %q", entries[0].LoggerName)
	}

	if _, ok := l.startTimes.Load(1); ok {
		t.Error("expected start time to be removed after the call")
	}
}

func TestToolCallLogger_ErrorResultLoggedAtInfo(t *testing.T) {
	l, logs := newObservedToolCallLogger()
	req := toolRequest("get_key_candidates", map[string]any{"table": "raw_missing"})

	l.beforeCallTool(context.Background(), "abc", req)
	l.afterCallTool(context.Background(), "abc", req, mcplib.NewToolResultError(`{"error":true,"code":"not_found"}`))

	entries := logs.FilterMessage("MCP tool returned error result").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel {
		t.Errorf("expected info level, got %v", entries[0].Level)
	}
}

func TestToolCallLogger_OnError(t *testing.T) {
	l, logs := newObservedToolCallLogger()
	req := toolRequest("record_key_decision", nil)

	l.beforeCallTool(context.Background(), 7, req)
	l.onError(context.Background(), 7, mcplib.MethodToolsCall, req,
		errors.New("dial postgres://user:secret@db:5432/app failed"))

	entries := logs.FilterMessage("MCP tool call failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	msg, _ := entries[0].ContextMap()["error"].(string)
	if strings.Contains(msg, "secret") {
		t.Errorf("expected credentials to be redacted, got %q", msg)
	}
}

func TestToolCallLogger_OnErrorIgnoresOtherMethods(t *testing.T) {
	l, logs := newObservedToolCallLogger()

	l.onError(context.Background(), 1, mcplib.MethodToolsList, nil, errors.New("boom"))

	if logs.Len() != 0 {
		t.Errorf("expected no log entries, got %d", logs.Len())
	}
}

func TestToolCallLogger_Hooks(t *testing.T) {
	hooks := NewToolCallLogger(zap.NewNop()).Hooks()
	if len(hooks.OnBeforeCallTool) != 1 || len(hooks.OnAfterCallTool) != 1 || len(hooks.OnError) != 1 {
		t.Error("expected before, after and error hooks to be registered")
	}
}

func TestSanitizeParams_NilInput(t *testing.T) {
	if result := sanitizeParams(nil); result != nil {
		t.Errorf("expected nil for nil input, got %v", result)
	}
}

func TestSanitizeParams_TruncatesLongStrings(t *testing.T) {
	result := sanitizeParams(map[string]any{"justification": strings.Repeat("a", 1000)})

	val, ok := result["justification"].(string)
	if !ok {
		t.Fatal("expected justification to be a string")
	}
	if len(val) != maxParamLength+len("...") {
		t.Errorf("expected truncated length %d, got %d", maxParamLength+len("..."), len(val))
	}
}

func TestSanitizeParams_PreservesValues(t *testing.T) {
	result := sanitizeParams(map[string]any{
		"table_a":   "raw_orders",
		"is_key":    true,
		"columns_a": []any{"customer_id", "order_no"},
	})

	if result["table_a"] != "raw_orders" {
		t.Errorf("expected table_a to be preserved, got %v", result["table_a"])
	}
	if result["is_key"] != true {
		t.Errorf("expected is_key to be preserved, got %v", result["is_key"])
	}
	cols, ok := result["columns_a"].([]any)
	if !ok || len(cols) != 2 || cols[1] != "order_no" {
		t.Errorf("expected columns_a to be preserved, got %v", result["columns_a"])
	}
}

func TestSanitizeParams_HashesSensitiveKeys(t *testing.T) {
	result := sanitizeParams(map[string]any{
		"api_key": "sk-123",
		"nested":  map[string]any{"storage_dsn": "sqlserver://sa:pw@host"},
	})

	hashed, _ := result["api_key"].(string)
	if !strings.HasPrefix(hashed, "sha256:") || len(hashed) != len("sha256:")+16 {
		t.Errorf("expected sha256 prefix hash, got %q", hashed)
	}
	if hashed != hashSensitiveValue("sk-123") {
		t.Error("expected hash to be deterministic")
	}

	nested, ok := result["nested"].(map[string]any)
	if !ok {
		t.Fatal("expected nested map to be preserved")
	}
	if v, _ := nested["storage_dsn"].(string); !strings.HasPrefix(v, "sha256:") {
		t.Errorf("expected nested dsn to be hashed, got %q", v)
	}
}

func TestSummarizeResult(t *testing.T) {
	if summarizeResult(nil) != nil {
		t.Error("expected nil summary for nil result")
	}

	summary := summarizeResult(mcplib.NewToolResultText(`{"decisions":[],"count":3}`))
	if summary["is_error"] != false {
		t.Errorf("expected is_error false, got %v", summary["is_error"])
	}
	if summary["count"] != 3 {
		t.Errorf("expected count 3, got %v", summary["count"])
	}
	if summary["content_count"] != 1 {
		t.Errorf("expected content_count 1, got %v", summary["content_count"])
	}

	long := summarizeResult(mcplib.NewToolResultText(strings.Repeat("x", 500)))
	if preview, _ := long["preview"].(string); len(preview) != maxPreviewLength+len("...") {
		t.Errorf("expected truncated preview, got length %d", len(preview))
	}
	if _, ok := long["count"]; ok {
		t.Error("expected no count for non-JSON content")
	}
}
