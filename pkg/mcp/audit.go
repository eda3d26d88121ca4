package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/logging"
)

// maxParamLength bounds how much of a string argument is logged.
const maxParamLength = 256

// maxPreviewLength bounds the result preview.
const maxPreviewLength = 200

// sensitiveParamFragments mark argument keys whose values are hashed.
var sensitiveParamFragments = []string{"password", "secret", "token", "api_key", "apikey", "dsn", "credential"}

// ToolCallLogger writes one structured log entry per MCP tool call.
type ToolCallLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewToolCallLogger creates a ToolCallLogger.
func NewToolCallLogger(logger *zap.Logger) *ToolCallLogger {
	return &ToolCallLogger{logger: logger.Named("mcp-tools")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (l *ToolCallLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(l.beforeCallTool)
	hooks.AddAfterCallTool(l.afterCallTool)
	hooks.AddOnError(l.onError)
	return hooks
}

func (l *ToolCallLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	l.startTimes.Store(id, time.Now())
}

func (l *ToolCallLogger) afterCallTool(_ context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	started := l.loadAndDeleteStart(id)

	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.Duration("duration", time.Since(started)),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
	}
	summary := summarizeResult(result)
	if summary != nil {
		fields = append(fields, zap.Any("result", summary))
	}

	// Tool-level errors are answers to bad input, not server faults.
	if result != nil && result.IsError {
		l.logger.Info("MCP tool returned error result", fields...)
		return
	}
	l.logger.Debug("MCP tool call", fields...)
}

func (l *ToolCallLogger) onError(_ context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	started := l.loadAndDeleteStart(id)
	l.logger.Error("MCP tool call failed",
		zap.String("tool", req.Params.Name),
		zap.Duration("duration", time.Since(started)),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
		zap.String("error", logging.SanitizeError(err)))
}

func (l *ToolCallLogger) loadAndDeleteStart(id any) time.Time {
	if v, ok := l.startTimes.LoadAndDelete(id); ok {
		return v.(time.Time)
	}
	return time.Now()
}

// sanitizeParams prepares tool arguments for logging: sensitive keys are
// hashed and long strings truncated.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(k, v)
	}
	return sanitized
}

func sanitizeValue(key string, value any) any {
	if isSensitiveParam(key) {
		return hashSensitiveValue(value)
	}

	switch val := value.(type) {
	case string:
		return logging.TruncateString(val, maxParamLength)
	case map[string]any:
		return sanitizeParams(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(key, item)
		}
		return out
	default:
		return value
	}
}

func isSensitiveParam(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveParamFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// hashSensitiveValue returns a SHA-256 prefix so repeated values can be
// correlated without logging them.
func hashSensitiveValue(value any) string {
	var str string
	switch v := value.(type) {
	case string:
		str = v
	default:
		str = fmt.Sprintf("%v", v)
	}
	hash := sha256.Sum256([]byte(str))
	return "sha256:" + hex.EncodeToString(hash[:8])
}

// summarizeResult creates a compact summary of the tool result.
func summarizeResult(result *mcplib.CallToolResult) map[string]any {
	if result == nil {
		return nil
	}

	summary := map[string]any{
		"is_error": result.IsError,
	}

	if len(result.Content) > 0 {
		summary["content_count"] = len(result.Content)
		for _, c := range result.Content {
			if tc, ok := c.(mcplib.TextContent); ok {
				extractCount(tc.Text, summary)
				summary["preview"] = logging.TruncateString(tc.Text, maxPreviewLength)
				break
			}
		}
	}

	return summary
}

// extractCount copies the count field of a list response into the summary.
func extractCount(text string, summary map[string]any) {
	var partial struct {
		Count *int `json:"count"`
	}
	if err := json.Unmarshal([]byte(text), &partial); err == nil && partial.Count != nil {
		summary["count"] = *partial.Count
	}
}
