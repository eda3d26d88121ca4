package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// MaxMCPRequestBytes bounds the JSON-RPC request body accepted on /mcp.
const MaxMCPRequestBytes = 1 << 20

// MCPRequestLogger returns middleware that logs one entry per MCP JSON-RPC
// exchange: method, tool name, JSON-RPC error code and duration. Tool
// arguments are logged by the MCP server's tool-call hooks, not here.
// Bodies larger than MaxMCPRequestBytes are rejected with 413.
// Pass nil logger to disable logging.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}
		logger = logger.Named("mcp-http")

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, MaxMCPRequestBytes+1))
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			if len(bodyBytes) > MaxMCPRequestBytes {
				logger.Warn("MCP request body too large",
					zap.String("remote_addr", r.RemoteAddr),
					zap.Int("limit", MaxMCPRequestBytes))
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			// Invalid JSON is still forwarded; the server answers with a parse error.
			var rpcReq jsonRPCRequest
			if err := json.Unmarshal(bodyBytes, &rpcReq); err != nil {
				logger.Debug("Failed to parse MCP request JSON", zap.Error(err))
			}

			recorder := &mcpResponseRecorder{
				ResponseWriter: w,
				body:           &bytes.Buffer{},
				statusCode:     http.StatusOK,
			}
			start := time.Now()
			next.ServeHTTP(recorder, r)

			fields := []zap.Field{
				zap.String("method", rpcReq.Method),
				zap.Int("status", recorder.statusCode),
				zap.Duration("duration", time.Since(start)),
			}
			if rpcReq.Params.Name != "" {
				fields = append(fields, zap.String("tool", rpcReq.Params.Name))
			}

			var rpcResp jsonRPCResponse
			if err := json.Unmarshal(recorder.body.Bytes(), &rpcResp); err == nil && rpcResp.Error != nil {
				fields = append(fields,
					zap.Int("error_code", rpcResp.Error.Code),
					zap.String("error_message", rpcResp.Error.Message))
				logger.Info("MCP request failed", fields...)
				return
			}
			logger.Debug("MCP request", fields...)
		})
	}
}

type jsonRPCRequest struct {
	Method string `json:"method"`
	Params struct {
		Name string `json:"name"`
	} `json:"params"`
}

type jsonRPCResponse struct {
	Error *jsonRPCError `json:"error"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// mcpResponseRecorder tees the response body so the JSON-RPC error can be
// inspected after the handler returns.
type mcpResponseRecorder struct {
	http.ResponseWriter
	body       *bytes.Buffer
	statusCode int
}

func (r *mcpResponseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *mcpResponseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
