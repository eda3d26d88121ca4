package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// instructions are sent to clients during initialize.
const instructions = `keyscout profiles raw tables loaded from fixed-width and CSV files and proposes candidate keys.
Call get_key_candidates to inspect the latest profiling run of a table, then record_key_decision to accept or reject a column pairing.
list_key_decisions returns the decisions recorded so far.`

// Server wraps the mcp-go MCPServer with tool-call logging.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates an MCP server. Every tool call is logged through a
// ToolCallLogger and a panicking tool handler is turned into an error.
func NewServer(name, version string, logger *zap.Logger) *Server {
	logger = logger.Named("mcp")
	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
		server.WithHooks(NewToolCallLogger(logger).Hooks()),
	)

	return &Server{
		mcp:    mcpServer,
		logger: logger,
	}
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates a stateless HTTP transport for this server.
// Routing to /mcp is left to the caller's mux.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// RegisterTool adds a tool and its handler.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.logger.Debug("Registering MCP tool", zap.String("tool", tool.Name))
	s.mcp.AddTool(tool, handler)
}
