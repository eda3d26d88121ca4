package tools

import (
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterHealthTool(t *testing.T) {
	mcpServer := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterHealthTool(mcpServer, "test-version", "sqlite")

	tools := listTools(t, mcpServer)
	assert.Equal(t, "Returns server health status, version and storage backend", tools["health"])
}

func TestHealthTool_Execute(t *testing.T) {
	mcpServer := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterHealthTool(mcpServer, `1.2.3-beta"q`, "")

	text, isError := callTool(t, mcpServer, "health", nil)
	require.False(t, isError)

	var health healthResult
	require.NoError(t, json.Unmarshal([]byte(text), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, `1.2.3-beta"q`, health.Version)
	assert.Equal(t, "none", health.Storage)
}
