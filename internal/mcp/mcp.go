// Package mcp connects to external Model Context Protocol servers and
// exposes every tool they advertise as a native agent tool. Adding a server
// takes only a config entry; discovery happens at startup.
package mcp

import (
	"context"

	"github.com/dkovac/seeker/internal/config"
)

const (
	TransportStdio   = "stdio"
	TransportHTTPSSE = "http_sse"
)

// ToolDefinition is one tool advertised by a server's tools/list.
type ToolDefinition struct {
	Name        string
	Description string
}

// Client talks to a single connected MCP server.
type Client interface {
	ListTools(ctx context.Context) ([]ToolDefinition, error)
	CallTool(ctx context.Context, toolName, argsJSON string) (any, error)
}

// Connector dials one server and returns a ready client.
type Connector interface {
	Connect(ctx context.Context, serverName string, cfg config.MCPServerConfig) (Client, error)
}

// Connectors holds one connector per supported transport.
type Connectors struct {
	Stdio   Connector
	HTTPSSE Connector
}

// ServerStatus is the manager's view of one configured server.
type ServerStatus struct {
	Name      string
	Transport string
	Connected bool
	Degraded  bool
	ToolCount int
	Message   string
}
