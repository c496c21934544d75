package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// toolAdapter proxies one remote MCP tool as a registry tool. The registered
// name is prefixed mcp_<server>_<tool> so tools from different servers never
// collide with each other or with built-ins.
type toolAdapter struct {
	manager    *Manager
	serverName string
	toolName   string
	fullName   string
	desc       string
}

func newToolAdapter(manager *Manager, serverName string, def ToolDefinition) toolAdapter {
	toolName := strings.TrimSpace(def.Name)
	desc := strings.TrimSpace(def.Description)
	if desc == "" {
		desc = fmt.Sprintf("MCP tool %q from server %s", toolName, serverName)
	}
	return toolAdapter{
		manager:    manager,
		serverName: strings.TrimSpace(serverName),
		toolName:   toolName,
		fullName:   fmt.Sprintf("mcp_%s_%s", strings.ToLower(strings.TrimSpace(serverName)), toolName),
		desc:       desc,
	}
}

func (a toolAdapter) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: a.fullName,
		Desc: a.desc,
		Extra: map[string]any{
			"provider": "mcp",
			"server":   a.serverName,
			"tool":     a.toolName,
		},
	}, nil
}

func (a toolAdapter) InvokableRun(ctx context.Context, argsJSON string, opts ...tool.Option) (string, error) {
	if a.manager == nil {
		return "", fmt.Errorf("mcp manager is not configured")
	}
	return a.manager.CallTool(ctx, a.serverName, a.toolName, argsJSON)
}

// renderResult flattens a decoded tool result into the string the model sees.
func renderResult(v any) string {
	const empty = "(no output)"
	switch value := v.(type) {
	case nil:
		return empty
	case string:
		return nonEmpty(value, empty)
	case []byte:
		return nonEmpty(string(value), empty)
	case fmt.Stringer:
		return nonEmpty(value.String(), empty)
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return nonEmpty(fmt.Sprint(value), empty)
		}
		text := strings.TrimSpace(string(data))
		if text == "" || text == "null" {
			return empty
		}
		return text
	}
}

func nonEmpty(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return s
}
