package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dkovac/seeker/internal/config"
	"github.com/dkovac/seeker/internal/tools"
)

const (
	reconnectAttempts    = 3
	reconnectBaseBackoff = 250 * time.Millisecond
)

type server struct {
	cfg    config.MCPServerConfig
	client Client
	tools  []ToolDefinition
	status ServerStatus
}

// Manager owns the configured MCP servers. A server that fails to connect
// is marked degraded and its tools are withheld; it does not take down the
// rest of the agent.
type Manager struct {
	mu         sync.RWMutex
	connectors Connectors
	servers    map[string]*server
}

// NewManager builds a manager from the config's server map. Disabled
// servers are dropped here and never show up in statuses.
func NewManager(servers map[string]config.MCPServerConfig, connectors Connectors) *Manager {
	state := make(map[string]*server, len(servers))
	for name, cfg := range servers {
		if !config.IsMCPServerEnabled(cfg) {
			continue
		}
		cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
		state[name] = &server{
			cfg: cfg,
			status: ServerStatus{
				Name:      name,
				Transport: cfg.Transport,
			},
		}
	}
	return &Manager{connectors: connectors, servers: state}
}

// DefaultConnectors returns the production stdio and HTTP/SSE connectors.
func DefaultConnectors() Connectors {
	return Connectors{
		Stdio:   stdioConnector{},
		HTTPSSE: newHTTPSSEConnector(),
	}
}

// Connect dials every configured server and discovers its tools. Individual
// failures degrade that server only; Connect returns an error just for
// context cancellation.
func (m *Manager) Connect(ctx context.Context) error {
	for _, name := range m.names() {
		if err := ctx.Err(); err != nil {
			return err
		}
		cfg, ok := m.configFor(name)
		if !ok {
			continue
		}
		client, discovered, err := m.dial(ctx, name, cfg)
		if err != nil {
			slog.Warn("mcp server unavailable", "server", name, "error", err)
			m.setDegraded(name, fmt.Sprintf("connect failed: %v", err))
			continue
		}
		slog.Info("mcp server connected", "server", name, "tools", len(discovered))
		m.setConnected(name, client, discovered, "")
	}
	return nil
}

// RegisterTools adds every discovered tool from healthy servers into reg.
func (m *Manager) RegisterTools(reg *tools.Registry) error {
	if reg == nil {
		return fmt.Errorf("registry is required")
	}
	for _, adapter := range m.adapters() {
		if err := reg.Register(adapter); err != nil {
			return err
		}
	}
	return nil
}

// CallTool routes a raw tool call to the named server. A degraded server or
// a failed call triggers a bounded reconnect before giving up.
func (m *Manager) CallTool(ctx context.Context, serverName, toolName, argsJSON string) (string, error) {
	client, err := m.healthyClient(ctx, serverName)
	if err != nil {
		return "", err
	}

	result, callErr := client.CallTool(ctx, toolName, argsJSON)
	if callErr == nil {
		return renderResult(result), nil
	}

	if err := m.reconnect(ctx, serverName, fmt.Sprintf("tool call failed: %v", callErr)); err != nil {
		return "", fmt.Errorf("mcp server %s call failed: %v; reconnect failed: %w", serverName, callErr, err)
	}
	client, err = m.clientFor(serverName)
	if err != nil {
		return "", err
	}
	result, callErr = client.CallTool(ctx, toolName, argsJSON)
	if callErr != nil {
		m.setDegraded(serverName, fmt.Sprintf("tool call failed after reconnect: %v", callErr))
		return "", fmt.Errorf("mcp server %s call failed after reconnect: %w", serverName, callErr)
	}
	return renderResult(result), nil
}

// Statuses reports per-server state, sorted by name.
func (m *Manager) Statuses() []ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ServerStatus, 0, len(m.servers))
	for _, srv := range m.servers {
		out = append(out, srv.status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Manager) healthyClient(ctx context.Context, serverName string) (Client, error) {
	m.mu.RLock()
	srv := m.servers[serverName]
	if srv == nil {
		m.mu.RUnlock()
		return nil, fmt.Errorf("mcp server not found: %s", serverName)
	}
	degraded := srv.status.Degraded || srv.client == nil
	reason := strings.TrimSpace(srv.status.Message)
	client := srv.client
	m.mu.RUnlock()

	if !degraded {
		return client, nil
	}
	if reason == "" {
		reason = "server not connected"
	}
	if err := m.reconnect(ctx, serverName, reason); err != nil {
		return nil, fmt.Errorf("mcp server %s unavailable: %w", serverName, err)
	}
	return m.clientFor(serverName)
}

func (m *Manager) clientFor(serverName string) (Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	srv := m.servers[serverName]
	if srv == nil {
		return nil, fmt.Errorf("mcp server not found: %s", serverName)
	}
	if srv.client == nil {
		return nil, fmt.Errorf("mcp server %s is not connected", serverName)
	}
	return srv.client, nil
}

func (m *Manager) reconnect(ctx context.Context, serverName, reason string) error {
	cfg, ok := m.configFor(serverName)
	if !ok {
		return fmt.Errorf("mcp server not found: %s", serverName)
	}

	var lastErr error
	for attempt := 1; attempt <= reconnectAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepBackoff(ctx, time.Duration(attempt-1)*reconnectBaseBackoff); err != nil {
				return err
			}
		}
		client, discovered, err := m.dial(ctx, serverName, cfg)
		if err == nil {
			slog.Info("mcp server reconnected", "server", serverName, "attempt", attempt)
			m.setConnected(serverName, client, discovered, fmt.Sprintf("recovered after %d reconnect attempt(s)", attempt))
			return nil
		}
		lastErr = err
	}

	m.setDegraded(serverName, fmt.Sprintf("%s; reconnect failed after %d attempts: %v", strings.TrimSpace(reason), reconnectAttempts, lastErr))
	return fmt.Errorf("reconnect failed after %d attempts: %w", reconnectAttempts, lastErr)
}

func sleepBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *Manager) dial(ctx context.Context, serverName string, cfg config.MCPServerConfig) (Client, []ToolDefinition, error) {
	connector := m.connectorFor(cfg.Transport)
	if connector == nil {
		return nil, nil, fmt.Errorf("no connector for transport %q", cfg.Transport)
	}
	client, err := connector.Connect(ctx, serverName, cfg)
	if err != nil {
		return nil, nil, err
	}
	discovered, err := client.ListTools(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list tools failed: %w", err)
	}
	return client, discovered, nil
}

func (m *Manager) setConnected(name string, client Client, discovered []ToolDefinition, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	srv := m.servers[name]
	if srv == nil {
		return
	}
	srv.client = client
	srv.tools = append([]ToolDefinition(nil), discovered...)
	srv.status.Connected = true
	srv.status.Degraded = false
	srv.status.ToolCount = len(discovered)
	srv.status.Message = strings.TrimSpace(message)
}

func (m *Manager) setDegraded(name, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	srv := m.servers[name]
	if srv == nil {
		return
	}
	srv.client = nil
	srv.tools = nil
	srv.status.Connected = false
	srv.status.Degraded = true
	srv.status.ToolCount = 0
	srv.status.Message = strings.TrimSpace(msg)
}

func (m *Manager) adapters() []toolAdapter {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]toolAdapter, 0)
	for _, name := range names {
		srv := m.servers[name]
		if srv == nil || srv.status.Degraded || srv.client == nil {
			continue
		}
		for _, def := range srv.tools {
			if strings.TrimSpace(def.Name) == "" {
				continue
			}
			out = append(out, newToolAdapter(m, name, def))
		}
	}
	return out
}

func (m *Manager) connectorFor(transport string) Connector {
	switch strings.ToLower(strings.TrimSpace(transport)) {
	case TransportStdio:
		return m.connectors.Stdio
	case TransportHTTPSSE:
		return m.connectors.HTTPSSE
	default:
		return nil
	}
}

func (m *Manager) names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) configFor(name string) (config.MCPServerConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	srv := m.servers[name]
	if srv == nil {
		return config.MCPServerConfig{}, false
	}
	return srv.cfg, true
}
