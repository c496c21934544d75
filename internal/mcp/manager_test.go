package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dkovac/seeker/internal/config"
	"github.com/dkovac/seeker/internal/tools"
)

type stubConnector struct {
	client Client
	err    error
	calls  int
}

func (s *stubConnector) Connect(ctx context.Context, serverName string, cfg config.MCPServerConfig) (Client, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.client, nil
}

type recordedCall struct {
	toolName string
	argsJSON string
}

type stubClient struct {
	tools      []ToolDefinition
	listErr    error
	callErr    error
	callResult any
	calls      []recordedCall
}

func (s *stubClient) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.tools, nil
}

func (s *stubClient) CallTool(ctx context.Context, toolName, argsJSON string) (any, error) {
	s.calls = append(s.calls, recordedCall{toolName: toolName, argsJSON: argsJSON})
	if s.callErr != nil {
		return nil, s.callErr
	}
	return s.callResult, nil
}

type connectOutcome struct {
	client Client
	err    error
}

type scriptedConnector struct {
	outcomes []connectOutcome
	calls    int
}

func (s *scriptedConnector) Connect(ctx context.Context, serverName string, cfg config.MCPServerConfig) (Client, error) {
	index := s.calls
	s.calls++
	if index >= len(s.outcomes) {
		index = len(s.outcomes) - 1
	}
	return s.outcomes[index].client, s.outcomes[index].err
}

func TestManager_RegisterToolsFromHealthyServer(t *testing.T) {
	client := &stubClient{
		tools:      []ToolDefinition{{Name: "read", Description: "Read from remote"}},
		callResult: "ok",
	}
	mgr := NewManager(
		map[string]config.MCPServerConfig{
			"localfs": {Transport: "stdio", Command: "localfs-mcp"},
		},
		Connectors{
			Stdio:   &stubConnector{client: client},
			HTTPSSE: &stubConnector{err: errors.New("unexpected transport")},
		},
	)

	if err := mgr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	reg := tools.NewRegistry()
	if err := mgr.RegisterTools(reg); err != nil {
		t.Fatalf("RegisterTools() error: %v", err)
	}

	toolName := "mcp_localfs_read"
	if _, ok := reg.Get(toolName); !ok {
		t.Fatalf("expected tool %q to be registered", toolName)
	}

	argsJSON := `{"path":"notes/todo.md"}`
	result, err := reg.Execute(context.Background(), toolName, argsJSON)
	if err != nil {
		t.Fatalf("registry execute error: %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected result %q, got %q", "ok", result)
	}

	if len(client.calls) != 1 {
		t.Fatalf("expected one remote call, got %d", len(client.calls))
	}
	if client.calls[0].toolName != "read" {
		t.Fatalf("expected upstream tool name %q, got %q", "read", client.calls[0].toolName)
	}
	if client.calls[0].argsJSON != argsJSON {
		t.Fatalf("expected raw args JSON %q, got %q", argsJSON, client.calls[0].argsJSON)
	}
}

func TestManager_DegradedServerWithholdsTools(t *testing.T) {
	badErr := errors.New("dial tcp: connection refused")
	goodClient := &stubClient{
		tools:      []ToolDefinition{{Name: "ping", Description: "Ping"}},
		callResult: "pong",
	}

	mgr := NewManager(
		map[string]config.MCPServerConfig{
			"broken": {Transport: "http_sse", URL: "http://127.0.0.1:9011/sse"},
			"ok":     {Transport: "stdio", Command: "ok-mcp"},
		},
		Connectors{
			Stdio:   &stubConnector{client: goodClient},
			HTTPSSE: &stubConnector{err: badErr},
		},
	)

	if err := mgr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() should not fail the whole manager, got: %v", err)
	}

	var broken ServerStatus
	found := false
	for _, st := range mgr.Statuses() {
		if st.Name == "broken" {
			broken = st
			found = true
		}
	}
	if !found {
		t.Fatal("expected status entry for broken server")
	}
	if !broken.Degraded {
		t.Fatal("expected broken server to be degraded")
	}
	if !strings.Contains(broken.Message, badErr.Error()) {
		t.Fatalf("expected degraded message to include %q, got %q", badErr.Error(), broken.Message)
	}

	reg := tools.NewRegistry()
	if err := mgr.RegisterTools(reg); err != nil {
		t.Fatalf("RegisterTools() error: %v", err)
	}
	if _, ok := reg.Get("mcp_broken_ping"); ok {
		t.Fatal("tools from a degraded server must not be registered")
	}
	if _, ok := reg.Get("mcp_ok_ping"); !ok {
		t.Fatal("expected tools from the healthy server to be registered")
	}
}

func TestManager_CallToolReconnectsAfterFailure(t *testing.T) {
	brokenClient := &stubClient{
		tools:   []ToolDefinition{{Name: "echo", Description: "Echo"}},
		callErr: errors.New("connection reset by peer"),
	}
	recoveredClient := &stubClient{
		tools:      []ToolDefinition{{Name: "echo", Description: "Echo"}},
		callResult: "ok-after-reconnect",
	}
	connector := &scriptedConnector{
		outcomes: []connectOutcome{
			{client: brokenClient},
			{client: recoveredClient},
		},
	}

	mgr := NewManager(
		map[string]config.MCPServerConfig{
			"remote": {Transport: "http_sse", URL: "http://127.0.0.1:19001/sse"},
		},
		Connectors{Stdio: &stubConnector{}, HTTPSSE: connector},
	)

	if err := mgr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	result, err := mgr.CallTool(context.Background(), "remote", "echo", `{}`)
	if err != nil {
		t.Fatalf("CallTool() error: %v", err)
	}
	if result != "ok-after-reconnect" {
		t.Fatalf("expected reconnect result, got %q", result)
	}
	if connector.calls < 2 {
		t.Fatalf("expected a second connect attempt, got %d calls", connector.calls)
	}
	if status := mgr.Statuses()[0]; status.Degraded {
		t.Fatalf("expected recovered status, got degraded: %+v", status)
	}
}

func TestManager_CallToolRecoversDegradedServer(t *testing.T) {
	recoveredClient := &stubClient{
		tools:      []ToolDefinition{{Name: "echo", Description: "Echo"}},
		callResult: "pong",
	}
	connector := &scriptedConnector{
		outcomes: []connectOutcome{
			{err: errors.New("connect timeout")},
			{client: recoveredClient},
		},
	}

	mgr := NewManager(
		map[string]config.MCPServerConfig{
			"remote": {Transport: "http_sse", URL: "http://127.0.0.1:19002/sse"},
		},
		Connectors{Stdio: &stubConnector{}, HTTPSSE: connector},
	)

	if err := mgr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() should not fail the whole manager: %v", err)
	}
	if before := mgr.Statuses()[0]; !before.Degraded {
		t.Fatalf("expected degraded status before recovery, got %+v", before)
	}

	result, err := mgr.CallTool(context.Background(), "remote", "echo", `{}`)
	if err != nil {
		t.Fatalf("CallTool() should recover a degraded server, got: %v", err)
	}
	if result != "pong" {
		t.Fatalf("expected pong after recovery, got %q", result)
	}
	if after := mgr.Statuses()[0]; after.Degraded || !after.Connected {
		t.Fatalf("expected healthy status after recovery, got %+v", after)
	}
}

func TestManager_SkipsDisabledServers(t *testing.T) {
	disabled := false
	mgr := NewManager(
		map[string]config.MCPServerConfig{
			"disabled": {Enabled: &disabled, Transport: "stdio", Command: "disabled-mcp"},
			"enabled":  {Transport: "stdio", Command: "enabled-mcp"},
		},
		Connectors{Stdio: &stubConnector{}, HTTPSSE: &stubConnector{}},
	)

	statuses := mgr.Statuses()
	if len(statuses) != 1 {
		t.Fatalf("expected 1 server status, got %d", len(statuses))
	}
	if statuses[0].Name != "enabled" {
		t.Fatalf("expected only the enabled server, got %+v", statuses[0])
	}
}

func TestRenderResult(t *testing.T) {
	if got := renderResult(nil); got != "(no output)" {
		t.Fatalf("nil result: got %q", got)
	}
	if got := renderResult("  text  "); got != "text" {
		t.Fatalf("string result: got %q", got)
	}
	if got := renderResult(map[string]any{"ok": true}); got != `{"ok":true}` {
		t.Fatalf("structured result: got %q", got)
	}
}
