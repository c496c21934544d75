package agent

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/dkovac/seeker/internal/approval"
	"github.com/dkovac/seeker/internal/bus"
	"github.com/dkovac/seeker/internal/config"
	"github.com/dkovac/seeker/internal/input"
	"github.com/dkovac/seeker/internal/mailbox"
	"github.com/dkovac/seeker/internal/tools"
)

// scriptedModel replays canned responses and records every Generate input.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	calls     [][]*schema.Message
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, input)
	if len(m.responses) == 0 {
		return &schema.Message{Role: schema.Assistant, Content: "ok"}, nil
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func (m *scriptedModel) BindTools(toolInfos []*schema.ToolInfo) error { return nil }

func (m *scriptedModel) lastCall() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.WorkspaceMode = "path"
	cfg.Agents.Defaults.Workspace = t.TempDir()
	return cfg
}

func testStores() Stores {
	return Stores{
		Inputs:    input.NewRegistry(nil),
		Approvals: approval.NewQueue(nil),
		Results:   mailbox.New(),
	}
}

func TestNewLoop(t *testing.T) {
	loop, err := NewLoop(testConfig(t), bus.NewMessageBus(10), nil, testStores())
	if err != nil {
		t.Fatalf("NewLoop error: %v", err)
	}
	if loop.maxIterations != 20 {
		t.Errorf("expected maxIterations=20, got %d", loop.maxIterations)
	}
}

func TestLoop_SlashCommandSkipsModel(t *testing.T) {
	mock := &scriptedModel{}
	loop, err := NewLoop(testConfig(t), bus.NewMessageBus(10), mock, testStores())
	if err != nil {
		t.Fatalf("NewLoop error: %v", err)
	}

	resp, err := loop.ProcessDirect(context.Background(), "/help")
	if err != nil {
		t.Fatalf("ProcessDirect error: %v", err)
	}
	if resp == "" {
		t.Fatal("expected help output")
	}
	if len(mock.calls) != 0 {
		t.Fatal("slash command must not reach the model")
	}
}

func TestLoop_ExecProposalCarriesOrigin(t *testing.T) {
	stores := testStores()
	mock := &scriptedModel{responses: []*schema.Message{
		{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{{
				ID: "call_0",
				Function: schema.FunctionCall{
					Name:      "exec",
					Arguments: `{"command":"echo hi"}`,
				},
			}},
		},
		{Role: schema.Assistant, Content: "Queued the command for you."},
	}}

	loop, err := NewLoop(testConfig(t), bus.NewMessageBus(10), mock, stores)
	if err != nil {
		t.Fatalf("NewLoop error: %v", err)
	}
	execTool, err := tools.NewExecTool(stores.Approvals)
	if err != nil {
		t.Fatalf("NewExecTool error: %v", err)
	}
	if err := loop.Tools().Register(execTool); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	resp, err := loop.ProcessForChannel(context.Background(), "telegram", "42", "alice", "run echo please")
	if err != nil {
		t.Fatalf("ProcessForChannel error: %v", err)
	}
	if !strings.Contains(resp, "Queued the command") {
		t.Fatalf("unexpected response: %q", resp)
	}

	pending := stores.Approvals.Pending()
	if len(pending) != 1 {
		t.Fatalf("expected one queued proposal, got %d", len(pending))
	}
	if pending[0].OriginChannel != "telegram" || pending[0].OriginChatID != "42" {
		t.Fatalf("expected origin from invocation context, got %+v", pending[0])
	}
}

func TestLoop_InjectsAndMarksDeliveredResults(t *testing.T) {
	stores := testStores()
	stores.Results.Add("tool-1", "exec", map[string]any{"command": "echo hi"}, "hi")

	mock := &scriptedModel{responses: []*schema.Message{
		{Role: schema.Assistant, Content: "Saw the result."},
	}}
	loop, err := NewLoop(testConfig(t), bus.NewMessageBus(10), mock, stores)
	if err != nil {
		t.Fatalf("NewLoop error: %v", err)
	}

	resp, err := loop.ProcessDirect(context.Background(), "what happened?")
	if err != nil {
		t.Fatalf("ProcessDirect error: %v", err)
	}
	if resp != "Saw the result." {
		t.Fatalf("unexpected response: %q", resp)
	}

	messages := mock.lastCall()
	if messages == nil {
		t.Fatal("expected a model call")
	}
	userTurn := messages[len(messages)-1].Content
	if !strings.Contains(userTurn, "## Completed tool results") || !strings.Contains(userTurn, "tool-1") {
		t.Fatalf("expected injected results in user turn, got: %s", userTurn)
	}
	if !strings.Contains(userTurn, "what happened?") {
		t.Fatalf("expected user text preserved, got: %s", userTurn)
	}

	if len(stores.Results.Undelivered()) != 0 {
		t.Fatal("expected results marked delivered after a successful model call")
	}
}

func TestLoop_ResultsSurviveFailedGenerate(t *testing.T) {
	stores := testStores()
	stores.Results.Add("tool-1", "exec", nil, "output")

	// No model: processMessage breaks out before any Generate.
	loop, err := NewLoop(testConfig(t), bus.NewMessageBus(10), nil, stores)
	if err != nil {
		t.Fatalf("NewLoop error: %v", err)
	}

	if _, err := loop.ProcessDirect(context.Background(), "hello"); err != nil {
		t.Fatalf("ProcessDirect error: %v", err)
	}

	if len(stores.Results.Undelivered()) != 1 {
		t.Fatal("results must stay queued until a model actually sees them")
	}
}

func TestLoop_ResolveSystemMessage(t *testing.T) {
	stores := testStores()
	loop, err := NewLoop(testConfig(t), bus.NewMessageBus(10), nil, stores)
	if err != nil {
		t.Fatalf("NewLoop error: %v", err)
	}

	// Empty mailbox: the wakeup is dropped.
	wake := bus.NewToolResultInbound("tool-1", "exec", "telegram", "42", "req-1")
	if got := loop.resolveSystemMessage(wake); got != nil {
		t.Fatalf("expected drained wakeup to be dropped, got %+v", got)
	}

	stores.Results.Add("tool-1", "exec", nil, "done")
	resolved := loop.resolveSystemMessage(wake)
	if resolved == nil {
		t.Fatal("expected wakeup to resolve")
	}
	if resolved.Channel != "telegram" || resolved.ChatID != "42" {
		t.Fatalf("expected origin routing, got %+v", resolved)
	}

	// Missing origin defaults to the direct CLI conversation.
	bare := bus.NewToolResultInbound("tool-1", "exec", "", "", "req-2")
	resolved = loop.resolveSystemMessage(bare)
	if resolved == nil || resolved.Channel != "cli" || resolved.ChatID != "direct" {
		t.Fatalf("expected cli/direct fallback, got %+v", resolved)
	}
}

func TestLoop_ParallelToolCalls(t *testing.T) {
	const delay = 100 * time.Millisecond

	toolCalls := make([]schema.ToolCall, 3)
	for i := range toolCalls {
		toolCalls[i] = schema.ToolCall{
			ID:       "call_" + string(rune('0'+i)),
			Function: schema.FunctionCall{Name: "slow_tool", Arguments: "{}"},
		}
	}
	mock := &scriptedModel{responses: []*schema.Message{
		{Role: schema.Assistant, ToolCalls: toolCalls},
		{Role: schema.Assistant, Content: "Final response"},
	}}

	loop, err := NewLoop(testConfig(t), bus.NewMessageBus(10), mock, testStores())
	if err != nil {
		t.Fatalf("NewLoop error: %v", err)
	}
	if err := loop.Tools().Register(&slowTool{delay: delay}); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	start := time.Now()
	if _, err := loop.ProcessDirect(context.Background(), "trigger tools"); err != nil {
		t.Fatalf("ProcessDirect error: %v", err)
	}
	if duration := time.Since(start); duration >= 2*delay {
		t.Errorf("expected parallel execution under %v, took %v", 2*delay, duration)
	}
}

type slowTool struct {
	delay time.Duration
}

func (s *slowTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: "slow_tool", Desc: "A slow tool"}, nil
}

func (s *slowTool) InvokableRun(ctx context.Context, args string, opts ...einotool.Option) (string, error) {
	time.Sleep(s.delay)
	return "done", nil
}
