package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dkovac/seeker/internal/approval"
	"github.com/dkovac/seeker/internal/audit"
	"github.com/dkovac/seeker/internal/bus"
	"github.com/dkovac/seeker/internal/mailbox"
	"github.com/dkovac/seeker/internal/tools"
)

// Executor runs approved tool executions out of band. When a run finishes it
// records the outcome on the queue entry, drops it in the result mailbox, and
// wakes the agent loop with a system message so the model can react without
// waiting for the next user turn.
type Executor struct {
	queue   *approval.Queue
	results *mailbox.Mailbox
	runner  *tools.ExecRunner
	audit   *audit.Writer
	bus     *bus.MessageBus
}

// NewExecutor creates an executor. audit and msgBus may be nil in tests.
func NewExecutor(queue *approval.Queue, results *mailbox.Mailbox, runner *tools.ExecRunner, auditW *audit.Writer, msgBus *bus.MessageBus) *Executor {
	return &Executor{
		queue:   queue,
		results: results,
		runner:  runner,
		audit:   auditW,
		bus:     msgBus,
	}
}

// Approve decides and dispatches in one step: on a winning approval the tool
// starts executing in the background immediately. Returns false when the id
// is unknown or already decided.
func (e *Executor) Approve(id, userResponse, decidedBy string) bool {
	if !e.queue.Approve(id, userResponse, decidedBy) {
		return false
	}
	e.auditDecision(id, "approved", decidedBy)

	go e.Execute(context.Background(), id)
	return true
}

// Deny decides against execution. The denial still lands in the mailbox so
// the model learns its proposal was rejected.
func (e *Executor) Deny(id, reason, decidedBy string) bool {
	if !e.queue.Deny(id, reason, decidedBy) {
		return false
	}
	e.auditDecision(id, "denied", decidedBy)

	tool, ok := e.queue.Get(id)
	if !ok {
		return true
	}
	msg := "Denied by " + fallback(decidedBy, "user")
	if strings.TrimSpace(reason) != "" {
		msg += ": " + reason
	}
	e.results.Add(tool.ID, tool.ToolName, tool.Args, msg)
	e.wake(tool)
	return true
}

// Execute runs one approved tool to completion. Non-approved entries are a
// no-op, so duplicate dispatches are harmless.
func (e *Executor) Execute(ctx context.Context, id string) {
	tool, ok := e.queue.Get(id)
	if !ok || tool.Status != approval.StatusApproved {
		return
	}

	result, errText := e.run(ctx, tool)
	e.queue.SetResult(id, result, errText)

	outcome := result
	if errText != "" {
		outcome = "Error: " + errText
		if result != "" {
			outcome += "\n" + result
		}
	}
	if strings.TrimSpace(tool.UserResponse) != "" {
		outcome += "\n\nUser note: " + tool.UserResponse
	}
	e.results.Add(tool.ID, tool.ToolName, tool.Args, outcome)

	if e.audit != nil {
		if err := e.audit.Append(audit.Event{
			Time:      time.Now(),
			Type:      audit.TypeToolExecuted,
			RequestID: tool.RequestID,
			Tool:      tool.ToolName,
			ToolID:    tool.ID,
			Result:    truncate(result, 2048),
			Error:     errText,
		}); err != nil {
			slog.Warn("audit append failed", "error", err)
		}
	}

	e.wake(tool)
}

func (e *Executor) run(ctx context.Context, tool approval.Tool) (result, errText string) {
	switch tool.ToolName {
	case "exec":
		command, _ := tool.Args["command"].(string)
		if strings.TrimSpace(command) == "" {
			return "", "missing command argument"
		}
		workingDir, _ := tool.Args["working_dir"].(string)

		out := e.runner.Run(ctx, command, workingDir)
		rendered := renderExecOutput(out)
		if out.ExitCode != 0 {
			return rendered, fmt.Sprintf("command exited with code %d", out.ExitCode)
		}
		return rendered, ""
	default:
		return "", "no executor for tool: " + tool.ToolName
	}
}

// wake publishes a system message routed at the proposal's origin chat.
func (e *Executor) wake(tool approval.Tool) {
	if e.bus == nil {
		return
	}
	originChannel := fallback(tool.OriginChannel, "cli")
	originChatID := fallback(tool.OriginChatID, "direct")
	e.bus.PublishInbound(bus.NewToolResultInbound(tool.ID, tool.ToolName, originChannel, originChatID, tool.RequestID))
}

func (e *Executor) auditDecision(id, decision, decidedBy string) {
	if e.audit == nil {
		return
	}
	tool, _ := e.queue.Get(id)
	if err := e.audit.Append(audit.Event{
		Time:      time.Now(),
		Type:      audit.TypeToolDecided,
		RequestID: tool.RequestID,
		Tool:      tool.ToolName,
		ToolID:    id,
		Decision:  decision,
		DecidedBy: decidedBy,
	}); err != nil {
		slog.Warn("audit append failed", "error", err)
	}
}

func renderExecOutput(out *tools.ExecOutput) string {
	data, err := json.Marshal(out)
	if err != nil {
		return out.Stdout
	}
	return string(data)
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
