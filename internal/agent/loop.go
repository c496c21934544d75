package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/dkovac/seeker/internal/approval"
	"github.com/dkovac/seeker/internal/bus"
	"github.com/dkovac/seeker/internal/command"
	"github.com/dkovac/seeker/internal/config"
	"github.com/dkovac/seeker/internal/input"
	"github.com/dkovac/seeker/internal/mailbox"
	"github.com/dkovac/seeker/internal/session"
	"github.com/dkovac/seeker/internal/tools"
)

// Loop is the main agent processing loop
type Loop struct {
	bus           *bus.MessageBus
	model         model.ChatModel
	tools         *tools.Registry
	commands      *command.Registry
	sessions      *session.Manager
	context       *ContextBuilder
	config        *config.Config
	inputs        *input.Registry
	approvals     *approval.Queue
	results       *mailbox.Mailbox
	maxIterations int
	workspacePath string
	now           func() time.Time

	OnToolStart  func(name, args string)
	OnToolFinish func(name, result string, err error)
}

// Stores bundles the pending-coordination state shared with the loop.
type Stores struct {
	Inputs    *input.Registry
	Approvals *approval.Queue
	Results   *mailbox.Mailbox
}

// NewLoop creates a new agent loop
func NewLoop(cfg *config.Config, msgBus *bus.MessageBus, chatModel model.ChatModel, stores Stores) (*Loop, error) {
	workspacePath, err := cfg.WorkspacePathChecked()
	if err != nil {
		return nil, err
	}
	cmdRegistry := command.NewRegistry()
	cmdRegistry.Register(&command.NewSessionCommand{})
	cmdRegistry.Register(&command.HelpCommand{})
	cmdRegistry.Register(&command.VersionCommand{})
	cmdRegistry.Register(&command.StatusCommand{})
	cmdRegistry.Register(&command.PendingCommand{})

	return &Loop{
		bus:           msgBus,
		model:         chatModel,
		tools:         tools.NewRegistry(),
		commands:      cmdRegistry,
		sessions:      session.NewManager(workspacePath),
		context:       NewContextBuilder(workspacePath),
		config:        cfg,
		inputs:        stores.Inputs,
		approvals:     stores.Approvals,
		results:       stores.Results,
		maxIterations: cfg.Agents.Defaults.MaxToolIterations,
		workspacePath: workspacePath,
		now:           time.Now,
	}, nil
}

// Tools returns the tool registry.
func (l *Loop) Tools() *tools.Registry {
	return l.tools
}

// RegisterDefaultTools registers all built-in tools
func (l *Loop) RegisterDefaultTools(cfg *config.Config) error {
	toolFns := []func() (tool.InvokableTool, error){
		func() (tool.InvokableTool, error) { return tools.NewReadFileTool(l.workspacePath) },
		func() (tool.InvokableTool, error) { return tools.NewWriteFileTool(l.workspacePath) },
		func() (tool.InvokableTool, error) { return tools.NewEditFileTool(l.workspacePath) },
		func() (tool.InvokableTool, error) { return tools.NewAppendFileTool(l.workspacePath) },
		func() (tool.InvokableTool, error) { return tools.NewListDirTool(l.workspacePath) },
		func() (tool.InvokableTool, error) { return tools.NewPDFExtractTool(l.workspacePath) },
		func() (tool.InvokableTool, error) { return tools.NewReadMemoryTool(l.workspacePath) },
		func() (tool.InvokableTool, error) { return tools.NewWriteMemoryTool(l.workspacePath) },
		func() (tool.InvokableTool, error) { return tools.NewAppendDiaryTool(l.workspacePath) },
		func() (tool.InvokableTool, error) { return tools.NewSaveInsightTool(l.workspacePath) },
		func() (tool.InvokableTool, error) { return tools.NewExecTool(l.approvals) },
		func() (tool.InvokableTool, error) { return tools.NewAskUserTool(l.inputs, cfg.Pending.InputTimeout) },
		func() (tool.InvokableTool, error) { return tools.NewWebFetchTool() },
		func() (tool.InvokableTool, error) { return tools.NewWebSearchTool(cfg.Tools.Web.Search.MaxResults) },
	}

	registered := make([]string, 0, len(toolFns))
	for _, fn := range toolFns {
		t, err := fn()
		if err != nil {
			return err
		}
		if err := l.tools.Register(t); err != nil {
			return err
		}
		info, err := t.Info(context.Background())
		if err == nil && info != nil && info.Name != "" {
			registered = append(registered, info.Name)
		}
	}

	slog.Info("registered tools", "count", len(registered), "tools", registered)
	return nil
}

func (l *Loop) bindTools(ctx context.Context) error {
	if l.model == nil {
		return nil
	}
	toolInfos, err := l.tools.Infos(ctx)
	if err != nil {
		return err
	}
	if binder, ok := l.model.(interface {
		BindTools([]*schema.ToolInfo) error
	}); ok {
		return binder.BindTools(toolInfos)
	}
	return nil
}

// Run starts the agent loop
func (l *Loop) Run(ctx context.Context) error {
	if err := l.bindTools(ctx); err != nil {
		return err
	}

	slog.Info("agent loop started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-l.bus.Inbound():
			if !ok {
				return fmt.Errorf("inbound channel closed")
			}
			if msg == nil {
				slog.Warn("received nil inbound message")
				continue
			}
			if strings.TrimSpace(msg.RequestID) == "" {
				msg.RequestID = bus.NewRequestID()
			}
			if msg.Channel == bus.SystemChannel {
				msg = l.resolveSystemMessage(msg)
				if msg == nil {
					continue
				}
			}
			resp, err := l.processMessage(ctx, msg)
			if err != nil {
				slog.Error("process message failed", "request_id", msg.RequestID, "channel", msg.Channel, "chat_id", msg.ChatID, "session_key", msg.SessionKey(), "error", err)
				l.bus.PublishOutbound(&bus.OutboundMessage{
					Channel:   msg.Channel,
					ChatID:    msg.ChatID,
					Content:   "Error: " + err.Error(),
					RequestID: msg.RequestID,
				})
				continue
			}
			if resp != nil {
				l.bus.PublishOutbound(resp)
			}
		}
	}
}

// resolveSystemMessage turns a tool-result wakeup into a processable turn
// aimed at the originating conversation. The actual result text is not in the
// message; it gets injected from the mailbox during processMessage. Returns
// nil for system messages the loop does not act on.
func (l *Loop) resolveSystemMessage(msg *bus.InboundMessage) *bus.InboundMessage {
	msgType := strings.TrimSpace(fmt.Sprint(msg.Metadata[bus.SystemMetaType]))
	if msgType != bus.SystemTypeToolResult {
		slog.Info("ignored system message", "request_id", msg.RequestID, "type", msgType)
		return nil
	}

	if len(l.results.Undelivered()) == 0 {
		// Another wakeup already drained the mailbox.
		return nil
	}

	originChannel := strings.TrimSpace(fmt.Sprint(msg.Metadata[bus.SystemMetaOriginChannel]))
	if originChannel == "" {
		originChannel = "cli"
	}
	originChatID := strings.TrimSpace(fmt.Sprint(msg.Metadata[bus.SystemMetaOriginChatID]))
	if originChatID == "" {
		originChatID = "direct"
	}

	return &bus.InboundMessage{
		Channel:   originChannel,
		ChatID:    originChatID,
		SenderID:  "system",
		RequestID: msg.RequestID,
	}
}

func (l *Loop) processMessage(ctx context.Context, msg *bus.InboundMessage) (*bus.OutboundMessage, error) {
	slog.Info("processing message", "request_id", msg.RequestID, "channel", msg.Channel, "chat_id", msg.ChatID, "sender", msg.SenderID, "session_key", msg.SessionKey())

	// Slash command interception — execute directly, skip LLM.
	if cmd, args, ok := l.commands.Lookup(msg.Content); ok {
		result := cmd.Execute(ctx, args, command.Env{
			Channel:       msg.Channel,
			ChatID:        msg.ChatID,
			SenderID:      msg.SenderID,
			SessionKey:    msg.SessionKey(),
			Sessions:      l.sessions,
			WorkspacePath: l.workspacePath,
			Config:        l.config,
			Inputs:        l.inputs,
			Approvals:     l.approvals,
			Results:       l.results,
			ListCommands:  l.commands.List,
		})
		return &bus.OutboundMessage{
			Channel:   msg.Channel,
			ChatID:    msg.ChatID,
			Content:   result.Content,
			RequestID: msg.RequestID,
		}, nil
	}

	sess := l.sessions.GetOrCreate(msg.SessionKey())

	// Fold finished tool results into this turn. They are marked delivered
	// only after the model has actually seen them; a failed call leaves them
	// queued for the next turn.
	pending := l.results.Undelivered()
	userTurn := ComposeUserTurn(pending, msg.Content)
	if strings.TrimSpace(userTurn) == "" {
		return nil, nil
	}

	messages := l.context.BuildMessages(sess.GetHistory(50), userTurn)

	var finalContent string
	delivered := false

	for i := 0; i < l.maxIterations; i++ {
		if l.model == nil {
			finalContent = "No model configured"
			break
		}

		resp, err := l.model.Generate(ctx, messages)
		if err != nil {
			return nil, err
		}
		if !delivered && len(pending) > 0 {
			ids := make([]string, 0, len(pending))
			for _, r := range pending {
				ids = append(ids, r.ToolID)
			}
			l.results.MarkDelivered(ids)
			delivered = true
		}

		// Always capture the latest content from the LLM response,
		// even when tool calls are present.
		if resp.Content != "" {
			finalContent = resp.Content
		}

		if len(resp.ToolCalls) == 0 {
			break
		}

		messages = append(messages, resp)
		messages = append(messages, l.runToolCalls(ctx, msg, resp.ToolCalls)...)
	}

	if finalContent == "" {
		finalContent = "Processing complete."
	}

	sess.AddMessage("user", userTurn)
	sess.AddMessage("assistant", finalContent)
	l.sessions.Save(sess)

	return &bus.OutboundMessage{
		Channel:   msg.Channel,
		ChatID:    msg.ChatID,
		Content:   finalContent,
		RequestID: msg.RequestID,
	}, nil
}

// runToolCalls executes one round of tool calls in parallel, preserving the
// original order in the returned messages.
func (l *Loop) runToolCalls(ctx context.Context, msg *bus.InboundMessage, calls []schema.ToolCall) []*schema.Message {
	results := make([]*schema.Message, len(calls))
	var wg sync.WaitGroup

	for i, tc := range calls {
		wg.Add(1)
		go func(i int, tc schema.ToolCall) {
			defer wg.Done()
			toolStart := time.Now()
			slog.Debug("executing tool", "request_id", msg.RequestID, "name", tc.Function.Name)

			if l.OnToolStart != nil {
				l.OnToolStart(tc.Function.Name, tc.Function.Arguments)
			}

			toolCtx := tools.WithInvocationContext(ctx, tools.InvocationContext{
				Channel:   msg.Channel,
				ChatID:    msg.ChatID,
				SenderID:  msg.SenderID,
				RequestID: msg.RequestID,
				SessionID: msg.SessionKey(),
			})

			result, err := l.tools.Execute(toolCtx, tc.Function.Name, tc.Function.Arguments)
			if err != nil {
				result = "Error: " + err.Error()
			}

			toolDuration := time.Since(toolStart)
			slog.Info("tool execution finished",
				"request_id", msg.RequestID,
				"channel", msg.Channel,
				"chat_id", msg.ChatID,
				"tool", tc.Function.Name,
				"tool_duration", toolDuration.String(),
				"duration_ms", toolDuration.Milliseconds(),
				"success", err == nil,
			)

			if l.OnToolFinish != nil {
				l.OnToolFinish(tc.Function.Name, result, err)
			}

			results[i] = &schema.Message{
				Role:       schema.Tool,
				Content:    result,
				ToolCallID: tc.ID,
			}
		}(i, tc)
	}

	wg.Wait()
	return results
}

// ProcessForChannel processes a message directly for a given channel/session.
func (l *Loop) ProcessForChannel(ctx context.Context, channel, chatID, senderID, content string) (string, error) {
	return l.ProcessForChannelWithSession(ctx, channel, chatID, senderID, "", content)
}

// ProcessForChannelWithSession processes a message for a channel/chat using an optional explicit session id.
func (l *Loop) ProcessForChannelWithSession(ctx context.Context, channel, chatID, senderID, sessionID, content string) (string, error) {
	if err := l.bindTools(ctx); err != nil {
		return "", err
	}
	if strings.TrimSpace(channel) == "" {
		channel = "cli"
	}
	if strings.TrimSpace(chatID) == "" {
		chatID = "direct"
	}
	if strings.TrimSpace(senderID) == "" {
		senderID = "user"
	}

	msg := &bus.InboundMessage{
		Channel:   channel,
		SenderID:  senderID,
		ChatID:    chatID,
		SessionID: strings.TrimSpace(sessionID),
		Content:   content,
		RequestID: bus.RequestIDFromContext(ctx),
	}
	if strings.TrimSpace(msg.RequestID) == "" {
		msg.RequestID = bus.NewRequestID()
	}

	resp, err := l.processMessage(ctx, msg)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", nil
	}
	return resp.Content, nil
}

// ProcessDirect processes a message directly (for CLI)
func (l *Loop) ProcessDirect(ctx context.Context, content string) (string, error) {
	return l.ProcessForChannel(ctx, "cli", "direct", "user", content)
}
