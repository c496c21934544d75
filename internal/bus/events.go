package bus

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type requestIDContextKey struct{}

// System channel constants. System messages are produced by Seeker itself
// (asynchronous tool completions) and consumed by the loop rather than
// routed back to a chat platform.
const (
	SystemChannel = "system"

	SystemMetaType          = "system_type"
	SystemMetaToolID        = "tool_id"
	SystemMetaToolName      = "tool_name"
	SystemMetaOriginChannel = "origin_channel"
	SystemMetaOriginChatID  = "origin_chat_id"

	SystemTypeToolResult = "tool_result"
)

// InboundMessage received from a channel
type InboundMessage struct {
	Channel   string
	SenderID  string
	ChatID    string
	SessionID string
	Content   string
	Timestamp time.Time
	Metadata  map[string]any
	RequestID string
}

// SessionKey returns unique session identifier
func (m *InboundMessage) SessionKey() string {
	if strings.TrimSpace(m.SessionID) != "" {
		return m.SessionID
	}
	return m.Channel + ":" + m.ChatID
}

// OutboundMessage to send to a channel
type OutboundMessage struct {
	Channel   string
	ChatID    string
	Content   string
	ReplyTo   string
	Metadata  map[string]any
	RequestID string
}

// NewToolResultInbound wraps an asynchronously completed tool execution as a
// system message so the agent loop wakes up and reasons over the result
// without waiting for the next user turn.
func NewToolResultInbound(toolID, toolName, originChannel, originChatID, requestID string) *InboundMessage {
	return &InboundMessage{
		Channel:   SystemChannel,
		SenderID:  "system",
		ChatID:    originChatID,
		Timestamp: time.Now(),
		RequestID: requestID,
		Metadata: map[string]any{
			SystemMetaType:          SystemTypeToolResult,
			SystemMetaToolID:        toolID,
			SystemMetaToolName:      toolName,
			SystemMetaOriginChannel: originChannel,
			SystemMetaOriginChatID:  originChatID,
		},
	}
}

// NewRequestID creates a request id for tracing.
func NewRequestID() string {
	return uuid.NewString()
}

// WithRequestID adds a request id to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext reads request id from context.
func RequestIDFromContext(ctx context.Context) string {
	v := ctx.Value(requestIDContextKey{})
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
