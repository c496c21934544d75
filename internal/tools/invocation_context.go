package tools

import (
	"context"
	"strings"
)

type invocationContextKey struct{}

// InvocationContext identifies where a tool call came from. The exec and
// ask_user tools record it so answers and completion wakeups can be routed
// back to the originating conversation.
type InvocationContext struct {
	Channel   string
	ChatID    string
	SenderID  string
	RequestID string
	SessionID string
}

// WithInvocationContext attaches origin metadata for the duration of a tool
// call.
func WithInvocationContext(ctx context.Context, meta InvocationContext) context.Context {
	return context.WithValue(ctx, invocationContextKey{}, meta)
}

// InvocationFromContext returns the origin metadata, or a zero value when the
// call has no recorded origin (direct CLI use).
func InvocationFromContext(ctx context.Context) InvocationContext {
	meta, ok := ctx.Value(invocationContextKey{}).(InvocationContext)
	if !ok {
		return InvocationContext{}
	}
	meta.Channel = strings.TrimSpace(meta.Channel)
	meta.ChatID = strings.TrimSpace(meta.ChatID)
	meta.SenderID = strings.TrimSpace(meta.SenderID)
	meta.RequestID = strings.TrimSpace(meta.RequestID)
	meta.SessionID = strings.TrimSpace(meta.SessionID)
	return meta
}
