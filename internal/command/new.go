package command

import (
	"context"
	"log/slog"
)

// NewSessionCommand implements /new. It clears the conversation history for
// the current session key; pending approvals and input requests survive a
// reset since they belong to the stores, not the transcript.
type NewSessionCommand struct{}

func (c *NewSessionCommand) Name() string        { return "new" }
func (c *NewSessionCommand) Description() string { return "Start a new conversation session" }

func (c *NewSessionCommand) Execute(_ context.Context, _ string, env Env) Result {
	if err := env.Sessions.Reset(env.SessionKey); err != nil {
		slog.Warn("session reset failed", "session_key", env.SessionKey, "error", err)
	}
	slog.Info("session reset", "session_key", env.SessionKey, "channel", env.Channel, "chat_id", env.ChatID)
	return Result{Content: "New session started."}
}
