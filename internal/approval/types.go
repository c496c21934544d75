package approval

import "time"

// Status is the lifecycle state of a proposed tool execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDenied    Status = "denied"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusDenied || s == StatusError
}

// Tool is one proposed tool execution awaiting or past human decision.
//
// Transitions are monotonic and one-directional:
// pending → {approved, denied}; approved → {completed, error}.
type Tool struct {
	ID           string         `json:"id"`
	ToolName     string         `json:"tool_name"`
	Args         map[string]any `json:"args"`
	Status       Status         `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	Result       string         `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	UserResponse string         `json:"user_response,omitempty"`
	DecidedBy    string         `json:"decided_by,omitempty"`
	DecidedAt    time.Time      `json:"decided_at,omitempty"`

	// Origin routing for the asynchronous completion message.
	OriginChannel string `json:"origin_channel,omitempty"`
	OriginChatID  string `json:"origin_chat_id,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
}
