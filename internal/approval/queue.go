// Package approval queues tool executions that need a human decision before
// they may run. Proposing never blocks: the agent receives the id and a
// placeholder result and keeps reasoning while the decision is outstanding.
package approval

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dkovac/seeker/internal/notify"
	"github.com/google/uuid"
)

const defaultRetention = time.Hour

// Queue holds pending tool proposals keyed by id. Entries in pending or
// approved state represent outstanding human obligations and are never
// auto-removed; terminal entries are reaped after the retention window.
type Queue struct {
	mu    sync.Mutex
	tools map[string]*Tool

	notifier  *notify.Notifier
	retention time.Duration
	now       func() time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithRetention sets the max age before terminal entries are reaped.
func WithRetention(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.retention = d
		}
	}
}

// NewQueue creates an empty queue. notifier may be nil.
func NewQueue(notifier *notify.Notifier, opts ...Option) *Queue {
	q := &Queue{
		tools:     make(map[string]*Tool),
		notifier:  notifier,
		retention: defaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Origin identifies where a proposal came from, so the completion can be
// routed back to the same conversation.
type Origin struct {
	Channel   string
	ChatID    string
	RequestID string
}

// Propose adds a tool in pending status and returns its id immediately.
func (q *Queue) Propose(toolName string, args map[string]any) string {
	return q.ProposeFrom(toolName, args, Origin{})
}

// ProposeFrom is Propose with origin routing metadata attached.
func (q *Queue) ProposeFrom(toolName string, args map[string]any, origin Origin) string {
	tool := &Tool{
		ID:            uuid.NewString(),
		ToolName:      toolName,
		Args:          args,
		Status:        StatusPending,
		CreatedAt:     q.now(),
		OriginChannel: strings.TrimSpace(origin.Channel),
		OriginChatID:  strings.TrimSpace(origin.ChatID),
		RequestID:     strings.TrimSpace(origin.RequestID),
	}

	q.mu.Lock()
	q.tools[tool.ID] = tool
	q.mu.Unlock()

	slog.Info("tool queued for approval", "id", tool.ID, "tool", toolName)

	q.notifier.Publish(notify.Event{
		Type: notify.TypeToolPending,
		Payload: map[string]any{
			"id":         tool.ID,
			"tool_name":  tool.ToolName,
			"args":       tool.Args,
			"status":     string(tool.Status),
			"created_at": tool.CreatedAt,
		},
	})
	return tool.ID
}

// Approve transitions a pending tool to approved, recording an optional user
// response passed along to the execution. Unknown ids and tools in any other
// state return false: "someone already decided this" is an expected race
// outcome, not an error.
func (q *Queue) Approve(id, userResponse, decidedBy string) bool {
	return q.decide(id, StatusApproved, userResponse, "", decidedBy)
}

// Deny transitions a pending tool to denied. The reason is recorded in the
// entry's Error field for the requester to see.
func (q *Queue) Deny(id, reason, decidedBy string) bool {
	if strings.TrimSpace(reason) == "" {
		reason = "denied by user"
	}
	return q.decide(id, StatusDenied, "", reason, decidedBy)
}

// SetResult records the outcome of running an approved tool: completed when
// errText is empty, error otherwise. Only the executor calls this. Unknown
// ids and non-approved states are a no-op.
func (q *Queue) SetResult(id, result, errText string) {
	q.mu.Lock()
	tool, ok := q.tools[id]
	if !ok || tool.Status != StatusApproved {
		q.mu.Unlock()
		return
	}

	tool.Result = result
	tool.Error = errText
	if errText == "" {
		tool.Status = StatusCompleted
	} else {
		tool.Status = StatusError
	}
	evt := updateEvent(tool)
	q.mu.Unlock()

	q.notifier.Publish(evt)
}

// Pending returns snapshot copies of all tools awaiting a decision.
func (q *Queue) Pending() []Tool {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Tool, 0, len(q.tools))
	for _, tool := range q.tools {
		if tool.Status == StatusPending {
			out = append(out, snapshot(tool))
		}
	}
	return out
}

// Get returns a snapshot copy of one tool.
func (q *Queue) Get(id string) (Tool, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tool, ok := q.tools[id]
	if !ok {
		return Tool{}, false
	}
	return snapshot(tool), true
}

// snapshot copies an entry for callers outside the lock. Args gets its own
// map so mutating a returned snapshot cannot reach the stored entry.
func snapshot(tool *Tool) Tool {
	out := *tool
	if tool.Args != nil {
		out.Args = make(map[string]any, len(tool.Args))
		for k, v := range tool.Args {
			out.Args[k] = v
		}
	}
	return out
}

// RemoveExpired drops terminal entries older than the retention window and
// returns how many were removed. Pending and approved entries are kept.
func (q *Queue) RemoveExpired(now time.Time) int {
	cutoff := now.Add(-q.retention)

	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for id, tool := range q.tools {
		if tool.Status.Terminal() && tool.CreatedAt.Before(cutoff) {
			delete(q.tools, id)
			removed++
		}
	}
	return removed
}

// Name identifies the queue in reaper logs.
func (q *Queue) Name() string { return "approval" }

func (q *Queue) decide(id string, status Status, userResponse, reason, decidedBy string) bool {
	q.mu.Lock()
	tool, ok := q.tools[id]
	if !ok {
		q.mu.Unlock()
		slog.Debug("decision for unknown tool", "id", id)
		return false
	}
	if tool.Status != StatusPending {
		current := tool.Status
		q.mu.Unlock()
		slog.Debug("decision for already-decided tool", "id", id, "status", string(current))
		return false
	}

	tool.Status = status
	tool.UserResponse = userResponse
	tool.Error = reason
	tool.DecidedBy = strings.TrimSpace(decidedBy)
	tool.DecidedAt = q.now()
	evt := updateEvent(tool)
	name := tool.ToolName
	by := tool.DecidedBy
	q.mu.Unlock()

	slog.Info("tool decision recorded", "id", id, "tool", name, "status", string(status), "decided_by", by)
	q.notifier.Publish(evt)
	return true
}

func updateEvent(tool *Tool) notify.Event {
	return notify.Event{
		Type: notify.TypeToolUpdate,
		Payload: map[string]any{
			"id":        tool.ID,
			"tool_name": tool.ToolName,
			"status":    string(tool.Status),
			"error":     tool.Error,
		},
	}
}
