// Package mailbox buffers tool results produced asynchronously — after a
// human approved the execution — until the prompt builder injects them into
// the next model context.
//
// Delivery is at-least-once: the prompt builder snapshots undelivered
// results, copies them into the outgoing prompt, then marks them delivered.
// A crash between snapshot and mark can duplicate a delivery but never lose
// one.
package mailbox

import (
	"sort"
	"sync"
	"time"
)

const defaultRetention = time.Hour

// Result is one completed asynchronous tool execution awaiting delivery.
type Result struct {
	ToolID     string         `json:"tool_id"`
	ToolName   string         `json:"tool_name"`
	Args       map[string]any `json:"args"`
	Result     string         `json:"result"`
	ProducedAt time.Time      `json:"produced_at"`
	Delivered  bool           `json:"delivered"`
}

// Mailbox stores results keyed by tool id behind a single mutex.
type Mailbox struct {
	mu      sync.Mutex
	results map[string]*Result

	retention time.Duration
	now       func() time.Time
}

// Option configures a Mailbox.
type Option func(*Mailbox)

// WithRetention sets the max age before delivered results are reaped.
func WithRetention(d time.Duration) Option {
	return func(m *Mailbox) {
		if d > 0 {
			m.retention = d
		}
	}
}

// New creates an empty mailbox.
func New(opts ...Option) *Mailbox {
	m := &Mailbox{
		results:   make(map[string]*Result),
		retention: defaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add records a completed execution. Called exactly once per tool id.
func (m *Mailbox) Add(toolID, toolName string, args map[string]any, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results[toolID] = &Result{
		ToolID:     toolID,
		ToolName:   toolName,
		Args:       args,
		Result:     result,
		ProducedAt: m.now(),
	}
}

// Undelivered returns snapshot copies of all undelivered results ordered by
// production time, oldest first, so injected context preserves causal order.
// Repeated calls without an intervening MarkDelivered return the same set.
func (m *Mailbox) Undelivered() []Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Result, 0, len(m.results))
	for _, r := range m.results {
		if !r.Delivered {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProducedAt.Before(out[j].ProducedAt) })
	return out
}

// MarkDelivered flips the delivered flag for the given tool ids. The flag
// never reverts.
func (m *Mailbox) MarkDelivered(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if r, ok := m.results[id]; ok {
			r.Delivered = true
		}
	}
}

// RemoveExpired drops delivered results older than the retention window and
// returns how many were removed.
func (m *Mailbox) RemoveExpired(now time.Time) int {
	cutoff := now.Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, r := range m.results {
		if r.Delivered && r.ProducedAt.Before(cutoff) {
			delete(m.results, id)
			removed++
		}
	}
	return removed
}

// Name identifies the mailbox in reaper logs.
func (m *Mailbox) Name() string { return "mailbox" }
