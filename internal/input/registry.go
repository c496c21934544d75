// Package input holds pending human-input requests and arbitrates racing
// answers from multiple sources. Whichever source answers first wins; every
// later answer for the same request is rejected.
package input

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dkovac/seeker/internal/notify"
	"github.com/google/uuid"
)

const (
	// NoInput is returned by Await when no source answered in time. Callers
	// must treat it as a valid outcome, not a failure.
	NoInput = "no input"

	defaultPollInterval = 100 * time.Millisecond
	defaultRetention    = 10 * time.Minute
)

// Request is a pending input request.
type Request struct {
	ID         string
	Prompt     string
	CreatedAt  time.Time
	Answer     string
	Answered   bool
	AnsweredBy string
}

// Snapshot is the serializable view of an unanswered request handed to
// transports.
type Snapshot struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry stores pending requests keyed by id. One mutex guards the map;
// it is held only for map mutation, never across a sleep.
type Registry struct {
	mu       sync.Mutex
	requests map[string]*Request

	notifier     *notify.Notifier
	pollInterval time.Duration
	retention    time.Duration
	now          func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithPollInterval sets the Await polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithRetention sets the max age before the reaper evicts a request.
func WithRetention(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.retention = d
		}
	}
}

// NewRegistry creates an empty registry. notifier may be nil.
func NewRegistry(notifier *notify.Notifier, opts ...Option) *Registry {
	r := &Registry{
		requests:     make(map[string]*Request),
		notifier:     notifier,
		pollInterval: defaultPollInterval,
		retention:    defaultRetention,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new unanswered request and returns its id immediately.
// Subscribers are notified best-effort; a missed notification does not undo
// the registration.
func (r *Registry) Create(prompt string) string {
	req := &Request{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		CreatedAt: r.now(),
	}

	r.mu.Lock()
	r.requests[req.ID] = req
	r.mu.Unlock()

	slog.Info("input requested", "id", req.ID, "prompt", prompt)

	r.notifier.Publish(notify.Event{
		Type: notify.TypeInputPending,
		Payload: map[string]any{
			"id":         req.ID,
			"prompt":     req.Prompt,
			"created_at": req.CreatedAt,
		},
	})
	return req.ID
}

// Answer records an answer for a pending request. It succeeds iff the
// request exists and is unanswered: under concurrent calls from racing
// sources the registry mutex guarantees exactly one winner.
func (r *Registry) Answer(id, text, source string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return false
	}
	if req.Answered {
		return false
	}

	req.Answer = text
	req.Answered = true
	req.AnsweredBy = source
	slog.Info("input answered", "id", id, "source", source)
	return true
}

// Await blocks the calling goroutine until the request is answered, the
// timeout elapses, or ctx is cancelled. It polls at the configured interval
// and holds no lock between polls, so all other work continues unimpeded.
//
// On success the request is removed and the answer and its source are
// returned. On timeout or cancellation the request is evicted and the
// NoInput sentinel is returned — never an error.
func (r *Registry) Await(ctx context.Context, id string, timeout time.Duration) (answer, source string) {
	deadline := r.now().Add(timeout)

	for {
		r.mu.Lock()
		req, ok := r.requests[id]
		if ok && req.Answered {
			answer, source = req.Answer, req.AnsweredBy
			delete(r.requests, id)
			r.mu.Unlock()
			return answer, source
		}
		r.mu.Unlock()

		if !ok || !r.now().Before(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			r.evict(id)
			return NoInput, ""
		case <-time.After(r.pollInterval):
		}
	}

	slog.Info("input request timed out", "id", id, "timeout", timeout.String())
	r.evict(id)
	return NoInput, ""
}

// Pending returns a snapshot of all unanswered requests.
func (r *Registry) Pending() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, 0, len(r.requests))
	for _, req := range r.requests {
		if req.Answered {
			continue
		}
		out = append(out, Snapshot{ID: req.ID, Prompt: req.Prompt, CreatedAt: req.CreatedAt})
	}
	return out
}

// RemoveExpired drops requests older than the retention window regardless of
// answer state and returns how many were removed. Called by the reaper.
func (r *Registry) RemoveExpired(now time.Time) int {
	cutoff := now.Add(-r.retention)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, req := range r.requests {
		if req.CreatedAt.Before(cutoff) {
			delete(r.requests, id)
			removed++
		}
	}
	return removed
}

// Name identifies the registry in reaper logs.
func (r *Registry) Name() string { return "input" }

func (r *Registry) evict(id string) {
	r.mu.Lock()
	delete(r.requests, id)
	r.mu.Unlock()
}
