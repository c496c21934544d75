// Package channel defines the surface a chat platform integration implements
// and the pieces every integration shares: sender allow-listing and access to
// the message bus.
package channel

import (
	"context"
	"strings"

	"github.com/dkovac/seeker/internal/bus"
)

// Channel interface for chat platforms
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg *bus.OutboundMessage) error
	IsAllowed(senderID string) bool
}

// AllowList is a set of sender identities permitted to talk to the agent.
// Entries may be raw ids or @-prefixed usernames; normalization happens at
// construction. An empty list allows everyone.
type AllowList map[string]struct{}

// NewAllowList builds an allow list from configured entries.
func NewAllowList(entries []string) AllowList {
	out := make(AllowList, len(entries))
	for _, entry := range entries {
		entry = normalizeSender(entry)
		if entry != "" {
			out[entry] = struct{}{}
		}
	}
	return out
}

// Allows reports whether senderID may interact. Compound sender ids of the
// form "id|username" match on either half.
func (a AllowList) Allows(senderID string) bool {
	if len(a) == 0 {
		return true
	}
	candidates := []string{senderID}
	if id, user, ok := strings.Cut(senderID, "|"); ok && id != "" {
		candidates = append(candidates, id, user)
	}
	for _, c := range candidates {
		if c = normalizeSender(c); c == "" {
			continue
		}
		if _, ok := a[c]; ok {
			return true
		}
	}
	return false
}

func normalizeSender(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}

// BaseChannel provides the shared state platform integrations embed.
type BaseChannel struct {
	Bus   *bus.MessageBus
	Allow AllowList
}

// IsAllowed checks if sender is permitted
func (b *BaseChannel) IsAllowed(senderID string) bool {
	return b.Allow.Allows(senderID)
}

// PublishInbound sends message to bus
func (b *BaseChannel) PublishInbound(msg *bus.InboundMessage) {
	b.Bus.PublishInbound(msg)
}
