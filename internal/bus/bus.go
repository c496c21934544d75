package bus

import "log/slog"

// MessageBus connects channels to the agent loop with buffered inbound and
// outbound queues. Publishing never blocks: when a queue is full the message
// is dropped and logged, so a stalled consumer cannot back up a producer.
type MessageBus struct {
	inbound  chan *InboundMessage
	outbound chan *OutboundMessage
}

// NewMessageBus creates a bus with the given per-direction buffer size.
func NewMessageBus(size int) *MessageBus {
	if size <= 0 {
		size = 1
	}
	return &MessageBus{
		inbound:  make(chan *InboundMessage, size),
		outbound: make(chan *OutboundMessage, size),
	}
}

// PublishInbound queues a message for the agent loop.
func (b *MessageBus) PublishInbound(msg *InboundMessage) {
	if msg == nil {
		return
	}
	select {
	case b.inbound <- msg:
	default:
		slog.Warn("inbound queue full, dropping message", "channel", msg.Channel, "request_id", msg.RequestID)
	}
}

// PublishOutbound queues a message for channel delivery.
func (b *MessageBus) PublishOutbound(msg *OutboundMessage) {
	if msg == nil {
		return
	}
	select {
	case b.outbound <- msg:
	default:
		slog.Warn("outbound queue full, dropping message", "channel", msg.Channel, "request_id", msg.RequestID)
	}
}

// Inbound returns the receive side of the inbound queue.
func (b *MessageBus) Inbound() <-chan *InboundMessage {
	return b.inbound
}

// Outbound returns the receive side of the outbound queue.
func (b *MessageBus) Outbound() <-chan *OutboundMessage {
	return b.outbound
}
