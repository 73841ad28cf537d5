package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrBusClosed is returned when publishing to a closed MessageBus.
var ErrBusClosed = errors.New("message bus closed")

const defaultBufferSize = 100

// lane is one direction of the bus: a bounded queue whose blocking
// operations unblock on bus shutdown or caller cancellation.
type lane[T any] struct {
	ch   chan T
	done <-chan struct{}
}

func newLane[T any](done <-chan struct{}) lane[T] {
	return lane[T]{ch: make(chan T, defaultBufferSize), done: done}
}

func (l lane[T]) put(ctx context.Context, v T) error {
	select {
	case l.ch <- v:
		return nil
	case <-l.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l lane[T]) take(ctx context.Context) (T, bool) {
	var zero T
	select {
	case v, ok := <-l.ch:
		return v, ok
	case <-l.done:
		return zero, false
	case <-ctx.Done():
		return zero, false
	}
}

// MessageBus decouples channels from the host: channels publish inbound
// messages and consume nothing; the host consumes inbound and publishes
// outbound replies. Each direction is an independent lane sharing the
// bus's shutdown signal.
type MessageBus struct {
	inbound  lane[InboundMessage]
	outbound lane[OutboundMessage]
	done     chan struct{}
	closed   atomic.Bool
}

func NewMessageBus() *MessageBus {
	done := make(chan struct{})
	return &MessageBus{
		inbound:  newLane[InboundMessage](done),
		outbound: newLane[OutboundMessage](done),
		done:     done,
	}
}

func (mb *MessageBus) PublishInbound(ctx context.Context, msg InboundMessage) error {
	if mb.closed.Load() {
		return ErrBusClosed
	}
	return mb.inbound.put(ctx, msg)
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	return mb.inbound.take(ctx)
}

func (mb *MessageBus) PublishOutbound(ctx context.Context, msg OutboundMessage) error {
	if mb.closed.Load() {
		return ErrBusClosed
	}
	return mb.outbound.put(ctx, msg)
}

func (mb *MessageBus) ConsumeOutbound(ctx context.Context) (OutboundMessage, bool) {
	return mb.outbound.take(ctx)
}

func (mb *MessageBus) Close() {
	if mb.closed.CompareAndSwap(false, true) {
		close(mb.done)
	}
}
