package bus

import (
	"context"
	"sync"
)

const defaultBufferSize = 100

// MessageBus queues inbound events between a transport adapter and the
// single consumer that dispatches them in delivery order.
type MessageBus struct {
	inbound chan InboundEvent

	done      chan struct{}
	closeOnce sync.Once
}

func NewMessageBus() *MessageBus {
	return NewMessageBusWithBuffer(defaultBufferSize)
}

func NewMessageBusWithBuffer(size int) *MessageBus {
	if size <= 0 {
		size = defaultBufferSize
	}

	return &MessageBus{
		inbound: make(chan InboundEvent, size),
		done:    make(chan struct{}),
	}
}

func (mb *MessageBus) PublishInbound(ctx context.Context, event InboundEvent) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return false
	case <-mb.done:
		return false
	default:
	}

	select {
	case <-ctx.Done():
		return false
	case <-mb.done:
		return false
	case mb.inbound <- event:
		return true
	}
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundEvent, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return InboundEvent{}, false
	case <-mb.done:
		return InboundEvent{}, false
	case event := <-mb.inbound:
		return event, true
	}
}

// Pending returns the number of queued events not yet consumed.
func (mb *MessageBus) Pending() int {
	return len(mb.inbound)
}

func (mb *MessageBus) Close() {
	mb.closeOnce.Do(func() {
		close(mb.done)
	})
}
