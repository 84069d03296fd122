package bus

import (
	"context"
	"testing"
	"time"
)

func TestInboundRoundTrip(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	in := InboundEvent{Kind: KindTextMessage, ChatID: 7, Text: "hello"}
	if ok := mb.PublishInbound(context.Background(), in); !ok {
		t.Fatal("expected inbound publish to succeed")
	}
	if got := mb.Pending(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}

	out, ok := mb.ConsumeInbound(context.Background())
	if !ok {
		t.Fatal("expected inbound consume to succeed")
	}
	if out.Text != in.Text || out.ChatID != in.ChatID {
		t.Fatalf("event = %+v, want %+v", out, in)
	}
}

func TestInboundPreservesOrder(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	for i := 1; i <= 5; i++ {
		if ok := mb.PublishInbound(context.Background(), InboundEvent{MessageID: i}); !ok {
			t.Fatalf("publish %d failed", i)
		}
	}

	for i := 1; i <= 5; i++ {
		event, ok := mb.ConsumeInbound(context.Background())
		if !ok {
			t.Fatalf("consume %d failed", i)
		}
		if event.MessageID != i {
			t.Fatalf("message id = %d, want %d", event.MessageID, i)
		}
	}
}

func TestCloseStopsBusOperations(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()

	if ok := mb.PublishInbound(context.Background(), InboundEvent{Text: "hello"}); ok {
		t.Fatal("expected inbound publish to fail after close")
	}
	if _, ok := mb.ConsumeInbound(context.Background()); ok {
		t.Fatal("expected inbound consume to stop after close")
	}
}

func TestContextCancellation(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if ok := mb.PublishInbound(ctx, InboundEvent{Text: "hello"}); ok {
		t.Fatal("expected publish to fail on canceled context")
	}
	if _, ok := mb.ConsumeInbound(ctx); ok {
		t.Fatal("expected consume to fail on canceled context")
	}
}

func TestConsumeUnblocksOnClose(t *testing.T) {
	mb := NewMessageBus()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = mb.ConsumeInbound(context.Background())
	}()

	mb.Close()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("consume did not unblock after close")
	}
}

func TestIsMiniAppSubmission(t *testing.T) {
	tests := []struct {
		name  string
		event InboundEvent
		want  bool
	}{
		{name: "dedicated variant", event: InboundEvent{Kind: KindMiniAppData, MiniAppData: "{}"}, want: true},
		{name: "message attribute", event: InboundEvent{Kind: KindTextMessage, MiniAppData: "{}"}, want: true},
		{name: "plain message", event: InboundEvent{Kind: KindTextMessage, Text: "hi"}, want: false},
		{name: "channel post", event: InboundEvent{Kind: KindChannelPost, MiniAppData: "{}"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.IsMiniAppSubmission(); got != tt.want {
				t.Fatalf("IsMiniAppSubmission = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChatKindLoggable(t *testing.T) {
	for _, kind := range []ChatKind{ChatPrivate, ChatGroup, ChatSupergroup, ChatChannel} {
		if !kind.Loggable() {
			t.Fatalf("%q should be loggable", kind)
		}
	}
	if ChatKind("sender").Loggable() {
		t.Fatal("unknown chat kind should not be loggable")
	}
}
