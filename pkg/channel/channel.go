package channel

import (
	"context"

	"showbot/pkg/bus"
)

// Sink receives normalized inbound events from a transport in delivery
// order. It reports false when the event could not be accepted.
type Sink func(context.Context, bus.InboundEvent) bool

// Adapter bridges one external chat transport (for example Telegram) into the bot.
type Adapter interface {
	Name() string
	Run(ctx context.Context, sink Sink) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}
