package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"showbot/pkg/booking"
	"showbot/pkg/bus"
	"showbot/pkg/commands"
	"showbot/pkg/relay"
	"showbot/pkg/ringlog"

	"golang.org/x/sync/errgroup"
)

// RetryText is sent to a submitter whose payload could not be decoded.
const RetryText = "😔 We could not process your booking request. Please try again later or reach us via /contact."

// Transport is the subset of the chat transport the dispatcher replies through.
type Transport interface {
	Send(ctx context.Context, msg bus.OutboundMessage) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// Recorder appends inbound events to the diagnostic log.
type Recorder interface {
	Record(event bus.InboundEvent) ringlog.Entry
}

// Submitter relays decoded bookings.
type Submitter interface {
	Submit(ctx context.Context, sub relay.Submission) (relay.Result, error)
}

// Options configures a Dispatcher.
type Options struct {
	Journal   Recorder
	Router    *commands.Router
	Relay     Submitter
	Transport Transport
	// SendTimeout bounds each reply sent by the dispatcher. Zero disables it.
	SendTimeout time.Duration
	// MaxInFlight runs the sends of up to this many events concurrently.
	// Ring log and command state are always updated inline. Zero sends inline.
	MaxInFlight int
}

// Dispatcher classifies inbound events and routes them to the ring log,
// the command router, and the order relay.
type Dispatcher struct {
	journal     Recorder
	router      *commands.Router
	relay       Submitter
	transport   Transport
	sendTimeout time.Duration
	log         *slog.Logger

	work *errgroup.Group
}

func New(opts Options, log *slog.Logger) (*Dispatcher, error) {
	if opts.Journal == nil {
		return nil, errors.New("journal is required")
	}
	if opts.Router == nil {
		return nil, errors.New("command router is required")
	}
	if opts.Relay == nil {
		return nil, errors.New("relay is required")
	}
	if opts.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if log == nil {
		log = slog.Default()
	}

	d := &Dispatcher{
		journal:     opts.Journal,
		router:      opts.Router,
		relay:       opts.Relay,
		transport:   opts.Transport,
		sendTimeout: opts.SendTimeout,
		log:         log.With("component", "dispatch"),
	}
	if opts.MaxInFlight > 0 {
		d.work = &errgroup.Group{}
		d.work.SetLimit(opts.MaxInFlight)
	}

	return d, nil
}

// outcome is the transport work left once an event's state changes have
// been applied.
type outcome func(ctx context.Context) error

// Dispatch applies the event to the ring log and command state in arrival
// order, then runs its sends inline or on the worker group. Handling errors
// are logged and never stop later events.
func (d *Dispatcher) Dispatch(ctx context.Context, event bus.InboundEvent) {
	run, err := d.apply(event)
	if err != nil || run == nil {
		d.logFailure(event, err)
		return
	}

	if d.work == nil {
		d.logFailure(event, d.execute(ctx, event, run))
		return
	}

	d.work.Go(func() error {
		d.logFailure(event, d.execute(ctx, event, run))
		return nil
	})
}

// Handle applies the event and runs its sends inline, returning the handling error.
func (d *Dispatcher) Handle(ctx context.Context, event bus.InboundEvent) error {
	run, err := d.apply(event)
	if err != nil || run == nil {
		return err
	}
	return d.execute(ctx, event, run)
}

// Wait blocks until in-flight handling started by Dispatch has finished.
func (d *Dispatcher) Wait() {
	if d.work != nil {
		_ = d.work.Wait()
	}
}

func (d *Dispatcher) record(event bus.InboundEvent) {
	if event.IsMiniAppSubmission() || !event.ChatKind.Loggable() {
		return
	}
	d.journal.Record(event)
}

// apply runs on the caller's goroutine. Every ring log append, read and
// clear happens here, so a command sees exactly the events before it.
func (d *Dispatcher) apply(event bus.InboundEvent) (run outcome, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			run, err = nil, fmt.Errorf("panic handling %s event: %v", event.Kind, recovered)
		}
	}()

	switch {
	case event.IsMiniAppSubmission():
		return d.submission(event), nil
	case event.Kind == bus.KindCallbackQuery:
		d.record(event)
		return d.callback(event), nil
	case event.Kind == bus.KindTextMessage:
		cmd, ok := d.router.ParseCommand(event.Text)
		if !ok {
			d.record(event)
			return nil, nil
		}
		return d.command(cmd, event), nil
	default:
		d.record(event)
		return nil, nil
	}
}

func (d *Dispatcher) execute(ctx context.Context, event bus.InboundEvent, run outcome) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic handling %s event: %v", event.Kind, recovered)
		}
	}()

	return run(ctx)
}

func (d *Dispatcher) submission(event bus.InboundEvent) outcome {
	payload, err := booking.Decode(event.MiniAppData)
	if err != nil {
		d.log.Warn("Rejected mini-app payload", "chat_id", event.ChatID, "message_id", event.MessageID, "missing_field", booking.MissingField(err), "error", err)
		return func(ctx context.Context) error {
			retry := bus.OutboundMessage{ChatID: event.ChatID, Text: RetryText}
			if sendErr := d.send(ctx, retry); sendErr != nil {
				return errors.Join(err, fmt.Errorf("send retry notice: %w", sendErr))
			}
			return err
		}
	}

	sub := relay.Submission{
		ChatID:    event.ChatID,
		MessageID: event.MessageID,
		Payload:   payload,
	}
	if event.Sender != nil {
		sub.Submitter = *event.Sender
	}

	return func(ctx context.Context) error {
		result, err := d.relay.Submit(ctx, sub)
		if err != nil {
			return err
		}
		if !result.Duplicate {
			d.log.Info("Relayed booking", "chat_id", event.ChatID, "order_ref", result.OrderRef, "date", payload.Date, "guests", payload.Guests)
		}
		return nil
	}
}

func (d *Dispatcher) callback(event bus.InboundEvent) outcome {
	req := commands.Request{ChatID: event.ChatID, Sender: event.Sender}
	reply, handled := d.router.HandleCallback(commands.CallbackAction(event.CallbackData), req)
	if !handled {
		d.log.Debug("Unknown callback action", "chat_id", event.ChatID, "data", event.CallbackData)
	}

	return func(ctx context.Context) error {
		var errs []error
		if err := d.answerCallback(ctx, event.CallbackID, reply.Toast); err != nil {
			errs = append(errs, fmt.Errorf("answer callback: %w", err))
		}
		if reply.Message != nil {
			if err := d.send(ctx, *reply.Message); err != nil {
				errs = append(errs, fmt.Errorf("send callback reply: %w", err))
			}
		}
		return errors.Join(errs...)
	}
}

// command answers cmd against the ring log as it stood before this message,
// then logs the message itself unless the command cleared the log.
func (d *Dispatcher) command(cmd commands.Command, event bus.InboundEvent) outcome {
	req := commands.Request{ChatID: event.ChatID, Sender: event.Sender}
	msg, ok := d.router.HandleCommand(cmd, req)
	if !d.router.ClearsLog(cmd, req) {
		d.record(event)
	}
	if !ok {
		return nil
	}

	return func(ctx context.Context) error {
		if err := d.send(ctx, msg); err != nil {
			return fmt.Errorf("send %s reply: %w", cmd, err)
		}
		return nil
	}
}

func (d *Dispatcher) send(ctx context.Context, msg bus.OutboundMessage) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return d.transport.Send(ctx, msg)
}

func (d *Dispatcher) answerCallback(ctx context.Context, callbackID string, text string) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return d.transport.AnswerCallback(ctx, callbackID, text)
}

func (d *Dispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.sendTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.sendTimeout)
}

func (d *Dispatcher) logFailure(event bus.InboundEvent, err error) {
	if err == nil {
		return
	}

	d.log.Error("Failed to handle event", "event_id", event.ID, "kind", event.Kind, "chat_id", event.ChatID, "error", err)
}
