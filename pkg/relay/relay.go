package relay

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"showbot/pkg/booking"
	"showbot/pkg/bus"
)

var (
	ErrBroadcastFailed = errors.New("relay broadcast failed")
	ErrAckFailed       = errors.New("relay acknowledgment failed")
)

// Sender is the transport's send-message primitive.
type Sender interface {
	Send(ctx context.Context, msg bus.OutboundMessage) error
}

// Options configures a Relay.
type Options struct {
	BroadcastChatID int64
	SendTimeout     time.Duration
	Dedup           *Deduper
	Now             func() time.Time
}

// Submission is a decoded booking together with where it came from.
type Submission struct {
	ChatID    int64
	MessageID int
	Submitter bus.Sender
	Payload   booking.Payload
}

// Notification is the order summary broadcast to operators.
type Notification struct {
	Payload     booking.Payload
	Submitter   bus.Sender
	OrderRef    string
	SubmittedAt time.Time
}

// Result describes what a Submit call did.
type Result struct {
	Key       string
	OrderRef  string
	Duplicate bool
}

// Relay forwards booking submissions to the broadcast chat and
// acknowledges the submitter, at most once per submission.
type Relay struct {
	sender      Sender
	broadcastID int64
	sendTimeout time.Duration
	dedup       *Deduper
	now         func() time.Time
	log         *slog.Logger

	mu       sync.Mutex
	inflight map[string]chan struct{}
}

func New(sender Sender, opts Options, log *slog.Logger) (*Relay, error) {
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	if opts.BroadcastChatID == 0 {
		return nil, errors.New("broadcast chat id is required")
	}
	if opts.Dedup == nil {
		opts.Dedup = NewDeduper(0, 0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}

	return &Relay{
		sender:      sender,
		broadcastID: opts.BroadcastChatID,
		sendTimeout: opts.SendTimeout,
		dedup:       opts.Dedup,
		now:         opts.Now,
		log:         log.With("component", "relay"),
		inflight:    make(map[string]chan struct{}),
	}, nil
}

// Dedup exposes the window for status reporting.
func (r *Relay) Dedup() *Deduper {
	return r.dedup
}

// Submit broadcasts the order notification and then acknowledges the
// submitter. The acknowledgment is skipped when the broadcast fails.
//
// A delivery that arrives while another attempt for the same key is still
// sending waits for that attempt. It is reported as a duplicate when the
// attempt broadcast, and takes over when the broadcast failed.
func (r *Relay) Submit(ctx context.Context, sub Submission) (Result, error) {
	key := DedupKey(sub.ChatID, sub.MessageID)
	result := Result{Key: key, OrderRef: OrderRef(sub.MessageID)}

	for {
		claimed, pending := r.claim(key)
		if claimed {
			break
		}
		if pending == nil {
			r.log.Info("Skipping duplicate submission", "dedup_key", key)
			result.Duplicate = true
			return result, nil
		}

		select {
		case <-pending:
		case <-ctx.Done():
			return result, fmt.Errorf("wait for in-flight submission %s: %w", key, ctx.Err())
		}
	}
	defer r.settle(key)

	notification := Notification{
		Payload:     sub.Payload,
		Submitter:   sub.Submitter,
		OrderRef:    result.OrderRef,
		SubmittedAt: r.now().UTC(),
	}

	broadcast := bus.OutboundMessage{
		ChatID:    r.broadcastID,
		Text:      RenderNotification(notification),
		ParseMode: bus.ParseHTML,
	}
	if err := r.send(ctx, broadcast); err != nil {
		r.dedup.Release(key)
		r.log.Error("Failed to broadcast order", "dedup_key", key, "broadcast_chat_id", r.broadcastID, "error", err)
		return result, fmt.Errorf("%w: %w", ErrBroadcastFailed, err)
	}
	r.log.Info("Order broadcast", "dedup_key", key, "order_ref", result.OrderRef, "broadcast_chat_id", r.broadcastID)

	ack := bus.OutboundMessage{
		ChatID:    sub.ChatID,
		Text:      RenderAcknowledgment(notification),
		ParseMode: bus.ParseHTML,
	}
	if err := r.send(ctx, ack); err != nil {
		r.log.Error("Failed to acknowledge order", "dedup_key", key, "chat_id", sub.ChatID, "error", err)
		return result, fmt.Errorf("%w: %w", ErrAckFailed, err)
	}

	return result, nil
}

// claim reserves key for this attempt. When it cannot, it returns the
// channel of the attempt still in flight, or nil when the key is settled.
func (r *Relay) claim(key string) (bool, <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pending, ok := r.inflight[key]; ok {
		return false, pending
	}
	if !r.dedup.Reserve(key) {
		return false, nil
	}

	r.inflight[key] = make(chan struct{})
	return true, nil
}

func (r *Relay) settle(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pending, ok := r.inflight[key]; ok {
		close(pending)
		delete(r.inflight, key)
	}
}

func (r *Relay) send(ctx context.Context, msg bus.OutboundMessage) error {
	if r.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.sendTimeout)
		defer cancel()
	}

	return r.sender.Send(ctx, msg)
}

// OrderRef derives the customer-facing order reference from a message id.
func OrderRef(messageID int) string {
	return "SS-" + strconv.Itoa(messageID)
}

// GuestsLabel formats a guest count the same way in every message.
func GuestsLabel(guests int) string {
	return strconv.Itoa(guests) + " guest(s)"
}

// RenderNotification builds the HTML broadcast text. Values are escaped
// but never shortened.
func RenderNotification(n Notification) string {
	var b strings.Builder

	b.WriteString("🎪 <b>New booking request</b>\n\n")
	writeLine(&b, "👤 Name", n.Payload.Name)
	writeLine(&b, "📧 Email", n.Payload.Email)
	writeLine(&b, "📅 Date", n.Payload.Date)
	writeLine(&b, "👥 Guests", GuestsLabel(n.Payload.Guests))
	if n.Payload.Message != "" {
		writeLine(&b, "💬 Message", n.Payload.Message)
	}
	b.WriteString("\n")
	writeLine(&b, "🙋 Submitted by", submitterLabel(n.Submitter))
	writeLine(&b, "🧾 Order", n.OrderRef)
	writeLine(&b, "🕒 Submitted at", n.SubmittedAt.Format("2006-01-02 15:04:05 MST"))

	return strings.TrimRight(b.String(), "\n")
}

// RenderAcknowledgment builds the HTML reply sent back to the submitter.
func RenderAcknowledgment(n Notification) string {
	var b strings.Builder

	fmt.Fprintf(&b, "✅ Thank you, %s! Your booking request has been received.\n\n", html.EscapeString(n.Payload.Name))
	writeLine(&b, "🧾 Order", n.OrderRef)
	writeLine(&b, "📅 Date", n.Payload.Date)
	writeLine(&b, "👥 Guests", GuestsLabel(n.Payload.Guests))
	b.WriteString("\nWe will contact you shortly to confirm the details.")

	return b.String()
}

func writeLine(b *strings.Builder, label string, value string) {
	fmt.Fprintf(b, "%s: %s\n", label, html.EscapeString(value))
}

func submitterLabel(s bus.Sender) string {
	name := s.DisplayName
	if name == "" {
		name = "unknown"
	}
	if s.Username != "" {
		name += " (@" + s.Username + ")"
	}
	if s.ID != 0 {
		name += ", id " + strconv.FormatInt(s.ID, 10)
	}
	return name
}
