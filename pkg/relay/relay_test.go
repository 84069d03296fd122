package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"showbot/pkg/booking"
	"showbot/pkg/bus"

	"github.com/stretchr/testify/require"
)

const broadcastChatID int64 = -1001234

type recordingSender struct {
	mu    sync.Mutex
	sent  []bus.OutboundMessage
	fail  map[int64]error
	calls int
}

func (s *recordingSender) Send(_ context.Context, msg bus.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.fail[msg.ChatID]; err != nil {
		return err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) to(chatID int64) []bus.OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []bus.OutboundMessage
	for _, msg := range s.sent {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out
}

func fixedNow() time.Time {
	return time.Date(2025, 5, 20, 9, 30, 0, 0, time.UTC)
}

func newTestRelay(t *testing.T, sender Sender) *Relay {
	t.Helper()
	r, err := New(sender, Options{BroadcastChatID: broadcastChatID, Now: fixedNow}, nil)
	require.NoError(t, err)
	return r
}

func aliceSubmission(t *testing.T) Submission {
	t.Helper()
	payload, err := booking.Decode(`{"name":"Alice","email":"a@x.com","date":"2025-06-01"}`)
	require.NoError(t, err)

	return Submission{
		ChatID:    123,
		MessageID: 77,
		Submitter: bus.Sender{ID: 555, DisplayName: "Alice", Username: "alice"},
		Payload:   payload,
	}
}

func TestSubmitBroadcastsThenAcknowledges(t *testing.T) {
	sender := &recordingSender{}
	r := newTestRelay(t, sender)

	result, err := r.Submit(context.Background(), aliceSubmission(t))
	require.NoError(t, err)
	require.False(t, result.Duplicate)
	require.Equal(t, "SS-77", result.OrderRef)
	require.Equal(t, "123:77", result.Key)

	require.Len(t, sender.sent, 2)
	require.Equal(t, broadcastChatID, sender.sent[0].ChatID, "broadcast must be sent first")
	require.Equal(t, int64(123), sender.sent[1].ChatID)

	broadcast := sender.sent[0].Text
	for _, want := range []string{"Alice", "a@x.com", "2025-06-01", "1 guest(s)", "SS-77", "@alice", "2025-05-20 09:30:00 UTC"} {
		require.Contains(t, broadcast, want)
	}
	require.Equal(t, bus.ParseHTML, sender.sent[0].ParseMode)

	ack := sender.sent[1].Text
	for _, want := range []string{"SS-77", "2025-06-01", "1 guest(s)"} {
		require.Contains(t, ack, want)
	}
}

func TestSubmitSuppressesDuplicates(t *testing.T) {
	sender := &recordingSender{}
	r := newTestRelay(t, sender)
	sub := aliceSubmission(t)

	_, err := r.Submit(context.Background(), sub)
	require.NoError(t, err)

	result, err := r.Submit(context.Background(), sub)
	require.NoError(t, err)
	require.True(t, result.Duplicate)

	require.Len(t, sender.to(broadcastChatID), 1)
	require.Len(t, sender.to(123), 1)

	other := sub
	other.MessageID = 78
	_, err = r.Submit(context.Background(), other)
	require.NoError(t, err)
	require.Len(t, sender.to(broadcastChatID), 2)
}

func TestSubmitBroadcastFailureSkipsAckAndAllowsRetry(t *testing.T) {
	sendErr := errors.New("chat not found")
	sender := &recordingSender{fail: map[int64]error{broadcastChatID: sendErr}}
	r := newTestRelay(t, sender)
	sub := aliceSubmission(t)

	_, err := r.Submit(context.Background(), sub)
	require.ErrorIs(t, err, ErrBroadcastFailed)
	require.ErrorIs(t, err, sendErr)
	require.Empty(t, sender.to(123), "acknowledgment must be skipped")

	sender.fail = nil
	result, err := r.Submit(context.Background(), sub)
	require.NoError(t, err)
	require.False(t, result.Duplicate)
	require.Len(t, sender.to(broadcastChatID), 1)
}

// gatedSender holds the first broadcast until release is closed and fails it.
type gatedSender struct {
	recordingSender
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedSender) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if msg.ChatID == broadcastChatID {
		first := false
		s.once.Do(func() { first = true })
		if first {
			close(s.started)
			<-s.release
			return errors.New("flood control exceeded")
		}
	}
	return s.recordingSender.Send(ctx, msg)
}

func TestConcurrentRedeliveryTakesOverFailedBroadcast(t *testing.T) {
	sender := &gatedSender{started: make(chan struct{}), release: make(chan struct{})}
	r := newTestRelay(t, sender)
	sub := aliceSubmission(t)

	type outcome struct {
		result Result
		err    error
	}
	outcomes := make(chan outcome, 2)
	submit := func() {
		result, err := r.Submit(context.Background(), sub)
		outcomes <- outcome{result: result, err: err}
	}

	go submit()
	<-sender.started
	go submit()
	time.Sleep(50 * time.Millisecond)
	close(sender.release)

	var failed, relayed int
	for range 2 {
		got := <-outcomes
		require.False(t, got.result.Duplicate, "redelivery must not be dropped while the first attempt is failing")
		if got.err != nil {
			require.ErrorIs(t, got.err, ErrBroadcastFailed)
			failed++
			continue
		}
		relayed++
	}

	require.Equal(t, 1, failed)
	require.Equal(t, 1, relayed)
	require.Len(t, sender.to(broadcastChatID), 1)
	require.Len(t, sender.to(123), 1)
}

func TestSubmitWaitingForInFlightAttemptHonoursContext(t *testing.T) {
	sender := &gatedSender{started: make(chan struct{}), release: make(chan struct{})}
	r := newTestRelay(t, sender)
	sub := aliceSubmission(t)

	done := make(chan error, 1)
	go func() {
		_, err := r.Submit(context.Background(), sub)
		done <- err
	}()
	<-sender.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Submit(ctx, sub)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(sender.release)
	require.ErrorIs(t, <-done, ErrBroadcastFailed)
}

func TestSubmitAckFailureIsReportedAndNotRetried(t *testing.T) {
	sender := &recordingSender{fail: map[int64]error{123: errors.New("bot was blocked by the user")}}
	r := newTestRelay(t, sender)
	sub := aliceSubmission(t)

	_, err := r.Submit(context.Background(), sub)
	require.ErrorIs(t, err, ErrAckFailed)
	require.Len(t, sender.to(broadcastChatID), 1)
	require.Equal(t, 2, sender.calls)

	result, err := r.Submit(context.Background(), sub)
	require.NoError(t, err)
	require.True(t, result.Duplicate)
	require.Equal(t, 2, sender.calls)
}

func TestSubmitAppliesSendTimeout(t *testing.T) {
	var deadlines []bool
	sender := senderFunc(func(ctx context.Context, _ bus.OutboundMessage) error {
		_, ok := ctx.Deadline()
		deadlines = append(deadlines, ok)
		return nil
	})

	r, err := New(sender, Options{BroadcastChatID: broadcastChatID, SendTimeout: time.Second}, nil)
	require.NoError(t, err)

	_, err = r.Submit(context.Background(), aliceSubmission(t))
	require.NoError(t, err)
	require.Equal(t, []bool{true, true}, deadlines)
}

type senderFunc func(context.Context, bus.OutboundMessage) error

func (f senderFunc) Send(ctx context.Context, msg bus.OutboundMessage) error { return f(ctx, msg) }

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(nil, Options{BroadcastChatID: 1}, nil)
	require.Error(t, err)

	_, err = New(&recordingSender{}, Options{}, nil)
	require.Error(t, err)
}

func TestRenderNotificationKeepsValuesVerbatim(t *testing.T) {
	long := strings.Repeat("party ", 60)
	n := Notification{
		Payload: booking.Payload{
			Name:    "Виктор Вальмонт",
			Email:   "victor.valmont+show@example.com",
			Date:    "2025-12-31",
			Guests:  25,
			Message: strings.TrimSpace(long),
		},
		Submitter:   bus.Sender{ID: 9, DisplayName: "Victor"},
		OrderRef:    OrderRef(1),
		SubmittedAt: fixedNow(),
	}

	text := RenderNotification(n)
	for _, want := range []string{n.Payload.Name, n.Payload.Email, n.Payload.Date, "25 guest(s)", n.Payload.Message} {
		require.Contains(t, text, want)
	}
}

func TestRenderEscapesMarkup(t *testing.T) {
	n := Notification{
		Payload:  booking.Payload{Name: "<b>Eve</b>", Email: "e@x.com", Date: "2025-06-01", Guests: 1, Message: "a & b"},
		OrderRef: OrderRef(3),
	}

	text := RenderNotification(n)
	require.Contains(t, text, "&lt;b&gt;Eve&lt;/b&gt;")
	require.Contains(t, text, "a &amp; b")
	require.NotContains(t, RenderAcknowledgment(n), "<b>Eve")
}
