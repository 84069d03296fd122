package ringlog

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"showbot/pkg/bus"
)

const (
	// DefaultCapacity bounds the log when no capacity is configured.
	DefaultCapacity = 1000

	// PreviewLimit is the number of runes of message text kept per entry.
	PreviewLimit = 100
)

// Entry is an immutable snapshot of one inbound event at arrival time.
type Entry struct {
	At        time.Time
	ChatID    int64
	ChatKind  bus.ChatKind
	ChatTitle string
	UserID    int64
	UserName  string
	Media     bus.MediaKind
	Preview   string
}

// Author returns the user display name, or the chat title for channel posts.
func (e Entry) Author() string {
	if e.UserName != "" {
		return e.UserName
	}
	if e.ChatTitle != "" {
		return e.ChatTitle
	}
	return "unknown"
}

// Log is a bounded, FIFO-evicting, in-memory sequence of entries.
// The zero value is not usable; construct with New.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	size    int
}

// New returns an empty log holding at most capacity entries.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Log{entries: make([]Entry, capacity)}
}

// Capacity returns the maximum number of retained entries.
func (l *Log) Capacity() int {
	return len(l.entries)
}

// Len returns the number of entries currently held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Record snapshots an event and appends it.
func (l *Log) Record(event bus.InboundEvent) Entry {
	entry := snapshot(event)
	l.Append(entry)
	return entry
}

// Append stores entry, evicting the oldest entry when the log is full.
func (l *Log) Append(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	capacity := len(l.entries)
	if l.size < capacity {
		l.entries[(l.head+l.size)%capacity] = entry
		l.size++
		return
	}

	l.entries[l.head] = entry
	l.head = (l.head + 1) % capacity
}

// Recent returns up to n entries, most recent first.
func (l *Log) Recent(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > l.size {
		n = l.size
	}
	if n <= 0 {
		return nil
	}

	capacity := len(l.entries)
	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.head + l.size - 1 - i) % capacity
		out = append(out, l.entries[idx])
	}

	return out
}

// Clear empties the log and returns how many entries were removed.
func (l *Log) Clear() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := l.size
	clear(l.entries)
	l.head = 0
	l.size = 0
	return removed
}

func snapshot(event bus.InboundEvent) Entry {
	at := event.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	entry := Entry{
		At:        at,
		ChatID:    event.ChatID,
		ChatKind:  event.ChatKind,
		ChatTitle: event.ChatTitle,
		Media:     event.Media,
	}
	if entry.Media == "" {
		entry.Media = bus.MediaOther
	}
	if event.Sender != nil {
		entry.UserID = event.Sender.ID
		entry.UserName = event.Sender.DisplayName
	}

	text := event.Text
	if event.Kind == bus.KindCallbackQuery {
		text = event.CallbackData
	}
	entry.Preview = Truncate(text, PreviewLimit)

	return entry
}

// Truncate shortens text to at most limit runes, marking the cut with "...".
func Truncate(text string, limit int) string {
	trimmed := strings.TrimSpace(text)
	if limit <= 0 || utf8.RuneCountInString(trimmed) <= limit {
		return trimmed
	}

	runes := []rune(trimmed)
	return string(runes[:limit]) + "..."
}
