package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"showbot/pkg/bus"
	"showbot/pkg/ringlog"
)

// Command is one entry of the fixed text-command vocabulary.
type Command string

const (
	CmdStart     Command = "/start"
	CmdHelp      Command = "/help"
	CmdShows     Command = "/shows"
	CmdBook      Command = "/book"
	CmdContact   Command = "/contact"
	CmdLogs      Command = "/logs"
	CmdLogsClear Command = "/logs-clear"
	CmdStatus    Command = "/status"
)

// CallbackAction is the opaque identifier carried by an inline button press.
type CallbackAction string

const (
	ActionBookShow CallbackAction = "book_show"
	ActionAbout    CallbackAction = "about"
)

const (
	logsListLimit    = 10
	logsPreviewLimit = 50
)

// Journal is the read/clear view of the ring log used by operator commands.
type Journal interface {
	Recent(n int) []ringlog.Entry
	Clear() int
	Len() int
	Capacity() int
}

// Request carries the context a command or callback is answered in.
type Request struct {
	ChatID int64
	Sender *bus.Sender
}

// CallbackReply is the response to a button press: an optional toast shown
// by the client plus an optional follow-up message.
type CallbackReply struct {
	Toast   string
	Message *bus.OutboundMessage
}

// Options configures a Router.
type Options struct {
	WebAppURL string
	// Operators lists sender ids allowed to run operator commands. Empty
	// means every sender is allowed.
	Operators []string
	Journal   Journal
	// DedupSize reports the number of remembered submission keys.
	DedupSize func() int
	StartedAt time.Time
	Now       func() time.Time
}

type commandHandler func(Request) bus.OutboundMessage

type commandEntry struct {
	handle       commandHandler
	operatorOnly bool
}

type callbackHandler func(Request) CallbackReply

// Router maps commands and callback actions to fixed or log-derived replies.
type Router struct {
	webAppURL string
	operators map[string]struct{}
	journal   Journal
	dedupSize func() int
	startedAt time.Time
	now       func() time.Time

	commands  map[Command]commandEntry
	callbacks map[CallbackAction]callbackHandler
}

func New(opts Options) (*Router, error) {
	if opts.Journal == nil {
		return nil, errors.New("journal is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StartedAt.IsZero() {
		opts.StartedAt = opts.Now()
	}
	if opts.DedupSize == nil {
		opts.DedupSize = func() int { return 0 }
	}

	r := &Router{
		webAppURL: strings.TrimRight(strings.TrimSpace(opts.WebAppURL), "/"),
		operators: operatorSet(opts.Operators),
		journal:   opts.Journal,
		dedupSize: opts.DedupSize,
		startedAt: opts.StartedAt,
		now:       opts.Now,
	}

	r.commands = map[Command]commandEntry{
		CmdStart:     {handle: r.start},
		CmdHelp:      {handle: r.help},
		CmdShows:     {handle: r.shows},
		CmdBook:      {handle: r.book},
		CmdContact:   {handle: r.contact},
		CmdLogs:      {handle: r.logs, operatorOnly: true},
		CmdLogsClear: {handle: r.logsClear, operatorOnly: true},
		CmdStatus:    {handle: r.status, operatorOnly: true},
	}
	r.callbacks = map[CallbackAction]callbackHandler{
		ActionBookShow: r.bookShow,
		ActionAbout:    r.about,
	}

	return r, nil
}

// Commands returns the command vocabulary the router answers.
func (r *Router) Commands() []Command {
	return []Command{CmdStart, CmdHelp, CmdShows, CmdBook, CmdContact, CmdLogs, CmdLogsClear, CmdStatus}
}

// ParseCommand extracts a known command from message text. A trailing
// "@botname" on the command token is ignored.
func (r *Router) ParseCommand(text string) (Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", false
	}

	token, _, _ := strings.Cut(fields[0], "@")
	cmd := Command(strings.ToLower(token))
	if _, ok := r.commands[cmd]; !ok {
		return "", false
	}

	return cmd, true
}

// HandleCommand answers a known command. It reports false for unknown ones.
func (r *Router) HandleCommand(cmd Command, req Request) (bus.OutboundMessage, bool) {
	entry, ok := r.commands[cmd]
	if !ok {
		return bus.OutboundMessage{}, false
	}

	if entry.operatorOnly && !r.isOperator(req.Sender) {
		return bus.OutboundMessage{ChatID: req.ChatID, Text: "⛔ This command is available to operators only."}, true
	}

	msg := entry.handle(req)
	msg.ChatID = req.ChatID
	return msg, true
}

// HandleCallback answers a known button press. It reports false for unknown
// actions; the caller still acknowledges the press.
func (r *Router) HandleCallback(action CallbackAction, req Request) (CallbackReply, bool) {
	handle, ok := r.callbacks[action]
	if !ok {
		return CallbackReply{}, false
	}

	reply := handle(req)
	if reply.Message != nil {
		reply.Message.ChatID = req.ChatID
	}
	return reply, true
}

// ClearsLog reports whether cmd empties the ring log for this requester.
// The clearing message is covered by the clear and is not logged after it.
func (r *Router) ClearsLog(cmd Command, req Request) bool {
	return cmd == CmdLogsClear && r.isOperator(req.Sender)
}

func (r *Router) isOperator(sender *bus.Sender) bool {
	if len(r.operators) == 0 {
		return true
	}
	if sender == nil {
		return false
	}

	_, ok := r.operators[strconv.FormatInt(sender.ID, 10)]
	return ok
}

func (r *Router) bookingURL() string {
	return r.webAppURL + "#booking"
}

func (r *Router) logs(Request) bus.OutboundMessage {
	total := r.journal.Len()
	if total == 0 {
		return bus.OutboundMessage{Text: "📋 The log is empty (0 entries)."}
	}

	entries := r.journal.Recent(logsListLimit)

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Last %d of %d entries (capacity %d):\n", len(entries), total, r.journal.Capacity())
	for _, entry := range entries {
		fmt.Fprintf(&b, "\n[%s] %s %d · %s · %s",
			entry.At.UTC().Format("2006-01-02 15:04:05"),
			entry.ChatKind,
			entry.ChatID,
			entry.Author(),
			entry.Media,
		)
		if preview := ringlog.Truncate(entry.Preview, logsPreviewLimit); preview != "" {
			fmt.Fprintf(&b, ": %s", preview)
		}
	}

	return bus.OutboundMessage{Text: b.String()}
}

func (r *Router) logsClear(Request) bus.OutboundMessage {
	removed := r.journal.Clear()
	return bus.OutboundMessage{Text: fmt.Sprintf("🧹 Cleared %d log entries.", removed)}
}

func (r *Router) status(Request) bus.OutboundMessage {
	uptime := r.now().Sub(r.startedAt).Truncate(time.Second)

	var b strings.Builder
	b.WriteString("📊 Bot status\n\n")
	fmt.Fprintf(&b, "Ring log: %d/%d entries\n", r.journal.Len(), r.journal.Capacity())
	fmt.Fprintf(&b, "Dedup window: %d submissions\n", r.dedupSize())
	fmt.Fprintf(&b, "Uptime: %s\n", uptime)
	fmt.Fprintf(&b, "Logged chat types: %s, %s, %s, %s", bus.ChatPrivate, bus.ChatGroup, bus.ChatSupergroup, bus.ChatChannel)

	return bus.OutboundMessage{Text: b.String()}
}

func operatorSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		set[trimmed] = struct{}{}
	}

	if len(set) == 0 {
		return nil
	}

	return set
}
