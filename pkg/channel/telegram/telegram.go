package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"showbot/pkg/bus"
	"showbot/pkg/channel"
	"showbot/pkg/config"
	"showbot/pkg/ringlog"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const (
	channelName         = "telegram"
	messagePreviewLimit = 240
	longPollTimeout     = 30
)

var allowedUpdates = []string{"message", "channel_post", "callback_query"}

// Adapter bridges Telegram updates into bot events and sends replies.
type Adapter struct {
	cfg config.TelegramConfig
	bot *telego.Bot
	log *slog.Logger
	now func() time.Time
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, fmt.Errorf("telegram token: %w", config.ErrConfigMissing)
	}

	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "channel.telegram")

	bot, err := telego.NewBot(token, telego.WithLogger(transportLogger{log: log}))
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	return &Adapter{
		cfg: cfg,
		bot: bot,
		log: log,
		now: time.Now,
	}, nil
}

// Name returns the channel identifier used in logs and status output.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts Telegram long polling and publishes normalized events to sink
// in the order Telegram delivers them.
func (a *Adapter) Run(ctx context.Context, sink channel.Sink) error {
	if sink == nil {
		return errors.New("sink is required")
	}

	updates, err := a.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        longPollTimeout,
		AllowedUpdates: allowedUpdates,
	})
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			event, ok := toEvent(update, a.now().UTC())
			if !ok {
				a.handleUnroutable(ctx, update)
				continue
			}

			a.log.Debug("Received update", "update_id", update.UpdateID, "event_id", event.ID, "kind", event.Kind, "chat_id", event.ChatID, "content", previewText(event.Text))
			if !sink(ctx, event) {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("event sink closed")
			}
		}
	}
}

// Send delivers one outbound message through the Bot API.
func (a *Adapter) Send(ctx context.Context, msg bus.OutboundMessage) error {
	params := tu.Message(tu.ID(msg.ChatID), msg.Text)
	if mode := parseMode(msg.ParseMode); mode != "" {
		params = params.WithParseMode(mode)
	}
	if markup := inlineKeyboard(msg.Keyboard); markup != nil {
		params = params.WithReplyMarkup(markup)
	}

	if _, err := a.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send telegram message to %d: %w", msg.ChatID, err)
	}

	a.log.Debug("Sent message", "chat_id", msg.ChatID, "content", previewText(msg.Text))
	return nil
}

// AnswerCallback clears the pending indicator on a pressed inline button.
func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	params := &telego.AnswerCallbackQueryParams{CallbackQueryID: callbackID, Text: text}
	if err := a.bot.AnswerCallbackQuery(ctx, params); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}
	return nil
}

// handleUnroutable acknowledges callbacks that carry no chat so the client
// does not keep spinning; other updates without a chat are dropped.
func (a *Adapter) handleUnroutable(ctx context.Context, update telego.Update) {
	if update.CallbackQuery == nil {
		a.log.Debug("Ignoring unsupported update", "update_id", update.UpdateID)
		return
	}

	if err := a.AnswerCallback(ctx, update.CallbackQuery.ID, ""); err != nil {
		a.log.Warn("Failed to answer callback without chat", "update_id", update.UpdateID, "error", err)
	}
}

// toEvent maps one Telegram update into an inbound event. It reports false
// for updates the bot does not route.
//
// The Bot API has no dedicated update for mini-app submissions: web_app_data
// only arrives on a service message, so submissions are always emitted as
// bus.KindTextMessage carrying MiniAppData and never as bus.KindMiniAppData.
// A redelivered update therefore reaches the relay as a second text event.
func toEvent(update telego.Update, arrivedAt time.Time) (bus.InboundEvent, bool) {
	var event bus.InboundEvent

	switch {
	case update.Message != nil:
		event = messageEvent(update.Message, bus.KindTextMessage)
		if update.Message.WebAppData != nil {
			event.MiniAppData = update.Message.WebAppData.Data
		}
	case update.ChannelPost != nil:
		event = messageEvent(update.ChannelPost, bus.KindChannelPost)
		event.Sender = nil
	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		if query.Message == nil {
			return bus.InboundEvent{}, false
		}
		chat := query.Message.GetChat()
		event = bus.InboundEvent{
			Kind:         bus.KindCallbackQuery,
			ChatID:       chat.ID,
			ChatKind:     bus.ChatKind(chat.Type),
			ChatTitle:    chatTitle(chat),
			Sender:       sender(&query.From),
			MessageID:    query.Message.GetMessageID(),
			Media:        bus.MediaOther,
			CallbackID:   query.ID,
			CallbackData: query.Data,
		}
	default:
		return bus.InboundEvent{}, false
	}

	event.ID = uuid.NewString()
	event.At = arrivedAt
	return event, true
}

func messageEvent(msg *telego.Message, kind bus.EventKind) bus.InboundEvent {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	return bus.InboundEvent{
		Kind:      kind,
		ChatID:    msg.Chat.ID,
		ChatKind:  bus.ChatKind(msg.Chat.Type),
		ChatTitle: chatTitle(msg.Chat),
		Sender:    sender(msg.From),
		MessageID: msg.MessageID,
		Media:     mediaKind(msg),
		Text:      text,
	}
}

func mediaKind(msg *telego.Message) bus.MediaKind {
	switch {
	case msg.Text != "":
		return bus.MediaText
	case len(msg.Photo) > 0:
		return bus.MediaPhoto
	case msg.Video != nil:
		return bus.MediaVideo
	case msg.Document != nil:
		return bus.MediaDocument
	default:
		return bus.MediaOther
	}
}

func sender(user *telego.User) *bus.Sender {
	if user == nil {
		return nil
	}

	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.Username
	}

	return &bus.Sender{ID: user.ID, DisplayName: name, Username: user.Username}
}

func chatTitle(chat telego.Chat) string {
	if chat.Title != "" {
		return chat.Title
	}
	return strings.TrimSpace(chat.FirstName + " " + chat.LastName)
}

func parseMode(mode bus.ParseMode) string {
	switch mode {
	case bus.ParseHTML:
		return telego.ModeHTML
	case bus.ParseMarkdown:
		return telego.ModeMarkdown
	default:
		return ""
	}
}

func inlineKeyboard(keyboard bus.Keyboard) *telego.InlineKeyboardMarkup {
	if len(keyboard) == 0 {
		return nil
	}

	rows := make([][]telego.InlineKeyboardButton, 0, len(keyboard))
	for _, row := range keyboard {
		buttons := make([]telego.InlineKeyboardButton, 0, len(row))
		for _, button := range row {
			tgButton := telego.InlineKeyboardButton{Text: button.Text}
			switch {
			case button.WebAppURL != "":
				tgButton.WebApp = &telego.WebAppInfo{URL: button.WebAppURL}
			default:
				tgButton.CallbackData = button.CallbackData
			}
			buttons = append(buttons, tgButton)
		}
		rows = append(rows, buttons)
	}

	return &telego.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	return ringlog.Truncate(text, messagePreviewLimit)
}

// transportLogger routes telego's polling and request diagnostics into slog.
type transportLogger struct {
	log *slog.Logger
}

func (l transportLogger) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l transportLogger) Errorf(format string, args ...any) {
	l.log.Error("Telegram transport error", "error", fmt.Sprintf(format, args...))
}
