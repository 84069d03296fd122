package bus

import "time"

// EventKind discriminates the InboundEvent variants.
type EventKind string

const (
	KindTextMessage   EventKind = "text_message"
	KindChannelPost   EventKind = "channel_post"
	KindCallbackQuery EventKind = "callback_query"
	// KindMiniAppData is for transports that report submissions as their
	// own event. The Telegram adapter does not; see its toEvent mapping.
	KindMiniAppData EventKind = "mini_app_data"
)

// ChatKind is the transport's classification of the originating chat.
type ChatKind string

const (
	ChatPrivate    ChatKind = "private"
	ChatGroup      ChatKind = "group"
	ChatSupergroup ChatKind = "supergroup"
	ChatChannel    ChatKind = "channel"
)

// Loggable reports whether events from this chat kind belong in the ring log.
func (k ChatKind) Loggable() bool {
	switch k {
	case ChatPrivate, ChatGroup, ChatSupergroup, ChatChannel:
		return true
	default:
		return false
	}
}

// MediaKind tags the content carried by a message.
type MediaKind string

const (
	MediaText     MediaKind = "text"
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
	MediaOther    MediaKind = "other"
)

// Sender identifies the user behind an event. Channel posts have none.
type Sender struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username,omitempty"`
}

// InboundEvent is one transport notification, normalized for the dispatcher.
//
// ChatID is always set. MiniAppData is the raw payload for KindMiniAppData
// events, and may also be attached to a KindTextMessage when the transport
// reports the submission as an attribute of an ordinary message.
type InboundEvent struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	ChatID    int64     `json:"chat_id"`
	ChatKind  ChatKind  `json:"chat_kind"`
	ChatTitle string    `json:"chat_title,omitempty"`
	Sender    *Sender   `json:"sender,omitempty"`
	MessageID int       `json:"message_id,omitempty"`
	At        time.Time `json:"at"`

	Media MediaKind `json:"media,omitempty"`
	Text  string    `json:"text,omitempty"`

	CallbackID   string `json:"callback_id,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`

	MiniAppData string `json:"mini_app_data,omitempty"`
}

// IsMiniAppSubmission reports whether the event carries a mini-app payload
// through either delivery path.
func (e InboundEvent) IsMiniAppSubmission() bool {
	if e.Kind == KindMiniAppData {
		return true
	}
	return e.Kind == KindTextMessage && e.MiniAppData != ""
}

// ParseMode selects rich-text rendering for an outbound message.
type ParseMode string

const (
	ParsePlain    ParseMode = ""
	ParseHTML     ParseMode = "HTML"
	ParseMarkdown ParseMode = "Markdown"
)

// Button is one inline keyboard button. Exactly one of CallbackData or
// WebAppURL should be set.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	WebAppURL    string `json:"web_app_url,omitempty"`
}

// Keyboard is an inline keyboard laid out as rows of buttons.
type Keyboard [][]Button

// OutboundMessage is a send-message request handed to the transport.
type OutboundMessage struct {
	ChatID    int64     `json:"chat_id"`
	Text      string    `json:"text"`
	ParseMode ParseMode `json:"parse_mode,omitempty"`
	Keyboard  Keyboard  `json:"keyboard,omitempty"`
}
