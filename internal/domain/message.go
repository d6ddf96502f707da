package domain

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageText caps stored message text; longer input is truncated.
const MaxMessageText = 2000

// MessageSender indicates who authored a message.
type MessageSender string

const (
	SenderUser      MessageSender = "user"
	SenderModerator MessageSender = "moderator"
	SenderSystem    MessageSender = "system"
)

// Message is a single entry in a ticket's append-only log.
type Message struct {
	Sender     MessageSender `json:"sender"`
	Text       string        `json:"text,omitempty"`
	TS         int64         `json:"ts"`
	By         string        `json:"by,omitempty"`
	Attachment *Attachment   `json:"attachment,omitempty"`
}

// Attachment describes an uploaded file referenced by a message.
type Attachment struct {
	URL     string `json:"url"`
	Name    string `json:"name,omitempty"`
	IsImage bool   `json:"isImage"`
	IsText  bool   `json:"isText"`
}

// SystemMessage builds a platform-authored notice.
func SystemMessage(text string, ts int64) Message {
	return Message{Sender: SenderSystem, Text: text, TS: ts}
}

// Empty reports whether the message carries neither text nor attachment.
func (m Message) Empty() bool {
	return m.Text == "" && m.Attachment == nil
}

// Clone copies the message including its attachment.
func (m Message) Clone() Message {
	if m.Attachment != nil {
		att := *m.Attachment
		m.Attachment = &att
	}
	return m
}

// TruncateText drops NUL characters and limits text to MaxMessageText characters.
func TruncateText(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	if utf8.RuneCountInString(text) <= MaxMessageText {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxMessageText])
}

// NormalizeAttachment drops attachments without a URL.
func NormalizeAttachment(att *Attachment) *Attachment {
	if att == nil || att.URL == "" {
		return nil
	}
	out := *att
	return &out
}
