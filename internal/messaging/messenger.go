// Package messaging delivers outbound messages to participants. The chat
// transport itself lives outside this service; messages are handed to a
// sink (a log or a Kafka topic) that the transport consumes.
package messaging

import (
	"context"
	"log/slog"
)

// Kind distinguishes plain text from photo messages.
type Kind string

const (
	KindText  Kind = "text"
	KindPhoto Kind = "photo"
)

// Option is an inline reply choice attached to a message.
type Option struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Message is an outbound message. PhotoID and Caption are set for KindPhoto.
type Message struct {
	Kind    Kind     `json:"kind"`
	Text    string   `json:"text,omitempty"`
	PhotoID string   `json:"photo_id,omitempty"`
	Caption string   `json:"caption,omitempty"`
	Options []Option `json:"options,omitempty"`
}

// Text builds a text message with optional inline choices.
func Text(text string, options ...Option) Message {
	return Message{Kind: KindText, Text: text, Options: options}
}

// Photo builds a photo message.
func Photo(photoID, caption string, options ...Option) Message {
	return Message{Kind: KindPhoto, PhotoID: photoID, Caption: caption, Options: options}
}

// Messenger sends a message to one participant.
type Messenger interface {
	Send(ctx context.Context, to string, msg Message) error
}

// LogMessenger writes every message to the logger. It is the default sink
// for development and single-process deployments.
type LogMessenger struct {
	logger *slog.Logger
}

func NewLogMessenger(logger *slog.Logger) *LogMessenger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LogMessenger{logger: logger}
}

func (m *LogMessenger) Send(ctx context.Context, to string, msg Message) error {
	m.logger.InfoContext(ctx, "outbound message",
		"to", to,
		"kind", msg.Kind,
		"text", msg.Text,
		"photo_id", msg.PhotoID,
		"caption", msg.Caption,
		"options", len(msg.Options),
	)
	return nil
}
