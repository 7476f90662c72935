// Package chat talks to the chat gateway, the process that owns the chat
// platform connection and exposes message operations over HTTP.
package chat

import (
	"context"
	"errors"
)

// ErrMessageNotFound is returned when the target message no longer exists
// on the platform (deleted externally, channel gone, permissions revoked).
var ErrMessageNotFound = errors.New("message not found")

// MessageRef identifies a message on the chat platform.
type MessageRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// IsZero reports whether the reference points at nothing.
func (r MessageRef) IsZero() bool {
	return r.MessageID == ""
}

// Payload is the content of an outbound message.
type Payload struct {
	Text          string `json:"content,omitempty"`
	FilePath      string `json:"-"`
	MentionUserID string `json:"mention_user_id,omitempty"`
	// Error renders the text as an error embed.
	Error bool `json:"error,omitempty"`
}

// Client is the set of outbound operations the render service needs.
type Client interface {
	EditMessage(ctx context.Context, ref MessageRef, text string) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	SendFollowup(ctx context.Context, interactionToken string, p Payload) (MessageRef, error)
	SendMessage(ctx context.Context, channelID, replyTo string, p Payload) (MessageRef, error)
	SetPresence(ctx context.Context, text string) error
}
