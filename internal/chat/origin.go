package chat

import (
	"context"
	"fmt"
)

const (
	OriginInteraction = "interaction"
	OriginMessage     = "message"
)

// Origin is where a render request came from. Replies to the requester are
// sent back through it.
type Origin interface {
	Kind() string
	ChannelID() string
	Reply(ctx context.Context, c Client, p Payload) (MessageRef, error)
}

// InteractionOrigin replies through interaction follow-ups (slash commands).
type InteractionOrigin struct {
	Channel string
	Token   string
}

func (o InteractionOrigin) Kind() string      { return OriginInteraction }
func (o InteractionOrigin) ChannelID() string { return o.Channel }

func (o InteractionOrigin) Reply(ctx context.Context, c Client, p Payload) (MessageRef, error) {
	return c.SendFollowup(ctx, o.Token, p)
}

// MessageOrigin replies to the message that carried a prefix command.
type MessageOrigin struct {
	Channel   string
	MessageID string
}

func (o MessageOrigin) Kind() string      { return OriginMessage }
func (o MessageOrigin) ChannelID() string { return o.Channel }

func (o MessageOrigin) Reply(ctx context.Context, c Client, p Payload) (MessageRef, error) {
	return c.SendMessage(ctx, o.Channel, o.MessageID, p)
}

// NewOrigin builds the origin variant named by kind.
func NewOrigin(kind, channelID, interactionToken, messageID string) (Origin, error) {
	switch kind {
	case OriginInteraction:
		if interactionToken == "" {
			return nil, fmt.Errorf("interaction origin requires an interaction token")
		}
		return InteractionOrigin{Channel: channelID, Token: interactionToken}, nil
	case OriginMessage:
		if messageID == "" {
			return nil, fmt.Errorf("message origin requires a message id")
		}
		return MessageOrigin{Channel: channelID, MessageID: messageID}, nil
	default:
		return nil, fmt.Errorf("unknown origin kind %q", kind)
	}
}
