// Package chattest provides an in-memory chat.Client for tests.
package chattest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuongbtq/courtbot/internal/chat"
)

// Sent is one message created through the fake.
type Sent struct {
	Ref     chat.MessageRef
	Token   string
	ReplyTo string
	Payload chat.Payload
}

// Client records every call. Messages listed in Missing behave as if they
// were deleted on the platform.
type Client struct {
	mu sync.Mutex

	Edits     []Edit
	Sent      []Sent
	Deleted   []chat.MessageRef
	Presences []string

	Missing   map[string]bool
	FailSends bool
	SendErr   error

	seq int
}

// Edit is one recorded EditMessage call.
type Edit struct {
	Ref  chat.MessageRef
	Text string
}

func New() *Client {
	return &Client{Missing: make(map[string]bool)}
}

func (c *Client) EditMessage(ctx context.Context, ref chat.MessageRef, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Edits = append(c.Edits, Edit{Ref: ref, Text: text})
	if c.Missing[ref.MessageID] {
		return chat.ErrMessageNotFound
	}
	return nil
}

func (c *Client) DeleteMessage(ctx context.Context, ref chat.MessageRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Missing[ref.MessageID] {
		return chat.ErrMessageNotFound
	}
	c.Deleted = append(c.Deleted, ref)
	c.Missing[ref.MessageID] = true
	return nil
}

func (c *Client) SendFollowup(ctx context.Context, token string, p chat.Payload) (chat.MessageRef, error) {
	return c.record(Sent{Token: token, Payload: p}, "followup")
}

func (c *Client) SendMessage(ctx context.Context, channelID, replyTo string, p chat.Payload) (chat.MessageRef, error) {
	return c.record(Sent{Ref: chat.MessageRef{ChannelID: channelID}, ReplyTo: replyTo, Payload: p}, channelID)
}

func (c *Client) SetPresence(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Presences = append(c.Presences, text)
	return nil
}

func (c *Client) record(s Sent, channel string) (chat.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailSends {
		err := c.SendErr
		if err == nil {
			err = fmt.Errorf("send failed")
		}
		return chat.MessageRef{}, err
	}
	c.seq++
	if s.Ref.ChannelID == "" {
		s.Ref.ChannelID = channel
	}
	s.Ref.MessageID = fmt.Sprintf("msg-%d", c.seq)
	c.Sent = append(c.Sent, s)
	return s.Ref, nil
}

// EditCount returns how many edits were made.
func (c *Client) EditCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Edits)
}

// SentPayloads returns a copy of every payload sent so far.
func (c *Client) SentPayloads() []chat.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chat.Payload, len(c.Sent))
	for i, s := range c.Sent {
		out[i] = s.Payload
	}
	return out
}

// LastEdit returns the most recent edit text, or "".
func (c *Client) LastEdit() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Edits) == 0 {
		return ""
	}
	return c.Edits[len(c.Edits)-1].Text
}

// DeletedRefs returns a copy of the deleted references.
func (c *Client) DeletedRefs() []chat.MessageRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.MessageRef(nil), c.Deleted...)
}

// SetMissing marks a message as gone.
func (c *Client) SetMissing(messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Missing[messageID] = true
}
