package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// HTTPClient implements Client against the chat gateway REST API.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a gateway client. token is sent as a bearer token
// when non-empty.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type editRequest struct {
	Content string `json:"content"`
}

type sendRequest struct {
	Payload
	ReplyTo string `json:"reply_to,omitempty"`
}

type presenceRequest struct {
	Activity string `json:"activity"`
}

// EditMessage replaces the text content of a message.
func (c *HTTPClient) EditMessage(ctx context.Context, ref MessageRef, text string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", url.PathEscape(ref.ChannelID), url.PathEscape(ref.MessageID))
	return c.doJSON(ctx, http.MethodPatch, path, editRequest{Content: text}, nil)
}

// DeleteMessage removes a message. A missing message yields ErrMessageNotFound.
func (c *HTTPClient) DeleteMessage(ctx context.Context, ref MessageRef) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", url.PathEscape(ref.ChannelID), url.PathEscape(ref.MessageID))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// SendFollowup posts a follow-up message for an interaction.
func (c *HTTPClient) SendFollowup(ctx context.Context, interactionToken string, p Payload) (MessageRef, error) {
	path := fmt.Sprintf("/interactions/%s/followups", url.PathEscape(interactionToken))
	return c.send(ctx, path, sendRequest{Payload: p}, p.FilePath)
}

// SendMessage posts a message to a channel, optionally as a reply.
func (c *HTTPClient) SendMessage(ctx context.Context, channelID, replyTo string, p Payload) (MessageRef, error) {
	path := fmt.Sprintf("/channels/%s/messages", url.PathEscape(channelID))
	return c.send(ctx, path, sendRequest{Payload: p, ReplyTo: replyTo}, p.FilePath)
}

// SetPresence changes the bot activity text.
func (c *HTTPClient) SetPresence(ctx context.Context, text string) error {
	return c.doJSON(ctx, http.MethodPut, "/presence", presenceRequest{Activity: text}, nil)
}

func (c *HTTPClient) send(ctx context.Context, path string, body sendRequest, filePath string) (MessageRef, error) {
	var ref MessageRef
	if filePath == "" {
		err := c.doJSON(ctx, http.MethodPost, path, body, &ref)
		return ref, err
	}

	payloadJSON, err := json.Marshal(body)
	if err != nil {
		return ref, fmt.Errorf("failed to encode payload: %w", err)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return ref, fmt.Errorf("failed to open attachment: %w", err)
	}
	defer f.Close()

	// The body is streamed so large artifacts are never held in memory.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := mw.WriteField("payload_json", string(payloadJSON))
		if err == nil {
			var part io.Writer
			part, err = mw.CreateFormFile("file", filepath.Base(filePath))
			if err == nil {
				_, err = io.Copy(part, f)
			}
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, pr)
	if err != nil {
		pr.Close()
		return ref, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	err = c.do(req, &ref)
	return ref, err
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return ErrMessageNotFound
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("chat gateway http %d: %s", res.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}
