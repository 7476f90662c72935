// Package notify keeps a job's feedback message in sync with its progress
// without repeating identical updates.
package notify

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/courtbot/internal/chat"
	"github.com/cuongbtq/courtbot/internal/domain"
)

// Throttle edits feedback messages only when their text changes.
type Throttle struct {
	client chat.Client
	logger *slog.Logger
}

// NewThrottle creates a throttle sending through client
func NewThrottle(client chat.Client, logger *slog.Logger) *Throttle {
	return &Throttle{client: client, logger: logger}
}

// Update shows text on the job's feedback message. Identical text is a
// no-op. When the edit fails the message is reposted through the job origin
// and the new message becomes the feedback handle. A failed repost is only
// logged; the text is retried on the next call.
func (t *Throttle) Update(ctx context.Context, job *domain.Job, text string) {
	ref, last := job.Feedback()
	if text == last {
		return
	}

	editErr := t.client.EditMessage(ctx, ref, text)
	if editErr == nil {
		job.SetFeedback(ref, text)
		return
	}

	t.logger.Warn("Failed to edit feedback message, reposting",
		slog.String("job_id", job.ID),
		slog.String("message_id", ref.MessageID),
		slog.String("error", editErr.Error()),
	)

	origin := job.Origin()
	if origin == nil {
		t.logger.Error("Job has no origin to repost feedback to",
			slog.String("job_id", job.ID),
		)
		return
	}

	newRef, err := origin.Reply(ctx, t.client, chat.Payload{Text: text})
	if err != nil {
		t.logger.Error("Failed to repost feedback message",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	job.SetFeedback(newRef, text)
	t.logger.Debug("Feedback message reposted",
		slog.String("job_id", job.ID),
		slog.String("message_id", newRef.MessageID),
	)
}
