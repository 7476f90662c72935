package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/cuongbtq/courtbot/internal/chat"
	"github.com/cuongbtq/courtbot/internal/chat/chattest"
	"github.com/cuongbtq/courtbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newJob() *domain.Job {
	return domain.NewJob(domain.JobSpec{
		ID:           "job-1",
		Origin:       chat.InteractionOrigin{Channel: "c1", Token: "tok"},
		Feedback:     chat.MessageRef{ChannelID: "c1", MessageID: "fb-1"},
		FeedbackText: "`Fetching messages...`",
	})
}

func TestUpdate_IdenticalTextIsSentOnce(t *testing.T) {
	client := chattest.New()
	throttle := NewThrottle(client, discardLogger())
	job := newJob()

	throttle.Update(context.Background(), job, "`Position in the queue: #1`")
	throttle.Update(context.Background(), job, "`Position in the queue: #1`")

	assert.Equal(t, 1, client.EditCount())
	_, last := job.Feedback()
	assert.Equal(t, "`Position in the queue: #1`", last)
}

func TestUpdate_SameAsInitialTextIsNoop(t *testing.T) {
	client := chattest.New()
	throttle := NewThrottle(client, discardLogger())

	throttle.Update(context.Background(), newJob(), "`Fetching messages...`")

	assert.Equal(t, 0, client.EditCount())
}

func TestUpdate_RepostsWhenEditFails(t *testing.T) {
	client := chattest.New()
	client.SetMissing("fb-1")
	throttle := NewThrottle(client, discardLogger())
	job := newJob()

	throttle.Update(context.Background(), job, "generating")

	require.Len(t, client.Sent, 1)
	assert.Equal(t, "tok", client.Sent[0].Token)
	assert.Equal(t, "generating", client.Sent[0].Payload.Text)

	ref, last := job.Feedback()
	assert.Equal(t, client.Sent[0].Ref, ref)
	assert.Equal(t, "generating", last)

	// The next change edits the reposted message.
	throttle.Update(context.Background(), job, "uploading")
	assert.Equal(t, ref, client.Edits[len(client.Edits)-1].Ref)
	assert.Len(t, client.Sent, 1)
}

func TestUpdate_FailedRepostIsRetriedLater(t *testing.T) {
	client := chattest.New()
	client.SetMissing("fb-1")
	client.FailSends = true
	throttle := NewThrottle(client, discardLogger())
	job := newJob()

	throttle.Update(context.Background(), job, "generating")

	assert.Equal(t, 1, client.EditCount())
	ref, last := job.Feedback()
	assert.Equal(t, "fb-1", ref.MessageID)
	assert.Equal(t, "`Fetching messages...`", last)

	client.FailSends = false
	throttle.Update(context.Background(), job, "generating")
	require.Len(t, client.Sent, 1)
	_, last = job.Feedback()
	assert.Equal(t, "generating", last)
}
