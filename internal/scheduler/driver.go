package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cuongbtq/courtbot/internal/chat"
	"github.com/cuongbtq/courtbot/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Notifier shows progress text on a job's feedback message.
type Notifier interface {
	Update(ctx context.Context, job *domain.Job, text string)
}

// Uploader moves an oversized artifact to an external host.
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// Cleaner removes the files of a finished job.
type Cleaner interface {
	Clean(job *domain.Job)
}

// Deletions schedules a message for later removal.
type Deletions interface {
	Schedule(target chat.MessageRef)
}

// Recorder stores the outcome of a finished job.
type Recorder interface {
	Record(ctx context.Context, job *domain.Job) error
}

// DriverConfig holds driver dependencies
type DriverConfig struct {
	Scheduler *Scheduler
	Notifier  Notifier
	Chat      chat.Client
	// Uploader is the fallback for artifacts above the upload limit; nil
	// reports oversized artifacts as failed uploads.
	Uploader  Uploader
	Cleaner   Cleaner
	Deletions Deletions
	// Recorder is optional.
	Recorder Recorder
	Clock    clockwork.Clock
	Interval time.Duration
	// PresencePrefix is the command prefix shown in the bot activity.
	PresencePrefix string
	RetentionNote  string
	Logger         *slog.Logger
}

// Driver walks the live queue on every tick: it reports progress, delivers
// rendered artifacts, finishes jobs and prunes them.
type Driver struct {
	sched     *Scheduler
	notifier  Notifier
	chat      chat.Client
	uploader  Uploader
	cleaner   Cleaner
	deletions Deletions
	recorder  Recorder
	clock     clockwork.Clock
	interval  time.Duration
	prefix    string
	retention string
	logger    *slog.Logger

	// lastPresence is only touched from Tick, which is never concurrent.
	lastPresence string
}

func NewDriver(cfg DriverConfig) *Driver {
	d := &Driver{
		sched:     cfg.Scheduler,
		notifier:  cfg.Notifier,
		chat:      cfg.Chat,
		uploader:  cfg.Uploader,
		cleaner:   cfg.Cleaner,
		deletions: cfg.Deletions,
		recorder:  cfg.Recorder,
		clock:     cfg.Clock,
		interval:  cfg.Interval,
		prefix:    cfg.PresencePrefix,
		retention: cfg.RetentionNote,
		logger:    cfg.Logger,
	}
	if d.clock == nil {
		d.clock = clockwork.NewRealClock()
	}
	if d.interval <= 0 {
		d.interval = 5 * time.Second
	}
	if d.prefix == "" {
		d.prefix = "/"
	}
	if d.retention == "" {
		d.retention = defaultRetentionMsg
	}
	return d
}

// Run ticks every interval until ctx is canceled.
func (d *Driver) Run(ctx context.Context) {
	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("Queue driver started",
		slog.Duration("interval", d.interval),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Queue driver stopped")
			return
		case <-ticker.Chan():
			d.Tick(ctx)
		}
	}
}

// Tick visits every live job in queue order once.
func (d *Driver) Tick(ctx context.Context) {
	jobs := d.sched.Jobs()
	d.updatePresence(ctx, len(jobs))

	for i, job := range jobs {
		if err := d.step(ctx, job, i+1); err != nil {
			d.logger.Error("Failed to advance job, finishing it",
				slog.String("job_id", job.ID),
				slog.String("state", job.State().String()),
				slog.String("error", err.Error()),
			)
			job.Finish(d.clock.Now(), domain.OutcomeAborted)
		}

		if job.Finalize() {
			d.finalize(ctx, job)
		}
	}

	if removed := d.sched.pruneDone(); removed > 0 {
		d.logger.Debug("Finished jobs pruned",
			slog.Int("removed", removed),
			slog.Int("remaining", d.sched.Len()),
		)
	}
}

func (d *Driver) step(ctx context.Context, job *domain.Job, position int) error {
	switch job.State() {
	case domain.StateQueued:
		d.notifier.Update(ctx, job, queuedText(position))
	case domain.StateInProgress:
		d.notifier.Update(ctx, job, generatingText())
	case domain.StateFailed:
		d.notifier.Update(ctx, job, generationFailedText())
		d.replyError(ctx, job, renderFailedReply(job.FailureReason()))
		job.Finish(d.clock.Now(), domain.OutcomeRenderFailed)
	case domain.StateRendered:
		return d.deliver(ctx, job)
	}
	return nil
}

// deliver uploads a rendered artifact to the chat channel, or to the
// fallback host when it is above the channel limit. The job ends Done
// whether or not the upload worked.
func (d *Driver) deliver(ctx context.Context, job *domain.Job) error {
	d.notifier.Update(ctx, job, uploadingText())

	if err := job.Transition(domain.StateRendered, domain.StateUploading); err != nil {
		return err
	}

	info, err := os.Stat(job.OutputPath)
	if err != nil {
		d.logger.Error("Rendered artifact unavailable",
			slog.String("job_id", job.ID),
			slog.String("path", job.OutputPath),
			slog.String("error", err.Error()),
		)
		d.notifier.Update(ctx, job, uploadFailedText())
		d.replyError(ctx, job, "The rendered video could not be found, please try again.")
		job.Finish(d.clock.Now(), domain.OutcomeAborted)
		return nil
	}

	if info.Size() < job.UploadLimit {
		d.uploadToChat(ctx, job)
		return nil
	}
	d.uploadExternal(ctx, job, info.Size())
	return nil
}

func (d *Driver) uploadToChat(ctx context.Context, job *domain.Job) {
	_, err := job.Origin().Reply(ctx, d.chat, chat.Payload{
		MentionUserID: job.RequesterID,
		FilePath:      job.OutputPath,
	})
	if err != nil {
		d.logger.Error("Failed to upload video to chat",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		d.notifier.Update(ctx, job, uploadFailedText())
		d.replyError(ctx, job, "Failed to upload the video, please try again later.")
		job.Finish(d.clock.Now(), domain.OutcomeUploadFailed)
		return
	}

	job.Finish(d.clock.Now(), domain.OutcomeUploaded)
	d.notifier.Update(ctx, job, uploadedText())
}

func (d *Driver) uploadExternal(ctx context.Context, job *domain.Job, size int64) {
	d.notifier.Update(ctx, job, externalText(size, lineExternal))

	var link string
	err := fmt.Errorf("no external upload host configured")
	if d.uploader != nil {
		link, err = d.uploader.Upload(ctx, job.OutputPath)
	}
	if err != nil {
		d.logger.Error("Failed to upload video externally",
			slog.String("job_id", job.ID),
			slog.Int64("size", size),
			slog.String("error", err.Error()),
		)
		d.notifier.Update(ctx, job, externalText(size, lineExternalFail))
		d.replyError(ctx, job, err.Error())
		job.Finish(d.clock.Now(), domain.OutcomeUploadFailed)
		return
	}

	d.notifier.Update(ctx, job, externalText(size, lineExternalDone))
	_, err = job.Origin().Reply(ctx, d.chat, chat.Payload{
		MentionUserID: job.RequesterID,
		Text:          link + "\n" + d.retention,
	})
	if err != nil {
		d.logger.Error("Failed to send external video link",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
	job.Finish(d.clock.Now(), domain.OutcomeUploadedExternal)
}

// replyError sends an error message to the requester and schedules it for
// deletion.
func (d *Driver) replyError(ctx context.Context, job *domain.Job, text string) {
	ref, err := job.Origin().Reply(ctx, d.chat, chat.Payload{Text: text, Error: true})
	if err != nil {
		d.logger.Error("Failed to send error message",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	d.deletions.Schedule(ref)
}

func (d *Driver) finalize(ctx context.Context, job *domain.Job) {
	d.cleaner.Clean(job)

	ref, _ := job.Feedback()
	d.deletions.Schedule(ref)

	if d.recorder != nil {
		if err := d.recorder.Record(ctx, job); err != nil {
			d.logger.Warn("Failed to record job history",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	d.logger.Info("Render job finished",
		slog.String("job_id", job.ID),
		slog.String("outcome", string(job.Outcome())),
	)
}

func (d *Driver) updatePresence(ctx context.Context, queueLen int) {
	text := fmt.Sprintf("%shelp | queue: %d", d.prefix, queueLen)
	if text == d.lastPresence {
		return
	}
	if err := d.chat.SetPresence(ctx, text); err != nil {
		d.logger.Warn("Failed to update presence",
			slog.String("error", err.Error()),
		)
		return
	}
	d.lastPresence = text
}
