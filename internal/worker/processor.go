package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cuongbtq/courtbot/internal/domain"
	"github.com/cuongbtq/courtbot/shared/logger"
)

// processJob renders a claimed job and records the result on it. The render
// is detached from ctx so shutdown never interrupts a running render.
func (w *Worker) processJob(ctx context.Context, workerName string, job *domain.Job) {
	renderCtx := context.WithoutCancel(ctx)
	start := w.clock.Now()
	log := logger.WithJobID(w.logger, job.ID).With(slog.String("worker_name", workerName))

	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(log, heartbeatDone)

	err := w.render(renderCtx, job)
	close(heartbeatDone)

	if err != nil {
		log.Error("Render failed",
			slog.String("error", err.Error()),
		)
		if markErr := job.MarkFailed(err.Error()); markErr != nil {
			log.Error("Failed to mark job as failed",
				slog.String("error", markErr.Error()),
			)
		}
		return
	}

	if markErr := job.MarkRendered(); markErr != nil {
		log.Error("Failed to mark job as rendered",
			slog.String("error", markErr.Error()),
		)
		return
	}

	log.Info("Render completed",
		slog.Duration("duration", w.clock.Since(start)),
	)
}

// render calls the render engine and turns a panic into an error.
func (w *Worker) render(ctx context.Context, job *domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.RenderError{JobID: job.ID, Err: fmt.Errorf("renderer panic: %v", r)}
		}
	}()

	if dir := filepath.Dir(job.OutputPath); dir != "" {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return &domain.RenderError{JobID: job.ID, Err: fmt.Errorf("failed to create output directory: %w", mkErr)}
		}
	}

	if renderErr := w.renderer.RenderClip(ctx, job.Frames, job.OutputPath, job.Music); renderErr != nil {
		return &domain.RenderError{JobID: job.ID, Err: renderErr}
	}
	return nil
}

// sendJobHeartbeat logs periodically while a render is still running
func (w *Worker) sendJobHeartbeat(log *slog.Logger, done <-chan struct{}) {
	ticker := w.clock.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	start := w.clock.Now()
	for {
		select {
		case <-done:
			return
		case <-ticker.Chan():
			log.Debug("Render still running",
				slog.Duration("elapsed", w.clock.Since(start)),
			)
		}
	}
}
