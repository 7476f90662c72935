package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/courtbot/internal/domain"
	"github.com/jonboulle/clockwork"
)

// JobSource hands out Queued jobs. ClaimNext returns nil when none is
// waiting.
type JobSource interface {
	ClaimNext() *domain.Job
}

// Renderer produces the video file for a job.
type Renderer interface {
	RenderClip(ctx context.Context, frames []domain.Frame, outputPath, music string) error
}

// Config holds worker configuration
type Config struct {
	Logger      *slog.Logger
	Source      JobSource
	Renderer    Renderer
	Concurrency int
	// PollInterval is how long an idle worker waits before claiming again.
	PollInterval time.Duration
	// HeartbeatInterval controls how often a long render is logged.
	HeartbeatInterval time.Duration
	Clock             clockwork.Clock
	WorkerID          string
}

// Worker renders claimed jobs with a fixed pool of goroutines
type Worker struct {
	logger            *slog.Logger
	source            JobSource
	renderer          Renderer
	concurrency       int
	pollInterval      time.Duration
	heartbeatInterval time.Duration
	clock             clockwork.Clock
	workerID          string
	wg                sync.WaitGroup
	stopChan          chan struct{}
	stopOnce          sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	w := &Worker{
		logger:            cfg.Logger,
		source:            cfg.Source,
		renderer:          cfg.Renderer,
		concurrency:       cfg.Concurrency,
		pollInterval:      cfg.PollInterval,
		heartbeatInterval: cfg.HeartbeatInterval,
		clock:             cfg.Clock,
		workerID:          cfg.WorkerID,
		stopChan:          make(chan struct{}),
	}
	if w.concurrency <= 0 {
		w.concurrency = 1
	}
	if w.pollInterval <= 0 {
		w.pollInterval = 2 * time.Second
	}
	if w.heartbeatInterval <= 0 {
		w.heartbeatInterval = 30 * time.Second
	}
	if w.clock == nil {
		w.clock = clockwork.NewRealClock()
	}
	if w.workerID == "" {
		w.workerID = "renderer"
	}
	return w
}

// Start spawns the worker pool and returns. Workers run until Stop is
// called or ctx is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.Duration("poll_interval", w.pollInterval),
	)

	w.spawnWorkerPool(ctx)
	return nil
}

// Stop gracefully stops the worker. Renders already running are allowed to
// finish.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
