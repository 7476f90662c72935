package worker

import (
	"context"
	"fmt"
	"log/slog"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned successfully",
		slog.Int("worker_count", w.concurrency),
	)
}

// workerLoop claims jobs until stopped, sleeping for the poll interval
// whenever the queue has nothing to claim.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
		slog.Int("worker_num", workerNum),
	)

	for {
		if w.stopping(ctx) {
			w.logger.Info("Worker goroutine stopping",
				slog.String("worker_name", workerName),
			)
			return
		}

		if job := w.source.ClaimNext(); job != nil {
			w.logger.Info("Worker claimed job",
				slog.String("worker_name", workerName),
				slog.String("job_id", job.ID),
			)
			w.processJob(ctx, workerName, job)
			continue
		}

		select {
		case <-w.stopChan:
		case <-ctx.Done():
		case <-w.clock.After(w.pollInterval):
		}
	}
}

func (w *Worker) stopping(ctx context.Context) bool {
	select {
	case <-w.stopChan:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
