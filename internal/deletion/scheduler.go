// Package deletion removes transient feedback messages after a delay.
package deletion

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/courtbot/internal/chat"
	"github.com/jonboulle/clockwork"
)

// Deleter removes a chat message.
type Deleter interface {
	DeleteMessage(ctx context.Context, ref chat.MessageRef) error
}

// Entry is a message waiting to be deleted.
type Entry struct {
	Target    chat.MessageRef
	ExpiresAt time.Time
}

// Scheduler holds pending deletions and sweeps them periodically.
type Scheduler struct {
	deleter  Deleter
	clock    clockwork.Clock
	delay    time.Duration
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	entries []Entry
}

// Config holds deletion scheduler settings
type Config struct {
	Deleter Deleter
	Clock   clockwork.Clock
	// Delay is the default time before a scheduled message is deleted.
	// Zero or negative disables the scheduler entirely.
	Delay         time.Duration
	SweepInterval time.Duration
	Logger        *slog.Logger
}

func NewScheduler(cfg Config) *Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{
		deleter:  cfg.Deleter,
		clock:    clock,
		delay:    cfg.Delay,
		interval: interval,
		logger:   cfg.Logger,
	}
}

// Enabled reports whether deletions are scheduled at all.
func (s *Scheduler) Enabled() bool {
	return s.delay > 0
}

// Schedule deletes target after the configured delay.
func (s *Scheduler) Schedule(target chat.MessageRef) {
	s.ScheduleIn(target, s.delay)
}

// ScheduleIn deletes target after delay. It does nothing when the scheduler
// is disabled, delay is not positive or target is empty.
func (s *Scheduler) ScheduleIn(target chat.MessageRef, delay time.Duration) {
	if !s.Enabled() || delay <= 0 || target.IsZero() {
		return
	}

	s.mu.Lock()
	s.entries = append(s.entries, Entry{Target: target, ExpiresAt: s.clock.Now().Add(delay)})
	s.mu.Unlock()
}

// Pending returns the number of entries not yet swept.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep deletes every expired entry and returns how many were taken. An
// entry is dropped whether or not its deletion succeeded.
func (s *Scheduler) Sweep(ctx context.Context) int {
	now := s.clock.Now()

	s.mu.Lock()
	var due []Entry
	kept := s.entries[:0]
	for _, e := range s.entries {
		if now.Before(e.ExpiresAt) {
			kept = append(kept, e)
		} else {
			due = append(due, e)
		}
	}
	s.entries = kept
	s.mu.Unlock()

	for _, e := range due {
		err := s.deleter.DeleteMessage(ctx, e.Target)
		switch {
		case err == nil:
			s.logger.Debug("Scheduled message deleted",
				slog.String("message_id", e.Target.MessageID),
			)
		case errors.Is(err, chat.ErrMessageNotFound):
			// Already gone.
		default:
			s.logger.Warn("Failed to delete scheduled message",
				slog.String("message_id", e.Target.MessageID),
				slog.String("error", err.Error()),
			)
		}
	}
	return len(due)
}

// Run sweeps every interval until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.Enabled() {
		s.logger.Info("Message deletion disabled")
		return
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Deletion scheduler started",
		slog.Duration("delay", s.delay),
		slog.Duration("interval", s.interval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Deletion scheduler stopped")
			return
		case <-ticker.Chan():
			s.Sweep(ctx)
		}
	}
}
