// Package history keeps an audit trail of finished render jobs in
// PostgreSQL. The live queue never reads from it.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cuongbtq/courtbot/internal/domain"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

const schema = `
	CREATE TABLE IF NOT EXISTS render_history (
		job_id         TEXT PRIMARY KEY,
		requester_id   TEXT NOT NULL,
		guild_id       TEXT NOT NULL,
		channel_id     TEXT NOT NULL,
		music          TEXT NOT NULL,
		frame_count    INTEGER NOT NULL,
		outcome        TEXT NOT NULL,
		failure_reason TEXT NOT NULL DEFAULT '',
		queued_at      TIMESTAMPTZ NOT NULL,
		started_at     TIMESTAMPTZ,
		finished_at    TIMESTAMPTZ NOT NULL
	)
`

// DB is the part of *sqlx.DB the storage uses.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Entry is one finished job.
type Entry struct {
	JobID         string       `db:"job_id" json:"job_id"`
	RequesterID   string       `db:"requester_id" json:"requester_id"`
	GuildID       string       `db:"guild_id" json:"guild_id"`
	ChannelID     string       `db:"channel_id" json:"channel_id"`
	Music         string       `db:"music" json:"music"`
	FrameCount    int          `db:"frame_count" json:"frame_count"`
	Outcome       string       `db:"outcome" json:"outcome"`
	FailureReason string       `db:"failure_reason" json:"failure_reason,omitempty"`
	QueuedAt      time.Time    `db:"queued_at" json:"queued_at"`
	StartedAt     sql.NullTime `db:"started_at" json:"-"`
	FinishedAt    time.Time    `db:"finished_at" json:"finished_at"`
}

// NewEntry describes a finished job.
func NewEntry(job *domain.Job) Entry {
	started, finished := job.Times()
	return Entry{
		JobID:         job.ID,
		RequesterID:   job.RequesterID,
		GuildID:       job.GuildID,
		ChannelID:     job.ChannelID,
		Music:         job.Music,
		FrameCount:    len(job.Frames),
		Outcome:       string(job.Outcome()),
		FailureReason: job.FailureReason(),
		QueuedAt:      job.CreatedAt,
		StartedAt:     sql.NullTime{Time: started, Valid: !started.IsZero()},
		FinishedAt:    finished,
	}
}

type Storage struct {
	db DB
}

func NewStorage(db DB) *Storage {
	return &Storage{db: db}
}

// EnsureSchema creates the history table when it does not exist.
func (s *Storage) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create render_history table: %w", err)
	}
	return nil
}

// Record stores the outcome of a finished job. Recording the same job twice
// keeps the first entry.
func (s *Storage) Record(ctx context.Context, job *domain.Job) error {
	e := NewEntry(job)
	query := `
		INSERT INTO render_history (
			job_id, requester_id, guild_id, channel_id,
			music, frame_count, outcome, failure_reason,
			queued_at, started_at, finished_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11
		)
		ON CONFLICT (job_id) DO NOTHING
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		e.JobID,
		e.RequesterID,
		e.GuildID,
		e.ChannelID,
		e.Music,
		e.FrameCount,
		e.Outcome,
		e.FailureReason,
		e.QueuedAt,
		e.StartedAt,
		e.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record job %s: %w", e.JobID, err)
	}
	return nil
}

// ListRecent returns the most recently finished jobs, newest first. The
// limit is clamped to [1, MaxListLimit]; zero selects DefaultListLimit.
func (s *Storage) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	limit = clampLimit(limit)

	query := `
		SELECT
			job_id, requester_id, guild_id, channel_id,
			music, frame_count, outcome, failure_reason,
			queued_at, started_at, finished_at
		FROM render_history
		ORDER BY finished_at DESC, job_id
		LIMIT $1
	`

	entries := []Entry{}
	if err := s.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list render history: %w", err)
	}
	return entries, nil
}

func clampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultListLimit
	case limit < 1:
		return 1
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}
