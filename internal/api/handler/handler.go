package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/courtbot/internal/domain"
	"github.com/cuongbtq/courtbot/internal/history"
	"github.com/cuongbtq/courtbot/internal/intake"
	"github.com/cuongbtq/courtbot/internal/scheduler"
)

// Accepter queues render requests.
type Accepter interface {
	Accept(ctx context.Context, req intake.RenderRequest) (*domain.Job, error)
}

// Queue exposes the live queue.
type Queue interface {
	Snapshot() []scheduler.JobInfo
}

// HistoryLister reads finished jobs.
type HistoryLister interface {
	ListRecent(ctx context.Context, limit int) ([]history.Entry, error)
}

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Accepter Accepter
	Queue    Queue
	Music    *domain.MusicCatalog
	// History is nil when no database is configured.
	History HistoryLister
	// HealthChecks are keyed by the service they probe.
	HealthChecks map[string]HealthCheck
}

// RenderHandler handles render and queue HTTP requests
type RenderHandler struct {
	logger   *slog.Logger
	accepter Accepter
	queue    Queue
	music    *domain.MusicCatalog
	history  HistoryLister
}

// NewRenderHandler creates a new RenderHandler instance
func NewRenderHandler(deps *Dependencies) *RenderHandler {
	return &RenderHandler{
		logger:   deps.Logger,
		accepter: deps.Accepter,
		queue:    deps.Queue,
		music:    deps.Music,
		history:  deps.History,
	}
}
