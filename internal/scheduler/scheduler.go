// Package scheduler owns the live render queue: admission of new requests,
// claiming by workers and the periodic driver that reports progress.
package scheduler

import (
	"context"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cuongbtq/courtbot/internal/chat"
	"github.com/cuongbtq/courtbot/internal/cleanup"
	"github.com/cuongbtq/courtbot/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	// MinFrames and MaxFrames bound the number of messages per render.
	MinFrames = 1
	MaxFrames = 100

	DefaultMaxPerGuild = 100
	DefaultMaxPerUser  = 5

	// DefaultUploadLimit is the attachment limit of a regular chat server.
	DefaultUploadLimit int64 = 8 * 1024 * 1024
)

// Request is a validated-shape render request from the chat gateway.
type Request struct {
	RequesterID string
	GuildID     string
	ChannelID   string
	FrameCount  int
	Music       string
	Frames      []domain.Frame
	UploadLimit int64
	Origin      chat.Origin
	Feedback    chat.MessageRef
	// FeedbackText is what the feedback message shows at submission.
	FeedbackText string
}

// Config holds scheduler configuration
type Config struct {
	MaxPerGuild        int
	MaxPerUser         int
	OutputDir          string
	// EvidenceDir is the only directory evidence files may live in; when
	// empty, requests carrying evidence are rejected.
	EvidenceDir        string
	DefaultUploadLimit int64
	Music              *domain.MusicCatalog
	// Cooldown gates submissions process-wide; nil disables it.
	Cooldown CooldownGate
	Clock    clockwork.Clock
	Logger   *slog.Logger
	NewID    func() string
}

// JobInfo is a point-in-time view of a live job.
type JobInfo struct {
	Position    int       `json:"position"`
	ID          string    `json:"id"`
	RequesterID string    `json:"requester_id"`
	GuildID     string    `json:"guild_id"`
	ChannelID   string    `json:"channel_id"`
	FrameCount  int       `json:"frame_count"`
	Music       string    `json:"music"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
}

// Scheduler holds the live job list in admission order.
type Scheduler struct {
	maxPerGuild int
	maxPerUser  int
	outputDir   string
	evidenceDir string
	uploadLimit int64
	music       *domain.MusicCatalog
	cooldown    CooldownGate
	clock       clockwork.Clock
	logger      *slog.Logger
	newID       func() string

	// admitMu serializes Submit so cap checks and the append are atomic.
	admitMu sync.Mutex

	mu   sync.RWMutex
	jobs []*domain.Job
}

// New creates a scheduler, filling unset limits with defaults.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		maxPerGuild: cfg.MaxPerGuild,
		maxPerUser:  cfg.MaxPerUser,
		outputDir:   cfg.OutputDir,
		evidenceDir: cfg.EvidenceDir,
		uploadLimit: cfg.DefaultUploadLimit,
		music:       cfg.Music,
		cooldown:    cfg.Cooldown,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		newID:       cfg.NewID,
	}
	if s.maxPerGuild <= 0 {
		s.maxPerGuild = DefaultMaxPerGuild
	}
	if s.maxPerUser <= 0 {
		s.maxPerUser = DefaultMaxPerUser
	}
	if s.uploadLimit <= 0 {
		s.uploadLimit = DefaultUploadLimit
	}
	if s.music == nil {
		s.music = domain.NewMusicCatalog(nil)
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.New().String() }
	}
	return s
}

// Submit admits a request and appends a Queued job to the tail of the queue.
// Rejections are *domain.AdmissionError values with user-facing text.
func (s *Scheduler) Submit(ctx context.Context, req Request) (*domain.Job, error) {
	s.admitMu.Lock()
	defer s.admitMu.Unlock()

	if err := s.CheckCooldown(ctx); err != nil {
		return nil, err
	}
	if err := s.CheckCaps(req.GuildID, req.RequesterID); err != nil {
		return nil, err
	}

	if req.FrameCount == 0 {
		return nil, domain.NewAdmissionError("Please specify the number of messages to be rendered!")
	}
	if req.FrameCount < MinFrames || req.FrameCount > MaxFrames {
		return nil, domain.NewAdmissionError("Number of messages must be between %d and %d", MinFrames, MaxFrames)
	}
	if len(req.Frames) > req.FrameCount {
		return nil, domain.NewAdmissionError("Received %d messages but only %d were requested", len(req.Frames), req.FrameCount)
	}

	music := req.Music
	if strings.TrimSpace(music) == "" {
		music = domain.DefaultMusic
	}
	track, ok := s.music.Lookup(music)
	if !ok {
		return nil, domain.NewAdmissionError("Unknown music %q, available: %s", music, strings.Join(s.music.Codes(), ", "))
	}

	for _, f := range req.Frames {
		if f.EvidencePath != "" && !cleanup.Within(s.evidenceDir, f.EvidencePath) {
			return nil, domain.NewAdmissionError("Evidence file %q is not in the evidence directory", f.EvidencePath)
		}
	}

	// Blank frames are not rendered, but their evidence still belongs to
	// the job and is cleaned up with it.
	frames := make([]domain.Frame, 0, len(req.Frames))
	var dropped []string
	for _, f := range req.Frames {
		if strings.TrimSpace(f.Text) != "" {
			frames = append(frames, f)
		} else if f.EvidencePath != "" {
			dropped = append(dropped, f.EvidencePath)
		}
	}
	if len(frames) < 1 {
		return nil, domain.NewAdmissionError("There should be at least one person in the conversation.")
	}

	uploadLimit := req.UploadLimit
	if uploadLimit <= 0 {
		uploadLimit = s.uploadLimit
	}

	id := s.newID()
	job := domain.NewJob(domain.JobSpec{
		ID:           id,
		RequesterID:  req.RequesterID,
		GuildID:      req.GuildID,
		ChannelID:    req.ChannelID,
		Frames:       frames,
		Evidence:     dropped,
		Music:        track.Code,
		OutputPath:   filepath.Join(s.outputDir, id+".mp4"),
		UploadLimit:  uploadLimit,
		Origin:       req.Origin,
		Feedback:     req.Feedback,
		FeedbackText: req.FeedbackText,
		CreatedAt:    s.clock.Now(),
	})

	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	queueLen := len(s.jobs)
	s.mu.Unlock()

	if s.cooldown != nil {
		if err := s.cooldown.Mark(ctx); err != nil {
			s.logger.Warn("Failed to record cooldown",
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("Render job queued",
		slog.String("job_id", job.ID),
		slog.String("guild_id", job.GuildID),
		slog.String("requester_id", job.RequesterID),
		slog.Int("frames", len(job.Frames)),
		slog.String("music", job.Music),
		slog.Int("queue_length", queueLen),
	)

	return job, nil
}

// CheckCooldown rejects when the process-wide cooldown has not elapsed. It
// does not start the cooldown; only an accepted Submit does.
func (s *Scheduler) CheckCooldown(ctx context.Context) error {
	if s.cooldown == nil {
		return nil
	}
	left, err := s.cooldown.Remaining(ctx)
	if err != nil {
		// An unavailable cooldown store must not block every render.
		s.logger.Warn("Failed to read cooldown, admitting request",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if left > 0 {
		return domain.NewAdmissionError("Please wait **%d** seconds before using this command again.", int(math.Ceil(left.Seconds())))
	}
	return nil
}

// CheckCaps rejects when the guild or the user already has the maximum
// number of live jobs. Submit repeats the check atomically with the append.
func (s *Scheduler) CheckCaps(guildID, userID string) error {
	guildCount, userCount := s.liveCounts(guildID, userID)
	if guildCount >= s.maxPerGuild {
		return domain.NewAdmissionError("Only up to %d renders per guild are allowed", s.maxPerGuild)
	}
	if userCount >= s.maxPerUser {
		return domain.NewAdmissionError("Only up to %d renders per user are allowed", s.maxPerUser)
	}
	return nil
}

func (s *Scheduler) liveCounts(guildID, userID string) (guild, user int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		if j.State().Terminal() {
			continue
		}
		if j.GuildID == guildID {
			guild++
		}
		if j.RequesterID == userID {
			user++
		}
	}
	return guild, user
}

// ClaimNext claims the first Queued job in queue order, or returns nil.
func (s *Scheduler) ClaimNext() *domain.Job {
	now := s.clock.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		if j.State() == domain.StateQueued && j.Claim(now) {
			return j
		}
	}
	return nil
}

// Jobs returns the live jobs in queue order.
func (s *Scheduler) Jobs() []*domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.Job(nil), s.jobs...)
}

// Len returns the number of jobs in the live list.
func (s *Scheduler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Snapshot describes every live job with its 1-based queue position.
func (s *Scheduler) Snapshot() []JobInfo {
	jobs := s.Jobs()
	infos := make([]JobInfo, len(jobs))
	for i, j := range jobs {
		infos[i] = JobInfo{
			Position:    i + 1,
			ID:          j.ID,
			RequesterID: j.RequesterID,
			GuildID:     j.GuildID,
			ChannelID:   j.ChannelID,
			FrameCount:  len(j.Frames),
			Music:       j.Music,
			State:       j.State().String(),
			CreatedAt:   j.CreatedAt,
		}
	}
	return infos
}

// pruneDone removes Done jobs and returns how many were removed.
func (s *Scheduler) pruneDone() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.jobs[:0]
	for _, j := range s.jobs {
		if !j.State().Terminal() {
			kept = append(kept, j)
		}
	}
	removed := len(s.jobs) - len(kept)
	// Drop references held by the tail so pruned jobs can be collected.
	for i := len(kept); i < len(s.jobs); i++ {
		s.jobs[i] = nil
	}
	s.jobs = kept
	return removed
}
