package domain

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuongbtq/courtbot/internal/chat"
)

// Frame is one line of the script: who speaks and what they say.
type Frame struct {
	SpeakerID    string `json:"speaker_id"`
	SpeakerName  string `json:"speaker_name"`
	Text         string `json:"text"`
	EvidencePath string `json:"evidence_path,omitempty"`
}

// Outcome is how a finished job ended, recorded in the history.
type Outcome string

const (
	OutcomeUploaded         Outcome = "uploaded"
	OutcomeUploadedExternal Outcome = "uploaded_external"
	OutcomeUploadFailed     Outcome = "upload_failed"
	OutcomeRenderFailed     Outcome = "render_failed"
	OutcomeAborted          Outcome = "aborted"
)

// JobSpec holds the immutable part of a job.
type JobSpec struct {
	ID          string
	RequesterID string
	GuildID     string
	ChannelID   string
	Frames      []Frame
	// Evidence lists evidence files the job owns beyond those of Frames,
	// such as the images of frames that are not rendered.
	Evidence    []string
	Music       string
	OutputPath  string
	UploadLimit int64
	Origin      chat.Origin
	Feedback    chat.MessageRef
	// FeedbackText is what the feedback message currently shows.
	FeedbackText string
	CreatedAt    time.Time
}

// Job is one render request and its lifecycle state.
//
// The state is changed only through compare-and-set, so concurrent claimers
// cannot both win. The remaining mutable fields are guarded by mu.
type Job struct {
	ID          string
	RequesterID string
	GuildID     string
	ChannelID   string
	Frames      []Frame
	Music       string
	OutputPath  string
	UploadLimit int64
	CreatedAt   time.Time

	origin   chat.Origin
	evidence []string
	state    atomic.Int32
	// finalized flips once, when cleanup for a Done job has been triggered.
	finalized atomic.Bool

	mu           sync.Mutex
	feedback     chat.MessageRef
	lastReported string
	failure      string
	outcome      Outcome
	startedAt    time.Time
	finishedAt   time.Time
}

// NewJob creates a job in the Queued state.
func NewJob(spec JobSpec) *Job {
	frames := make([]Frame, len(spec.Frames))
	copy(frames, spec.Frames)

	j := &Job{
		ID:           spec.ID,
		RequesterID:  spec.RequesterID,
		GuildID:      spec.GuildID,
		ChannelID:    spec.ChannelID,
		Frames:       frames,
		Music:        spec.Music,
		OutputPath:   spec.OutputPath,
		UploadLimit:  spec.UploadLimit,
		CreatedAt:    spec.CreatedAt,
		origin:       spec.Origin,
		evidence:     evidencePaths(frames, spec.Evidence),
		feedback:     spec.Feedback,
		lastReported: spec.FeedbackText,
	}
	j.state.Store(int32(StateQueued))
	return j
}

// State returns a snapshot of the current state.
func (j *Job) State() State {
	return State(j.state.Load())
}

// Transition moves the job from one state to the next. It fails with
// ErrInvalidTransition when the edge does not exist, and with
// ErrStateChanged when the job is no longer in from.
func (j *Job) Transition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if !j.state.CompareAndSwap(int32(from), int32(to)) {
		return fmt.Errorf("%w: expected %s, found %s", ErrStateChanged, from, j.State())
	}
	return nil
}

// Claim takes InProgress ownership. Exactly one caller wins per job.
func (j *Job) Claim(now time.Time) bool {
	if j.Transition(StateQueued, StateInProgress) != nil {
		return false
	}
	j.mu.Lock()
	j.startedAt = now
	j.mu.Unlock()
	return true
}

// MarkRendered records a successful render.
func (j *Job) MarkRendered() error {
	return j.Transition(StateInProgress, StateRendered)
}

// MarkFailed records a failed render and its reason.
func (j *Job) MarkFailed(reason string) error {
	if err := j.Transition(StateInProgress, StateFailed); err != nil {
		return err
	}
	j.mu.Lock()
	j.failure = reason
	j.outcome = OutcomeRenderFailed
	j.mu.Unlock()
	return nil
}

// Finish walks the job forward to Done along the remaining edges and records
// outcome unless one was already set. Jobs that are still Queued or
// InProgress are left alone and false is returned.
func (j *Job) Finish(now time.Time, outcome Outcome) bool {
	for {
		s := j.State()
		var next State
		switch s {
		case StateDone:
			return true
		case StateRendered:
			next = StateUploading
		case StateUploading, StateFailed:
			next = StateDone
		default:
			return false
		}
		if err := j.Transition(s, next); err != nil {
			continue
		}
		if next == StateDone {
			j.mu.Lock()
			j.finishedAt = now
			if j.outcome == "" {
				j.outcome = outcome
			}
			j.mu.Unlock()
			return true
		}
	}
}

// Finalize reports true exactly once, for the first caller after the job
// reached Done.
func (j *Job) Finalize() bool {
	if j.State() != StateDone {
		return false
	}
	return j.finalized.CompareAndSwap(false, true)
}

// Origin returns where the request came from.
func (j *Job) Origin() chat.Origin {
	return j.origin
}

// Feedback returns the current feedback message and the text it shows.
func (j *Job) Feedback() (chat.MessageRef, string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.feedback, j.lastReported
}

// SetFeedback records that ref now shows text.
func (j *Job) SetFeedback(ref chat.MessageRef, text string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.feedback = ref
	j.lastReported = text
}

// FailureReason returns why the render failed, if it did.
func (j *Job) FailureReason() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.failure
}

// SetOutcome records how the job ended.
func (j *Job) SetOutcome(o Outcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outcome = o
}

// Outcome returns how the job ended.
func (j *Job) Outcome() Outcome {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outcome
}

// Times returns when rendering started and when the job finished.
func (j *Job) Times() (startedAt, finishedAt time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.startedAt, j.finishedAt
}

// EvidencePaths returns the evidence files owned by the job.
func (j *Job) EvidencePaths() []string {
	return append([]string(nil), j.evidence...)
}

func evidencePaths(frames []Frame, extra []string) []string {
	var paths []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	for _, f := range frames {
		add(f.EvidencePath)
	}
	for _, p := range extra {
		add(p)
	}
	return paths
}
