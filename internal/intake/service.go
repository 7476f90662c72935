// Package intake turns inbound render requests into queued jobs and reports
// the first feedback to the requester.
package intake

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cuongbtq/courtbot/internal/chat"
	"github.com/cuongbtq/courtbot/internal/domain"
	"github.com/cuongbtq/courtbot/internal/scheduler"
)

const (
	textChecking = "`Checking queue...`"
	textFetching = "`Fetching messages...`"
)

// ErrInvalidOrigin is returned when a request names no usable reply origin.
var ErrInvalidOrigin = errors.New("invalid request origin")

// Submitter admits scheduler requests.
type Submitter interface {
	CheckCooldown(ctx context.Context) error
	CheckCaps(guildID, userID string) error
	Submit(ctx context.Context, req scheduler.Request) (*domain.Job, error)
}

// Deletions schedules a message for later removal.
type Deletions interface {
	Schedule(target chat.MessageRef)
}

// Service accepts render requests
type Service struct {
	submitter Submitter
	chat      chat.Client
	deletions Deletions
	logger    *slog.Logger
}

func NewService(submitter Submitter, client chat.Client, deletions Deletions, logger *slog.Logger) *Service {
	return &Service{
		submitter: submitter,
		chat:      client,
		deletions: deletions,
		logger:    logger,
	}
}

// Accept checks the cooldown, posts the feedback message, checks the
// per-scope caps and submits the request. A cooldown rejection is replied
// without any feedback message; later rejections are shown on it. Admission
// errors are returned as *domain.AdmissionError after they have been shown
// to the requester.
func (s *Service) Accept(ctx context.Context, req RenderRequest) (*domain.Job, error) {
	origin, err := req.ToOrigin()
	if err != nil {
		return nil, errors.Join(ErrInvalidOrigin, err)
	}

	if err := s.submitter.CheckCooldown(ctx); err != nil {
		s.reject(ctx, origin, chat.MessageRef{}, err.Error())
		return nil, err
	}

	feedback, text := s.postFeedback(ctx, origin, req.RequesterID)

	if err := s.submitter.CheckCaps(req.GuildID, req.RequesterID); err != nil {
		s.reject(ctx, origin, feedback, err.Error())
		return nil, err
	}

	text = s.editFeedback(ctx, feedback, text, textFetching)

	sreq := req.ToScheduler(origin)
	sreq.Feedback = feedback
	sreq.FeedbackText = text

	job, err := s.submitter.Submit(ctx, sreq)
	if err != nil {
		if domain.IsAdmissionError(err) {
			s.reject(ctx, origin, feedback, err.Error())
		}
		return nil, err
	}
	return job, nil
}

// postFeedback creates the feedback message and returns it with the text it
// shows. A zero reference is returned when the message could not be posted;
// the first progress update then reposts it.
func (s *Service) postFeedback(ctx context.Context, origin chat.Origin, requesterID string) (chat.MessageRef, string) {
	ref, err := origin.Reply(ctx, s.chat, chat.Payload{Text: textChecking})
	if err != nil {
		s.logger.Warn("Failed to post feedback message",
			slog.String("requester_id", requesterID),
			slog.String("error", err.Error()),
		)
		return chat.MessageRef{}, ""
	}
	return ref, textChecking
}

// editFeedback shows text on ref and returns what the message now shows.
func (s *Service) editFeedback(ctx context.Context, ref chat.MessageRef, current, text string) string {
	if ref.IsZero() {
		return current
	}
	if err := s.chat.EditMessage(ctx, ref, text); err != nil {
		s.logger.Warn("Failed to update feedback message",
			slog.String("message_id", ref.MessageID),
			slog.String("error", err.Error()),
		)
		return current
	}
	return text
}

func (s *Service) reject(ctx context.Context, origin chat.Origin, feedback chat.MessageRef, reason string) {
	if !feedback.IsZero() {
		if err := s.chat.EditMessage(ctx, feedback, reason); err == nil {
			s.deletions.Schedule(feedback)
			return
		}
	}

	ref, err := origin.Reply(ctx, s.chat, chat.Payload{Text: reason, Error: true})
	if err != nil {
		s.logger.Error("Failed to report rejected request",
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		return
	}
	s.deletions.Schedule(ref)
}
