package intake

import (
	"github.com/cuongbtq/courtbot/internal/chat"
	"github.com/cuongbtq/courtbot/internal/domain"
	"github.com/cuongbtq/courtbot/internal/scheduler"
)

// RenderRequest is the inbound render request, shared by the AMQP consumer
// and the HTTP API.
type RenderRequest struct {
	RequesterID      string     `json:"requester_id" binding:"required"`
	GuildID          string     `json:"guild_id" binding:"required"`
	ChannelID        string     `json:"channel_id" binding:"required"`
	FrameCount       int        `json:"frame_count"`
	Music            string     `json:"music"`
	Frames           []FrameDTO `json:"frames" binding:"dive"`
	UploadLimitBytes int64      `json:"upload_limit_bytes" binding:"gte=0"`
	Origin           OriginDTO  `json:"origin"`
}

type FrameDTO struct {
	SpeakerID    string `json:"speaker_id" binding:"required"`
	SpeakerName  string `json:"speaker_name"`
	Text         string `json:"text"`
	EvidencePath string `json:"evidence_path"`
}

type OriginDTO struct {
	Kind             string `json:"kind" binding:"required,oneof=interaction message"`
	InteractionToken string `json:"interaction_token" binding:"required_if=Kind interaction"`
	MessageID        string `json:"message_id" binding:"required_if=Kind message"`
}

// ToOrigin builds the reply origin the request names.
func (r RenderRequest) ToOrigin() (chat.Origin, error) {
	return chat.NewOrigin(r.Origin.Kind, r.ChannelID, r.Origin.InteractionToken, r.Origin.MessageID)
}

// ToScheduler converts the request into a scheduler request without the
// feedback fields, which are filled in by the intake service.
func (r RenderRequest) ToScheduler(origin chat.Origin) scheduler.Request {
	frames := make([]domain.Frame, len(r.Frames))
	for i, f := range r.Frames {
		frames[i] = domain.Frame{
			SpeakerID:    f.SpeakerID,
			SpeakerName:  f.SpeakerName,
			Text:         f.Text,
			EvidencePath: f.EvidencePath,
		}
	}
	return scheduler.Request{
		RequesterID: r.RequesterID,
		GuildID:     r.GuildID,
		ChannelID:   r.ChannelID,
		FrameCount:  r.FrameCount,
		Music:       r.Music,
		Frames:      frames,
		UploadLimit: r.UploadLimitBytes,
		Origin:      origin,
	}
}
