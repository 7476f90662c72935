package dto

import (
	"github.com/cuongbtq/courtbot/internal/history"
	"github.com/cuongbtq/courtbot/internal/scheduler"
)

type CreateRenderResponse struct {
	JobID    string `json:"job_id"`
	State    string `json:"state"`
	Position int    `json:"position"`
}

type QueueResponse struct {
	Length int                 `json:"length"`
	Jobs   []scheduler.JobInfo `json:"jobs"`
}

type ListHistoryRequest struct {
	Limit int `form:"limit" binding:"gte=0"`
}

type ListHistoryResponse struct {
	Entries []history.Entry `json:"entries"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
