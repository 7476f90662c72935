package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/courtbot/internal/api/dto"
	"github.com/cuongbtq/courtbot/internal/domain"
	"github.com/cuongbtq/courtbot/internal/intake"
	"github.com/gin-gonic/gin"
)

// CreateRender handles POST /api/v1/renders
func (h *RenderHandler) CreateRender(c *gin.Context) {
	var req intake.RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	job, err := h.accepter.Accept(c.Request.Context(), req)
	if err != nil {
		switch {
		case domain.IsAdmissionError(err):
			c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: err.Error()})
		case errors.Is(err, intake.ErrInvalidOrigin):
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		default:
			h.logger.Error("Failed to accept render", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to accept render"})
		}
		return
	}

	position := 0
	for _, info := range h.queue.Snapshot() {
		if info.ID == job.ID {
			position = info.Position
			break
		}
	}

	c.JSON(http.StatusCreated, dto.CreateRenderResponse{
		JobID:    job.ID,
		State:    job.State().String(),
		Position: position,
	})
}

// GetQueue handles GET /api/v1/queue
func (h *RenderHandler) GetQueue(c *gin.Context) {
	jobs := h.queue.Snapshot()
	c.JSON(http.StatusOK, dto.QueueResponse{
		Length: len(jobs),
		Jobs:   jobs,
	})
}

// ListMusic handles GET /api/v1/music
func (h *RenderHandler) ListMusic(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"default": domain.DefaultMusic,
		"tracks":  h.music.Tracks(),
	})
}

// ListHistory handles GET /api/v1/history
func (h *RenderHandler) ListHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "History is not enabled"})
		return
	}

	var req dto.ListHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid limit"})
		return
	}

	entries, err := h.history.ListRecent(c.Request.Context(), req.Limit)
	if err != nil {
		h.logger.Error("Failed to list history", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list history"})
		return
	}

	c.JSON(http.StatusOK, dto.ListHistoryResponse{Entries: entries})
}
