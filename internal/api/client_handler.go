package api

import (
	"fittrainer/backend/internal/service"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type ClientHandler struct {
	workoutService  service.WorkoutService
	progressService service.ProgressService
}

func NewClientHandler(workoutService service.WorkoutService, progressService service.ProgressService) *ClientHandler {
	return &ClientHandler{workoutService: workoutService, progressService: progressService}
}

type RecordWeightRequest struct {
	Value float64    `json:"value" binding:"required"`
	Date  *time.Time `json:"date"` // Defaults to now
}

// GetSchedule godoc
// @Summary Get my schedule
// @Description Open workouts from the start of today and the most recent completions.
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Router /client/schedule [get]
func (h *ClientHandler) GetSchedule(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	schedule, err := h.workoutService.Schedule(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"upcoming": schedule.Upcoming,
		"recent":   schedule.Recent,
	})
}

// GetProgress godoc
// @Summary Get my progress
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Router /client/progress [get]
func (h *ClientHandler) GetProgress(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	report, err := h.progressService.GetProgress(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"progress": report})
}

func (h *ClientHandler) GetAchievements(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	achievements, err := h.progressService.GetAchievements(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"achievements": achievements})
}

// RecordWeight godoc
// @Summary Record my body weight
// @Tags Client
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param weight body RecordWeightRequest true "Measurement"
// @Success 201 {object} gin.H "Entry recorded"
// @Router /client/weight [post]
func (h *ClientHandler) RecordWeight(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req RecordWeightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	entry, err := h.progressService.RecordWeight(c.Request.Context(), actor, req.Value, req.Date)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"entry": entry})
}
