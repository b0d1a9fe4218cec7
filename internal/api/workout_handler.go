package api

import (
	"fittrainer/backend/internal/domain"
	"fittrainer/backend/internal/service"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WorkoutHandler struct {
	workoutService service.WorkoutService
}

func NewWorkoutHandler(workoutService service.WorkoutService) *WorkoutHandler {
	return &WorkoutHandler{workoutService: workoutService}
}

// --- DTOs ---

type WorkoutRequest struct {
	ClientID    string                   `json:"clientId"` // Required on create, ignored on update
	Title       string                   `json:"title" binding:"required"`
	Description string                   `json:"description"`
	ScheduledAt time.Time                `json:"scheduledAt" binding:"required"`
	Exercises   []domain.PlannedExercise `json:"exercises"`
	Notes       string                   `json:"notes"`
}

func (r WorkoutRequest) input(clientID primitive.ObjectID) service.WorkoutInput {
	return service.WorkoutInput{
		ClientID:    clientID,
		Title:       r.Title,
		Description: r.Description,
		ScheduledAt: r.ScheduledAt,
		Exercises:   r.Exercises,
		Notes:       r.Notes,
	}
}

type CompleteWorkoutRequest struct {
	Duration     *int                         `json:"duration"` // seconds; derived from startedAt when omitted
	ExerciseData []domain.ExercisePerformance `json:"exerciseData"`
}

// --- Handler Methods ---

// ListWorkouts godoc
// @Summary List my workouts
// @Description Clients get the workouts assigned to them, trainers the ones they created.
// @Tags Workout
// @Produce json
// @Security BearerAuth
// @Router /workout [get]
func (h *WorkoutHandler) ListWorkouts(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	workouts, err := h.workoutService.List(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"workouts": workouts})
}

// CreateWorkout godoc
// @Summary Schedule a workout for a client
// @Tags Workout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workout body WorkoutRequest true "Workout details"
// @Success 201 {object} gin.H "Workout created"
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Not a trainer, or the client is managed by another trainer"
// @Failure 404 {object} gin.H "Client not found"
// @Router /workout [post]
func (h *WorkoutHandler) CreateWorkout(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req WorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	clientID, err := primitive.ObjectIDFromHex(req.ClientID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid clientId format")
		return
	}

	workout, err := h.workoutService.Create(c.Request.Context(), actor, req.input(clientID))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"workout": workout})
}

func (h *WorkoutHandler) GetWorkout(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	workoutID, ok := objectIDParam(c, "workoutId")
	if !ok {
		return
	}
	workout, err := h.workoutService.Get(c.Request.Context(), actor, workoutID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"workout": workout})
}

// UpdateWorkout godoc
// @Summary Edit a workout that has not been started
// @Tags Workout
// @Failure 409 {object} gin.H "Workout already started or completed"
// @Router /workout/{workoutId} [put]
func (h *WorkoutHandler) UpdateWorkout(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	workoutID, ok := objectIDParam(c, "workoutId")
	if !ok {
		return
	}
	var req WorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	workout, err := h.workoutService.Update(c.Request.Context(), actor, workoutID, req.input(primitive.NilObjectID))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"workout": workout})
}

func (h *WorkoutHandler) DeleteWorkout(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	workoutID, ok := objectIDParam(c, "workoutId")
	if !ok {
		return
	}
	if err := h.workoutService.Delete(c.Request.Context(), actor, workoutID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "Workout deleted"})
}

// StartWorkout godoc
// @Summary Start a workout
// @Description Records the start time on the first call; later calls return the workout unchanged.
// @Tags Workout
// @Produce json
// @Security BearerAuth
// @Param workoutId path string true "Workout's ObjectID Hex"
// @Router /workout/{workoutId}/start [post]
func (h *WorkoutHandler) StartWorkout(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	workoutID, ok := objectIDParam(c, "workoutId")
	if !ok {
		return
	}
	started, err := h.workoutService.Start(c.Request.Context(), actor, workoutID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"workout":   started.Workout,
		"exercises": started.Exercises,
	})
}

// CompleteWorkout godoc
// @Summary Complete a workout
// @Description Stores the performance log and returns the points and milestones earned.
// @Tags Workout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workoutId path string true "Workout's ObjectID Hex"
// @Param completion body CompleteWorkoutRequest true "Performance log"
// @Failure 409 {object} gin.H "Workout already completed, missed, or never started without a duration"
// @Router /workout/{workoutId}/complete [post]
func (h *WorkoutHandler) CompleteWorkout(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	workoutID, ok := objectIDParam(c, "workoutId")
	if !ok {
		return
	}
	var req CompleteWorkoutRequest
	// An empty body completes a started workout with a derived duration.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
			return
		}
	}

	result, err := h.workoutService.Complete(c.Request.Context(), actor, workoutID, service.CompleteInput{
		Duration:     req.Duration,
		ExerciseData: req.ExerciseData,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"message":      "Workout completed",
		"points":       result.Points,
		"achievements": result.Achievements,
	})
}
