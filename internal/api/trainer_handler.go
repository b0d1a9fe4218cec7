package api

import (
	"fittrainer/backend/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type TrainerHandler struct {
	trainerService service.TrainerService
}

func NewTrainerHandler(trainerService service.TrainerService) *TrainerHandler {
	return &TrainerHandler{trainerService: trainerService}
}

// AssignClient godoc
// @Summary Add an unassigned client to the trainer's roster
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Client profile's ObjectID Hex"
// @Failure 404 {object} gin.H "Client not found"
// @Failure 409 {object} gin.H "Client already has a trainer"
// @Router /trainer/clients/{clientId}/assign [post]
func (h *TrainerHandler) AssignClient(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	clientID, ok := objectIDParam(c, "clientId")
	if !ok {
		return
	}
	if err := h.trainerService.AssignClient(c.Request.Context(), actor, clientID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "Client assigned"})
}

// GetManagedClients godoc
// @Summary List the trainer's clients
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Router /trainer/clients [get]
func (h *TrainerHandler) GetManagedClients(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	clients, err := h.trainerService.GetManagedClients(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"clients": clients})
}

func (h *TrainerHandler) GetAnalytics(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	analytics, err := h.trainerService.GetAnalytics(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"analytics": analytics})
}
