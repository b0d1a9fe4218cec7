package api

import (
	"errors"
	"fittrainer/backend/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"success": false, "error": message})
}

// statusOf maps service errors to HTTP status codes. Unknown errors are 500.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidWorkout),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidWeight):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidInitData),
		errors.Is(err, service.ErrInitDataExpired),
		errors.Is(err, service.ErrAuthenticationFailed),
		errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrRoleNotAllowed),
		errors.Is(err, service.ErrWorkoutAccessDenied),
		errors.Is(err, service.ErrClientNotManaged):
		return http.StatusForbidden
	case errors.Is(err, service.ErrWorkoutNotFound),
		errors.Is(err, service.ErrClientNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUserAlreadyExists),
		errors.Is(err, service.ErrWorkoutAlreadyCompleted),
		errors.Is(err, service.ErrWorkoutNotActive),
		errors.Is(err, service.ErrWorkoutNotStarted),
		errors.Is(err, service.ErrWorkoutNotEditable),
		errors.Is(err, service.ErrClientAlreadyAssigned):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError aborts with the status of err. Internal errors are logged and
// reported with a generic message.
func respondError(c *gin.Context, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		log.WithError(err).WithFields(log.Fields{
			"path":      c.Request.URL.Path,
			"requestId": c.GetString(ContextRequestIDKey),
		}).Error("request failed")
		abortWithError(c, code, "An unexpected error occurred")
		return
	}
	abortWithError(c, code, err.Error())
}

func respondOK(c *gin.Context, code int, body gin.H) {
	body["success"] = true
	c.JSON(code, body)
}

// objectIDParam parses a hex ObjectID path parameter or aborts with 400.
func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid "+name+" format")
		return primitive.NilObjectID, false
	}
	return id, true
}
