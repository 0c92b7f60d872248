package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bellapacxx/bingo-coach/repository"
	"github.com/bellapacxx/bingo-coach/services"
	"github.com/bellapacxx/bingo-coach/utils/apperrors"
	"github.com/bellapacxx/bingo-coach/utils/logger"
)

// Controller holds the services behind the HTTP handlers.
type Controller struct {
	Sessions *services.SessionService
	Director *services.Director
	Rewards  *services.RewardEngine
	Users    *services.UserService
	Contexts *services.ContextAggregator
	Store    repository.Store
	Hub      *services.Hub

	// AllowedOrigins limits websocket upgrades; empty allows any origin.
	AllowedOrigins []string
}

// respondError writes err with the status of its kind. Unknown errors are 500s
// and their detail stays in the log.
func respondError(c *gin.Context, err error) {
	if e, ok := apperrors.As(err); ok {
		if e.Kind == apperrors.KindStore {
			logger.Errorf("[HTTP] %s %s: %v", c.Request.Method, c.FullPath(), err)
		}
		c.JSON(e.StatusCode(), gin.H{"error": e.Message, "code": e.Kind})
		return
	}
	logger.Errorf("[HTTP] %s %s: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func sessionParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id", "code": apperrors.KindValidation})
		return uuid.Nil, false
	}
	return id, true
}

func userParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id", "code": apperrors.KindValidation})
		return 0, false
	}
	return uint(id), true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apperrors.KindValidation})
}
