package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bellapacxx/bingo-coach/services"
)

type directorRequest struct {
	Mode      string     `json:"mode" binding:"required,oneof=decision chat"`
	UserID    uint       `json:"user_id" binding:"required"`
	SessionID *uuid.UUID `json:"session_id"`
	Trigger   string     `json:"trigger"`
	Message   string     `json:"message"`
}

// Remark asks for a remark on demand: either for a trigger on a session or
// as a reply to a chat message.
func (ctl *Controller) Remark(c *gin.Context) {
	var req directorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()

	if req.Mode == "chat" {
		remark, err := ctl.Director.Chat(ctx, req.UserID, req.SessionID, req.Message)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, remark)
		return
	}

	if req.SessionID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required for decisions", "code": "validation_error"})
		return
	}
	remark, fired, err := ctl.Director.DecideForSession(ctx, services.Trigger(req.Trigger), req.UserID, *req.SessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !fired {
		c.JSON(http.StatusOK, gin.H{"skipped": true})
		return
	}
	c.JSON(http.StatusOK, remark)
}
