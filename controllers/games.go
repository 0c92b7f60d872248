package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type startGameRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	RoomID string `json:"room_id"`
}

// StartGame deals a new card and opens a session.
func (ctl *Controller) StartGame(c *gin.Context) {
	var req startGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := ctl.Sessions.StartGame(c.Request.Context(), req.UserID, req.RoomID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GetGame returns the stored session.
func (ctl *Controller) GetGame(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	g, err := ctl.Sessions.GetSession(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// DrawNumber calls the next number.
func (ctl *Controller) DrawNumber(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	res, err := ctl.Sessions.DrawNumber(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type markRequest struct {
	Cell           *int `json:"cell" binding:"required"`
	ReactionTimeMs *int `json:"reaction_time_ms"`
}

// RecordMark marks one cell.
func (ctl *Controller) RecordMark(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := ctl.Sessions.RecordMark(c.Request.Context(), id, *req.Cell, req.ReactionTimeMs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type powerupRequest struct {
	Type string `json:"powerup_type" binding:"required"`
}

// RecordPowerup logs a powerup use.
func (ctl *Controller) RecordPowerup(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	var req powerupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := ctl.Sessions.RecordPowerup(c.Request.Context(), id, req.Type); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// FinalizeTimeout ends the session as lost if it is still running.
func (ctl *Controller) FinalizeTimeout(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	res, err := ctl.Sessions.FinalizeByTimeout(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
