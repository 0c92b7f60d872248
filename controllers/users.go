package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Nickname string `json:"nickname" binding:"required"`
}

// RegisterUser creates a player or returns the existing one with that nickname.
func (ctl *Controller) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, created, err := ctl.Users.Register(c.Request.Context(), req.Nickname)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, u)
}

func (ctl *Controller) GetUser(c *gin.Context) {
	id, ok := userParam(c)
	if !ok {
		return
	}
	u, err := ctl.Users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// UserContext returns the context snapshot the director would see.
func (ctl *Controller) UserContext(c *gin.Context) {
	id, ok := userParam(c)
	if !ok {
		return
	}
	pc, err := ctl.Contexts.BuildContext(c.Request.Context(), id, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pc)
}

// Greeting returns the lobby welcome for a player.
func (ctl *Controller) Greeting(c *gin.Context) {
	id, ok := userParam(c)
	if !ok {
		return
	}
	g, err := ctl.Director.Greet(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// ListTransactions returns the newest ledger entries of a player.
func (ctl *Controller) ListTransactions(c *gin.Context) {
	id, ok := userParam(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	entries, err := ctl.Users.Ledger(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": entries})
}
