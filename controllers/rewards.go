package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bellapacxx/bingo-coach/services"
)

// EvaluateReward lets the reward engine decide on bonus coins for a player.
func (ctl *Controller) EvaluateReward(c *gin.Context) {
	var req services.RewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := ctl.Rewards.Evaluate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
