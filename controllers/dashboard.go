package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bellapacxx/bingo-coach/utils/apperrors"
)

// Dashboard returns the operator overview.
func (ctl *Controller) Dashboard(c *gin.Context) {
	d, err := ctl.Store.Dashboard(c.Request.Context(), time.Now())
	if err != nil {
		respondError(c, apperrors.Store("load dashboard", err))
		return
	}
	c.JSON(http.StatusOK, d)
}
