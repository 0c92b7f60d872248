package controllers

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func (ctl *Controller) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(ctl.AllowedOrigins) == 0 || slices.Contains(ctl.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(ctl.AllowedOrigins, origin)
}

// SessionWebSocket streams director remarks for one session.
func (ctl *Controller) SessionWebSocket(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	if _, err := ctl.Sessions.GetSession(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: ctl.checkOrigin}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response
		return
	}
	ctl.Hub.Join(id, conn)
}
