package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/bellapacxx/bingo-coach/controllers"
)

func SetupRoutes(r *gin.Engine, ctl *controllers.Controller) {
	api := r.Group("/api")

	// ----------------------
	// User routes
	// ----------------------
	api.POST("/users", ctl.RegisterUser)                     // Register or fetch by nickname
	api.GET("/users/:id", ctl.GetUser)                       // Profile
	api.GET("/users/:id/context", ctl.UserContext)           // Director context snapshot
	api.GET("/users/:id/greeting", ctl.Greeting)             // Lobby greeting
	api.GET("/users/:id/transactions", ctl.ListTransactions) // Ledger

	// ----------------------
	// Game routes
	// ----------------------
	api.POST("/games", ctl.StartGame)
	api.GET("/games/:id", ctl.GetGame)
	api.POST("/games/:id/draw", ctl.DrawNumber)
	api.POST("/games/:id/marks", ctl.RecordMark)
	api.POST("/games/:id/powerups", ctl.RecordPowerup)
	api.POST("/games/:id/timeout", ctl.FinalizeTimeout)

	// ----------------------
	// Director and rewards
	// ----------------------
	api.POST("/director", ctl.Remark)
	api.POST("/rewards", ctl.EvaluateReward)
	api.GET("/dashboard", ctl.Dashboard)

	// Remarks stream
	r.GET("/ws/sessions/:id", ctl.SessionWebSocket)
}
