package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Action types logged per game.
const (
	ActionGameStarted  = "game_started"
	ActionNumberCalled = "number_called"
	ActionCellMarked   = "cell_marked"
	ActionMarkRejected = "mark_rejected"
	ActionPowerupUsed  = "powerup_used"
	ActionGameEnded    = "game_ended"
)

type GameAction struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	GameID         uuid.UUID      `gorm:"type:uuid;index;not null" json:"game_id"`
	ActionType     string         `gorm:"size:32" json:"action_type"`
	ActionData     datatypes.JSON `json:"action_data"`
	ReactionTimeMs *int           `json:"reaction_time_ms,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
