package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DecisionKind string

const (
	DecisionDirector DecisionKind = "director"
	DecisionChat     DecisionKind = "chat"
	DecisionGreeting DecisionKind = "greeting"
	DecisionReward   DecisionKind = "reward"
)

// Decision is the audit record of one generated decision.
type Decision struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Kind         DecisionKind   `gorm:"size:16;index" json:"kind"`
	UserID       *uint          `gorm:"index" json:"user_id,omitempty"`
	GameID       *uuid.UUID     `gorm:"type:uuid" json:"game_id,omitempty"`
	Trigger      string         `gorm:"size:32" json:"trigger,omitempty"`
	Granted      bool           `json:"granted"`
	DecisionJSON datatypes.JSON `json:"decision_json"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
}
