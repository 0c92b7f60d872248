package models

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	WinTransaction    TransactionType = "win"
	RewardTransaction TransactionType = "reward"
)

// Transaction is one currency ledger entry. Every balance change has one.
type Transaction struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       uint            `gorm:"index;not null" json:"user_id"`
	GameID       *uuid.UUID      `gorm:"type:uuid;index" json:"game_id,omitempty"`
	Type         TransactionType `gorm:"size:16" json:"type"`
	Amount       int64           `json:"amount"`
	Reason       string          `gorm:"size:255" json:"reason"`
	BalanceAfter int64           `json:"balance_after"`
	CreatedAt    time.Time       `gorm:"index" json:"created_at"`
}
