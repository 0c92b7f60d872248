// Package repository is the persistence boundary for games, users, room stats,
// the currency ledger and the decision audit log.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bellapacxx/bingo-coach/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is implemented by the postgres (gorm) store and the in-memory store.
type Store interface {
	// Transaction runs fn in one unit of work. Writes made through tx commit together.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByNickname(ctx context.Context, nickname string) (*models.User, error)
	SaveUser(ctx context.Context, u *models.User) error

	CreateGame(ctx context.Context, g *models.Game) error
	GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error)
	// LockGame loads a game for update. Call it inside Transaction.
	LockGame(ctx context.Context, id uuid.UUID) (*models.Game, error)
	SaveGame(ctx context.Context, g *models.Game) error
	// RecentFinishedGames returns terminal games newest-first by ended_at.
	RecentFinishedGames(ctx context.Context, userID uint, limit int) ([]models.Game, error)

	AddAction(ctx context.Context, a *models.GameAction) error
	// AverageReaction is nil when no action of the game carries a reaction time.
	AverageReaction(ctx context.Context, gameID uuid.UUID) (*float64, error)

	// TouchRoomStat inserts the (user, room) row with one game played or increments it.
	TouchRoomStat(ctx context.Context, userID uint, room string, at time.Time) error
	RecordRoomWin(ctx context.Context, userID uint, room string, coins int64) error
	// TopRoomStats orders by preference score, highest first.
	TopRoomStats(ctx context.Context, userID uint, limit int) ([]models.RoomStat, error)
	// RecentRoomStats orders by last played, newest first.
	RecentRoomStats(ctx context.Context, userID uint, limit int) ([]models.RoomStat, error)

	// PostLedger applies entry.Amount to the user's balance and stores the entry
	// with BalanceAfter filled in.
	PostLedger(ctx context.Context, entry *models.Transaction) error
	RecentLedger(ctx context.Context, userID uint, limit int) ([]models.Transaction, error)

	LogDecision(ctx context.Context, d *models.Decision) error

	Dashboard(ctx context.Context, now time.Time) (*Dashboard, error)
}

type RoomCount struct {
	Room  string `json:"room"`
	Count int64  `json:"count"`
}

type DayResult struct {
	Day    time.Time `json:"day"`
	Wins   int64     `json:"wins"`
	Losses int64     `json:"losses"`
}

// Dashboard is the operator overview.
type Dashboard struct {
	ActiveUsers     int64             `json:"active_users"`
	RewardEvents    int64             `json:"reward_events"`
	CoinNet         int64             `json:"coin_net"`
	RoomHeatmap     []RoomCount       `json:"room_heatmap"`
	WinLoss         []DayResult       `json:"win_loss"`
	RecentDecisions []models.Decision `json:"recent_ai_decisions"`
}

// Dashboard windows.
const (
	ActiveWindow    = 30 * time.Minute
	WinLossDays     = 7
	RecentDecisions = 10
)
