package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bellapacxx/bingo-coach/models"
)

// GormStore is the postgres-backed Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *GormStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *GormStore) GetUserByNickname(ctx context.Context, nickname string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("nickname = ?", nickname).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *GormStore) SaveUser(ctx context.Context, u *models.User) error {
	return s.db.WithContext(ctx).Save(u).Error
}

func (s *GormStore) CreateGame(ctx context.Context, g *models.Game) error {
	return s.db.WithContext(ctx).Create(g).Error
}

func (s *GormStore) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	var g models.Game
	if err := s.db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (s *GormStore) LockGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	var g models.Game
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&g, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (s *GormStore) SaveGame(ctx context.Context, g *models.Game) error {
	return s.db.WithContext(ctx).Save(g).Error
}

func (s *GormStore) RecentFinishedGames(ctx context.Context, userID uint, limit int) ([]models.Game, error) {
	var games []models.Game
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, []string{models.StatusWon, models.StatusTimeout}).
		Order("ended_at DESC").
		Limit(limit).
		Find(&games).Error
	return games, err
}

func (s *GormStore) AddAction(ctx context.Context, a *models.GameAction) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *GormStore) AverageReaction(ctx context.Context, gameID uuid.UUID) (*float64, error) {
	var avg sql.NullFloat64
	err := s.db.WithContext(ctx).
		Model(&models.GameAction{}).
		Select("AVG(reaction_time_ms)").
		Where("game_id = ? AND reaction_time_ms IS NOT NULL", gameID).
		Row().Scan(&avg)
	if err != nil {
		return nil, err
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

func (s *GormStore) TouchRoomStat(ctx context.Context, userID uint, room string, at time.Time) error {
	row := models.RoomStat{UserID: userID, RoomID: room, GamesPlayed: 1, LastPlayedAt: at}
	row.PreferenceScore = row.Score()
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "room_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"games_played":     gorm.Expr("room_stats.games_played + 1"),
			"preference_score": gorm.Expr("room_stats.games_played + 1 + 2 * room_stats.games_won"),
			"last_played_at":   at,
		}),
	}).Create(&row).Error
}

func (s *GormStore) RecordRoomWin(ctx context.Context, userID uint, room string, coins int64) error {
	res := s.db.WithContext(ctx).
		Model(&models.RoomStat{}).
		Where("user_id = ? AND room_id = ?", userID, room).
		Updates(map[string]any{
			"games_won":        gorm.Expr("games_won + 1"),
			"total_coins_won":  gorm.Expr("total_coins_won + ?", coins),
			"preference_score": gorm.Expr("games_played + 2 * (games_won + 1)"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) TopRoomStats(ctx context.Context, userID uint, limit int) ([]models.RoomStat, error) {
	var rows []models.RoomStat
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("preference_score DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (s *GormStore) RecentRoomStats(ctx context.Context, userID uint, limit int) ([]models.RoomStat, error) {
	var rows []models.RoomStat
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_played_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (s *GormStore) PostLedger(ctx context.Context, entry *models.Transaction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, entry.UserID).Error; err != nil {
			return notFound(err)
		}

		user.Balance += entry.Amount
		if err := tx.Model(&user).Update("balance", user.Balance).Error; err != nil {
			return fmt.Errorf("update balance: %w", err)
		}

		entry.BalanceAfter = user.Balance
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("create ledger entry: %w", err)
		}
		return nil
	})
}

func (s *GormStore) RecentLedger(ctx context.Context, userID uint, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (s *GormStore) LogDecision(ctx context.Context, d *models.Decision) error {
	return s.db.WithContext(ctx).Create(d).Error
}

func (s *GormStore) Dashboard(ctx context.Context, now time.Time) (*Dashboard, error) {
	db := s.db.WithContext(ctx)
	out := &Dashboard{}

	if err := db.Model(&models.Game{}).
		Where("started_at > ?", now.Add(-ActiveWindow)).
		Distinct("user_id").
		Count(&out.ActiveUsers).Error; err != nil {
		return nil, fmt.Errorf("active users: %w", err)
	}

	if err := db.Model(&models.Decision{}).
		Where("kind = ?", models.DecisionReward).
		Count(&out.RewardEvents).Error; err != nil {
		return nil, fmt.Errorf("reward events: %w", err)
	}

	if err := db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Row().Scan(&out.CoinNet); err != nil {
		return nil, fmt.Errorf("coin net: %w", err)
	}

	if err := db.Model(&models.Game{}).
		Select("room, COUNT(*) AS count").
		Group("room").
		Order("room").
		Scan(&out.RoomHeatmap).Error; err != nil {
		return nil, fmt.Errorf("room heatmap: %w", err)
	}

	if err := db.Model(&models.Game{}).
		Select("DATE(started_at) AS day, " +
			"SUM(CASE WHEN status = 'won' THEN 1 ELSE 0 END) AS wins, " +
			"SUM(CASE WHEN status = 'timeout' THEN 1 ELSE 0 END) AS losses").
		Where("started_at >= ?", now.AddDate(0, 0, -WinLossDays)).
		Group("DATE(started_at)").
		Order("day").
		Scan(&out.WinLoss).Error; err != nil {
		return nil, fmt.Errorf("win/loss: %w", err)
	}

	if err := db.Order("id DESC").Limit(RecentDecisions).Find(&out.RecentDecisions).Error; err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	return out, nil
}
