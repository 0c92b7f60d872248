package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bellapacxx/bingo-coach/models"
)

func TestMemoryStore_RoomStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	require.NoError(t, s.TouchRoomStat(ctx, 1, "beginner", now.Add(-time.Hour)))
	require.NoError(t, s.TouchRoomStat(ctx, 1, "beginner", now.Add(-time.Hour)))
	require.NoError(t, s.TouchRoomStat(ctx, 1, "space", now))
	require.NoError(t, s.TouchRoomStat(ctx, 2, "jungle", now))
	require.NoError(t, s.RecordRoomWin(ctx, 1, "space", 50))

	top, err := s.TopRoomStats(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "space", top[0].RoomID)
	assert.Equal(t, 3.0, top[0].PreferenceScore)
	assert.Equal(t, int64(50), top[0].TotalCoinsWon)
	assert.Equal(t, 2, top[1].GamesPlayed)

	recent, err := s.RecentRoomStats(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "space", recent[0].RoomID)

	assert.ErrorIs(t, s.RecordRoomWin(ctx, 3, "space", 50), ErrNotFound)
}

func TestMemoryStore_Ledger(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u := &models.User{Nickname: "ada"}
	require.NoError(t, s.CreateUser(ctx, u))

	require.NoError(t, s.PostLedger(ctx, &models.Transaction{UserID: u.ID, Amount: 50, Type: models.WinTransaction}))
	entry := &models.Transaction{UserID: u.ID, Amount: 25, Type: models.RewardTransaction}
	require.NoError(t, s.PostLedger(ctx, entry))
	assert.Equal(t, int64(75), entry.BalanceAfter)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(75), got.Balance)

	recent, err := s.RecentLedger(ctx, u.ID, 20)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(25), recent[0].Amount)

	assert.ErrorIs(t, s.PostLedger(ctx, &models.Transaction{UserID: 99, Amount: 1}), ErrNotFound)
}

func TestMemoryStore_RecentFinishedGames(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Now().Add(-time.Hour)

	statuses := []string{models.StatusWon, models.StatusTimeout, models.StatusOngoing, models.StatusWon}
	for i, st := range statuses {
		g := &models.Game{ID: uuid.New(), UserID: 1, Room: "beginner", Status: st, StartedAt: base}
		if st != models.StatusOngoing {
			ended := base.Add(time.Duration(i) * time.Minute)
			g.EndedAt = &ended
		}
		require.NoError(t, s.CreateGame(ctx, g))
	}

	games, err := s.RecentFinishedGames(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, games, 3)
	assert.Equal(t, models.StatusWon, games[0].Status)
	assert.Equal(t, models.StatusTimeout, games[1].Status)
	assert.Equal(t, models.StatusLost, games[1].Outcome())
}

func TestMemoryStore_Dashboard(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	u := &models.User{Nickname: "ada"}
	require.NoError(t, s.CreateUser(ctx, u))

	require.NoError(t, s.CreateGame(ctx, &models.Game{ID: uuid.New(), UserID: u.ID, Room: "beginner", Status: models.StatusWon, StartedAt: now.Add(-time.Minute)}))
	require.NoError(t, s.CreateGame(ctx, &models.Game{ID: uuid.New(), UserID: u.ID, Room: "space", Status: models.StatusTimeout, StartedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, s.PostLedger(ctx, &models.Transaction{UserID: u.ID, Amount: 50}))
	require.NoError(t, s.LogDecision(ctx, &models.Decision{Kind: models.DecisionReward}))
	require.NoError(t, s.LogDecision(ctx, &models.Decision{Kind: models.DecisionDirector}))

	d, err := s.Dashboard(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.ActiveUsers)
	assert.Equal(t, int64(1), d.RewardEvents)
	assert.Equal(t, int64(50), d.CoinNet)
	assert.Equal(t, []RoomCount{{Room: "beginner", Count: 1}, {Room: "space", Count: 1}}, d.RoomHeatmap)
	require.Len(t, d.RecentDecisions, 2)
	assert.Equal(t, models.DecisionDirector, d.RecentDecisions[0].Kind)

	var wins, losses int64
	for _, day := range d.WinLoss {
		wins += day.Wins
		losses += day.Losses
	}
	assert.Equal(t, int64(1), wins)
	assert.Equal(t, int64(1), losses)
}

func TestMemoryStore_TransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u := &models.User{Nickname: "ada"}
	require.NoError(t, s.CreateUser(ctx, u))
	require.NoError(t, s.TouchRoomStat(ctx, u.ID, "beginner", time.Now()))

	boom := errors.New("boom")
	g := &models.Game{ID: uuid.New(), UserID: u.ID, Room: "beginner", Status: models.StatusOngoing}
	err := s.Transaction(ctx, func(tx Store) error {
		require.NoError(t, tx.CreateGame(ctx, g))
		require.NoError(t, tx.AddAction(ctx, &models.GameAction{GameID: g.ID, ActionType: models.ActionGameStarted}))
		require.NoError(t, tx.PostLedger(ctx, &models.Transaction{UserID: u.ID, Amount: 50, Type: models.WinTransaction}))
		require.NoError(t, tx.RecordRoomWin(ctx, u.ID, "beginner", 50))
		require.NoError(t, tx.TouchRoomStat(ctx, u.ID, "space", time.Now()))
		require.NoError(t, tx.LogDecision(ctx, &models.Decision{Kind: models.DecisionReward}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetGame(ctx, g.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, s.Actions(g.ID))
	assert.Empty(t, s.Decisions())

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Balance)
	ledger, err := s.RecentLedger(ctx, u.ID, 20)
	require.NoError(t, err)
	assert.Empty(t, ledger)

	rooms, err := s.TopRoomStats(ctx, u.ID, 5)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "beginner", rooms[0].RoomID)
	assert.Zero(t, rooms[0].GamesWon)
	assert.Equal(t, 1, rooms[0].GamesPlayed)

	// a committed transaction keeps its writes
	require.NoError(t, s.Transaction(ctx, func(tx Store) error {
		return tx.CreateGame(ctx, g)
	}))
	_, err = s.GetGame(ctx, g.ID)
	assert.NoError(t, err)
}
