package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bellapacxx/bingo-coach/models"
	"github.com/bellapacxx/bingo-coach/repository"
	"github.com/bellapacxx/bingo-coach/utils/apperrors"
)

func TestComputeStreak(t *testing.T) {
	s := ComputeStreak([]string{"won", "won", "lost", "won"})
	require.NotNil(t, s.Type)
	assert.Equal(t, "won", *s.Type)
	assert.Equal(t, 2, s.Count)

	s = ComputeStreak([]string{"lost"})
	assert.Equal(t, "lost", *s.Type)
	assert.Equal(t, 1, s.Count)

	s = ComputeStreak(nil)
	assert.Nil(t, s.Type)
	assert.Zero(t, s.Count)
}

func TestBuildContext_UnknownUser(t *testing.T) {
	a := NewContextAggregator(repository.NewMemoryStore(), testPolicy())
	missing := uuid.New()

	pc, err := a.BuildContext(context.Background(), 7, &missing)
	require.NoError(t, err)
	assert.True(t, pc.UserProfile.IsNewUser)
	assert.Zero(t, pc.UserProfile.TotalGamesPlayed)
	assert.Zero(t, pc.UserProfile.WinRate)
	assert.Nil(t, pc.UserProfile.DaysSinceLastSeen)
	assert.Equal(t, models.PlayStyleUnknown, pc.UserProfile.PlayStyle)
	assert.Nil(t, pc.CurrentGame)
	assert.Empty(t, pc.RecentPerformance.LastGames)
	assert.Nil(t, pc.RecentPerformance.CurrentStreak.Type)
	assert.NotNil(t, pc.RoomPreferences)
}

func TestBuildContext_History(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	lastSeen := now.Add(-50 * time.Hour)
	u := &models.User{Nickname: "ada", TotalGamesPlayed: 4, TotalWins: 3, TotalLosses: 1, PlayStyle: models.PlayStyleFast, LastSeenAt: &lastSeen}
	require.NoError(t, store.CreateUser(ctx, u))

	// newest first: won, won, lost, won
	statuses := []string{models.StatusWon, models.StatusTimeout, models.StatusWon, models.StatusWon}
	for i, st := range statuses {
		ended := now.Add(-time.Duration(10-i) * time.Hour)
		require.NoError(t, store.CreateGame(ctx, &models.Game{
			ID: uuid.New(), UserID: u.ID, Room: "space", Status: st, StartedAt: ended.Add(-time.Minute), EndedAt: &ended,
		}))
	}
	require.NoError(t, store.TouchRoomStat(ctx, u.ID, "space", now))

	current := &models.Game{ID: uuid.New(), UserID: u.ID, Room: "space", Status: models.StatusOngoing, StartedAt: now.Add(-30 * time.Second), NumbersCalled: 9}
	require.NoError(t, store.CreateGame(ctx, current))

	a := NewContextAggregator(store, testPolicy())
	a.now = func() time.Time { return now }

	pc, err := a.BuildContext(ctx, u.ID, &current.ID)
	require.NoError(t, err)
	assert.False(t, pc.UserProfile.IsNewUser)
	assert.Equal(t, 0.75, pc.UserProfile.WinRate)
	require.NotNil(t, pc.UserProfile.DaysSinceLastSeen)
	assert.Equal(t, 2, *pc.UserProfile.DaysSinceLastSeen)

	require.Len(t, pc.RecentPerformance.LastGames, 4)
	assert.Equal(t, "won", pc.RecentPerformance.LastGames[0].Result)
	assert.Equal(t, "lost", pc.RecentPerformance.LastGames[2].Result)
	require.NotNil(t, pc.RecentPerformance.CurrentStreak.Type)
	assert.Equal(t, "won", *pc.RecentPerformance.CurrentStreak.Type)
	assert.Equal(t, 2, pc.RecentPerformance.CurrentStreak.Count)

	require.NotNil(t, pc.CurrentGame)
	assert.Equal(t, 9, pc.CurrentGame.NumbersCalled)
	assert.Equal(t, int64(30000), pc.CurrentGame.DurationSoFarMs)
	assert.Equal(t, []string{}, pc.CurrentGame.PowerupsUsed)

	require.Len(t, pc.RoomPreferences, 1)
	assert.Equal(t, "space", pc.RoomPreferences[0].RoomID)
}

func TestBuildContext_OptionalReadsDegrade(t *testing.T) {
	ctx := context.Background()
	mem := repository.NewMemoryStore()
	u := newUser(t, mem, "ada")
	require.NoError(t, mem.TouchRoomStat(ctx, u.ID, "space", time.Now()))
	current := &models.Game{ID: uuid.New(), UserID: u.ID, Room: "space", Status: models.StatusOngoing, StartedAt: time.Now()}
	require.NoError(t, mem.CreateGame(ctx, current))

	store := &flakyStore{MemoryStore: mem, game: true, games: true, rooms: true}
	pc, err := NewContextAggregator(store, testPolicy()).BuildContext(ctx, u.ID, &current.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", pc.UserProfile.Nickname)
	assert.Nil(t, pc.CurrentGame)
	assert.Empty(t, pc.RecentPerformance.LastGames)
	assert.NotNil(t, pc.RecentPerformance.LastGames)
	assert.Nil(t, pc.RecentPerformance.CurrentStreak.Type)
	assert.Empty(t, pc.RoomPreferences)
	assert.NotNil(t, pc.RoomPreferences)

	store = &flakyStore{MemoryStore: mem, user: true}
	_, err = NewContextAggregator(store, testPolicy()).BuildContext(ctx, u.ID, nil)
	assert.True(t, apperrors.Is(err, apperrors.KindStore))
}
