package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bellapacxx/bingo-coach/models"
	"github.com/bellapacxx/bingo-coach/repository"
	"github.com/bellapacxx/bingo-coach/utils/apperrors"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, instructions string, payload any, out any) error {
	args := m.Called(ctx, instructions, payload, out)
	return args.Error(0)
}

// replies makes every Generate call decode body into out.
func (m *mockGenerator) replies(body string) *mock.Call {
	return m.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			_ = json.Unmarshal([]byte(body), args.Get(3))
		}).
		Return(nil)
}

func (m *mockGenerator) fails() *mock.Call {
	return m.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(apperrors.Generation(context.DeadlineExceeded))
}

// hangs blocks until the call's context is done.
func (m *mockGenerator) hangs() *mock.Call {
	return m.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(apperrors.Generation(context.Canceled))
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) all() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event(nil), n.events...)
}

type chanSink struct {
	ch chan RemarkMessage
}

func (s *chanSink) Publish(_ uuid.UUID, msg RemarkMessage) {
	s.ch <- msg
}

func testPolicy() Policy {
	p := DefaultPolicy()
	p.GameDuration = 0
	p.GenerationTimeout = 200 * time.Millisecond
	return p
}

func newUser(t *testing.T, store repository.Store, nickname string) *models.User {
	t.Helper()
	u := &models.User{Nickname: nickname, PlayStyle: models.PlayStyleUnknown}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

func newSessions(store repository.Store, opts ...SessionOption) *SessionService {
	return NewSessionService(store, testPolicy(), append([]SessionOption{WithSeed(42)}, opts...)...)
}

var errUnavailable = errors.New("unavailable")

// flakyStore fails the reads switched on and passes everything else through.
type flakyStore struct {
	*repository.MemoryStore
	user, game, games, rooms bool
}

func (s *flakyStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	if s.user {
		return nil, errUnavailable
	}
	return s.MemoryStore.GetUser(ctx, id)
}

func (s *flakyStore) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	if s.game {
		return nil, errUnavailable
	}
	return s.MemoryStore.GetGame(ctx, id)
}

func (s *flakyStore) RecentFinishedGames(ctx context.Context, userID uint, limit int) ([]models.Game, error) {
	if s.games {
		return nil, errUnavailable
	}
	return s.MemoryStore.RecentFinishedGames(ctx, userID, limit)
}

func (s *flakyStore) TopRoomStats(ctx context.Context, userID uint, limit int) ([]models.RoomStat, error) {
	if s.rooms {
		return nil, errUnavailable
	}
	return s.MemoryStore.TopRoomStats(ctx, userID, limit)
}
