package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bellapacxx/bingo-coach/models"
)

type roomKey struct {
	userID uint
	room   string
}

// MemoryStore keeps everything in process. It backs tests and STORE=memory.
// Writes made inside Transaction are journaled and undone when fn fails.
type MemoryStore struct {
	*memState
	undo *[]func()
}

type memState struct {
	mu           sync.RWMutex
	users        map[uint]models.User
	games        map[uuid.UUID]models.Game
	actions      []models.GameAction
	rooms        map[roomKey]models.RoomStat
	ledger       []models.Transaction
	decisions    []models.Decision
	nextUserID   uint
	nextActionID uint
	nextTxID     uint
	nextDecision uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{memState: &memState{
		users: make(map[uint]models.User),
		games: make(map[uuid.UUID]models.Game),
		rooms: make(map[roomKey]models.RoomStat),
	}}
}

func (s *MemoryStore) Transaction(_ context.Context, fn func(tx Store) error) error {
	if s.undo != nil {
		return fn(s)
	}
	var undo []func()
	if err := fn(&MemoryStore{memState: s.memState, undo: &undo}); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		return err
	}
	return nil
}

// journal records how to revert a write. Call it with mu held.
func (s *MemoryStore) journal(f func()) {
	if s.undo != nil {
		*s.undo = append(*s.undo, f)
	}
}

// restoreUser puts back prev, or removes the user when it did not exist.
func (s *MemoryStore) restoreUser(id uint, prev models.User, existed bool) func() {
	return func() {
		if existed {
			s.users[id] = prev
		} else {
			delete(s.users, id)
		}
	}
}

func (s *MemoryStore) restoreGame(id uuid.UUID, prev models.Game, existed bool) func() {
	return func() {
		if existed {
			s.games[id] = prev
		} else {
			delete(s.games, id)
		}
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	u.ID = s.nextUserID
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	if u.PlayStyle == "" {
		u.PlayStyle = models.PlayStyleUnknown
	}
	s.users[u.ID] = *u
	s.journal(s.restoreUser(u.ID, models.User{}, false))
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id uint) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) GetUserByNickname(_ context.Context, nickname string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Nickname == nickname {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SaveUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.users[u.ID]
	s.journal(s.restoreUser(u.ID, prev, ok))
	u.UpdatedAt = time.Now()
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) CreateGame(_ context.Context, g *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	g.CreatedAt, g.UpdatedAt = now, now
	prev, ok := s.games[g.ID]
	s.journal(s.restoreGame(g.ID, prev, ok))
	s.games[g.ID] = *g
	return nil
}

func (s *MemoryStore) GetGame(_ context.Context, id uuid.UUID) (*models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

func (s *MemoryStore) LockGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	return s.GetGame(ctx, id)
}

func (s *MemoryStore) SaveGame(_ context.Context, g *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.games[g.ID]
	s.journal(s.restoreGame(g.ID, prev, ok))
	g.UpdatedAt = time.Now()
	s.games[g.ID] = *g
	return nil
}

func (s *MemoryStore) RecentFinishedGames(_ context.Context, userID uint, limit int) ([]models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Game
	for _, g := range s.games {
		if g.UserID == userID && g.IsTerminal() && g.EndedAt != nil {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.After(*out[j].EndedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) AddAction(_ context.Context, a *models.GameAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextActionID++
	a.ID = s.nextActionID
	a.CreatedAt = time.Now()
	s.actions = append(s.actions, *a)
	id := a.ID
	s.journal(func() {
		s.actions = slices.DeleteFunc(s.actions, func(x models.GameAction) bool { return x.ID == id })
	})
	return nil
}

// Actions returns the logged actions of one game in insertion order.
func (s *MemoryStore) Actions(gameID uuid.UUID) []models.GameAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.GameAction
	for _, a := range s.actions {
		if a.GameID == gameID {
			out = append(out, a)
		}
	}
	return out
}

func (s *MemoryStore) AverageReaction(_ context.Context, gameID uuid.UUID) (*float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum, n int
	for _, a := range s.actions {
		if a.GameID == gameID && a.ReactionTimeMs != nil {
			sum += *a.ReactionTimeMs
			n++
		}
	}
	if n == 0 {
		return nil, nil
	}
	avg := float64(sum) / float64(n)
	return &avg, nil
}

func (s *MemoryStore) TouchRoomStat(_ context.Context, userID uint, room string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := roomKey{userID, room}
	r, ok := s.rooms[k]
	prev := r
	s.journal(func() {
		if ok {
			s.rooms[k] = prev
		} else {
			delete(s.rooms, k)
		}
	})
	if !ok {
		r = models.RoomStat{UserID: userID, RoomID: room}
	}
	r.GamesPlayed++
	r.LastPlayedAt = at
	r.PreferenceScore = r.Score()
	s.rooms[k] = r
	return nil
}

func (s *MemoryStore) RecordRoomWin(_ context.Context, userID uint, room string, coins int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := roomKey{userID, room}
	r, ok := s.rooms[k]
	if !ok {
		return ErrNotFound
	}
	prev := r
	s.journal(func() { s.rooms[k] = prev })
	r.GamesWon++
	r.TotalCoinsWon += coins
	r.PreferenceScore = r.Score()
	s.rooms[k] = r
	return nil
}

func (s *MemoryStore) roomsFor(userID uint) []models.RoomStat {
	var out []models.RoomStat
	for k, r := range s.rooms {
		if k.userID == userID {
			out = append(out, r)
		}
	}
	return out
}

func (s *MemoryStore) TopRoomStats(_ context.Context, userID uint, limit int) ([]models.RoomStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.roomsFor(userID)
	sort.Slice(out, func(i, j int) bool {
		if out[i].PreferenceScore == out[j].PreferenceScore {
			return out[i].RoomID < out[j].RoomID
		}
		return out[i].PreferenceScore > out[j].PreferenceScore
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) RecentRoomStats(_ context.Context, userID uint, limit int) ([]models.RoomStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.roomsFor(userID)
	sort.Slice(out, func(i, j int) bool { return out[i].LastPlayedAt.After(out[j].LastPlayedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) PostLedger(_ context.Context, entry *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[entry.UserID]
	if !ok {
		return ErrNotFound
	}
	u.Balance += entry.Amount
	s.users[u.ID] = u

	s.nextTxID++
	entry.ID = s.nextTxID
	entry.BalanceAfter = u.Balance
	entry.CreatedAt = time.Now()
	s.ledger = append(s.ledger, *entry)
	id, userID, amount := entry.ID, entry.UserID, entry.Amount
	s.journal(func() {
		s.ledger = slices.DeleteFunc(s.ledger, func(x models.Transaction) bool { return x.ID == id })
		if u, ok := s.users[userID]; ok {
			u.Balance -= amount
			s.users[u.ID] = u
		}
	})
	return nil
}

func (s *MemoryStore) RecentLedger(_ context.Context, userID uint, limit int) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Transaction
	for i := len(s.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if s.ledger[i].UserID == userID {
			out = append(out, s.ledger[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) LogDecision(_ context.Context, d *models.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextDecision++
	d.ID = s.nextDecision
	d.CreatedAt = time.Now()
	s.decisions = append(s.decisions, *d)
	id := d.ID
	s.journal(func() {
		s.decisions = slices.DeleteFunc(s.decisions, func(x models.Decision) bool { return x.ID == id })
	})
	return nil
}

// Decisions returns every logged decision, oldest first.
func (s *MemoryStore) Decisions() []models.Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Decision(nil), s.decisions...)
}

func (s *MemoryStore) Dashboard(_ context.Context, now time.Time) (*Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := &Dashboard{}

	active := map[uint]bool{}
	rooms := map[string]int64{}
	days := map[time.Time]*DayResult{}
	weekAgo := now.AddDate(0, 0, -WinLossDays)
	for _, g := range s.games {
		if g.StartedAt.After(now.Add(-ActiveWindow)) {
			active[g.UserID] = true
		}
		rooms[g.Room]++
		if g.StartedAt.Before(weekAgo) {
			continue
		}
		day := time.Date(g.StartedAt.Year(), g.StartedAt.Month(), g.StartedAt.Day(), 0, 0, 0, 0, g.StartedAt.Location())
		d, ok := days[day]
		if !ok {
			d = &DayResult{Day: day}
			days[day] = d
		}
		switch g.Status {
		case models.StatusWon:
			d.Wins++
		case models.StatusTimeout:
			d.Losses++
		}
	}
	out.ActiveUsers = int64(len(active))

	for room, n := range rooms {
		out.RoomHeatmap = append(out.RoomHeatmap, RoomCount{Room: room, Count: n})
	}
	sort.Slice(out.RoomHeatmap, func(i, j int) bool { return out.RoomHeatmap[i].Room < out.RoomHeatmap[j].Room })

	for _, d := range days {
		out.WinLoss = append(out.WinLoss, *d)
	}
	sort.Slice(out.WinLoss, func(i, j int) bool { return out.WinLoss[i].Day.Before(out.WinLoss[j].Day) })

	for _, d := range s.decisions {
		if d.Kind == models.DecisionReward {
			out.RewardEvents++
		}
	}
	for _, t := range s.ledger {
		out.CoinNet += t.Amount
	}
	for i := len(s.decisions) - 1; i >= 0 && len(out.RecentDecisions) < RecentDecisions; i-- {
		out.RecentDecisions = append(out.RecentDecisions, s.decisions[i])
	}
	return out, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*GormStore)(nil)
)
