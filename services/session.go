package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/bellapacxx/bingo-coach/game"
	"github.com/bellapacxx/bingo-coach/models"
	"github.com/bellapacxx/bingo-coach/repository"
	"github.com/bellapacxx/bingo-coach/utils/apperrors"
	"github.com/bellapacxx/bingo-coach/utils/logger"
)

// Mark rejection reasons.
const (
	ReasonAlreadyMarked = "already_marked"
	ReasonNotCalled     = "not_called"
)

// Powerup kinds accepted by RecordPowerup.
var Powerups = []string{"hint", "free_mark", "slow"}

// Notifier receives session events once their transaction has committed.
type Notifier interface {
	Notify(ev Event)
}

type StartResult struct {
	SessionID     uuid.UUID  `json:"session_id"`
	Room          string     `json:"room_id"`
	Card          game.Card  `json:"card"`
	Marks         game.Marks `json:"marks"`
	StartingCoins int64      `json:"starting_coins"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type MarkResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Cell     int    `json:"cell"`
}

type DrawResult struct {
	Number       int           `json:"number"`
	WinType      *game.WinType `json:"win_type"` // nil while nothing is complete
	LineBonus    int64         `json:"line_bonus"`
	CoinsDelta   int64         `json:"coins_delta"`
	GameEnded    bool          `json:"game_ended"`
	StatusText   string        `json:"status_text"`
	NumbersDrawn int           `json:"numbers_called"`
}

type TimeoutResult struct {
	Finalized bool   `json:"finalized"`
	Status    string `json:"status"`
}

// SessionService owns every state change of a bingo session.
type SessionService struct {
	store    repository.Store
	locker   Locker
	policy   Policy
	notifier Notifier
	timers   *Timers
	log      *zap.SugaredLogger
	now      func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

type SessionOption func(*SessionService)

func WithLocker(l Locker) SessionOption {
	return func(s *SessionService) { s.locker = l }
}

func WithNotifier(n Notifier) SessionOption {
	return func(s *SessionService) { s.notifier = n }
}

func WithSeed(seed int64) SessionOption {
	return func(s *SessionService) { s.rng = rand.New(rand.NewSource(seed)) }
}

func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionService) { s.now = now }
}

func WithSessionLogger(l *zap.SugaredLogger) SessionOption {
	return func(s *SessionService) { s.log = l }
}

func NewSessionService(store repository.Store, policy Policy, opts ...SessionOption) *SessionService {
	s := &SessionService{
		store:  store,
		locker: NewKeyedMutex(),
		policy: policy,
		log:    logger.Named(logger.Log, "session"),
		now:    time.Now,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	if policy.GameDuration > 0 {
		s.timers = NewTimers(policy.GameDuration, s.expire, s.log)
	}
	return s
}

// Close stops all pending game timers.
func (s *SessionService) Close() {
	if s.timers != nil {
		s.timers.StopAll()
	}
}

func (s *SessionService) StartGame(ctx context.Context, userID uint, roomID string) (*StartResult, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		roomID = s.policy.DefaultRoom
	}
	if len(roomID) > s.policy.MaxRoomIDLength {
		return nil, apperrors.Validation("room_id longer than %d characters", s.policy.MaxRoomIDLength)
	}
	if userID == 0 {
		return nil, apperrors.Validation("user_id is required")
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("user %d not found", userID)
		}
		return nil, apperrors.Store("load user", err)
	}

	s.rngMu.Lock()
	card := game.NewCard(s.rng)
	pool := game.ShuffledPool(s.rng)
	s.rngMu.Unlock()
	marks := game.NewMarks()

	now := s.now()
	g := &models.Game{
		ID:        uuid.New(),
		UserID:    userID,
		Room:      roomID,
		Status:    models.StatusOngoing,
		WinType:   string(game.WinNone),
		StartedAt: now,
		Powerups:  datatypes.JSON("[]"),
	}
	cardJSON, err := json.Marshal(card)
	if err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}
	g.Card = datatypes.JSON(cardJSON)
	if err := g.SetMarks(marks); err != nil {
		return nil, err
	}
	if err := g.SetPool(pool); err != nil {
		return nil, err
	}
	if err := g.SetDrawn(nil); err != nil {
		return nil, err
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.CreateGame(ctx, g); err != nil {
			return err
		}
		if err := addAction(ctx, tx, g.ID, models.ActionGameStarted, map[string]any{"room_id": roomID}, nil); err != nil {
			return err
		}
		return tx.TouchRoomStat(ctx, userID, roomID, now)
	})
	if err != nil {
		return nil, apperrors.Store("start game", err)
	}

	res := &StartResult{SessionID: g.ID, Room: roomID, Card: card, Marks: marks, StartingCoins: s.policy.StartingCoins}
	if s.timers != nil {
		s.timers.Arm(g.ID)
		expires := now.Add(s.policy.GameDuration)
		res.ExpiresAt = &expires
	}
	gamesStartedTotal.WithLabelValues(roomID).Inc()
	s.log.Infof("[Game %s] started for user %d in room %s", g.ID, userID, roomID)
	s.notify(Event{Trigger: TriggerGameStart, UserID: userID, SessionID: g.ID, Extras: ExtrasFromGame(g)})
	return res, nil
}

// GetSession returns the stored session.
func (s *SessionService) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Game, error) {
	g, err := s.store.GetGame(ctx, sessionID)
	if err != nil {
		return nil, storeErr("load game", sessionID, err)
	}
	return g, nil
}

// RecordMark marks cell for the player. Marking only counts numbers already
// drawn; a second mark of the same cell changes nothing.
func (s *SessionService) RecordMark(ctx context.Context, sessionID uuid.UUID, cell int, reactionMs *int) (*MarkResult, error) {
	if cell < 0 || cell >= game.CardSize {
		return nil, apperrors.Validation("cell must be between 0 and %d", game.CardSize-1)
	}
	if reactionMs != nil && *reactionMs < 0 {
		return nil, apperrors.Validation("reaction_time_ms must not be negative")
	}

	res := &MarkResult{Cell: cell}
	err := s.withSession(ctx, sessionID, func(tx repository.Store, g *models.Game) error {
		card, err := g.CardValue()
		if err != nil {
			return err
		}
		marks, err := g.MarksValue()
		if err != nil {
			return err
		}
		if marks[cell] {
			res.Reason = ReasonAlreadyMarked
			return addAction(ctx, tx, g.ID, models.ActionMarkRejected, map[string]any{"cell": cell, "reason": ReasonAlreadyMarked}, nil)
		}

		drawn, err := g.DrawnNumbers()
		if err != nil {
			return err
		}
		if !card.IsFree(cell) && !slices.Contains(drawn, card[cell]) {
			res.Reason = ReasonNotCalled
			rejected, err := g.RejectedCells()
			if err != nil {
				return err
			}
			// an early mark is counted once per cell
			if slices.Contains(rejected, cell) {
				return nil
			}
			if err := g.AddRejected(cell); err != nil {
				return err
			}
			g.TotalMarks++
			g.IncorrectMarks++
			if err := addAction(ctx, tx, g.ID, models.ActionMarkRejected, map[string]any{"cell": cell, "number": card[cell], "reason": ReasonNotCalled}, reactionMs); err != nil {
				return err
			}
			return tx.SaveGame(ctx, g)
		}

		marks[cell] = true
		g.TotalMarks++
		g.CorrectMarks++
		if err := g.SetMarks(marks); err != nil {
			return err
		}
		if err := addAction(ctx, tx, g.ID, models.ActionCellMarked, map[string]any{"cell": cell, "number": card[cell]}, reactionMs); err != nil {
			return err
		}
		res.Accepted = true
		return tx.SaveGame(ctx, g)
	})
	if err != nil {
		return nil, err
	}

	outcome := "accepted"
	if !res.Accepted {
		outcome = res.Reason
	}
	marksTotal.WithLabelValues(outcome).Inc()
	return res, nil
}

// DrawNumber calls the next number and settles any line or full house the
// current marks already form.
func (s *SessionService) DrawNumber(ctx context.Context, sessionID uuid.UUID) (*DrawResult, error) {
	res := &DrawResult{StatusText: "Next number drawn. Keep playing."}
	var ev Event

	err := s.withSession(ctx, sessionID, func(tx repository.Store, g *models.Game) error {
		pool, err := g.PoolNumbers()
		if err != nil {
			return err
		}
		drawn, err := g.DrawnNumbers()
		if err != nil {
			return err
		}
		if len(pool) > 0 {
			res.Number = pool[0]
			drawn = append(drawn, pool[0])
			g.NumbersCalled++
			if err := g.SetPool(pool[1:]); err != nil {
				return err
			}
			if err := g.SetDrawn(drawn); err != nil {
				return err
			}
			if err := addAction(ctx, tx, g.ID, models.ActionNumberCalled, map[string]any{"number": res.Number}, nil); err != nil {
				return err
			}
		} else {
			res.StatusText = "All numbers have been called."
		}
		res.NumbersDrawn = g.NumbersCalled

		marks, err := g.MarksValue()
		if err != nil {
			return err
		}
		ev = Event{Trigger: TriggerDraw, UserID: g.UserID, SessionID: g.ID, DrawCount: g.NumbersCalled}

		switch wt := game.DetectWin(marks); wt {
		case game.WinFullHouse:
			res.WinType = &wt
			res.CoinsDelta = s.policy.FullHouseBonus
			res.GameEnded = true
			res.StatusText = "Full house Bingo!"
			if err := s.finishWon(ctx, tx, g); err != nil {
				return err
			}
			ev.Trigger = TriggerWin
			ev.Extras = ExtrasFromGame(g)
			ev.Extras.CoinsDelta = res.CoinsDelta
			return nil

		case game.WinSingleLine:
			res.WinType = &wt
			// the line bonus is paid once, for the first line of the game
			if g.LinesCompleted == 0 {
				res.LineBonus = s.policy.LineBonus
				g.LineBonus = res.LineBonus
				res.StatusText = "Line complete! Keep going for full house!"
				ev.Trigger = TriggerLine
			}
			g.LinesCompleted = game.CompletedLines(marks)
			g.WinType = string(game.WinSingleLine)
		}

		if err := tx.SaveGame(ctx, g); err != nil {
			return err
		}
		ev.Extras = ExtrasFromGame(g)
		ev.Extras.LineBonus = res.LineBonus
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Number != 0 {
		drawsTotal.Inc()
	}
	if res.GameEnded {
		s.cancelTimer(sessionID)
		gamesFinalizedTotal.WithLabelValues(models.StatusWon).Inc()
		s.log.Infof("[Game %s] full house after %d numbers", sessionID, res.NumbersDrawn)
	}
	s.notify(ev)
	return res, nil
}

// FinalizeByTimeout ends an ongoing session as lost. Finished sessions are left alone.
func (s *SessionService) FinalizeByTimeout(ctx context.Context, sessionID uuid.UUID) (*TimeoutResult, error) {
	res := &TimeoutResult{}
	err := s.lockSession(ctx, sessionID, func(tx repository.Store, g *models.Game) error {
		res.Status = g.Outcome()
		if g.IsTerminal() {
			return nil
		}
		now := s.now()
		g.Status = models.StatusTimeout
		if err := s.closeGame(ctx, tx, g, now); err != nil {
			return err
		}
		if err := tx.SaveGame(ctx, g); err != nil {
			return err
		}
		if err := s.updateProfile(ctx, tx, g, now); err != nil {
			return err
		}
		if err := addAction(ctx, tx, g.ID, models.ActionGameEnded, map[string]any{"status": g.Status, "reason": "timeout"}, nil); err != nil {
			return err
		}
		res.Finalized = true
		res.Status = g.Outcome()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Finalized {
		s.cancelTimer(sessionID)
		gamesFinalizedTotal.WithLabelValues(models.StatusTimeout).Inc()
		s.log.Infof("[Game %s] timed out", sessionID)
	}
	return res, nil
}

// RecordPowerup appends kind to the session's powerup history.
func (s *SessionService) RecordPowerup(ctx context.Context, sessionID uuid.UUID, kind string) error {
	if !slices.Contains(Powerups, kind) {
		return apperrors.Validation("unknown powerup %q", kind)
	}
	return s.withSession(ctx, sessionID, func(tx repository.Store, g *models.Game) error {
		if err := g.AddPowerup(kind); err != nil {
			return err
		}
		if err := addAction(ctx, tx, g.ID, models.ActionPowerupUsed, map[string]any{"powerup_type": kind}, nil); err != nil {
			return err
		}
		return tx.SaveGame(ctx, g)
	})
}

// withSession is lockSession for operations that require an ongoing session.
func (s *SessionService) withSession(ctx context.Context, sessionID uuid.UUID, fn func(tx repository.Store, g *models.Game) error) error {
	return s.lockSession(ctx, sessionID, func(tx repository.Store, g *models.Game) error {
		if g.IsTerminal() {
			return apperrors.Conflict("session %s is already %s", sessionID, g.Outcome())
		}
		return fn(tx, g)
	})
}

// lockSession runs fn under the session lock inside one store transaction.
func (s *SessionService) lockSession(ctx context.Context, sessionID uuid.UUID, fn func(tx repository.Store, g *models.Game) error) error {
	unlock, err := s.locker.Lock(ctx, sessionID.String())
	if err != nil {
		return apperrors.Store("lock session", err)
	}
	defer unlock()

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		g, err := tx.LockGame(ctx, sessionID)
		if err != nil {
			return err
		}
		return fn(tx, g)
	})
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return storeErr("update game", sessionID, err)
}

func (s *SessionService) finishWon(ctx context.Context, tx repository.Store, g *models.Game) error {
	now := s.now()
	g.Status = models.StatusWon
	g.WinType = string(game.WinFullHouse)
	g.CoinsWon = s.policy.FullHouseBonus
	if err := s.closeGame(ctx, tx, g, now); err != nil {
		return err
	}
	if err := tx.SaveGame(ctx, g); err != nil {
		return err
	}
	if err := tx.RecordRoomWin(ctx, g.UserID, g.Room, g.CoinsWon); err != nil {
		return err
	}
	if err := s.updateProfile(ctx, tx, g, now); err != nil {
		return err
	}
	gameID := g.ID
	entry := &models.Transaction{
		UserID: g.UserID,
		GameID: &gameID,
		Type:   models.WinTransaction,
		Amount: g.CoinsWon,
		Reason: "Win: " + string(game.WinFullHouse),
	}
	if err := tx.PostLedger(ctx, entry); err != nil {
		return err
	}
	return addAction(ctx, tx, g.ID, models.ActionGameEnded, map[string]any{"status": g.Status, "win_type": g.WinType, "coins_won": g.CoinsWon}, nil)
}

// closeGame stamps end time, duration and mark reaction average.
func (s *SessionService) closeGame(ctx context.Context, tx repository.Store, g *models.Game, now time.Time) error {
	g.EndedAt = &now
	duration := now.Sub(g.StartedAt).Milliseconds()
	g.DurationMs = &duration
	avg, err := tx.AverageReaction(ctx, g.ID)
	if err != nil {
		return err
	}
	g.AvgReactionMs = avg
	return nil
}

// updateProfile folds a finished game into the player's lifetime stats.
func (s *SessionService) updateProfile(ctx context.Context, tx repository.Store, g *models.Game, now time.Time) error {
	u, err := tx.GetUser(ctx, g.UserID)
	if err != nil {
		return err
	}
	u.TotalGamesPlayed++
	if g.Status == models.StatusWon {
		u.TotalWins++
	} else {
		u.TotalLosses++
	}
	if g.AvgReactionMs != nil {
		avg := *g.AvgReactionMs
		if u.AvgReactionTimeMs != nil {
			n := float64(u.TotalGamesPlayed)
			avg = (*u.AvgReactionTimeMs*(n-1) + avg) / n
		}
		u.AvgReactionTimeMs = &avg
		u.PlayStyle = models.PlayStyleFor(avg)
	}
	top, err := tx.TopRoomStats(ctx, g.UserID, 1)
	if err != nil {
		return err
	}
	if len(top) > 0 {
		room := top[0].RoomID
		u.FavoriteRoom = &room
	}
	u.LastSeenAt = &now
	return tx.SaveUser(ctx, u)
}

func (s *SessionService) expire(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.FinalizeByTimeout(ctx, id); err != nil {
		s.log.Errorf("[Game %s] timeout finalization failed: %v", id, err)
	}
}

func (s *SessionService) cancelTimer(id uuid.UUID) {
	if s.timers != nil {
		s.timers.Cancel(id)
	}
}

func (s *SessionService) notify(ev Event) {
	if s.notifier != nil {
		ev.Extras = ev.Extras.ForTrigger(ev.Trigger)
		s.notifier.Notify(ev)
	}
}

func addAction(ctx context.Context, tx repository.Store, gameID uuid.UUID, kind string, data map[string]any, reactionMs *int) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return tx.AddAction(ctx, &models.GameAction{
		GameID:         gameID,
		ActionType:     kind,
		ActionData:     datatypes.JSON(b),
		ReactionTimeMs: reactionMs,
	})
}

func storeErr(op string, sessionID uuid.UUID, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("session %s not found", sessionID)
	}
	return apperrors.Store(op, err)
}
