package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bellapacxx/bingo-coach/game"
	"github.com/bellapacxx/bingo-coach/models"
	"github.com/bellapacxx/bingo-coach/repository"
	"github.com/bellapacxx/bingo-coach/utils/apperrors"
	"github.com/bellapacxx/bingo-coach/utils/logger"
)

type UserProfile struct {
	UserID            uint       `json:"user_id"`
	Nickname          string     `json:"nickname,omitempty"`
	IsNewUser         bool       `json:"is_new_user"`
	DaysSinceLastSeen *int       `json:"days_since_last_seen"`
	LastSeenAt        *time.Time `json:"last_seen_at,omitempty"`
	TotalGamesPlayed  int        `json:"total_games_played"`
	TotalWins         int        `json:"total_wins"`
	TotalLosses       int        `json:"total_losses"`
	WinRate           float64    `json:"win_rate"`
	PlayStyle         string     `json:"play_style"`
	FavoriteRoom      *string    `json:"favorite_room"`
	AvgReactionTimeMs *float64   `json:"avg_reaction_time_ms"`
	Balance           int64      `json:"balance"`
}

type CurrentGame struct {
	SessionID       uuid.UUID `json:"session_id"`
	Room            string    `json:"room_id"`
	Status          string    `json:"status"`
	NumbersCalled   int       `json:"numbers_called"`
	MarksMade       int       `json:"marks_made"`
	CorrectMarks    int       `json:"correct_marks"`
	IncorrectMarks  int       `json:"incorrect_marks"`
	MarkedCells     int       `json:"marked_cells"`
	LinesCompleted  int       `json:"lines_completed"`
	LineBonus       int64     `json:"line_bonus"`
	PowerupsUsed    []string  `json:"powerups_used"`
	DurationSoFarMs int64     `json:"duration_so_far_ms"`
}

type RecentGame struct {
	SessionID     uuid.UUID  `json:"session_id"`
	Room          string     `json:"room_id"`
	Result        string     `json:"result"`
	WinType       string     `json:"win_type"`
	NumbersCalled int        `json:"numbers_called"`
	CoinsWon      int64      `json:"coins_won"`
	EndedAt       *time.Time `json:"ended_at"`
}

// Streak is the run of identical results at the head of recent history.
type Streak struct {
	Type  *string `json:"type"`
	Count int     `json:"count"`
}

type RecentPerformance struct {
	LastGames     []RecentGame `json:"last_5_games"`
	CurrentStreak Streak       `json:"current_streak"`
}

type RoomPreference struct {
	RoomID          string  `json:"room_id"`
	GamesPlayed     int     `json:"games_played"`
	GamesWon        int     `json:"games_won"`
	TotalCoinsWon   int64   `json:"total_coins_won"`
	PreferenceScore float64 `json:"preference_score"`
}

// PlayerContext is the snapshot handed to the generation service.
type PlayerContext struct {
	UserProfile       UserProfile       `json:"user_profile"`
	CurrentGame       *CurrentGame      `json:"current_game"`
	RecentPerformance RecentPerformance `json:"recent_performance"`
	RoomPreferences   []RoomPreference  `json:"room_preferences"`
}

// ComputeStreak counts the leading run of equal results (newest first).
func ComputeStreak(results []string) Streak {
	if len(results) == 0 {
		return Streak{}
	}
	head := results[0]
	n := 0
	for _, r := range results {
		if r != head {
			break
		}
		n++
	}
	return Streak{Type: &head, Count: n}
}

// ContextAggregator assembles a PlayerContext from stored history.
type ContextAggregator struct {
	store  repository.Store
	policy Policy
	now    func() time.Time
	log    *zap.SugaredLogger
}

func NewContextAggregator(store repository.Store, policy Policy) *ContextAggregator {
	return &ContextAggregator{store: store, policy: policy, now: time.Now, log: logger.Named(logger.Log, "context")}
}

// BuildContext never fails on missing data: an unknown user or session yields
// neutral defaults, and so does a failed read of the current game, recent
// games or room stats. Only a failed user read is returned.
func (a *ContextAggregator) BuildContext(ctx context.Context, userID uint, sessionID *uuid.UUID) (*PlayerContext, error) {
	out := &PlayerContext{
		UserProfile: UserProfile{UserID: userID, IsNewUser: true, PlayStyle: models.PlayStyleUnknown},
		RecentPerformance: RecentPerformance{
			LastGames: []RecentGame{},
		},
		RoomPreferences: []RoomPreference{},
	}
	now := a.now()

	u, err := a.store.GetUser(ctx, userID)
	switch {
	case err == nil:
		out.UserProfile = profileOf(u, now)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.Store("load user", err)
	}

	if sessionID != nil {
		g, err := a.store.GetGame(ctx, *sessionID)
		switch {
		case err == nil:
			out.CurrentGame = currentGameOf(g, now)
		case !errors.Is(err, repository.ErrNotFound):
			a.log.Warnf("[User %d] current game %s unavailable: %v", userID, *sessionID, err)
		}
	}

	games, err := a.store.RecentFinishedGames(ctx, userID, a.policy.RecentGames)
	if err != nil {
		a.log.Warnf("[User %d] recent games unavailable: %v", userID, err)
		games = nil
	}
	results := make([]string, 0, len(games))
	for _, g := range games {
		out.RecentPerformance.LastGames = append(out.RecentPerformance.LastGames, RecentGame{
			SessionID:     g.ID,
			Room:          g.Room,
			Result:        g.Outcome(),
			WinType:       g.WinType,
			NumbersCalled: g.NumbersCalled,
			CoinsWon:      g.CoinsWon,
			EndedAt:       g.EndedAt,
		})
		results = append(results, g.Outcome())
	}
	out.RecentPerformance.CurrentStreak = ComputeStreak(results)

	rooms, err := a.store.TopRoomStats(ctx, userID, a.policy.TopRooms)
	if err != nil {
		a.log.Warnf("[User %d] room stats unavailable: %v", userID, err)
		rooms = nil
	}
	for _, r := range rooms {
		out.RoomPreferences = append(out.RoomPreferences, RoomPreference{
			RoomID:          r.RoomID,
			GamesPlayed:     r.GamesPlayed,
			GamesWon:        r.GamesWon,
			TotalCoinsWon:   r.TotalCoinsWon,
			PreferenceScore: r.PreferenceScore,
		})
	}
	return out, nil
}

func profileOf(u *models.User, now time.Time) UserProfile {
	p := UserProfile{
		UserID:            u.ID,
		Nickname:          u.Nickname,
		IsNewUser:         u.TotalGamesPlayed == 0,
		LastSeenAt:        u.LastSeenAt,
		TotalGamesPlayed:  u.TotalGamesPlayed,
		TotalWins:         u.TotalWins,
		TotalLosses:       u.TotalLosses,
		PlayStyle:         u.PlayStyle,
		FavoriteRoom:      u.FavoriteRoom,
		AvgReactionTimeMs: u.AvgReactionTimeMs,
		Balance:           u.Balance,
	}
	if p.PlayStyle == "" {
		p.PlayStyle = models.PlayStyleUnknown
	}
	if u.TotalGamesPlayed > 0 {
		p.WinRate = math.Round(float64(u.TotalWins)/float64(u.TotalGamesPlayed)*1000) / 1000
	}
	if u.LastSeenAt != nil {
		days := int(now.Sub(*u.LastSeenAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		p.DaysSinceLastSeen = &days
	}
	return p
}

func currentGameOf(g *models.Game, now time.Time) *CurrentGame {
	cg := &CurrentGame{
		SessionID:      g.ID,
		Room:           g.Room,
		Status:         g.Outcome(),
		NumbersCalled:  g.NumbersCalled,
		MarksMade:      g.TotalMarks,
		CorrectMarks:   g.CorrectMarks,
		IncorrectMarks: g.IncorrectMarks,
		LinesCompleted: g.LinesCompleted,
		LineBonus:      g.LineBonus,
		PowerupsUsed:   g.PowerupList(),
	}
	if cg.PowerupsUsed == nil {
		cg.PowerupsUsed = []string{}
	}
	if m, err := g.MarksValue(); err == nil {
		cg.MarkedCells = game.MarkedCount(m)
	}
	switch {
	case g.DurationMs != nil:
		cg.DurationSoFarMs = *g.DurationMs
	default:
		cg.DurationSoFarMs = now.Sub(g.StartedAt).Milliseconds()
	}
	return cg
}
