package services

import (
	"github.com/google/uuid"

	"github.com/bellapacxx/bingo-coach/game"
	"github.com/bellapacxx/bingo-coach/models"
)

// Trigger names the moment the director is asked to speak.
type Trigger string

const (
	TriggerGameStart Trigger = "game_start"
	TriggerDraw      Trigger = "draw"
	TriggerLine      Trigger = "line"
	TriggerWin       Trigger = "win"
)

func (t Trigger) Valid() bool {
	switch t {
	case TriggerGameStart, TriggerDraw, TriggerLine, TriggerWin:
		return true
	}
	return false
}

// Extras is the per-trigger detail sent alongside the player context.
type Extras struct {
	LastNumber      *int          `json:"last_number,omitempty"`
	WinType         *game.WinType `json:"win_type"`
	MarkedCount     int           `json:"marked_count"`
	NumbersCalled   int           `json:"numbers_called"`
	ProgressPercent int           `json:"progress_percent"`
	LineBonus       int64         `json:"line_bonus,omitempty"`
	CoinsDelta      int64         `json:"coins_delta,omitempty"`
}

// ForTrigger drops fields the trigger does not carry.
func (e Extras) ForTrigger(t Trigger) Extras {
	out := Extras{
		MarkedCount:     e.MarkedCount,
		NumbersCalled:   e.NumbersCalled,
		ProgressPercent: e.ProgressPercent,
	}
	switch t {
	case TriggerDraw:
		out.LastNumber = e.LastNumber
	case TriggerLine:
		out.LastNumber = e.LastNumber
		out.LineBonus = e.LineBonus
		out.WinType = e.WinType
	case TriggerWin:
		out.LastNumber = e.LastNumber
		out.WinType = e.WinType
		out.CoinsDelta = e.CoinsDelta
	}
	return out
}

// Event is one director notification raised by the session store.
type Event struct {
	Trigger   Trigger
	UserID    uint
	SessionID uuid.UUID
	DrawCount int
	Extras    Extras
}

// ExtrasFromGame reads the progress fields off a stored game.
func ExtrasFromGame(g *models.Game) Extras {
	var ex Extras
	if m, err := g.MarksValue(); err == nil {
		ex.MarkedCount = game.MarkedCount(m)
	}
	ex.NumbersCalled = g.NumbersCalled
	ex.ProgressPercent = ex.MarkedCount * 100 / game.CardSize
	if drawn, err := g.DrawnNumbers(); err == nil && len(drawn) > 0 {
		last := drawn[len(drawn)-1]
		ex.LastNumber = &last
	}
	if wt := game.WinType(g.WinType); wt != "" && wt != game.WinNone {
		ex.WinType = &wt
	}
	return ex
}
