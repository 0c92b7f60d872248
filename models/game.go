package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/bellapacxx/bingo-coach/game"
)

// Session statuses.
const (
	StatusOngoing = "ongoing"
	StatusWon     = "won"
	StatusTimeout = "timeout"
	// StatusLost is how a timed-out game is reported in streaks and recent results.
	StatusLost = "lost"
)

// Game is one bingo session row.
type Game struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uint           `gorm:"index;not null" json:"user_id"`
	Room           string         `gorm:"size:64;index" json:"room"`
	Status         string         `gorm:"size:16;index" json:"status"`
	Card           datatypes.JSON `json:"card"`
	Marks          datatypes.JSON `json:"marks"`
	Drawn          datatypes.JSON `json:"drawn"` // numbers called so far, in order
	Pool           datatypes.JSON `json:"-"`     // numbers still to be called
	Rejected       datatypes.JSON `json:"-"`     // cells already counted as marked too early
	Powerups       datatypes.JSON `json:"powerups_used"`
	NumbersCalled  int            `json:"total_numbers_called"`
	TotalMarks     int            `json:"total_marks"`
	CorrectMarks   int            `json:"correct_marks"`
	IncorrectMarks int            `json:"incorrect_marks"`
	LinesCompleted int            `json:"lines_completed"`
	LineBonus      int64          `json:"line_bonus"`
	CoinsWon       int64          `json:"coins_won"`
	WinType        string         `gorm:"size:16;default:none" json:"win_type"`
	StartedAt      time.Time      `json:"started_at"`
	EndedAt        *time.Time     `gorm:"index" json:"ended_at"`
	DurationMs     *int64         `json:"game_duration_ms"`
	AvgReactionMs  *float64       `json:"avg_mark_reaction_ms"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsTerminal reports whether the session can no longer change.
func (g *Game) IsTerminal() bool {
	return g.Status == StatusWon || g.Status == StatusTimeout
}

// Outcome maps the stored status onto won/lost for history views.
func (g *Game) Outcome() string {
	if g.Status == StatusTimeout {
		return StatusLost
	}
	return g.Status
}

func (g *Game) CardValue() (game.Card, error) {
	var c game.Card
	if err := json.Unmarshal(g.Card, &c); err != nil {
		return c, fmt.Errorf("decode card: %w", err)
	}
	return c, nil
}

func (g *Game) MarksValue() (game.Marks, error) {
	var raw []bool
	var m game.Marks
	if err := json.Unmarshal(g.Marks, &raw); err != nil {
		return m, fmt.Errorf("decode marks: %w", err)
	}
	if len(raw) != game.CardSize {
		return m, fmt.Errorf("decode marks: want %d cells, got %d", game.CardSize, len(raw))
	}
	copy(m[:], raw)
	return m, nil
}

func (g *Game) SetMarks(m game.Marks) error {
	b, err := json.Marshal(m[:])
	if err != nil {
		return err
	}
	g.Marks = datatypes.JSON(b)
	return nil
}

func (g *Game) DrawnNumbers() ([]int, error) {
	return decodeInts(g.Drawn)
}

func (g *Game) PoolNumbers() ([]int, error) {
	return decodeInts(g.Pool)
}

func (g *Game) SetDrawn(nums []int) error {
	b, err := json.Marshal(nums)
	if err != nil {
		return err
	}
	g.Drawn = datatypes.JSON(b)
	return nil
}

func (g *Game) SetPool(nums []int) error {
	b, err := json.Marshal(nums)
	if err != nil {
		return err
	}
	g.Pool = datatypes.JSON(b)
	return nil
}

func (g *Game) RejectedCells() ([]int, error) {
	return decodeInts(g.Rejected)
}

func (g *Game) AddRejected(cell int) error {
	cells, err := g.RejectedCells()
	if err != nil {
		return err
	}
	b, err := json.Marshal(append(cells, cell))
	if err != nil {
		return err
	}
	g.Rejected = datatypes.JSON(b)
	return nil
}

func (g *Game) PowerupList() []string {
	var out []string
	if len(g.Powerups) == 0 {
		return out
	}
	_ = json.Unmarshal(g.Powerups, &out)
	return out
}

func (g *Game) AddPowerup(kind string) error {
	list := append(g.PowerupList(), kind)
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	g.Powerups = datatypes.JSON(b)
	return nil
}

func decodeInts(raw datatypes.JSON) ([]int, error) {
	out := []int{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
