package services

import (
	"time"

	"github.com/bellapacxx/bingo-coach/game"
)

// PhraseBand is one row of the commentary table: marked-cell counts in
// [Min, Max] may use any of Phrasings.
type PhraseBand struct {
	Min       int      `json:"min"`
	Max       int      `json:"max"`
	Phrasings []string `json:"phrasings"`
}

// Policy holds every tunable number and phrase the game services use.
type Policy struct {
	StartingCoins  int64
	LineBonus      int64
	FullHouseBonus int64
	MaxRewardCoins int64
	DefaultRoom    string

	// DrawCadence is how many draws pass between unprompted remarks.
	DrawCadence       int
	GenerationTimeout time.Duration
	GameDuration      time.Duration

	// Bands must be ordered by Min and must not overlap.
	Bands []PhraseBand
	// ColdPhrasings replace the band when NumbersCalled > ColdDrawThreshold
	// while marked cells stay below ColdMarkThreshold.
	ColdDrawThreshold int
	ColdMarkThreshold int
	ColdPhrasings     []string

	FallbackMessage  string
	FallbackGreeting string

	RecentGames     int
	TopRooms        int
	RewardLedger    int
	RewardGames     int
	MaxChatLength   int
	MaxRoomIDLength int
}

func DefaultPolicy() Policy {
	return Policy{
		StartingCoins:  100,
		LineBonus:      20,
		FullHouseBonus: 50,
		MaxRewardCoins: 500,
		DefaultRoom:    "beginner",

		DrawCadence:       8,
		GenerationTimeout: 4 * time.Second,
		GameDuration:      2 * time.Minute,

		Bands: []PhraseBand{
			{Min: 0, Max: 3, Phrasings: []string{"Ouch, no matches yet!", "Dry spell! Your numbers are coming.", "Zero hits so far, patience!"}},
			{Min: 4, Max: 8, Phrasings: []string{"A few hits! Momentum building.", "Nice, got some marks!", "Warming up now!"}},
			{Min: 9, Max: 15, Phrasings: []string{"Halfway there! Line forming?", "Getting spicy! Watch row 3.", "Ooh, diagonal looks good!"}},
			{Min: 16, Max: 20, Phrasings: []string{"SO close to bingo! One more!", "Line is RIGHT there!", "Next number could be it!"}},
			{Min: 21, Max: 24, Phrasings: []string{"ONE away from full house!", "Final number! Come on!", "Full card incoming!"}},
		},
		ColdDrawThreshold: 20,
		ColdMarkThreshold: 10,
		ColdPhrasings:     []string{"Numbers not loving you today, huh?", "Unlucky draw so far!"},

		FallbackMessage:  "Keep going, every number counts!",
		FallbackGreeting: "Welcome back!",

		RecentGames:     5,
		TopRooms:        5,
		RewardLedger:    20,
		RewardGames:     10,
		MaxChatLength:   500,
		MaxRoomIDLength: 64,
	}
}

// BandFor returns the band covering marked, if any.
func (p Policy) BandFor(marked int) (PhraseBand, bool) {
	for _, b := range p.Bands {
		if marked >= b.Min && marked <= b.Max {
			return b, true
		}
	}
	return PhraseBand{}, false
}

// PhrasingsFor picks the allowed commentary for the current progress.
func (p Policy) PhrasingsFor(marked, numbersCalled int) []string {
	if numbersCalled > p.ColdDrawThreshold && marked < p.ColdMarkThreshold {
		return p.ColdPhrasings
	}
	if b, ok := p.BandFor(marked); ok {
		return b.Phrasings
	}
	return nil
}

// ShouldFire is the director's trigger throttle.
func (p Policy) ShouldFire(ev Event) bool {
	if ev.Trigger == TriggerGameStart {
		return true
	}
	if ev.Extras.WinType != nil && *ev.Extras.WinType != game.WinNone {
		return true
	}
	if ev.Trigger == TriggerLine {
		return true
	}
	return p.DrawCadence > 0 && ev.DrawCount > 0 && ev.DrawCount%p.DrawCadence == 0
}
