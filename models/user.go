package models

import "time"

type User struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Nickname          string     `gorm:"uniqueIndex;size:64" json:"nickname"`
	Balance           int64      `json:"balance"`
	TotalGamesPlayed  int        `json:"total_games_played"`
	TotalWins         int        `json:"total_wins"`
	TotalLosses       int        `json:"total_losses"`
	PlayStyle         string     `gorm:"size:16;default:unknown" json:"play_style"`
	FavoriteRoom      *string    `gorm:"size:64" json:"favorite_room"`
	AvgReactionTimeMs *float64   `json:"avg_reaction_time_ms"`
	LastSeenAt        *time.Time `json:"last_seen_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Play styles derived from the rolling reaction time.
const (
	PlayStyleUnknown = "unknown"
	PlayStyleFast    = "fast"
	PlayStyleSteady  = "steady"
	PlayStyleRelaxed = "relaxed"
)

// PlayStyleFor buckets an average reaction time.
func PlayStyleFor(avgReactionMs float64) string {
	switch {
	case avgReactionMs <= 0:
		return PlayStyleUnknown
	case avgReactionMs < 1500:
		return PlayStyleFast
	case avgReactionMs < 4000:
		return PlayStyleSteady
	default:
		return PlayStyleRelaxed
	}
}
