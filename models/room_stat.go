package models

import "time"

// RoomStat is the per (user, room) affinity row.
type RoomStat struct {
	UserID          uint      `gorm:"primaryKey" json:"user_id"`
	RoomID          string    `gorm:"primaryKey;size:64" json:"room_id"`
	GamesPlayed     int       `json:"games_played"`
	GamesWon        int       `json:"games_won"`
	TotalCoinsWon   int64     `json:"total_coins_won"`
	PreferenceScore float64   `gorm:"index" json:"preference_score"`
	LastPlayedAt    time.Time `json:"last_played_at"`
}

// Score recomputes the preference score: play count weighted by wins.
func (r *RoomStat) Score() float64 {
	return float64(r.GamesPlayed) + 2*float64(r.GamesWon)
}
