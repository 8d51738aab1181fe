package domain

import (
	"time"
)

// ScoreRecord is a completed game's final score, persisted for the
// leaderboard when the board reports GAME_OVER.
type ScoreRecord struct {
	ClientID   string    `json:"client_id"`
	ClientName string    `json:"client_name"`
	Game       GameMode  `json:"game"`
	Score      int       `json:"score"`
	Level      int       `json:"level"`
	PlayedAt   time.Time `json:"played_at"`
}
