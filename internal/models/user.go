// internal/models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account on the gateway. Ephemeral users are created
// on the fly for guests joining from chat.
type User struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Password string    `json:"password,omitempty"`

	IsEphemeral bool `json:"is_ephemeral"`
}

// PlayerStats is a player's longitudinal record across rounds, persisted
// by the stats store and updated by the scoring engine.
type PlayerStats struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`

	// CurrentStreak is positive for a win streak, negative for a losing one.
	CurrentStreak int       `json:"current_streak"`
	BestStreak    int       `json:"best_streak"`
	BestStreakAt  time.Time `json:"best_streak_at"`

	// RecentQuits holds the timestamps of mid-round quits inside the rolling
	// penalty-free allowance window.
	RecentQuits []time.Time `json:"recent_quits,omitempty"`
}
