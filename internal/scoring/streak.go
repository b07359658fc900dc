// internal/scoring/streak.go
package scoring

import (
	"fmt"
	"time"

	"github.com/AndrioCelos/unobot/internal/models"
)

// milestone reports whether a streak length deserves a notice: 3, 6, then
// every 5 past 6 (11, 16, ...).
func milestone(n int) bool {
	if n < 0 {
		n = -n
	}
	return n == 3 || n == 6 || (n > 6 && (n-6)%5 == 0)
}

// RecordWin extends the player's win streak, breaking a losing one if
// present. Returned notices are narrated to the room.
func RecordWin(s *models.PlayerStats, now time.Time) []string {
	var notices []string
	s.Wins++
	if s.CurrentStreak < 0 {
		notices = append(notices, fmt.Sprintf("%s has broken their %d-loss streak!", s.Name, -s.CurrentStreak))
		s.CurrentStreak = 0
	}
	s.CurrentStreak++
	if s.CurrentStreak > s.BestStreak {
		s.BestStreak = s.CurrentStreak
		s.BestStreakAt = now
	}
	if milestone(s.CurrentStreak) {
		notices = append(notices, fmt.Sprintf("%s is on a %d-win streak!", s.Name, s.CurrentStreak))
	}
	return notices
}

// RecordLoss extends the player's losing streak symmetrically to RecordWin.
func RecordLoss(s *models.PlayerStats, now time.Time) []string {
	var notices []string
	s.Losses++
	if s.CurrentStreak > 0 {
		notices = append(notices, fmt.Sprintf("%s's %d-win streak has ended.", s.Name, s.CurrentStreak))
		s.CurrentStreak = 0
	}
	s.CurrentStreak--
	if milestone(s.CurrentStreak) {
		notices = append(notices, fmt.Sprintf("%s has lost %d in a row.", s.Name, -s.CurrentStreak))
	}
	return notices
}

// QuitAllowed reports whether a mid-round quit at now falls inside the
// player's rolling penalty-free allowance, and records the quit either way.
// An allowed quit neither penalizes nor touches the streak; a disallowed
// one is the caller's cue to subtract the quit penalty and record a loss.
func QuitAllowed(rules models.Ruleset, s *models.PlayerStats, now time.Time) bool {
	window := time.Duration(rules.QuitsAllowedTimeSec) * time.Second
	recent := s.RecentQuits[:0]
	for _, t := range s.RecentQuits {
		if now.Sub(t) <= window {
			recent = append(recent, t)
		}
	}
	s.RecentQuits = append(recent, now)
	return len(recent) < rules.QuitsAllowedWithoutPenalty
}
