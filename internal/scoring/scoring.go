// internal/scoring/scoring.go

// Package scoring computes round payouts and maintains each player's
// longitudinal win/loss record. The game state machine calls HandBonus the
// moment a player goes out and Settle once the round ends; streak updates
// run against the persisted PlayerStats records.
package scoring

import "github.com/AndrioCelos/unobot/internal/models"

// HandBonus sums the point values of every other player's remaining cards.
// Face value for numbers, 20 for Reverse/Skip/Draw Two, 50 for wilds.
func HandBonus(players []*models.Player, outSeat int) int {
	total := 0
	for i, p := range players {
		if i == outSeat {
			continue
		}
		for _, c := range p.Hand {
			total += c.Points()
		}
	}
	return total
}

// VictoryBonus returns the configured payout for a 1-based finish rank.
// Ranks beyond the configured array either repeat the last value or get
// nothing, and a separate flag controls whether the last-place finisher of
// the round ever receives a bonus.
func VictoryBonus(rules models.Ruleset, rank, seats int) int {
	if rank < 1 || len(rules.VictoryBonus) == 0 {
		return 0
	}
	if rank == seats && !rules.VictoryBonusLastPlace {
		return 0
	}
	if rank <= len(rules.VictoryBonus) {
		return rules.VictoryBonus[rank-1]
	}
	if rules.VictoryBonusRepeat {
		return rules.VictoryBonus[len(rules.VictoryBonus)-1]
	}
	return 0
}

// Result is a settled round: final totals per seat and who counts as
// having won or lost for streak purposes.
type Result struct {
	Totals  map[string]int
	Winners []string
	Losers  []string
}

// Settle reconciles every seat at round end. Players whose hand bonus was
// already computed get clamp(handBonus, >=0) + basePoints; players who
// never went out are charged a loss and their base points are added as-is,
// which may be negative from quit penalties. A seat that finished out by
// default counts as a win.
func Settle(players []*models.Player) Result {
	res := Result{Totals: make(map[string]int, len(players))}
	for _, p := range players {
		if p.HandScored {
			hand := p.HandPoints
			if hand < 0 {
				hand = 0
			}
			res.Totals[p.Name] = hand + p.BasePoints
		} else {
			res.Totals[p.Name] = p.BasePoints
		}

		switch {
		case p.Presence == models.PresenceOut && p.Rank == 1,
			p.Presence == models.PresenceOutByDefault:
			res.Winners = append(res.Winners, p.Name)
		default:
			res.Losers = append(res.Losers, p.Name)
		}
	}
	return res
}
