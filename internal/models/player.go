// internal/models/player.go
package models

import (
	"sort"
	"time"
)

// Presence describes how a seat relates to the round in progress.
type Presence uint8

const (
	// PresencePlaying means the seat is live in the current round.
	PresencePlaying Presence = iota
	// PresenceLeft means the player quit or idled out mid-round. The seat is
	// kept (not removed) so scoring and rank bookkeeping stay intact.
	PresenceLeft
	// PresenceOut means the player emptied their hand and finished.
	PresenceOut
	// PresenceOutByDefault means the player finished because everyone else
	// left, not by playing out their hand.
	PresenceOutByDefault
)

func (p Presence) String() string {
	switch p {
	case PresencePlaying:
		return "playing"
	case PresenceLeft:
		return "left"
	case PresenceOut:
		return "out"
	case PresenceOutByDefault:
		return "out by default"
	default:
		return "unknown"
	}
}

// Player is one seat's mutable state for the round. All access is guarded
// by the owning game's lock.
type Player struct {
	Name     string
	Hand     []Card
	Presence Presence
	IsBot    bool

	// Per-turn flags.
	CanMove   bool
	CalledUno bool
	IdleCount int
	DrawnCard *Card
	LeftAt    time.Time

	// Score accumulators, reconciled by the scoring engine at round end.
	BasePoints int
	HandPoints int
	Rank       int
	HandScored bool

	// StreakSettled means this seat's win/loss streak accounting already
	// happened when they quit; round-end settlement must not charge it again.
	StreakSettled bool
}

// HoldsCard reports whether the hand contains an exact copy of card.
func (p *Player) HoldsCard(card Card) bool {
	return p.FindCard(card) >= 0
}

// FindCard returns the index of card in the hand, or -1.
func (p *Player) FindCard(card Card) int {
	for i, c := range p.Hand {
		if c == card {
			return i
		}
	}
	return -1
}

// RemoveCard takes one copy of card out of the hand. It returns false if
// the card is not held.
func (p *Player) RemoveCard(card Card) bool {
	i := p.FindCard(card)
	if i < 0 {
		return false
	}
	p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
	return true
}

// SortHand orders the hand by colour then rank. Purely cosmetic.
func (p *Player) SortHand() {
	sort.Slice(p.Hand, func(i, j int) bool { return p.Hand[i].Less(p.Hand[j]) })
}

// ColourCounts tallies how many non-wild cards of each colour the hand
// holds. The AI uses this to choose wild colours.
func (p *Player) ColourCounts() map[Colour]int {
	counts := make(map[Colour]int, 4)
	for _, c := range p.Hand {
		if !c.IsWild() {
			counts[c.Colour]++
		}
	}
	return counts
}
