// internal/game/legal.go
package game

import (
	"errors"

	"github.com/AndrioCelos/unobot/internal/models"
)

// User-recoverable rejections. These are surfaced to the acting player as
// chat messages and never mutate game state.
var (
	ErrNotInGame       = errors.New("you are not in this game")
	ErrAlreadyJoined   = errors.New("you have already joined this game")
	ErrRoundNotStarted = errors.New("the round has not started yet")
	ErrRoundOver       = errors.New("the round is over")
	ErrRoundInProgress = errors.New("a round is already in progress")
	ErrNotYourTurn     = errors.New("it is not your turn")
	ErrNotEnoughSeats  = errors.New("at least two players are needed to start")
	ErrMustDrawFirst   = errors.New("you must draw a card before you can pass")
	ErrAlreadyDrawn    = errors.New("you have already drawn a card this turn")
	ErrNoPendingColour = errors.New("there is no colour choice to make")
	ErrNotYourChoice   = errors.New("the colour choice is not yours to make")
	ErrInvalidColour   = errors.New("that is not a playable colour")
	ErrNothingToCall   = errors.New("you can only call with one card left")
	ErrNoChallenge     = errors.New("there is nothing to challenge")
)

// Denial is the reason a play is illegal, or PlayOK.
type Denial int

const (
	PlayOK Denial = iota
	DenyNotHolding
	DenyMustPlayDrawn
	DenyColourPending
	DenyMustAnswerChallenge
	DenyMustStackOrDraw
	DenyNoMatch
	DenyWouldBeBluff
)

var denialErrors = map[Denial]error{
	DenyNotHolding:          errors.New("you do not have that card"),
	DenyMustPlayDrawn:       errors.New("you may only play the card you drew, or pass"),
	DenyColourPending:       errors.New("a colour must be chosen first"),
	DenyMustAnswerChallenge: errors.New("you must challenge the Wild Draw Four or draw"),
	DenyMustStackOrDraw:     errors.New("you must stack a matching draw card or draw the penalty"),
	DenyNoMatch:             errors.New("that card does not match the colour or rank in play"),
	DenyWouldBeBluff:        errors.New("you cannot play a Wild Draw Four while holding a matching colour"),
}

// Err converts a denial into its user-facing error, or nil for PlayOK.
func (d Denial) Err() error {
	if d == PlayOK {
		return nil
	}
	return denialErrors[d]
}

// CheckPlayLegality decides whether seat may play card in the game's
// current state. It is a pure read called from the Play intent and the AI
// alike, so the same rules hold at every entry point. Turn ownership is
// the caller's concern; this only judges the card.
func CheckPlayLegality(g *Game, seat int, card models.Card) Denial {
	p := g.Players[seat]

	// A card drawn this turn restricts the player to that exact card.
	if p.DrawnCard != nil && *p.DrawnCard != card {
		return DenyMustPlayDrawn
	}

	// An outstanding Wild Draw Four challenge blocks everything except, under
	// progressive rules, stacking another Wild Draw Four onto the penalty.
	if g.PendingDrawFour != nil && seat == g.PendingDrawFour.Challenger {
		if !(g.Rules.Progressive && card.Rank == models.RankWildDrawFour && g.DrawCount < g.Rules.ProgressiveCap) {
			return DenyMustAnswerChallenge
		}
		return holdCheck(p, card)
	}

	// Pending states sit with the authoritative turn seat. A later seat
	// acting early is judged as if they had already been resolved, which
	// fast-forwarding then does.

	// A pending colour choice blocks play, except that the wild's own player
	// may immediately cover it with a matching rank in a two-player game.
	if g.ColourPending && seat == g.Turn {
		if g.activePlayerCount() == 2 && seat == g.ColourChooser && card.Rank == g.upCard().Rank {
			return holdCheck(p, card)
		}
		return DenyColourPending
	}

	// An accumulated draw penalty must be stacked onto or drawn.
	if g.DrawCount > 0 && seat == g.Turn {
		stackable := card.Rank == g.upCard().Rank ||
			(g.Rules.WildDrawFour == models.FreePlay && card.Rank == models.RankWildDrawFour)
		if !(g.Rules.Progressive && stackable && card.Rank.IsDraw() && g.DrawCount < g.Rules.ProgressiveCap) {
			return DenyMustStackOrDraw
		}
		return holdCheck(p, card)
	}

	switch card.Rank {
	case models.RankWild:
		// Always legal.
	case models.RankWildDrawFour:
		if g.Rules.WildDrawFour == models.DisallowBluffing && holdsColour(p, g.activeColour()) {
			return DenyWouldBeBluff
		}
	default:
		if card.Colour != g.activeColour() && card.Rank != g.upCard().Rank {
			return DenyNoMatch
		}
	}

	return holdCheck(p, card)
}

func holdCheck(p *models.Player, card models.Card) Denial {
	if !p.HoldsCard(card) {
		return DenyNotHolding
	}
	return PlayOK
}

// holdsColour reports whether the hand contains a non-wild card of the
// given colour, which is what makes a Wild Draw Four a bluff.
func holdsColour(p *models.Player, colour models.Colour) bool {
	if colour == models.ColourNone {
		return false
	}
	for _, c := range p.Hand {
		if !c.IsWild() && c.Colour == colour {
			return true
		}
	}
	return false
}
