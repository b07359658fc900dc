// internal/models/card.go
package models

import "fmt"

// Colour is the suit of a card. Wild cards carry ColourNone; the colour a
// wild imposes lives on the game as the active colour, never on the card.
type Colour uint8

const (
	ColourNone Colour = iota
	Red
	Yellow
	Green
	Blue
)

// Colours lists the four playable colours in display order.
var Colours = [4]Colour{Red, Yellow, Green, Blue}

func (c Colour) String() string {
	switch c {
	case Red:
		return "Red"
	case Yellow:
		return "Yellow"
	case Green:
		return "Green"
	case Blue:
		return "Blue"
	default:
		return "Wild"
	}
}

// Rank identifies the face of a card. Ranks 0 through 9 are the number
// cards and compare equal to their face value.
type Rank uint8

const (
	RankReverse Rank = 10 + iota
	RankSkip
	RankDrawTwo
	RankWild
	RankWildDrawFour
)

func (r Rank) String() string {
	if r <= 9 {
		return fmt.Sprintf("%d", r)
	}
	switch r {
	case RankReverse:
		return "Reverse"
	case RankSkip:
		return "Skip"
	case RankDrawTwo:
		return "Draw Two"
	case RankWild:
		return "Wild"
	case RankWildDrawFour:
		return "Wild Draw Four"
	default:
		return fmt.Sprintf("invalid rank %d", uint8(r))
	}
}

// IsDraw reports whether the rank carries a draw penalty, which is what the
// progressive rule lets players stack.
func (r Rank) IsDraw() bool {
	return r == RankDrawTwo || r == RankWildDrawFour
}

// Card is an immutable coloured rank, compared by value. Absence of a card
// ("haven't drawn yet") is represented by a nil *Card, never a sentinel
// value.
type Card struct {
	Colour Colour
	Rank   Rank
}

func (c Card) IsWild() bool {
	return c.Rank == RankWild || c.Rank == RankWildDrawFour
}

// Points returns the card's value in the hand-bonus scoring table.
func (c Card) Points() int {
	switch {
	case c.Rank <= 9:
		return int(c.Rank)
	case c.IsWild():
		return 50
	default:
		return 20
	}
}

func (c Card) String() string {
	if c.IsWild() {
		return c.Rank.String()
	}
	return fmt.Sprintf("%s %s", c.Colour, c.Rank)
}

// Less orders cards by colour then rank; hand order is cosmetic only.
func (c Card) Less(other Card) bool {
	if c.Colour != other.Colour {
		return c.Colour < other.Colour
	}
	return c.Rank < other.Rank
}

// DeckSize is the fixed number of cards in play. The engine's conservation
// invariant is that draw pile + discard pile + all hands always sum to this.
const DeckSize = 108

// NewDeck builds the full unshuffled 108-card multiset: per colour one 0,
// two each of 1-9 and the three action ranks, plus four of each wild.
func NewDeck() []Card {
	cards := make([]Card, 0, DeckSize)
	for _, colour := range Colours {
		cards = append(cards, Card{Colour: colour, Rank: 0})
		for r := Rank(1); r <= RankDrawTwo; r++ {
			cards = append(cards, Card{Colour: colour, Rank: r}, Card{Colour: colour, Rank: r})
		}
	}
	for i := 0; i < 4; i++ {
		cards = append(cards, Card{Rank: RankWild}, Card{Rank: RankWildDrawFour})
	}
	return cards
}
