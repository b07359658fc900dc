// internal/game/turns.go
package game

import (
	"github.com/AndrioCelos/unobot/internal/models"
)

// The public intents below are the only mutating entry points for players.
// Each takes the game lock, validates the caller's seat and delegates to an
// internal *Intent function; the AI calls the same internals under the lock
// it already holds, so bot moves obey exactly the rules player moves do.

// Play plays a card from the caller's hand. For wilds, colour may be given
// up front or left as ColourNone to choose afterwards.
func (g *Game) Play(name string, card models.Card, colour models.Colour) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	seat, err := g.actingSeat(name)
	if err != nil {
		return err
	}
	return g.playIntent(seat, card, colour)
}

// Draw draws the caller's card for the turn, or absorbs a pending draw
// penalty if one is stacked against them.
func (g *Game) Draw(name string) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	seat, err := g.actingSeat(name)
	if err != nil {
		return err
	}
	return g.drawIntent(seat)
}

// Pass ends the caller's turn after an unwanted draw.
func (g *Game) Pass(name string) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	seat, err := g.actingSeat(name)
	if err != nil {
		return err
	}
	return g.passIntent(seat)
}

// ChooseColour resolves a pending wild colour choice.
func (g *Game) ChooseColour(name string, colour models.Colour) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	seat, err := g.seatedPlayer(name)
	if err != nil {
		return err
	}
	return g.chooseColourIntent(seat, colour)
}

// Challenge contests either a Wild Draw Four played against the caller or
// an opponent's lapsed call with one card left.
func (g *Game) Challenge(name string) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	seat, err := g.seatedPlayer(name)
	if err != nil {
		return err
	}
	return g.challengeIntent(seat)
}

// CallUno announces that the caller is down to one card. Calling just
// before playing the second-to-last card also counts.
func (g *Game) CallUno(name string) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	seat, err := g.seatedPlayer(name)
	if err != nil {
		return err
	}
	p := g.Players[seat]
	if len(p.Hand) > 2 {
		return ErrNothingToCall
	}
	p.CalledUno = true
	if g.unoOffender == seat {
		g.unoOffender = -1
	}
	g.sendRoom("%s calls UNO!", p.Name)
	return nil
}

// --- seat validation -----------------------------------------------------

// seatedPlayer resolves a name to a live seat in a running round.
func (g *Game) seatedPlayer(name string) (int, error) {
	if g.Ended {
		return -1, ErrRoundOver
	}
	if !g.Started {
		return -1, ErrRoundNotStarted
	}
	seat := g.seatOf(name)
	if seat < 0 || g.Players[seat].Presence != models.PresencePlaying {
		return -1, ErrNotInGame
	}
	return seat, nil
}

// actingSeat additionally requires that it is the caller's turn. The seat
// allowed to act is IdleTurn, which runs ahead of Turn when earlier seats
// are unresponsive.
func (g *Game) actingSeat(name string) (int, error) {
	seat, err := g.seatedPlayer(name)
	if err != nil {
		return -1, err
	}
	if seat != g.IdleTurn {
		return -1, ErrNotYourTurn
	}
	return seat, nil
}

// --- intents (lock held) -------------------------------------------------

func (g *Game) playIntent(seat int, card models.Card, colour models.Colour) error {
	if colour != models.ColourNone && !validColour(colour) {
		return ErrInvalidColour
	}
	if !card.IsWild() {
		colour = models.ColourNone
	}
	if d := CheckPlayLegality(g, seat, card); d != PlayOK {
		return d.Err()
	}
	g.autoUnoCheck(seat)
	g.fastForward(seat)
	g.playCard(seat, card, colour)
	return nil
}

func (g *Game) drawIntent(seat int) error {
	p := g.Players[seat]

	if g.ColourPending && g.ColourChooser == seat {
		return DenyColourPending.Err()
	}

	// Declining a Wild Draw Four challenge by drawing absorbs the penalty.
	if g.PendingDrawFour != nil && g.PendingDrawFour.Challenger == seat {
		g.autoUnoCheck(seat)
		n := g.DrawCount
		g.DrawCount = 0
		g.PendingDrawFour = nil
		g.dealTo(seat, n, " as the Wild Draw Four penalty")
		g.advanceTurn(1)
		g.finishIntent(seat)
		return nil
	}

	// A stacked draw penalty against the caller is drawn in full and the
	// turn moves on. A penalty owed by a skipped seat resolves in
	// fastForward instead.
	if g.DrawCount > 0 && seat == g.Turn {
		g.autoUnoCheck(seat)
		n := g.DrawCount
		g.DrawCount = 0
		g.dealTo(seat, n, "")
		g.advanceTurn(1)
		g.finishIntent(seat)
		return nil
	}

	if p.DrawnCard != nil {
		return ErrAlreadyDrawn
	}
	g.autoUnoCheck(seat)
	g.fastForward(seat)

	cards := g.drawCards(1)
	if len(cards) == 0 {
		g.sendRoom("There are no cards left to draw; %s's turn is skipped.", p.Name)
		g.advanceTurn(1)
		g.finishIntent(seat)
		return nil
	}
	card := cards[0]
	p.Hand = append(p.Hand, card)
	p.SortHand()
	p.DrawnCard = &card
	if len(p.Hand) > 1 {
		p.CalledUno = false
	}
	g.sendRoom("%s draws a card.", p.Name)
	g.sendUser(p.Name, "You drew %s. Play it or pass.", card)
	g.audit("draw", map[string]interface{}{"player": p.Name})

	g.scheduleTurnTimers()
	g.maybeScheduleBot()
	return nil
}

func (g *Game) passIntent(seat int) error {
	p := g.Players[seat]
	if p.DrawnCard == nil {
		return ErrMustDrawFirst
	}
	g.autoUnoCheck(seat)
	p.DrawnCard = nil
	g.sendRoom("%s passes.", p.Name)
	g.advanceTurn(1)
	g.finishIntent(seat)
	return nil
}

func (g *Game) chooseColourIntent(seat int, colour models.Colour) error {
	if !g.ColourPending {
		return ErrNoPendingColour
	}
	if seat != g.ColourChooser {
		return ErrNotYourChoice
	}
	if !validColour(colour) {
		return ErrInvalidColour
	}

	g.WildColour = colour
	g.ColourPending = false
	pw := g.pendingWild
	g.pendingWild = 0
	g.sendRoom("%s chooses %s.", g.Players[seat].Name, colour)

	if pw == models.RankWildDrawFour {
		g.finishWildDrawFour(seat, g.pendingAtPlayColour, g.pendingWasBluff)
	} else {
		g.advanceTurn(1)
	}
	g.finishIntent(seat)
	return nil
}

func (g *Game) challengeIntent(seat int) error {
	// A lapsed call with one card left may be challenged by anyone, any
	// time before the offender's next turn, and always bites first even
	// when a Wild Draw Four challenge is also open.
	if g.unoOffender >= 0 && g.unoOffender != seat {
		g.penaliseUno()
		return nil
	}
	ch := g.PendingDrawFour
	if ch == nil || ch.Challenger != seat {
		return ErrNoChallenge
	}
	g.PendingDrawFour = nil
	n := g.DrawCount
	g.DrawCount = 0

	accused := g.Players[ch.Accused]
	challenger := g.Players[seat]
	g.audit("challenge", map[string]interface{}{
		"challenger": challenger.Name, "accused": accused.Name, "bluff": ch.WasBluff,
	})

	if ch.WasBluff {
		g.sendRoom("%s challenges the Wild Draw Four, and %s was bluffing!", challenger.Name, accused.Name)
		g.dealTo(ch.Accused, n, " as the bluff penalty")
		// Play continues with the challenger, whose turn it already is.
		g.TurnID++
	} else {
		g.sendRoom("%s challenges the Wild Draw Four, but it was legitimate.", challenger.Name)
		g.dealTo(seat, n+2, "")
		g.advanceTurn(1)
	}
	g.finishIntent(seat)
	return nil
}

// --- card resolution (lock held) -----------------------------------------

// playCard applies a card already judged legal: remove it, narrate it, run
// its effect and advance the turn. Going out is recorded here but settled
// only once any stacked penalty, challenge or colour choice resolves.
func (g *Game) playCard(seat int, card models.Card, colour models.Colour) {
	p := g.Players[seat]

	atPlayColour := g.activeColour()
	// Covering one's own pending wild banks its penalty before the new card
	// replaces the pending state.
	if g.ColourPending && g.pendingWild == models.RankWildDrawFour && seat == g.ColourChooser {
		g.DrawCount += 4
	}
	g.ColourPending = false
	g.pendingWild = 0

	p.RemoveCard(card)
	p.DrawnCard = nil
	g.DiscardPile = append(g.DiscardPile, card)
	g.WildColour = models.ColourNone

	wasBluff := card.Rank == models.RankWildDrawFour && holdsColour(p, atPlayColour)

	g.sendRoom("%s plays %s.", p.Name, card)
	g.audit("play", map[string]interface{}{"player": p.Name, "card": card.String()})

	if len(p.Hand) == 0 {
		g.pendingOutSeat = seat
	}
	switch {
	case len(p.Hand) == 1 && !p.CalledUno:
		g.unoOffender = seat
	case len(p.Hand) > 1:
		p.CalledUno = false
	}

	switch card.Rank {
	case models.RankReverse:
		if g.activePlayerCount() > 2 {
			g.IsReversed = !g.IsReversed
			g.sendRoom("Play direction is reversed.")
			g.advanceTurn(1)
		} else {
			// With two players a Reverse acts as a Skip.
			g.advanceTurn(2)
		}
	case models.RankSkip:
		g.sendRoom("%s is skipped.", g.Players[g.nextSeat(seat, 1)].Name)
		g.advanceTurn(2)
	case models.RankDrawTwo:
		g.applyDrawRank(seat, 2)
	case models.RankWild:
		if colour != models.ColourNone {
			g.WildColour = colour
			g.sendRoom("The colour is now %s.", colour)
			g.advanceTurn(1)
		} else {
			g.deferColourChoice(seat, models.RankWild, atPlayColour, false)
		}
	case models.RankWildDrawFour:
		if colour != models.ColourNone {
			g.WildColour = colour
			g.sendRoom("The colour is now %s.", colour)
			g.finishWildDrawFour(seat, atPlayColour, wasBluff)
		} else {
			g.deferColourChoice(seat, models.RankWildDrawFour, atPlayColour, wasBluff)
		}
	default:
		g.advanceTurn(1)
	}

	g.finishIntent(seat)
}

// applyDrawRank accumulates a draw penalty. Under progressive rules the
// next player gets a chance to stack while the count stays under the cap;
// otherwise the penalty lands immediately and the turn skips past them.
func (g *Game) applyDrawRank(seat, amount int) {
	g.DrawCount += amount
	victim := g.nextSeat(seat, 1)
	if g.Rules.Progressive && g.DrawCount < g.Rules.ProgressiveCap {
		g.advanceTurn(1)
		g.sendRoom("%s must draw %d cards or stack a matching draw card.", g.Players[victim].Name, g.DrawCount)
		return
	}
	n := g.DrawCount
	g.DrawCount = 0
	g.dealTo(victim, n, "")
	g.advanceTurn(2)
}

// finishWildDrawFour runs a Wild Draw Four's penalty once its colour is
// known. Under bluffing rules the next player is offered a challenge
// instead of an immediate penalty.
func (g *Game) finishWildDrawFour(seat int, atPlay models.Colour, wasBluff bool) {
	if g.Rules.WildDrawFour == models.AllowBluffing {
		g.DrawCount += 4
		challenger := g.nextSeat(seat, 1)
		g.PendingDrawFour = &DrawFourChallenge{
			Accused:      seat,
			Challenger:   challenger,
			ColourAtPlay: atPlay,
			WasBluff:     wasBluff,
		}
		g.advanceTurn(1)
		g.sendRoom("%s may challenge the Wild Draw Four, or draw %d cards.", g.Players[challenger].Name, g.DrawCount)
		return
	}
	g.applyDrawRank(seat, 4)
}

// deferColourChoice parks a wild's effect until its player picks a colour.
// The turn does not advance; the turn timer restarts for the choice.
func (g *Game) deferColourChoice(seat int, rank models.Rank, atPlay models.Colour, wasBluff bool) {
	g.ColourPending = true
	g.ColourChooser = seat
	g.pendingWild = rank
	g.pendingAtPlayColour = atPlay
	g.pendingWasBluff = wasBluff
	g.TurnID++
	g.sendUser(g.Players[seat].Name, "Choose a colour: red, yellow, green or blue.")
}

// --- turn movement (lock held) -------------------------------------------

// advanceTurn moves both turn pointers step seats forward and opens a new
// decision window. Reaching a seat that lapsed a call closes its window
// unpunished.
func (g *Game) advanceTurn(step int) {
	p := g.Players[g.Turn]
	p.CanMove = false
	p.DrawnCard = nil

	g.Turn = g.nextSeat(g.Turn, step)
	g.IdleTurn = g.Turn
	g.TurnID++

	np := g.Players[g.Turn]
	np.CanMove = true
	np.DrawnCard = nil
	if g.unoOffender == g.Turn {
		g.unoOffender = -1
	}
}

// fastForward reconciles Turn with an early-acting seat. Each seat skipped
// over is charged the single idle draw, or has whatever pending state it
// was sitting on resolved against it.
func (g *Game) fastForward(seat int) {
	for g.Turn != seat {
		s := g.Turn
		p := g.Players[s]
		switch {
		case g.PendingDrawFour != nil && g.PendingDrawFour.Challenger == s:
			n := g.DrawCount
			g.DrawCount = 0
			g.PendingDrawFour = nil
			g.dealTo(s, n, " as the Wild Draw Four penalty")
		case g.DrawCount > 0:
			n := g.DrawCount
			g.DrawCount = 0
			g.dealTo(s, n, "")
		case g.ColourPending && g.ColourChooser == s:
			colour := mostHeldColour(p, g.rng)
			g.WildColour = colour
			g.ColourPending = false
			g.sendRoom("The colour is now %s.", colour)
			if g.pendingWild == models.RankWildDrawFour {
				// The unanswered penalty falls on the next seat crossed.
				g.DrawCount += 4
			}
			g.pendingWild = 0
		default:
			g.dealTo(s, 1, " for idling")
		}
		p.CanMove = false
		p.DrawnCard = nil
		g.Turn = g.nextSeat(g.Turn, 1)
	}
	g.IdleTurn = seat
}

// finishIntent closes out a mutating intent: settle a deferred going-out,
// narrate whose turn it is if it moved, and restart timers and the AI.
func (g *Game) finishIntent(actor int) {
	if g.resolvePendingOut() || g.Ended {
		return
	}
	if !g.ColourPending && g.Turn != actor {
		g.sendRoom("It is now %s's turn.", g.Players[g.Turn].Name)
	}
	g.scheduleTurnTimers()
	g.maybeScheduleBot()
}

// resolvePendingOut settles a seat that emptied its hand once nothing is
// pending against the play, and reports whether the round is over.
func (g *Game) resolvePendingOut() bool {
	if g.pendingOutSeat < 0 || g.DrawCount > 0 || g.PendingDrawFour != nil || g.ColourPending {
		return g.Ended
	}
	seat := g.pendingOutSeat
	g.pendingOutSeat = -1
	g.playerOut(seat, models.PresenceOut)
	return g.checkRoundEnd()
}

// --- one card left -------------------------------------------------------

// autoUnoCheck punishes a lapsed call the moment any other player acts.
func (g *Game) autoUnoCheck(actor int) {
	if g.unoOffender >= 0 && g.unoOffender != actor {
		g.penaliseUno()
	}
}

func (g *Game) penaliseUno() {
	seat := g.unoOffender
	g.unoOffender = -1
	p := g.Players[seat]
	g.sendRoom("%s forgot to call with one card left!", p.Name)
	g.dealTo(seat, 2, " as a penalty")
	p.CalledUno = true
	g.audit("uno_penalty", map[string]interface{}{"player": p.Name})
}

func validColour(c models.Colour) bool {
	switch c {
	case models.Red, models.Yellow, models.Green, models.Blue:
		return true
	}
	return false
}
