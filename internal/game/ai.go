// internal/game/ai.go
package game

import (
	"math/rand"
	"time"

	"github.com/AndrioCelos/unobot/internal/models"
)

// The AI player goes through the same intent functions as a human seat, so
// it can never make a move the rules would reject from anyone else.

// maybeScheduleBot queues an AI move whenever the bot has a decision
// pending. The callback revalidates everything under the lock; a turn that
// moved on in the meantime makes it a no-op. Lock held.
func (g *Game) maybeScheduleBot() {
	if g.botSeat < 0 || !g.Started || g.Ended || !g.botHasWork() {
		return
	}
	turnID := g.TurnID
	delay := g.BotDelay
	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		g.Mu.Lock()
		defer g.Mu.Unlock()
		if !g.Started || g.Ended || g.TurnID != turnID || !g.botHasWork() {
			return
		}
		g.botAct()
	}()
}

// BotStep runs one pending AI decision synchronously. Headless drivers use
// this instead of the scheduler.
func (g *Game) BotStep() {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.botSeat < 0 || !g.Started || g.Ended {
		return
	}
	if g.botHasWork() {
		g.botAct()
	}
}

func (g *Game) botHasWork() bool {
	seat := g.botSeat
	if g.Players[seat].Presence != models.PresencePlaying {
		return false
	}
	if g.unoOffender >= 0 && g.unoOffender != seat {
		return true
	}
	return seat == g.IdleTurn
}

// botAct makes one decision for the bot's seat. Lock held.
func (g *Game) botAct() {
	seat := g.botSeat
	p := g.Players[seat]

	// An opponent sitting on one card without calling is always challenged.
	if g.unoOffender >= 0 && g.unoOffender != seat {
		g.penaliseUno()
	}
	if g.Ended || g.IdleTurn != seat {
		return
	}

	if g.ColourPending && g.ColourChooser == seat {
		g.logBotErr(g.chooseColourIntent(seat, mostHeldColour(p, g.rng)))
		return
	}

	if g.PendingDrawFour != nil && g.PendingDrawFour.Challenger == seat {
		if g.tryStack(seat, p) {
			return
		}
		if g.rng.Float64() < g.challengeScore(p) {
			g.logBotErr(g.challengeIntent(seat))
		} else {
			g.logBotErr(g.drawIntent(seat))
		}
		return
	}

	if g.DrawCount > 0 {
		if g.tryStack(seat, p) {
			return
		}
		g.logBotErr(g.drawIntent(seat))
		return
	}

	if p.DrawnCard != nil {
		card := *p.DrawnCard
		if CheckPlayLegality(g, seat, card) == PlayOK {
			g.botPlay(seat, p, card)
		} else {
			g.logBotErr(g.passIntent(seat))
		}
		return
	}

	legal := legalPlays(g, seat, p)
	if len(legal) == 0 {
		g.logBotErr(g.drawIntent(seat))
		return
	}
	g.botPlay(seat, p, legal[g.rng.Intn(len(legal))])
}

// botPlay plays a chosen card, calling first when it is about to leave one
// card behind and picking a colour for wilds up front.
func (g *Game) botPlay(seat int, p *models.Player, card models.Card) {
	if len(p.Hand) == 2 && !p.CalledUno {
		p.CalledUno = true
		g.sendRoom("%s calls UNO!", p.Name)
	}
	colour := models.ColourNone
	if card.IsWild() {
		colour = mostHeldColour(p, g.rng)
	}
	g.logBotErr(g.playIntent(seat, card, colour))
}

// tryStack plays a held draw card onto an accumulated penalty if the rules
// allow it right now.
func (g *Game) tryStack(seat int, p *models.Player) bool {
	for _, card := range uniqueCards(p.Hand) {
		if !card.Rank.IsDraw() {
			continue
		}
		if CheckPlayLegality(g, seat, card) == PlayOK {
			g.botPlay(seat, p, card)
			return true
		}
	}
	return false
}

// challengeScore estimates how likely a challenge is to be worth making.
// Choosing the colour that was already in play smells like a bluff, and a
// bot far behind on cards has less to lose from a failed challenge.
func (g *Game) challengeScore(p *models.Player) float64 {
	ch := g.PendingDrawFour
	accused := g.Players[ch.Accused]
	score := 0.3
	if ch.ColourAtPlay != models.ColourNone && ch.ColourAtPlay == g.WildColour {
		score += 0.3
	}
	score += 0.05 * float64(len(p.Hand)-len(accused.Hand))
	if score < 0.05 {
		score = 0.05
	}
	if score > 0.9 {
		score = 0.9
	}
	return score
}

func (g *Game) logBotErr(err error) {
	if err != nil && g.Logger != nil {
		g.Logger.WithError(err).WithField("room", g.Room).Warn("bot move rejected")
	}
}

func legalPlays(g *Game, seat int, p *models.Player) []models.Card {
	var out []models.Card
	for _, card := range uniqueCards(p.Hand) {
		if CheckPlayLegality(g, seat, card) == PlayOK {
			out = append(out, card)
		}
	}
	return out
}

func uniqueCards(hand []models.Card) []models.Card {
	seen := make(map[models.Card]bool, len(hand))
	out := make([]models.Card, 0, len(hand))
	for _, c := range hand {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// mostHeldColour picks the colour the hand holds most of, breaking ties
// randomly. A hand of nothing but wilds gets a random colour.
func mostHeldColour(p *models.Player, rng *rand.Rand) models.Colour {
	counts := p.ColourCounts()
	best := models.Red
	bestN := -1
	for _, c := range models.Colours {
		n := counts[c]
		if n > bestN || (n == bestN && rng.Intn(2) == 0) {
			best, bestN = c, n
		}
	}
	return best
}
