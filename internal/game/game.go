// internal/game/game.go
package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AndrioCelos/unobot/internal/models"
	"github.com/AndrioCelos/unobot/internal/scoring"
	"github.com/AndrioCelos/unobot/internal/shuffle"
)

// OnRoundEndFunc receives a settled round so the caller can persist stats,
// narrate streak notices and drop the game from the store. abandoned means
// the round fizzled without scoring.
type OnRoundEndFunc func(g *Game, result scoring.Result, abandoned bool)

// DrawFourChallenge is the pending state after a Wild Draw Four under
// bluffing rules. Challenger is the seat that must respond; WasBluff was
// judged against the accused's hand at the moment of play.
type DrawFourChallenge struct {
	Accused      int
	Challenger   int
	ColourAtPlay models.Colour
	WasBluff     bool
}

// Game is one room's UNO round: seat order, piles, pending-choice state
// and timers. Every external intent (player command, AI turn, timer
// callback) takes Mu before touching any of it.
type Game struct {
	ID    uuid.UUID
	Room  string
	Rules models.Ruleset

	Players []*models.Player

	// Turn is the authoritative seat; IdleTurn is the furthest seat that has
	// been allowed to act early while earlier seats sit unresponsive. They
	// are equal whenever everyone is keeping up.
	Turn       int
	IdleTurn   int
	IsReversed bool

	DrawPile    []models.Card
	DiscardPile []models.Card

	// WildColour is the colour imposed by the last wild, ColourNone when the
	// up-card's own colour governs. ColourPending blocks play until the
	// chooser resolves it.
	WildColour          models.Colour
	ColourPending       bool
	ColourChooser       int
	pendingWild         models.Rank
	pendingAtPlayColour models.Colour
	pendingWasBluff     bool

	DrawCount       int
	PendingDrawFour *DrawFourChallenge

	unoOffender    int
	pendingOutSeat int

	Open    bool
	Started bool
	Ended   bool

	TurnID    int
	StartedAt time.Time
	Record    []string

	outCount int
	botSeat  int

	Mu sync.Mutex

	Shuffler shuffle.Shuffler
	Logger   *logrus.Logger

	// Pace is the delay inserted between dependent chat announcements so
	// they render in readable order. Zero collapses it for tests.
	Pace time.Duration

	// BotDelay is how long the AI pretends to think before moving.
	BotDelay time.Duration

	// Injected boundary callbacks; any may be nil.
	SendToRoomFn  func(text string)
	SendToUserFn  func(name, text string)
	OnRoundEnd    OnRoundEndFunc
	QuitPenalised func(name string, at time.Time) bool
	AuditFn       func(action string, payload map[string]interface{})

	rng        *rand.Rand
	turnTimer  *time.Timer
	hintTimer  *time.Timer
	entryTimer *time.Timer
}

// NewGame creates an Open game for a room. The seed drives the AI's random
// choices only; deck order comes from the Shuffler.
func NewGame(room string, rules models.Ruleset, shuffler shuffle.Shuffler, logger *logrus.Logger, seed int64) *Game {
	id, _ := uuid.NewRandom()
	return &Game{
		ID:             id,
		Room:           room,
		Rules:          rules,
		Open:           true,
		unoOffender:    -1,
		pendingOutSeat: -1,
		botSeat:        -1,
		Shuffler:       shuffler,
		Logger:         logger,
		rng:            rand.New(rand.NewSource(seed)),
	}
}

// --- narration and audit -------------------------------------------------

func (g *Game) sendRoom(format string, args ...interface{}) {
	text := fmt.Sprintf(format, args...)
	g.Record = append(g.Record, text)
	if g.SendToRoomFn != nil {
		g.SendToRoomFn(text)
	}
	if g.Pace > 0 {
		time.Sleep(g.Pace)
	}
}

func (g *Game) sendUser(name, format string, args ...interface{}) {
	if g.SendToUserFn != nil {
		g.SendToUserFn(name, fmt.Sprintf(format, args...))
	}
}

func (g *Game) audit(action string, payload map[string]interface{}) {
	if g.AuditFn != nil {
		g.AuditFn(action, payload)
	}
}

// --- seat helpers --------------------------------------------------------

func (g *Game) seatOf(name string) int {
	for i, p := range g.Players {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func (g *Game) activePlayerCount() int {
	n := 0
	for _, p := range g.Players {
		if p.Presence == models.PresencePlaying {
			n++
		}
	}
	return n
}

// nextSeat walks step eligible seats from seat in the current direction,
// skipping players no longer in the round.
func (g *Game) nextSeat(seat, step int) int {
	dir := 1
	if g.IsReversed {
		dir = -1
	}
	n := len(g.Players)
	for ; step > 0; step-- {
		for i := 0; i < n; i++ {
			seat = ((seat+dir)%n + n) % n
			if g.Players[seat].Presence == models.PresencePlaying {
				break
			}
		}
	}
	return seat
}

func (g *Game) upCard() models.Card {
	return g.DiscardPile[len(g.DiscardPile)-1]
}

// activeColour is the colour a play must match: the wild-imposed colour if
// one is in effect, otherwise the up-card's own colour. While a colour
// choice is pending nothing matches by colour.
func (g *Game) activeColour() models.Colour {
	if g.ColourPending {
		return models.ColourNone
	}
	if g.WildColour != models.ColourNone {
		return g.WildColour
	}
	return g.upCard().Colour
}

// --- lifecycle -----------------------------------------------------------

// Join seats a player. During Open entry this may create the first seat;
// mid-round joins are allowed only by rule and start with a fresh hand.
func (g *Game) Join(name string) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.Ended {
		return ErrRoundOver
	}
	if g.seatOf(name) >= 0 {
		return ErrAlreadyJoined
	}
	if g.Started && !g.Rules.AllowMidRoundJoin {
		return ErrRoundInProgress
	}

	p := &models.Player{Name: name, Presence: models.PresencePlaying}
	g.Players = append(g.Players, p)
	g.audit("join", map[string]interface{}{"player": name})

	if g.Started {
		p.Hand = g.drawCards(7)
		p.SortHand()
		p.BasePoints = g.Rules.ParticipationBonus
		g.sendRoom("%s joins the game and is dealt a hand.", name)
		return nil
	}

	g.sendRoom("%s has joined the game.", name)
	if len(g.Players) == 1 {
		g.scheduleEntryTimer()
	}
	return nil
}

// AddBot seats the AI player. Only one bot seat may exist.
func (g *Game) AddBot(name string) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if !g.Open || g.botSeat >= 0 || !g.Rules.AIEnabled {
		return ErrRoundInProgress
	}
	g.Players = append(g.Players, &models.Player{Name: name, Presence: models.PresencePlaying, IsBot: true})
	g.botSeat = len(g.Players) - 1
	g.sendRoom("%s has joined the game.", name)
	return nil
}

// ForceStart begins the round immediately instead of waiting out the entry
// window.
func (g *Game) ForceStart() error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.Started || g.Ended {
		return ErrRoundInProgress
	}
	return g.startRound()
}

// startRound shuffles, deals and opens play. Lock held.
func (g *Game) startRound() error {
	if len(g.Players) < 2 {
		return ErrNotEnoughSeats
	}
	if g.entryTimer != nil {
		g.entryTimer.Stop()
		g.entryTimer = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	deck, att := g.Shuffler.Shuffle(ctx, models.NewDeck())
	cancel()
	g.audit("shuffle", map[string]interface{}{"attestation": att.ID.String(), "source": att.Source})

	g.DrawPile = deck
	g.DiscardPile = g.DiscardPile[:0]

	for _, p := range g.Players {
		p.Hand = g.drawCards(7)
		p.SortHand()
		p.BasePoints = g.Rules.ParticipationBonus
	}

	// Flip the opening up-card. Wilds go back under the pile; action cards
	// may open but carry no effect on the first turn.
	for {
		c := g.DrawPile[0]
		g.DrawPile = g.DrawPile[1:]
		if !c.IsWild() {
			g.DiscardPile = append(g.DiscardPile, c)
			break
		}
		g.DrawPile = append(g.DrawPile, c)
	}

	g.Open = false
	g.Started = true
	g.StartedAt = time.Now()
	g.Turn = 0
	g.IdleTurn = 0
	g.Players[0].CanMove = true

	g.sendRoom("The game has started! The first card is %s.", g.upCard())
	g.sendRoom("It is %s's turn.", g.Players[g.Turn].Name)
	g.audit("round_start", map[string]interface{}{"players": len(g.Players), "upcard": g.upCard().String()})

	g.scheduleTurnTimers()
	g.maybeScheduleBot()
	return nil
}

// Leave marks a seat as having quit. Seats are removed outright only
// before the round starts; afterwards they stay for scoring bookkeeping.
func (g *Game) Leave(name string) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	seat := g.seatOf(name)
	if seat < 0 {
		return ErrNotInGame
	}
	if g.Ended {
		return ErrRoundOver
	}

	if !g.Started {
		g.Players = append(g.Players[:seat], g.Players[seat+1:]...)
		if g.botSeat > seat {
			g.botSeat--
		} else if g.botSeat == seat {
			g.botSeat = -1
		}
		g.sendRoom("%s has left the game.", name)
		if len(g.Players) == 0 {
			g.abandon("everyone left before the round began")
		}
		return nil
	}

	g.markQuit(seat, "left the game")
	return nil
}

// markQuit handles a mid-round departure: presence, quit penalty and
// follow-on turn or round transitions. Lock held.
func (g *Game) markQuit(seat int, how string) {
	p := g.Players[seat]
	if p.Presence != models.PresencePlaying {
		return
	}
	p.Presence = models.PresenceLeft
	p.LeftAt = time.Now()
	p.CanMove = false
	g.sendRoom("%s %s.", p.Name, how)

	penalised := true
	if g.QuitPenalised != nil {
		// The callback settles the quitter's streak either way: a penalised
		// quit records the loss there, a protected one records nothing.
		penalised = g.QuitPenalised(p.Name, p.LeftAt)
		p.StreakSettled = true
	}
	if penalised {
		p.BasePoints -= g.Rules.QuitPenalty
	}
	g.audit("quit", map[string]interface{}{"player": p.Name, "penalised": penalised})

	// Pending state owned by the departing seat must not outlive it, or the
	// round would wait forever on a choice nobody can make.
	if g.ColourPending && g.ColourChooser == seat {
		colour := mostHeldColour(p, g.rng)
		g.WildColour = colour
		g.ColourPending = false
		g.sendRoom("The colour is now %s.", colour)
		if g.pendingWild == models.RankWildDrawFour {
			g.DrawCount += 4
		}
		g.pendingWild = 0
	}
	if ch := g.PendingDrawFour; ch != nil && (ch.Challenger == seat || ch.Accused == seat) {
		// The challenge window dies with the seat; any accumulated penalty
		// still lands on whoever must act next.
		g.PendingDrawFour = nil
	}

	if g.activePlayerCount() == 1 {
		// Last seat standing finishes by default.
		for i, last := range g.Players {
			if last.Presence == models.PresencePlaying {
				g.playerOut(i, models.PresenceOutByDefault)
				break
			}
		}
		g.endRound()
		return
	}
	if g.activePlayerCount() == 0 {
		g.abandon("everyone left the round")
		return
	}

	if seat == g.Turn || seat == g.IdleTurn {
		g.advanceTurn(1)
		g.scheduleTurnTimers()
		g.maybeScheduleBot()
	}
}

// --- drawing and piles ---------------------------------------------------

// drawCards moves n cards from the draw pile to the caller, reshuffling
// the discard pile (minus the up-card) underneath when it runs dry. Card
// conservation: nothing is created or destroyed here, only moved.
func (g *Game) drawCards(n int) []models.Card {
	out := make([]models.Card, 0, n)
	for i := 0; i < n; i++ {
		if len(g.DrawPile) == 0 {
			if len(g.DiscardPile) <= 1 {
				break // nothing left to move; hand stays short
			}
			g.reshuffleDiscards()
		}
		out = append(out, g.DrawPile[0])
		g.DrawPile = g.DrawPile[1:]
	}
	return out
}

func (g *Game) reshuffleDiscards() {
	up := g.upCard()
	rest := make([]models.Card, len(g.DiscardPile)-1)
	copy(rest, g.DiscardPile[:len(g.DiscardPile)-1])

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	shuffled, att := g.Shuffler.Shuffle(ctx, rest)
	cancel()

	g.DrawPile = append(g.DrawPile, shuffled...)
	g.DiscardPile = []models.Card{up}
	g.sendRoom("The discard pile has been shuffled back into the deck.")
	g.audit("reshuffle", map[string]interface{}{"attestation": att.ID.String(), "cards": len(shuffled)})
}

// dealTo gives a seat n penalty/idle cards and narrates it.
func (g *Game) dealTo(seat, n int, reason string) {
	p := g.Players[seat]
	cards := g.drawCards(n)
	p.Hand = append(p.Hand, cards...)
	p.SortHand()
	if len(p.Hand) > 1 {
		p.CalledUno = false
	}
	g.sendRoom("%s draws %d card%s%s.", p.Name, len(cards), plural(len(cards)), reason)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// --- timers --------------------------------------------------------------

func (g *Game) scheduleEntryTimer() {
	if g.Rules.EntryTimeSec <= 0 {
		return
	}
	g.entryTimer = time.AfterFunc(time.Duration(g.Rules.EntryTimeSec)*time.Second, func() {
		g.Mu.Lock()
		defer g.Mu.Unlock()
		if g.Started || g.Ended {
			return
		}
		if len(g.Players) >= 2 {
			if err := g.startRound(); err != nil {
				g.abandon("not enough players joined")
			}
		} else {
			g.abandon("not enough players joined")
		}
	})
}

// scheduleTurnTimers restarts the turn-timeout and hint timers for the
// current turn. Both callbacks validate TurnID so a stale timer firing for
// a turn that already ended is a logged no-op. Lock held.
func (g *Game) scheduleTurnTimers() {
	g.stopTurnTimers()
	if g.Ended || !g.Started {
		return
	}

	turnID := g.TurnID
	if g.Rules.TurnTimeSec > 0 {
		g.turnTimer = time.AfterFunc(time.Duration(g.Rules.TurnTimeSec)*time.Second, func() {
			g.Mu.Lock()
			defer g.Mu.Unlock()
			if g.Ended || !g.Started || g.TurnID != turnID {
				g.Logger.WithFields(logrus.Fields{"room": g.Room, "turn": turnID}).Debug("stale turn timer ignored")
				return
			}
			g.handleTurnTimeout()
		})
	}
	if g.Rules.HintTimeSec > 0 {
		g.hintTimer = time.AfterFunc(time.Duration(g.Rules.HintTimeSec)*time.Second, func() {
			g.Mu.Lock()
			defer g.Mu.Unlock()
			if g.Ended || !g.Started || g.TurnID != turnID {
				return
			}
			seat := g.IdleTurn
			g.sendUser(g.Players[seat].Name, "It is your turn. The up-card is %s.", g.upCard())
		})
	}
}

func (g *Game) stopTurnTimers() {
	if g.turnTimer != nil {
		g.turnTimer.Stop()
		g.turnTimer = nil
	}
	if g.hintTimer != nil {
		g.hintTimer.Stop()
		g.hintTimer = nil
	}
}

// handleTurnTimeout applies the idle rules of a missed turn: two strikes
// removes the player, otherwise the idle marker advances while the real
// turn pointer stays put. Idling all the way around abandons the round.
// Lock held.
func (g *Game) handleTurnTimeout() {
	seat := g.IdleTurn
	p := g.Players[seat]
	p.IdleCount++
	g.audit("timeout", map[string]interface{}{"player": p.Name, "count": p.IdleCount})

	if p.IdleCount >= 2 {
		g.markQuit(seat, "has been removed from the game for inactivity")
		if g.Ended {
			return
		}
		g.scheduleTurnTimers()
		g.maybeScheduleBot()
		return
	}

	next := g.nextSeat(seat, 1)
	if next == g.Turn {
		g.abandon("everyone idled out")
		return
	}
	g.IdleTurn = next
	g.Players[next].CanMove = true
	g.TurnID++
	g.sendRoom("%s seems to be away. %s may play now.", p.Name, g.Players[next].Name)
	g.scheduleTurnTimers()
	g.maybeScheduleBot()
}

// --- round end -----------------------------------------------------------

// playerOut marks a finished seat, computes its round score immediately
// and assigns its rank. Lock held.
func (g *Game) playerOut(seat int, presence models.Presence) {
	p := g.Players[seat]
	p.Presence = presence
	p.CanMove = false
	g.outCount++
	p.Rank = g.outCount
	if g.Rules.HandBonus {
		p.HandPoints = scoring.HandBonus(g.Players, seat)
	}
	p.BasePoints += scoring.VictoryBonus(g.Rules, p.Rank, len(g.Players))
	p.HandScored = true

	if presence == models.PresenceOut {
		g.sendRoom("%s has gone out!", p.Name)
		if g.Rules.HandBonus {
			g.sendRoom("%s scores %d points from the remaining hands.", p.Name, p.HandPoints)
		}
	}
	g.audit("out", map[string]interface{}{"player": p.Name, "rank": p.Rank, "handPoints": p.HandPoints})
}

// checkRoundEnd ends the round once the out-limit is satisfied and no
// stacked penalty is still unresolved. Lock held.
func (g *Game) checkRoundEnd() bool {
	if g.outCount < g.Rules.OutLimit && g.activePlayerCount() > 1 {
		return false
	}
	g.endRound()
	return true
}

func (g *Game) endRound() {
	if g.Ended {
		return
	}
	g.Ended = true
	g.pendingOutSeat = -1
	g.stopTurnTimers()

	result := scoring.Settle(g.Players)
	for _, p := range g.Players {
		g.sendRoom("%s finishes with %d points.", p.Name, result.Totals[p.Name])
	}
	g.audit("round_end", map[string]interface{}{"totals": result.Totals})

	if g.OnRoundEnd != nil {
		g.OnRoundEnd(g, result, false)
	}
}

// abandon ends the round without scoring. Lock held.
func (g *Game) abandon(reason string) {
	if g.Ended {
		return
	}
	g.Ended = true
	g.stopTurnTimers()
	if g.entryTimer != nil {
		g.entryTimer.Stop()
		g.entryTimer = nil
	}
	g.sendRoom("The game has been abandoned: %s.", reason)
	g.audit("abandon", map[string]interface{}{"reason": reason})
	if g.OnRoundEnd != nil {
		g.OnRoundEnd(g, scoring.Result{}, true)
	}
}

// Stop aborts the round administratively. In-flight timers and AI tasks
// see the Ended flag and become no-ops.
func (g *Game) Stop() {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	g.abandon("stopped by an administrator")
}

// --- read-only queries ---------------------------------------------------

func (g *Game) WhoseTurn() string {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if !g.Started || g.Ended {
		return ""
	}
	return g.Players[g.IdleTurn].Name
}

func (g *Game) UpCard() (models.Card, bool) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if len(g.DiscardPile) == 0 {
		return models.Card{}, false
	}
	return g.upCard(), true
}

func (g *Game) HandOf(name string) []models.Card {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	seat := g.seatOf(name)
	if seat < 0 {
		return nil
	}
	hand := make([]models.Card, len(g.Players[seat].Hand))
	copy(hand, g.Players[seat].Hand)
	return hand
}

func (g *Game) CardCounts() map[string]int {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	counts := make(map[string]int, len(g.Players))
	for _, p := range g.Players {
		if p.Presence == models.PresencePlaying {
			counts[p.Name] = len(p.Hand)
		}
	}
	return counts
}

func (g *Game) Elapsed() time.Duration {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if !g.Started {
		return 0
	}
	return time.Since(g.StartedAt)
}
