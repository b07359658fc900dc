// internal/game/game_test.go
package game

import (
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndrioCelos/unobot/internal/models"
	"github.com/AndrioCelos/unobot/internal/scoring"
	"github.com/AndrioCelos/unobot/internal/shuffle"
)

// mockNarrator collects narration instead of sending it to a chat room.
type mockNarrator struct {
	mu      sync.Mutex
	room    []string
	private map[string][]string
}

func newMockNarrator() *mockNarrator {
	return &mockNarrator{private: make(map[string][]string)}
}

func (mn *mockNarrator) sendToRoom(text string) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.room = append(mn.room, text)
}

func (mn *mockNarrator) sendToUser(name, text string) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.private[name] = append(mn.private[name], text)
}

func (mn *mockNarrator) roomContains(substr string) bool {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	for _, line := range mn.room {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func testRules() models.Ruleset {
	rules := models.DefaultRules()
	rules.EntryTimeSec = 0
	rules.TurnTimeSec = 0
	rules.HintTimeSec = 0
	return rules
}

func attachNarrator(g *Game) *mockNarrator {
	mn := newMockNarrator()
	g.SendToRoomFn = mn.sendToRoom
	g.SendToUserFn = mn.sendToUser
	return mn
}

// startedGame builds a running round with exact hands, bypassing the
// shuffler. The draw pile holds the rest of the deck so card conservation
// stays intact. Seat 0 moves first.
func startedGame(t *testing.T, rules models.Ruleset, names []string, hands [][]models.Card, up models.Card) (*Game, *mockNarrator) {
	t.Helper()
	require.Equal(t, len(names), len(hands))

	g := NewGame("#uno", rules, shuffle.NewLocalShuffler(1), logrus.New(), 1)
	mn := attachNarrator(g)

	pile := models.NewDeck()
	takeCard := func(c models.Card) {
		for i, pc := range pile {
			if pc == c {
				pile = append(pile[:i], pile[i+1:]...)
				return
			}
		}
		t.Fatalf("card %s not available in deck", c)
	}

	for i, name := range names {
		hand := make([]models.Card, len(hands[i]))
		copy(hand, hands[i])
		for _, c := range hand {
			takeCard(c)
		}
		g.Players = append(g.Players, &models.Player{
			Name:       name,
			Hand:       hand,
			Presence:   models.PresencePlaying,
			BasePoints: rules.ParticipationBonus,
		})
	}
	takeCard(up)

	g.DrawPile = pile
	g.DiscardPile = []models.Card{up}
	g.Open = false
	g.Started = true
	g.Players[0].CanMove = true
	return g, mn
}

func totalCards(g *Game) int {
	n := len(g.DrawPile) + len(g.DiscardPile)
	for _, p := range g.Players {
		n += len(p.Hand)
	}
	return n
}

func card(colour models.Colour, rank models.Rank) models.Card {
	return models.Card{Colour: colour, Rank: rank}
}

func TestJoinStartAndConservation(t *testing.T) {
	g := NewGame("#uno", testRules(), shuffle.NewLocalShuffler(7), logrus.New(), 7)
	attachNarrator(g)

	require.NoError(t, g.Join("Alice"))
	require.NoError(t, g.Join("Bob"))
	require.NoError(t, g.Join("Carol"))
	require.ErrorIs(t, g.Join("Alice"), ErrAlreadyJoined)
	require.NoError(t, g.ForceStart())

	require.True(t, g.Started)
	assert.Equal(t, models.DeckSize, totalCards(g))
	for _, p := range g.Players {
		assert.Len(t, p.Hand, 7)
	}
	up, ok := g.UpCard()
	require.True(t, ok)
	assert.False(t, up.IsWild(), "opening up-card must not be wild")

	// A few full draw-and-pass turns keep the invariant and rotate the turn.
	for i := 0; i < 6; i++ {
		who := g.WhoseTurn()
		require.NoError(t, g.Draw(who))
		require.NoError(t, g.Pass(who))
		assert.NotEqual(t, who, g.WhoseTurn())
		assert.Equal(t, models.DeckSize, totalCards(g))
	}
}

func TestOnlyCurrentPlayerMayAct(t *testing.T) {
	g, _ := startedGame(t, testRules(),
		[]string{"Alice", "Bob"},
		[][]models.Card{
			{card(models.Red, 3), card(models.Red, 7)},
			{card(models.Yellow, 3), card(models.Yellow, 7)},
		},
		card(models.Red, 5),
	)

	assert.ErrorIs(t, g.Draw("Bob"), ErrNotYourTurn)
	assert.ErrorIs(t, g.Play("Bob", card(models.Yellow, 3), models.ColourNone), ErrNotYourTurn)
	assert.ErrorIs(t, g.Draw("Mallory"), ErrNotInGame)
	assert.ErrorIs(t, g.Pass("Alice"), ErrMustDrawFirst)
}

func TestSkipWithThreePlayers(t *testing.T) {
	g, mn := startedGame(t, testRules(),
		[]string{"Alice", "Bob", "Carol"},
		[][]models.Card{
			{card(models.Red, models.RankSkip), card(models.Red, 1)},
			{card(models.Yellow, 1), card(models.Yellow, 2)},
			{card(models.Green, 1), card(models.Green, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.Play("Alice", card(models.Red, models.RankSkip), models.ColourNone))
	assert.Equal(t, "Carol", g.WhoseTurn())
	assert.Len(t, g.Players[1].Hand, 2, "skipped player draws nothing")
	assert.True(t, mn.roomContains("Bob is skipped"))
}

func TestReverseActsAsSkipForTwoPlayers(t *testing.T) {
	g, _ := startedGame(t, testRules(),
		[]string{"Alice", "Bob"},
		[][]models.Card{
			{card(models.Red, models.RankReverse), card(models.Red, 1)},
			{card(models.Yellow, 1), card(models.Yellow, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.Play("Alice", card(models.Red, models.RankReverse), models.ColourNone))
	assert.Equal(t, "Alice", g.WhoseTurn())
	assert.False(t, g.IsReversed)
}

func TestReverseFlipsDirection(t *testing.T) {
	g, _ := startedGame(t, testRules(),
		[]string{"Alice", "Bob", "Carol"},
		[][]models.Card{
			{card(models.Red, models.RankReverse), card(models.Red, 1)},
			{card(models.Yellow, 1), card(models.Yellow, 2)},
			{card(models.Green, 1), card(models.Green, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.Play("Alice", card(models.Red, models.RankReverse), models.ColourNone))
	assert.True(t, g.IsReversed)
	assert.Equal(t, "Carol", g.WhoseTurn())
}

func TestDrawTwoWithoutProgressiveLandsImmediately(t *testing.T) {
	rules := testRules()
	rules.Progressive = false
	g, _ := startedGame(t, rules,
		[]string{"Alice", "Bob", "Carol"},
		[][]models.Card{
			{card(models.Red, models.RankDrawTwo), card(models.Red, 1)},
			{card(models.Yellow, 1), card(models.Yellow, 2)},
			{card(models.Green, 1), card(models.Green, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.Play("Alice", card(models.Red, models.RankDrawTwo), models.ColourNone))
	assert.Len(t, g.Players[1].Hand, 4, "victim draws two immediately")
	assert.Equal(t, "Carol", g.WhoseTurn())
	assert.Equal(t, 0, g.DrawCount)
}

func TestProgressiveStackingChain(t *testing.T) {
	g, _ := startedGame(t, testRules(),
		[]string{"Alice", "Bob", "Carol"},
		[][]models.Card{
			{card(models.Red, models.RankDrawTwo), card(models.Red, 1)},
			{card(models.Yellow, models.RankDrawTwo), card(models.Yellow, 2)},
			{card(models.Green, 1), card(models.Green, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.Play("Alice", card(models.Red, models.RankDrawTwo), models.ColourNone))
	assert.Equal(t, 2, g.DrawCount)
	assert.Equal(t, "Bob", g.WhoseTurn())

	// Bob stacks instead of drawing; the penalty accumulates onto Carol.
	require.NoError(t, g.Play("Bob", card(models.Yellow, models.RankDrawTwo), models.ColourNone))
	assert.Equal(t, 4, g.DrawCount)
	assert.Equal(t, "Carol", g.WhoseTurn())

	// Carol has no draw card and must take all four.
	require.NoError(t, g.Draw("Carol"))
	assert.Len(t, g.Players[2].Hand, 6)
	assert.Equal(t, 0, g.DrawCount)
	assert.Equal(t, "Alice", g.WhoseTurn())
}

func TestProgressiveCapForcesDraw(t *testing.T) {
	rules := testRules()
	rules.ProgressiveCap = 4
	g, _ := startedGame(t, rules,
		[]string{"Alice", "Bob", "Carol"},
		[][]models.Card{
			{card(models.Red, models.RankDrawTwo), card(models.Red, 1)},
			{card(models.Yellow, models.RankDrawTwo), card(models.Yellow, 2)},
			{card(models.Green, models.RankDrawTwo), card(models.Green, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.Play("Alice", card(models.Red, models.RankDrawTwo), models.ColourNone))
	require.NoError(t, g.Play("Bob", card(models.Yellow, models.RankDrawTwo), models.ColourNone))

	// The cap is reached, so Carol's penalty lands without a stacking offer
	// even though she holds a draw card.
	assert.Len(t, g.Players[2].Hand, 6)
	assert.Equal(t, 0, g.DrawCount)
	assert.Equal(t, "Alice", g.WhoseTurn())
}

func TestForgottenCallPenalty(t *testing.T) {
	g, mn := startedGame(t, testRules(),
		[]string{"Alice", "Bob"},
		[][]models.Card{
			{card(models.Red, 3), card(models.Red, 7)},
			{card(models.Red, 1), card(models.Yellow, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.Play("Alice", card(models.Red, 3), models.ColourNone))
	require.Len(t, g.Players[0].Hand, 1)

	// Bob acting triggers the automatic check before his play resolves.
	require.NoError(t, g.Play("Bob", card(models.Red, 1), models.ColourNone))
	assert.Len(t, g.Players[0].Hand, 3, "offender draws two")
	assert.True(t, mn.roomContains("forgot to call"))
}

func TestCallBeforePlayingAvoidsPenalty(t *testing.T) {
	g, _ := startedGame(t, testRules(),
		[]string{"Alice", "Bob"},
		[][]models.Card{
			{card(models.Red, 3), card(models.Red, 7)},
			{card(models.Red, 1), card(models.Yellow, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.CallUno("Alice"))
	require.NoError(t, g.Play("Alice", card(models.Red, 3), models.ColourNone))
	require.NoError(t, g.Play("Bob", card(models.Red, 1), models.ColourNone))
	assert.Len(t, g.Players[0].Hand, 1, "no penalty after a timely call")
}

func TestLapsedCallChallenge(t *testing.T) {
	g, _ := startedGame(t, testRules(),
		[]string{"Alice", "Bob"},
		[][]models.Card{
			{card(models.Red, 3), card(models.Red, 7)},
			{card(models.Red, 1), card(models.Yellow, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.Play("Alice", card(models.Red, 3), models.ColourNone))
	require.NoError(t, g.Challenge("Bob"))
	assert.Len(t, g.Players[0].Hand, 3)

	// The lapse is spent; challenging again has nothing to bite on.
	assert.ErrorIs(t, g.Challenge("Bob"), ErrNoChallenge)
}

func TestGoingOutScoresHandBonus(t *testing.T) {
	var result scoring.Result
	ended := false

	g, _ := startedGame(t, testRules(),
		[]string{"Alice", "Bob", "Carol"},
		[][]models.Card{
			{card(models.Red, 5)},
			{card(models.ColourNone, models.RankWild), card(models.Red, models.RankSkip)},
			{card(models.Yellow, 7)},
		},
		card(models.Red, 9),
	)
	g.OnRoundEnd = func(_ *Game, r scoring.Result, abandoned bool) {
		result = r
		ended = true
		require.False(t, abandoned)
	}

	require.NoError(t, g.Play("Alice", card(models.Red, 5), models.ColourNone))
	require.True(t, g.Ended)
	require.True(t, ended)

	alice := g.Players[0]
	assert.Equal(t, models.PresenceOut, alice.Presence)
	assert.Equal(t, 1, alice.Rank)
	assert.Equal(t, 77, alice.HandPoints, "50 for the wild, 20 for the skip, 7 for the seven")

	// 77 hand bonus + 5 participation + 30 first-place bonus.
	assert.Equal(t, 112, result.Totals["Alice"])
	assert.Equal(t, []string{"Alice"}, result.Winners)
	assert.ElementsMatch(t, []string{"Bob", "Carol"}, result.Losers)
	assert.Equal(t, 5, result.Totals["Bob"])
}

func TestMidRoundQuit(t *testing.T) {
	g, _ := startedGame(t, testRules(),
		[]string{"Alice", "Bob", "Carol"},
		[][]models.Card{
			{card(models.Red, 3), card(models.Red, 7)},
			{card(models.Yellow, 1), card(models.Yellow, 2)},
			{card(models.Green, 1), card(models.Green, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.Leave("Bob"))
	bob := g.Players[1]
	assert.Equal(t, models.PresenceLeft, bob.Presence)
	assert.Equal(t, 5-g.Rules.QuitPenalty, bob.BasePoints, "default penalty applies without a callback")
	assert.False(t, g.Ended)

	// Bob's seat is skipped from now on.
	require.NoError(t, g.Play("Alice", card(models.Red, 3), models.ColourNone))
	assert.Equal(t, "Carol", g.WhoseTurn())
}

func TestQuitResolvesPendingColourChoice(t *testing.T) {
	g, mn := startedGame(t, testRules(),
		[]string{"Alice", "Bob", "Carol"},
		[][]models.Card{
			{card(models.ColourNone, models.RankWild), card(models.Red, 3), card(models.Red, 7)},
			{card(models.Blue, 1), card(models.Red, 2)},
			{card(models.Green, 1), card(models.Yellow, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.Play("Alice", card(models.ColourNone, models.RankWild), models.ColourNone))
	require.True(t, g.ColourPending)

	// The chooser walks out; the choice resolves to the colour they held
	// most of instead of blocking the round forever.
	require.NoError(t, g.Leave("Alice"))
	assert.False(t, g.ColourPending)
	assert.Equal(t, models.Red, g.WildColour)
	assert.Equal(t, "Bob", g.WhoseTurn())
	assert.True(t, mn.roomContains("The colour is now Red"))

	assert.Equal(t, PlayOK, CheckPlayLegality(g, 1, card(models.Red, 2)))
	assert.Equal(t, DenyNoMatch, CheckPlayLegality(g, 1, card(models.Blue, 1)))
}

func TestQuitOfChallengerClearsDrawFourChallenge(t *testing.T) {
	g, _ := startedGame(t, testRules(),
		[]string{"Alice", "Bob", "Carol"},
		[][]models.Card{
			{card(models.ColourNone, models.RankWildDrawFour), card(models.Blue, 3)},
			{card(models.Yellow, 1), card(models.Yellow, 2)},
			{card(models.Green, 1), card(models.Green, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.CallUno("Alice"))
	require.NoError(t, g.Play("Alice", card(models.ColourNone, models.RankWildDrawFour), models.Blue))
	require.NotNil(t, g.PendingDrawFour)

	// The challenger walks out; the challenge dies with them but the
	// penalty still lands on whoever must act next.
	require.NoError(t, g.Leave("Bob"))
	assert.Nil(t, g.PendingDrawFour)
	assert.Equal(t, 4, g.DrawCount)
	assert.Equal(t, "Carol", g.WhoseTurn())

	require.NoError(t, g.Draw("Carol"))
	assert.Len(t, g.Players[2].Hand, 6)

	// Nothing dangling blocks Alice from going out and ending the round.
	require.NoError(t, g.Play("Alice", card(models.Blue, 3), models.ColourNone))
	assert.True(t, g.Ended)
	assert.Equal(t, models.PresenceOut, g.Players[0].Presence)
}

func TestRejectedDrawLeavesLapseUnpunished(t *testing.T) {
	g, _ := startedGame(t, testRules(),
		[]string{"Alice", "Bob"},
		[][]models.Card{
			{card(models.Red, 3), card(models.Red, 7)},
			{card(models.Yellow, 1), card(models.Yellow, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.Play("Alice", card(models.Red, 3), models.ColourNone))
	require.Len(t, g.Players[0].Hand, 1)

	// Bob has already drawn this turn; his second draw is rejected and must
	// not punish Alice's lapsed call as a side effect.
	c := card(models.Yellow, 1)
	g.Mu.Lock()
	g.Players[1].DrawnCard = &c
	g.Mu.Unlock()

	assert.ErrorIs(t, g.Draw("Bob"), ErrAlreadyDrawn)
	assert.Len(t, g.Players[0].Hand, 1)
}

func TestLastSeatStandingWinsByDefault(t *testing.T) {
	var result scoring.Result
	g, _ := startedGame(t, testRules(),
		[]string{"Alice", "Bob"},
		[][]models.Card{
			{card(models.Red, 3), card(models.Red, 7)},
			{card(models.Yellow, 1), card(models.Yellow, 2)},
		},
		card(models.Red, 5),
	)
	g.OnRoundEnd = func(_ *Game, r scoring.Result, _ bool) { result = r }

	require.NoError(t, g.Leave("Bob"))
	require.True(t, g.Ended)
	assert.Equal(t, models.PresenceOutByDefault, g.Players[0].Presence)
	assert.Equal(t, []string{"Alice"}, result.Winners)
}

func TestIdleSeatIsFastForwarded(t *testing.T) {
	g, mn := startedGame(t, testRules(),
		[]string{"Alice", "Bob", "Carol"},
		[][]models.Card{
			{card(models.Red, 3), card(models.Red, 7)},
			{card(models.Red, 1), card(models.Yellow, 2)},
			{card(models.Green, 1), card(models.Green, 2)},
		},
		card(models.Red, 5),
	)

	// Alice misses her turn; Bob is invited to act early.
	g.Mu.Lock()
	g.handleTurnTimeout()
	g.Mu.Unlock()
	require.Equal(t, "Bob", g.WhoseTurn())
	assert.True(t, mn.roomContains("seems to be away"))

	// When Bob plays, Alice is charged the idle draw and the real turn
	// pointer catches up.
	require.NoError(t, g.Play("Bob", card(models.Red, 1), models.ColourNone))
	assert.Len(t, g.Players[0].Hand, 3, "idled seat draws one")
	assert.Equal(t, "Carol", g.WhoseTurn())
}

func TestSecondTimeoutRemovesPlayer(t *testing.T) {
	g, _ := startedGame(t, testRules(),
		[]string{"Alice", "Bob", "Carol"},
		[][]models.Card{
			{card(models.Red, 3), card(models.Red, 7)},
			{card(models.Yellow, 1), card(models.Yellow, 2)},
			{card(models.Green, 1), card(models.Green, 2)},
		},
		card(models.Red, 5),
	)
	g.Players[0].IdleCount = 1

	g.Mu.Lock()
	g.handleTurnTimeout()
	g.Mu.Unlock()

	assert.Equal(t, models.PresenceLeft, g.Players[0].Presence)
	assert.Equal(t, "Bob", g.WhoseTurn())
}

func TestDeterministicWithSameSeed(t *testing.T) {
	run := func() []string {
		g := NewGame("#uno", testRules(), shuffle.NewLocalShuffler(42), logrus.New(), 42)
		attachNarrator(g)
		require.NoError(t, g.Join("Alice"))
		require.NoError(t, g.Join("Bob"))
		require.NoError(t, g.Join("Carol"))
		require.NoError(t, g.ForceStart())
		for i := 0; i < 5; i++ {
			who := g.WhoseTurn()
			require.NoError(t, g.Draw(who))
			require.NoError(t, g.Pass(who))
		}
		return g.Record
	}

	assert.Equal(t, run(), run())
}

func TestMidRoundJoinDealsFreshHand(t *testing.T) {
	rules := testRules()
	rules.AllowMidRoundJoin = true
	g, _ := startedGame(t, rules,
		[]string{"Alice", "Bob"},
		[][]models.Card{
			{card(models.Red, 3), card(models.Red, 7)},
			{card(models.Yellow, 1), card(models.Yellow, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.Join("Carol"))
	carol := g.Players[2]
	assert.Len(t, carol.Hand, 7)
	assert.Equal(t, rules.ParticipationBonus, carol.BasePoints)
	assert.Equal(t, models.DeckSize, totalCards(g))
}

func TestMidRoundJoinRejectedByDefault(t *testing.T) {
	g, _ := startedGame(t, testRules(),
		[]string{"Alice", "Bob"},
		[][]models.Card{
			{card(models.Red, 3), card(models.Red, 7)},
			{card(models.Yellow, 1), card(models.Yellow, 2)},
		},
		card(models.Red, 5),
	)
	assert.ErrorIs(t, g.Join("Carol"), ErrRoundInProgress)
}
