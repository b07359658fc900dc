// internal/game/wild_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndrioCelos/unobot/internal/models"
)

func wild() models.Card         { return models.Card{Rank: models.RankWild} }
func wildDrawFour() models.Card { return models.Card{Rank: models.RankWildDrawFour} }

func TestWildWithColourUpFront(t *testing.T) {
	g, mn := startedGame(t, testRules(),
		[]string{"Alice", "Bob"},
		[][]models.Card{
			{wild(), card(models.Red, 3)},
			{card(models.Blue, 1), card(models.Yellow, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.Play("Alice", wild(), models.Blue))
	assert.Equal(t, models.Blue, g.WildColour)
	assert.Equal(t, "Bob", g.WhoseTurn())
	assert.True(t, mn.roomContains("The colour is now Blue"))

	// Bob must now match the chosen colour, not the buried red.
	assert.Equal(t, DenyNoMatch, CheckPlayLegality(g, 1, card(models.Yellow, 2)))
	assert.Equal(t, PlayOK, CheckPlayLegality(g, 1, card(models.Blue, 1)))
}

func TestWildDefersColourChoice(t *testing.T) {
	g, _ := startedGame(t, testRules(),
		[]string{"Alice", "Bob"},
		[][]models.Card{
			{wild(), card(models.Red, 3)},
			{card(models.Blue, 1), card(models.Yellow, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.Play("Alice", wild(), models.ColourNone))
	assert.True(t, g.ColourPending)
	assert.Equal(t, "Alice", g.WhoseTurn(), "turn waits on the colour choice")

	// Nobody else may choose, and the chooser may not play on instead.
	assert.ErrorIs(t, g.ChooseColour("Bob", models.Blue), ErrNotYourChoice)
	assert.ErrorIs(t, g.Draw("Alice"), DenyColourPending.Err())

	require.NoError(t, g.ChooseColour("Alice", models.Green))
	assert.False(t, g.ColourPending)
	assert.Equal(t, models.Green, g.WildColour)
	assert.Equal(t, "Bob", g.WhoseTurn())
}

func TestWildDrawFourBluffChallengeSucceeds(t *testing.T) {
	g, mn := startedGame(t, testRules(),
		[]string{"Alice", "Bob", "Carol"},
		[][]models.Card{
			{wildDrawFour(), card(models.Red, 3), card(models.Red, 7)},
			{card(models.Yellow, 1), card(models.Yellow, 2)},
			{card(models.Green, 1), card(models.Green, 2)},
		},
		card(models.Red, 5),
	)

	// Alice still holds red, so this Wild Draw Four is a bluff.
	require.NoError(t, g.Play("Alice", wildDrawFour(), models.Blue))
	require.NotNil(t, g.PendingDrawFour)
	assert.True(t, g.PendingDrawFour.WasBluff)
	assert.Equal(t, "Bob", g.WhoseTurn())

	require.NoError(t, g.Challenge("Bob"))
	assert.Len(t, g.Players[0].Hand, 6, "caught bluffer draws the four")
	assert.Len(t, g.Players[1].Hand, 2, "challenger draws nothing")
	assert.Equal(t, "Bob", g.WhoseTurn(), "play continues with the challenger")
	assert.Equal(t, 0, g.DrawCount)
	assert.True(t, mn.roomContains("bluffing"))
}

func TestWildDrawFourChallengeFails(t *testing.T) {
	g, _ := startedGame(t, testRules(),
		[]string{"Alice", "Bob", "Carol"},
		[][]models.Card{
			{wildDrawFour(), card(models.Yellow, 3), card(models.Yellow, 7)},
			{card(models.Yellow, 1), card(models.Yellow, 2)},
			{card(models.Green, 1), card(models.Green, 2)},
		},
		card(models.Red, 5),
	)

	// Alice holds no red at all; the play was legitimate.
	require.NoError(t, g.Play("Alice", wildDrawFour(), models.Blue))
	require.NotNil(t, g.PendingDrawFour)
	assert.False(t, g.PendingDrawFour.WasBluff)

	require.NoError(t, g.Challenge("Bob"))
	assert.Len(t, g.Players[1].Hand, 8, "failed challenger draws four plus two")
	assert.Len(t, g.Players[0].Hand, 2)
	assert.Equal(t, "Carol", g.WhoseTurn())
}

func TestWildDrawFourDeclinedByDrawing(t *testing.T) {
	g, _ := startedGame(t, testRules(),
		[]string{"Alice", "Bob", "Carol"},
		[][]models.Card{
			{wildDrawFour(), card(models.Red, 3), card(models.Red, 7)},
			{card(models.Yellow, 1), card(models.Yellow, 2)},
			{card(models.Green, 1), card(models.Green, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.Play("Alice", wildDrawFour(), models.Blue))
	require.NoError(t, g.Draw("Bob"))
	assert.Len(t, g.Players[1].Hand, 6, "declining absorbs the penalty unchallenged")
	assert.Nil(t, g.PendingDrawFour)
	assert.Equal(t, "Carol", g.WhoseTurn())
}

func TestWildDrawFourFreePlaySkipsChallenge(t *testing.T) {
	rules := testRules()
	rules.WildDrawFour = models.FreePlay
	g, _ := startedGame(t, rules,
		[]string{"Alice", "Bob", "Carol"},
		[][]models.Card{
			{wildDrawFour(), card(models.Red, 3)},
			{card(models.Yellow, 1), card(models.Yellow, 2)},
			{card(models.Green, 1), card(models.Green, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.Play("Alice", wildDrawFour(), models.Blue))
	assert.Nil(t, g.PendingDrawFour)
	// Progressive rules still offer Bob a stacking window before the
	// penalty lands.
	assert.Equal(t, 4, g.DrawCount)
	assert.Equal(t, "Bob", g.WhoseTurn())

	require.NoError(t, g.Draw("Bob"))
	assert.Len(t, g.Players[1].Hand, 6)
	assert.Equal(t, "Carol", g.WhoseTurn())
}

func TestWildDrawFourStackUnderChallenge(t *testing.T) {
	g, _ := startedGame(t, testRules(),
		[]string{"Alice", "Bob", "Carol"},
		[][]models.Card{
			{wildDrawFour(), card(models.Red, 3), card(models.Red, 7)},
			{wildDrawFour(), card(models.Yellow, 2)},
			{card(models.Green, 1), card(models.Green, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.Play("Alice", wildDrawFour(), models.Blue))
	require.Equal(t, 4, g.DrawCount)

	// Bob passes the buck with his own Wild Draw Four instead of
	// answering the challenge.
	require.NoError(t, g.Play("Bob", wildDrawFour(), models.Yellow))
	assert.Equal(t, 8, g.DrawCount)
	require.NotNil(t, g.PendingDrawFour)
	assert.Equal(t, 1, g.PendingDrawFour.Accused)
	assert.Equal(t, "Carol", g.WhoseTurn())

	// The cap is reached, so Carol cannot stack further even if she could;
	// she declines by drawing all eight.
	require.NoError(t, g.Draw("Carol"))
	assert.Len(t, g.Players[2].Hand, 10)
	assert.Equal(t, "Alice", g.WhoseTurn())
}

func TestChallengeBitesLapseBeforeDrawFour(t *testing.T) {
	g, mn := startedGame(t, testRules(),
		[]string{"Alice", "Bob", "Carol"},
		[][]models.Card{
			{wildDrawFour(), card(models.Red, 3)},
			{card(models.Yellow, 1), card(models.Yellow, 2)},
			{card(models.Green, 1), card(models.Green, 2)},
		},
		card(models.Red, 5),
	)

	// Alice plays her second-to-last card without calling.
	require.NoError(t, g.Play("Alice", wildDrawFour(), models.Blue))
	require.NotNil(t, g.PendingDrawFour)

	// Bob's first challenge punishes the lapsed call, not the Wild Draw
	// Four; that challenge stays open.
	require.NoError(t, g.Challenge("Bob"))
	assert.True(t, mn.roomContains("forgot to call"))
	assert.Len(t, g.Players[0].Hand, 3)
	require.NotNil(t, g.PendingDrawFour)
	assert.Equal(t, 4, g.DrawCount)

	require.NoError(t, g.Challenge("Bob"))
	assert.Len(t, g.Players[0].Hand, 7, "the bluff penalty lands on top")
	assert.Equal(t, "Bob", g.WhoseTurn())
	assert.Equal(t, 0, g.DrawCount)
}

func TestWildAsLastCardWaitsForColour(t *testing.T) {
	g, _ := startedGame(t, testRules(),
		[]string{"Alice", "Bob"},
		[][]models.Card{
			{wild()},
			{card(models.Yellow, 1), card(models.Yellow, 2)},
		},
		card(models.Red, 5),
	)

	require.NoError(t, g.Play("Alice", wild(), models.ColourNone))
	assert.False(t, g.Ended, "round waits for the colour even though the hand is empty")

	require.NoError(t, g.ChooseColour("Alice", models.Red))
	assert.True(t, g.Ended)
	assert.Equal(t, models.PresenceOut, g.Players[0].Presence)
}
