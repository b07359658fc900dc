// internal/handlers/parse.go
package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/AndrioCelos/unobot/internal/models"
)

var errUnknownCard = errors.New("that doesn't look like a card")

// ParseColour reads a colour word or its first letter.
func ParseColour(text string) (models.Colour, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "red", "r":
		return models.Red, nil
	case "yellow", "y":
		return models.Yellow, nil
	case "green", "g":
		return models.Green, nil
	case "blue", "b":
		return models.Blue, nil
	}
	return models.ColourNone, fmt.Errorf("%q is not a colour", text)
}

// ParseCard reads a card from chat text. Both long forms ("yellow skip",
// "wild draw four") and the short forms players actually type ("ys",
// "r7", "wd4") are accepted.
func ParseCard(text string) (models.Card, error) {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(words) == 0 {
		return models.Card{}, errUnknownCard
	}

	// Wilds carry no colour of their own.
	switch strings.Join(words, " ") {
	case "wild", "w":
		return models.Card{Rank: models.RankWild}, nil
	case "wild draw four", "wild draw 4", "wilddrawfour", "wd4", "wd":
		return models.Card{Rank: models.RankWildDrawFour}, nil
	}

	if len(words) == 1 {
		return parseShortCard(words[0])
	}

	colour, err := ParseColour(words[0])
	if err != nil {
		return models.Card{}, errUnknownCard
	}
	rank, err := parseRank(strings.Join(words[1:], " "))
	if err != nil {
		return models.Card{}, err
	}
	return models.Card{Colour: colour, Rank: rank}, nil
}

// parseShortCard reads the compact form: a colour letter followed by a
// rank token, like "r7", "gs" or "bd2".
func parseShortCard(word string) (models.Card, error) {
	if len(word) < 2 {
		return models.Card{}, errUnknownCard
	}
	colour, err := ParseColour(word[:1])
	if err != nil {
		return models.Card{}, errUnknownCard
	}
	rank, err := parseRank(word[1:])
	if err != nil {
		return models.Card{}, err
	}
	return models.Card{Colour: colour, Rank: rank}, nil
}

func parseRank(text string) (models.Rank, error) {
	switch text {
	case "reverse", "rev", "r":
		return models.RankReverse, nil
	case "skip", "s":
		return models.RankSkip, nil
	case "draw two", "draw 2", "drawtwo", "draw2", "d2", "d":
		return models.RankDrawTwo, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 || n > 9 {
		return 0, errUnknownCard
	}
	return models.Rank(n), nil
}
