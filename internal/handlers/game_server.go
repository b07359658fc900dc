// internal/handlers/game_server.go
package handlers

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AndrioCelos/unobot/internal/cache"
	"github.com/AndrioCelos/unobot/internal/game"
	"github.com/AndrioCelos/unobot/internal/models"
	"github.com/AndrioCelos/unobot/internal/scoring"
	"github.com/AndrioCelos/unobot/internal/shuffle"
	"github.com/AndrioCelos/unobot/internal/stats"
)

// Narrator delivers game text to a room or to a single player in it. The
// WebSocket gateway implements it; tests substitute a recorder.
type Narrator interface {
	SendToRoom(room, text string)
	SendToUser(room, name, text string)
}

// GameServer hosts one game per chat room and adapts chat commands into
// game intents. It also owns the seam to the stats store and audit queue.
type GameServer struct {
	Mutex    sync.Mutex
	Store    *game.GameStore
	Logger   *logrus.Logger
	Narrator Narrator
	Shuffler shuffle.Shuffler

	BotName  string
	BotDelay time.Duration
	Pace     time.Duration

	// StatsEnabled routes player records through Postgres; without it they
	// live in memory for the life of the process. AuditEnabled gates the
	// Redis audit queue.
	StatsEnabled bool
	AuditEnabled bool

	roomRules map[string]models.Ruleset
	memStats  map[string]*models.PlayerStats
}

func NewGameServer(logger *logrus.Logger, narrator Narrator, shuffler shuffle.Shuffler) *GameServer {
	return &GameServer{
		Store:     game.NewGameStore(),
		Logger:    logger,
		Narrator:  narrator,
		Shuffler:  shuffler,
		BotName:   "UnoBot",
		BotDelay:  time.Second,
		Pace:      600 * time.Millisecond,
		roomRules: make(map[string]models.Ruleset),
		memStats:  make(map[string]*models.PlayerStats),
	}
}

// HandleCommand runs one chat command for a user in a room. The returned
// reply, if any, goes back to that user alone; everything public flows
// through the Narrator.
func (gs *GameServer) HandleCommand(room, user, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	cmd := strings.ToLower(fields[0])
	args := strings.Join(fields[1:], " ")

	switch cmd {
	case "join":
		g := gs.ensureGame(room)
		return "", g.Join(user)
	case "bot":
		g := gs.ensureGame(room)
		return "", g.AddBot(gs.BotName)
	case "start":
		g, ok := gs.Store.Get(room)
		if !ok {
			return "", game.ErrRoundNotStarted
		}
		return "", g.ForceStart()
	case "play":
		return "", gs.play(room, user, fields[1:])
	case "draw":
		g, ok := gs.Store.Get(room)
		if !ok {
			return "", game.ErrRoundNotStarted
		}
		return "", g.Draw(user)
	case "pass":
		g, ok := gs.Store.Get(room)
		if !ok {
			return "", game.ErrRoundNotStarted
		}
		return "", g.Pass(user)
	case "colour", "color":
		g, ok := gs.Store.Get(room)
		if !ok {
			return "", game.ErrRoundNotStarted
		}
		colour, err := ParseColour(args)
		if err != nil {
			return "", err
		}
		return "", g.ChooseColour(user, colour)
	case "challenge":
		g, ok := gs.Store.Get(room)
		if !ok {
			return "", game.ErrRoundNotStarted
		}
		return "", g.Challenge(user)
	case "uno":
		g, ok := gs.Store.Get(room)
		if !ok {
			return "", game.ErrRoundNotStarted
		}
		return "", g.CallUno(user)
	case "leave", "quit":
		g, ok := gs.Store.Get(room)
		if !ok {
			return "", game.ErrNotInGame
		}
		return "", g.Leave(user)
	case "hand":
		g, ok := gs.Store.Get(room)
		if !ok {
			return "", game.ErrRoundNotStarted
		}
		return formatHand(g.HandOf(user)), nil
	case "turn":
		g, ok := gs.Store.Get(room)
		if !ok {
			return "", game.ErrRoundNotStarted
		}
		if who := g.WhoseTurn(); who != "" {
			return fmt.Sprintf("It is %s's turn.", who), nil
		}
		return "No round is in progress.", nil
	case "card", "top":
		g, ok := gs.Store.Get(room)
		if !ok {
			return "", game.ErrRoundNotStarted
		}
		if up, ok := g.UpCard(); ok {
			return fmt.Sprintf("The up-card is %s.", up), nil
		}
		return "No round is in progress.", nil
	case "count":
		g, ok := gs.Store.Get(room)
		if !ok {
			return "", game.ErrRoundNotStarted
		}
		return formatCounts(g.CardCounts()), nil
	case "set":
		return gs.setRule(room, fields[1:])
	case "stop":
		if g, ok := gs.Store.Get(room); ok {
			g.Stop()
		}
		return "", nil
	}
	return "", fmt.Errorf("unknown command %q", cmd)
}

func (gs *GameServer) play(room, user string, args []string) error {
	g, ok := gs.Store.Get(room)
	if !ok {
		return game.ErrRoundNotStarted
	}
	if len(args) == 0 {
		return fmt.Errorf("play what?")
	}

	// A trailing colour word on a wild picks the colour up front.
	colour := models.ColourNone
	cardText := strings.Join(args, " ")
	if len(args) >= 2 {
		if c, err := ParseColour(args[len(args)-1]); err == nil {
			if _, cardErr := ParseCard(strings.Join(args[:len(args)-1], " ")); cardErr == nil {
				colour = c
				cardText = strings.Join(args[:len(args)-1], " ")
			}
		}
	}
	card, err := ParseCard(cardText)
	if err != nil {
		return err
	}
	return g.Play(user, card, colour)
}

// setRule updates a house rule for the room. Changes apply to the next
// round, or to the current game while it is still gathering players.
func (gs *GameServer) setRule(room string, args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("usage: set <rule> <value>")
	}
	key, raw := args[0], args[1]

	var value interface{}
	if b, err := strconv.ParseBool(raw); err == nil {
		value = b
	} else if n, err := strconv.Atoi(raw); err == nil {
		value = n
	} else {
		value = raw
	}

	gs.Mutex.Lock()
	rules, ok := gs.roomRules[room]
	if !ok {
		rules = models.DefaultRules()
	}
	if err := rules.Update(map[string]interface{}{key: value}); err != nil {
		gs.Mutex.Unlock()
		return "", err
	}
	gs.roomRules[room] = rules
	gs.Mutex.Unlock()

	if g, exists := gs.Store.Get(room); exists {
		g.Mu.Lock()
		if !g.Started && !g.Ended {
			g.Rules = rules
		}
		g.Mu.Unlock()
	}
	return fmt.Sprintf("Rule %s set to %s.", key, raw), nil
}

// ensureGame returns the room's live game, creating one with the room's
// rules and wired callbacks if necessary.
func (gs *GameServer) ensureGame(room string) *game.Game {
	if g, ok := gs.Store.Get(room); ok && !g.Ended {
		return g
	}

	gs.Mutex.Lock()
	rules, ok := gs.roomRules[room]
	if !ok {
		rules = models.DefaultRules()
	}
	gs.Mutex.Unlock()

	g := game.NewGame(room, rules, gs.Shuffler, gs.Logger, time.Now().UnixNano())
	g.Pace = gs.Pace
	g.BotDelay = gs.BotDelay
	g.SendToRoomFn = func(text string) { gs.Narrator.SendToRoom(room, text) }
	g.SendToUserFn = func(name, text string) { gs.Narrator.SendToUser(room, name, text) }
	g.QuitPenalised = gs.quitPenalised(g)
	g.OnRoundEnd = gs.roundEnded
	g.AuditFn = gs.auditFunc(g)

	gs.Store.Add(g)
	return g
}

// quitPenalised consults the player's rolling quit allowance and reports
// whether this quit costs them. A disallowed quit also counts as a loss.
func (gs *GameServer) quitPenalised(g *game.Game) func(name string, at time.Time) bool {
	return func(name string, at time.Time) bool {
		s, err := gs.loadStats(name)
		if err != nil {
			gs.Logger.WithError(err).WithField("player", name).Warn("failed to load stats for quit check")
			return false
		}
		allowed := scoring.QuitAllowed(g.Rules, s, at)
		if !allowed {
			for _, notice := range scoring.RecordLoss(s, at) {
				gs.Narrator.SendToRoom(g.Room, notice)
			}
		}
		gs.saveStats(s)
		return !allowed
	}
}

// roundEnded persists the round and applies streak updates. Called with
// the game lock held, so everything here must stay off that lock.
func (gs *GameServer) roundEnded(g *game.Game, result scoring.Result, abandoned bool) {
	if abandoned {
		return
	}
	now := time.Now()

	if gs.StatsEnabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := stats.RecordRound(ctx, g.ID, g.Room, result.Totals, g.StartedAt); err != nil {
			gs.Logger.WithError(err).WithField("room", g.Room).Error("failed to record round")
		}
		cancel()
	} else {
		gs.Mutex.Lock()
		for name, pts := range result.Totals {
			s := gs.memStatsFor(name)
			s.Points += pts
		}
		gs.Mutex.Unlock()
	}

	// Quitters' streaks were settled at quit time, penalised or
	// allowance-protected; charging them again here would double-count.
	settled := make(map[string]bool)
	for _, p := range g.Players {
		if p.StreakSettled {
			settled[p.Name] = true
		}
	}

	record := func(names []string, apply func(*models.PlayerStats, time.Time) []string) {
		for _, name := range names {
			if settled[name] {
				continue
			}
			s, err := gs.loadStats(name)
			if err != nil {
				gs.Logger.WithError(err).WithField("player", name).Warn("failed to load stats")
				continue
			}
			for _, notice := range apply(s, now) {
				gs.Narrator.SendToRoom(g.Room, notice)
			}
			gs.saveStats(s)
		}
	}
	record(result.Winners, scoring.RecordWin)
	record(result.Losers, scoring.RecordLoss)
}

// auditFunc builds the game's audit sink: a monotonically numbered record
// per event, pushed to the Redis queue off the game's critical path.
func (gs *GameServer) auditFunc(g *game.Game) func(action string, payload map[string]interface{}) {
	seq := 0
	return func(action string, payload map[string]interface{}) {
		if !gs.AuditEnabled || cache.Rdb == nil {
			return
		}
		seq++
		record := cache.AuditRecord{
			GameID:    g.ID,
			Room:      g.Room,
			Seq:       seq,
			Action:    action,
			Payload:   payload,
			Timestamp: time.Now().Unix(),
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := cache.PublishAudit(ctx, record); err != nil {
				gs.Logger.WithError(err).Warn("failed to publish audit record")
			}
		}()
	}
}

// --- stats access ---------------------------------------------------------

func (gs *GameServer) loadStats(name string) (*models.PlayerStats, error) {
	if gs.StatsEnabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return stats.GetPlayerStats(ctx, name)
	}
	gs.Mutex.Lock()
	defer gs.Mutex.Unlock()
	return gs.memStatsFor(name), nil
}

func (gs *GameServer) saveStats(s *models.PlayerStats) {
	if !gs.StatsEnabled {
		return // memory records are shared pointers, already updated
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stats.SavePlayerStats(ctx, s); err != nil {
		gs.Logger.WithError(err).WithField("player", s.Name).Error("failed to save stats")
	}
}

// memStatsFor returns the in-memory record for name. Callers hold
// gs.Mutex.
func (gs *GameServer) memStatsFor(name string) *models.PlayerStats {
	s, ok := gs.memStats[name]
	if !ok {
		s = &models.PlayerStats{Name: name}
		gs.memStats[name] = s
	}
	return s
}

// --- formatting -----------------------------------------------------------

func formatHand(hand []models.Card) string {
	if len(hand) == 0 {
		return "You have no cards."
	}
	parts := make([]string, len(hand))
	for i, c := range hand {
		parts[i] = c.String()
	}
	return "Your hand: " + strings.Join(parts, ", ")
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "No round is in progress."
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %d", name, counts[name])
	}
	return strings.Join(parts, ", ")
}
