// internal/game/game_store.go
package game

import (
	"sync"

	"github.com/google/uuid"
)

// GameStore tracks the live game per chat room. One room hosts at most one
// game at a time.
type GameStore struct {
	mu    sync.Mutex
	games map[string]*Game
}

func NewGameStore() *GameStore {
	return &GameStore{
		games: make(map[string]*Game),
	}
}

// Add registers a game for its room, replacing any finished one. It
// returns false if the room already has a game still in progress.
func (s *GameStore) Add(g *Game) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.games[g.Room]; ok && !old.Ended {
		return false
	}
	s.games[g.Room] = g
	return true
}

func (s *GameStore) Get(room string) (*Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, exists := s.games[room]
	return g, exists
}

func (s *GameStore) Delete(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, room)
}

// GetByID finds a game by its round ID, or nil. The audit trail references
// games this way.
func (s *GameStore) GetByID(id uuid.UUID) *Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.games {
		if g.ID == id {
			return g
		}
	}
	return nil
}

// StopAll aborts every live game, for shutdown.
func (s *GameStore) StopAll() {
	s.mu.Lock()
	games := make([]*Game, 0, len(s.games))
	for _, g := range s.games {
		games = append(games, g)
	}
	s.mu.Unlock()

	for _, g := range games {
		g.Stop()
	}
}
