package game

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages game registration and lookup by command.
type Registry struct {
	games map[string]Game
	mu    sync.RWMutex
}

// NewRegistry creates a new game registry.
func NewRegistry() *Registry {
	return &Registry{
		games: make(map[string]Game),
	}
}

// Register adds a game. A game with the same command is replaced.
func (r *Registry) Register(g Game) error {
	if g == nil {
		return fmt.Errorf("cannot register nil game")
	}
	if g.Command() == "" {
		return fmt.Errorf("game command cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[g.Command()] = g
	return nil
}

// MustRegister is Register for startup wiring.
func (r *Registry) MustRegister(games ...Game) {
	for _, g := range games {
		if err := r.Register(g); err != nil {
			panic(err)
		}
	}
}

// Get retrieves a game by its command.
func (r *Registry) Get(command string) (Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[command]
	return g, ok
}

// List returns all registered games sorted by command.
func (r *Registry) List() []Game {
	r.mu.RLock()
	defer r.mu.RUnlock()

	games := make([]Game, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Command() < games[j].Command() })
	return games
}

// Count returns the number of registered games.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}
