package memory

import (
	"sync"

	"livequiz-service/internal/app"
)

// GameRegistry is the in-process implementation of app.GameRegistry: one
// authoritative *Game per session code.
type GameRegistry struct {
	mu    sync.RWMutex
	games map[string]*app.Game
}

func NewGameRegistry() *GameRegistry {
	return &GameRegistry{games: make(map[string]*app.Game)}
}

func (r *GameRegistry) Put(code string, game *app.Game) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[code] = game
}

func (r *GameRegistry) Get(code string) (*app.Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	game, ok := r.games[code]
	return game, ok
}

func (r *GameRegistry) Delete(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, code)
}

func (r *GameRegistry) Exists(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.games[code]
	return ok
}
