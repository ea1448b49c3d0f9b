package app

import (
	"sort"
	"strings"
	"sync"
	"time"

	"livequiz-service/internal/domain"
)

// Game is the authoritative in-memory state of one session. Every mutation
// goes through its mutex, which is the serialization point the rest of the
// coordinator relies on.
type Game struct {
	mu sync.Mutex

	session domain.GameSession
	quiz    domain.Quiz // loaded at start, immutable afterwards

	players map[string]*domain.Player
	names   map[string]string // lower(name) -> playerID

	// conns tracks which live connection currently represents each player,
	// and the set of host connections, so admission transitions can move the
	// right connection between broadcast groups.
	conns     map[string]string // playerID -> connID
	hostConns map[string]struct{}

	// ledger holds the per-question submissions; its presence for a question
	// id also marks the question as having been played.
	ledger       map[string]map[string]*domain.AnswerSubmission
	eggClicks    map[string]map[string]bool           // questionID -> playerID
	powerUps     map[string]map[string]domain.PowerUpType // questionID -> playerID
	doublePoints map[string]map[string]bool

	prevPositions map[string]int
	lastReveal    *domain.RevealPayload

	timerStop chan struct{}

	// persistFailures counts dropped durability writes, for operators.
	persistFailures int

	now func() time.Time
}

func newGame(session domain.GameSession, now func() time.Time) *Game {
	return &Game{
		session:       session,
		players:       make(map[string]*domain.Player),
		names:         make(map[string]string),
		conns:         make(map[string]string),
		hostConns:     make(map[string]struct{}),
		ledger:        make(map[string]map[string]*domain.AnswerSubmission),
		eggClicks:     make(map[string]map[string]bool),
		powerUps:      make(map[string]map[string]domain.PowerUpType),
		doublePoints:  make(map[string]map[string]bool),
		prevPositions: make(map[string]int),
		now:           now,
	}
}

// Session returns a copy of the current session record.
func (g *Game) Session() domain.GameSession {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session
}

// currentQuestionLocked returns the question at the pointer, or nil before
// start or past the end.
func (g *Game) currentQuestionLocked() *domain.Question {
	idx := g.session.CurrentIndex
	if idx < 0 || idx >= len(g.quiz.Questions) {
		return nil
	}
	return &g.quiz.Questions[idx]
}

// questionNumberLocked is the 1-based player-visible number of the question at
// idx, counting scored questions only. Sections report 0.
func (g *Game) questionNumberLocked(idx int) int {
	if idx < 0 || idx >= len(g.quiz.Questions) || !g.quiz.Questions[idx].IsScored() {
		return 0
	}
	n := 0
	for i := 0; i <= idx; i++ {
		if g.quiz.Questions[i].IsScored() {
			n++
		}
	}
	return n
}

func (g *Game) playerByNameLocked(name string) (*domain.Player, bool) {
	id, ok := g.names[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	p, ok := g.players[id]
	return p, ok
}

func (g *Game) playerByConnLocked(connID string) (*domain.Player, bool) {
	for playerID, conn := range g.conns {
		if conn == connID {
			return g.players[playerID], g.players[playerID] != nil
		}
	}
	return nil, false
}

func (g *Game) admittedCountLocked() int {
	n := 0
	for _, p := range g.players {
		if p.Admission == domain.AdmissionAdmitted {
			n++
		}
	}
	return n
}

// eligibleCountLocked counts players who may answer the running question.
func (g *Game) eligibleCountLocked() int {
	n := 0
	for _, p := range g.players {
		if p.Admission == domain.AdmissionAdmitted && p.Active {
			n++
		}
	}
	return n
}

// rankingLocked orders admitted active players by score, carrying the
// position delta against the previous scoreboard baseline.
func (g *Game) rankingLocked() []domain.RankedPlayer {
	ranked := make([]domain.RankedPlayer, 0, len(g.players))
	for _, p := range g.players {
		if p.Admission != domain.AdmissionAdmitted || !p.Active {
			continue
		}
		ranked = append(ranked, domain.RankedPlayer{
			PlayerID: p.ID,
			Name:     p.Name,
			Avatar:   p.Avatar,
			Score:    p.Score,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return strings.ToLower(ranked[i].Name) < strings.ToLower(ranked[j].Name)
	})
	for i := range ranked {
		ranked[i].Position = i + 1
		if prev, ok := g.prevPositions[ranked[i].PlayerID]; ok {
			ranked[i].Delta = prev - ranked[i].Position
		}
	}
	return ranked
}

// snapshotRankingBaselineLocked records the current ranking as the reference
// for the next scoreboard's deltas.
func (g *Game) snapshotRankingBaselineLocked(ranking []domain.RankedPlayer) {
	g.prevPositions = make(map[string]int, len(ranking))
	for _, r := range ranking {
		g.prevPositions[r.PlayerID] = r.Position
	}
}

func (g *Game) rankOfLocked(playerID string) int {
	for _, r := range g.rankingLocked() {
		if r.PlayerID == playerID {
			return r.Position
		}
	}
	return 0
}

func (g *Game) stopTimerLocked() {
	if g.timerStop != nil {
		close(g.timerStop)
		g.timerStop = nil
	}
}
