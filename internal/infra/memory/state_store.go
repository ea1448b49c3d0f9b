package memory

import (
	"context"
	"sync"

	"livequiz-service/internal/domain"
)

// StateStore is the in-memory implementation of app.StateStore, used when no
// durable backend is configured and as the reference for adapter tests.
type StateStore struct {
	mu          sync.RWMutex
	sessions    map[string]domain.GameSession
	players     map[string]map[string]domain.Player // code -> playerID
	submissions map[string]map[string]domain.AnswerSubmission
	eggClicks   map[string]map[string]bool
}

func NewStateStore() *StateStore {
	return &StateStore{
		sessions:    make(map[string]domain.GameSession),
		players:     make(map[string]map[string]domain.Player),
		submissions: make(map[string]map[string]domain.AnswerSubmission),
		eggClicks:   make(map[string]map[string]bool),
	}
}

func (s *StateStore) SaveSession(_ context.Context, session domain.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Code] = session
	return nil
}

func (s *StateStore) DeleteSession(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, code)
	delete(s.players, code)
	delete(s.submissions, code)
	delete(s.eggClicks, code)
	return nil
}

func (s *StateStore) SavePlayer(_ context.Context, player domain.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := player.SessionCode
	if s.players[code] == nil {
		s.players[code] = make(map[string]domain.Player)
	}
	s.players[code][player.ID] = player
	return nil
}

func (s *StateStore) AddScore(_ context.Context, code, playerID string, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[code][playerID]; ok {
		p.Score += points
		s.players[code][playerID] = p
	}
	return nil
}

func (s *StateStore) RecordSubmission(_ context.Context, code string, sub domain.AnswerSubmission) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sub.PlayerID + ":" + sub.QuestionID
	if s.submissions[code] == nil {
		s.submissions[code] = make(map[string]domain.AnswerSubmission)
	}
	if _, exists := s.submissions[code][key]; exists {
		return false, nil
	}
	s.submissions[code][key] = sub
	return true, nil
}

func (s *StateStore) RecordEggClick(_ context.Context, code, playerID, questionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := playerID + ":" + questionID
	if s.eggClicks[code] == nil {
		s.eggClicks[code] = make(map[string]bool)
	}
	if s.eggClicks[code][key] {
		return false, nil
	}
	s.eggClicks[code][key] = true
	return true, nil
}

func (s *StateStore) LoadSession(_ context.Context, code string) (domain.GameSession, []domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[code]
	if !ok {
		return domain.GameSession{}, nil, domain.ErrSessionNotFound
	}
	players := make([]domain.Player, 0, len(s.players[code]))
	for _, p := range s.players[code] {
		players = append(players, p)
	}
	return session, players, nil
}
