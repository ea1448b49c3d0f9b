package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"livequiz-service/internal/domain"
)

// SessionStore mirrors live session state into Redis. Layout per session:
//
//	game:{code}          JSON session record
//	game:{code}:players  hash playerID -> JSON player
//	game:{code}:scores   hash playerID -> score (HIncrBy)
//	game:{code}:subs     hash playerID:questionID -> JSON submission (HSetNX)
//	game:{code}:eggs     hash playerID:questionID -> 1 (HSetNX)
//
// HSetNX makes submission and egg-click records create-once, so at-least-once
// delivery after a restart cannot double-apply points.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) SaveSession(ctx context.Context, session domain.GameSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.sessionKey(session.Code), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, code string) error {
	keys := []string{
		s.sessionKey(code),
		s.playersKey(code),
		s.scoresKey(code),
		s.subsKey(code),
		s.eggsKey(code),
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("del session keys: %w", err)
	}
	return nil
}

func (s *SessionStore) SavePlayer(ctx context.Context, player domain.Player) error {
	raw, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("marshal player: %w", err)
	}
	key := s.playersKey(player.SessionCode)
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, player.ID, raw)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hset player: %w", err)
	}
	return nil
}

func (s *SessionStore) AddScore(ctx context.Context, code, playerID string, points int) error {
	key := s.scoresKey(code)
	pipe := s.client.Pipeline()
	pipe.HIncrBy(ctx, key, playerID, int64(points))
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hincrby score: %w", err)
	}
	return nil
}

func (s *SessionStore) RecordSubmission(ctx context.Context, code string, sub domain.AnswerSubmission) (bool, error) {
	raw, err := json.Marshal(sub)
	if err != nil {
		return false, fmt.Errorf("marshal submission: %w", err)
	}
	created, err := s.client.HSetNX(ctx, s.subsKey(code), sub.PlayerID+":"+sub.QuestionID, raw).Result()
	if err != nil {
		return false, fmt.Errorf("hsetnx submission: %w", err)
	}
	if created && s.ttl > 0 {
		_ = s.client.Expire(ctx, s.subsKey(code), s.ttl).Err()
	}
	return created, nil
}

func (s *SessionStore) RecordEggClick(ctx context.Context, code, playerID, questionID string) (bool, error) {
	created, err := s.client.HSetNX(ctx, s.eggsKey(code), playerID+":"+questionID, "1").Result()
	if err != nil {
		return false, fmt.Errorf("hsetnx egg click: %w", err)
	}
	if created && s.ttl > 0 {
		_ = s.client.Expire(ctx, s.eggsKey(code), s.ttl).Err()
	}
	return created, nil
}

func (s *SessionStore) LoadSession(ctx context.Context, code string) (domain.GameSession, []domain.Player, error) {
	raw, err := s.client.Get(ctx, s.sessionKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.GameSession{}, nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.GameSession{}, nil, fmt.Errorf("get session: %w", err)
	}
	var session domain.GameSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.GameSession{}, nil, fmt.Errorf("unmarshal session: %w", err)
	}

	rows, err := s.client.HGetAll(ctx, s.playersKey(code)).Result()
	if err != nil {
		return domain.GameSession{}, nil, fmt.Errorf("hgetall players: %w", err)
	}
	scores, _ := s.client.HGetAll(ctx, s.scoresKey(code)).Result()

	players := make([]domain.Player, 0, len(rows))
	for id, value := range rows {
		var p domain.Player
		if err := json.Unmarshal([]byte(value), &p); err != nil {
			continue
		}
		// The scores hash is the atomic source of truth for points.
		if raw, ok := scores[id]; ok {
			if score, err := strconv.Atoi(raw); err == nil {
				p.Score = score
			}
		}
		players = append(players, p)
	}
	return session, players, nil
}

func (s *SessionStore) sessionKey(code string) string { return "game:" + code }
func (s *SessionStore) playersKey(code string) string { return "game:" + code + ":players" }
func (s *SessionStore) scoresKey(code string) string  { return "game:" + code + ":scores" }
func (s *SessionStore) subsKey(code string) string    { return "game:" + code + ":subs" }
func (s *SessionStore) eggsKey(code string) string    { return "game:" + code + ":eggs" }
