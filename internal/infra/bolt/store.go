// Package bolt offers a single-file durable fallback for session state when
// neither Redis nor Postgres is configured.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"livequiz-service/internal/domain"
)

const (
	bucketSessions    = "sessions"
	bucketPlayers     = "players"
	bucketSubmissions = "submissions"
	bucketEggClicks   = "egg_clicks"
)

// Store implements app.StateStore on top of a bbolt file.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the database file.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketSessions, bucketPlayers, bucketSubmissions, bucketEggClicks} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveSession(_ context.Context, session domain.GameSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSessions)).Put([]byte(session.Code), raw)
	})
}

func (s *Store) DeleteSession(_ context.Context, code string) error {
	prefix := []byte(code + ":")
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(bucketSessions)).Delete([]byte(code)); err != nil {
			return err
		}
		for _, name := range []string{bucketPlayers, bucketSubmissions, bucketEggClicks} {
			b := tx.Bucket([]byte(name))
			c := b.Cursor()
			for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *Store) SavePlayer(_ context.Context, player domain.Player) error {
	raw, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("marshal player: %w", err)
	}
	key := []byte(player.SessionCode + ":" + player.ID)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketPlayers)).Put(key, raw)
	})
}

func (s *Store) AddScore(_ context.Context, code, playerID string, points int) error {
	key := []byte(code + ":" + playerID)
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketPlayers))
		raw := b.Get(key)
		if raw == nil {
			return nil
		}
		var p domain.Player
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("unmarshal player: %w", err)
		}
		p.Score += points
		updated, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return b.Put(key, updated)
	})
}

func (s *Store) RecordSubmission(_ context.Context, code string, sub domain.AnswerSubmission) (bool, error) {
	raw, err := json.Marshal(sub)
	if err != nil {
		return false, fmt.Errorf("marshal submission: %w", err)
	}
	key := []byte(code + ":" + sub.PlayerID + ":" + sub.QuestionID)
	created := false
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketSubmissions))
		if b.Get(key) != nil {
			return nil
		}
		created = true
		return b.Put(key, raw)
	})
	return created, err
}

func (s *Store) RecordEggClick(_ context.Context, code, playerID, questionID string) (bool, error) {
	key := []byte(code + ":" + playerID + ":" + questionID)
	created := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketEggClicks))
		if b.Get(key) != nil {
			return nil
		}
		created = true
		return b.Put(key, []byte("1"))
	})
	return created, err
}

func (s *Store) LoadSession(_ context.Context, code string) (domain.GameSession, []domain.Player, error) {
	var session domain.GameSession
	var players []domain.Player
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(bucketSessions)).Get([]byte(code))
		if raw == nil {
			return domain.ErrSessionNotFound
		}
		if err := json.Unmarshal(raw, &session); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}

		prefix := []byte(code + ":")
		c := tx.Bucket([]byte(bucketPlayers)).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var p domain.Player
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("unmarshal player: %w", err)
			}
			players = append(players, p)
		}
		return nil
	})
	if err != nil {
		return domain.GameSession{}, nil, err
	}
	return session, players, nil
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}
