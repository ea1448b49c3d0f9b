package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"livequiz-service/internal/domain"
)

// SessionArchiver keeps a permanent record of finished sessions. The live
// state stores are ephemeral; this is what survives for history and stats.
type SessionArchiver struct {
	pool *pgxpool.Pool
}

func NewSessionArchiver(pool *pgxpool.Pool) *SessionArchiver {
	return &SessionArchiver{pool: pool}
}

type archivedPlayer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Score  int    `json:"score"`
}

func (a *SessionArchiver) Archive(ctx context.Context, session domain.GameSession, players []domain.Player) error {
	records := make([]archivedPlayer, 0, len(players))
	for _, p := range players {
		if p.Admission != domain.AdmissionAdmitted {
			continue
		}
		records = append(records, archivedPlayer{
			ID:     p.ID,
			Name:   p.Name,
			Avatar: p.Avatar,
			Score:  p.Score,
		})
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal players: %w", err)
	}

	endedAt := time.Now().UTC()
	if session.EndedAt != nil {
		endedAt = session.EndedAt.UTC()
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO game_sessions (code, quiz_id, status, player_count, players, created_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code, created_at) DO UPDATE SET
			status = EXCLUDED.status,
			player_count = EXCLUDED.player_count,
			players = EXCLUDED.players,
			ended_at = EXCLUDED.ended_at`,
		session.Code, session.QuizID, string(session.Status),
		len(records), data, session.CreatedAt.UTC(), endedAt)
	if err != nil {
		return fmt.Errorf("archive session %s: %w", session.Code, err)
	}
	return nil
}
