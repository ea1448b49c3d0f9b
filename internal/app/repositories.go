package app

import (
	"context"

	"livequiz-service/internal/domain"
)

// GameRegistry holds the live coordinator state per session code. Only one
// *Game may exist per code at a time.
type GameRegistry interface {
	Put(code string, game *Game)
	Get(code string) (*Game, bool)
	Delete(code string)
	Exists(code string) bool
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// StateStore durably mirrors live session state. Writes are best-effort from
// the coordinator's point of view: failures are logged and the live game
// proceeds on in-memory state.
type StateStore interface {
	SaveSession(ctx context.Context, session domain.GameSession) error
	DeleteSession(ctx context.Context, code string) error
	SavePlayer(ctx context.Context, player domain.Player) error
	// AddScore atomically increments a player's persisted score.
	AddScore(ctx context.Context, code, playerID string, points int) error
	// RecordSubmission stores a submission record, returning false when one
	// already exists for the (player, question) pair.
	RecordSubmission(ctx context.Context, code string, sub domain.AnswerSubmission) (bool, error)
	// RecordEggClick idempotently marks an easter-egg click, returning false
	// on replay.
	RecordEggClick(ctx context.Context, code, playerID, questionID string) (bool, error)
	// LoadSession recovers a session and its players, for queries after the
	// in-memory state has been released.
	LoadSession(ctx context.Context, code string) (domain.GameSession, []domain.Player, error)
}

// SessionArchiver receives finished sessions for offline analytics. Optional;
// a nil archiver disables archiving.
type SessionArchiver interface {
	Archive(ctx context.Context, session domain.GameSession, players []domain.Player) error
}
