package domain

import "time"

// SessionStatus is the lifecycle phase of a game session.
type SessionStatus string

const (
	StatusWaiting    SessionStatus = "waiting"
	StatusActive     SessionStatus = "active"
	StatusQuestion   SessionStatus = "question"
	StatusSection    SessionStatus = "section"
	StatusRevealing  SessionStatus = "revealing"
	StatusScoreboard SessionStatus = "scoreboard"
	StatusFinished   SessionStatus = "finished"
)

// Admission is the gate a player sits behind until the host lets them in.
type Admission string

const (
	AdmissionPending  Admission = "pending"
	AdmissionAdmitted Admission = "admitted"
	AdmissionRefused  Admission = "refused"
)

// QuestionType distinguishes scored questions from divider sections.
type QuestionType string

const (
	SingleSelect QuestionType = "single_select"
	MultiSelect  QuestionType = "multi_select"
	Section      QuestionType = "section"
)

// GameSession is one hosted game instance, addressed by its short code.
type GameSession struct {
	Code              string        `json:"code"`
	QuizID            string        `json:"quizId"`
	Status            SessionStatus `json:"status"`
	CurrentIndex      int           `json:"currentIndex"` // -1 before start
	QuestionStartedAt time.Time     `json:"questionStartedAt,omitempty"`
	AutoAdmit         bool          `json:"autoAdmit"`
	CreatedAt         time.Time     `json:"createdAt"`
	EndedAt           *time.Time    `json:"endedAt,omitempty"`
}

// InProgress reports whether the session has left the lobby but not finished.
func (s GameSession) InProgress() bool {
	return s.Status != StatusWaiting && s.Status != StatusFinished
}

// Player belongs to exactly one session; (session, name) is unique
// case-insensitively.
type Player struct {
	ID          string     `json:"id"`
	SessionCode string     `json:"sessionCode"`
	Name        string     `json:"name"`
	Admission   Admission  `json:"admission"`
	Score       int        `json:"score"`
	Active      bool       `json:"active"`
	Avatar      string     `json:"avatar"`
	Language    string     `json:"language,omitempty"`
	RemovedAt   *time.Time `json:"removedAt,omitempty"`
}

// EasterEgg is an optional per-question side channel. Clicking it may suspend
// scoring for that player on that question.
type EasterEgg struct {
	ButtonText      string `json:"buttonText"`
	URL             string `json:"url"`
	DisablesScoring bool   `json:"disablesScoring"`
}

// Answer is one option of a question. Correctness is only serialized for
// storage; wire payloads go through AnswerView, which strips it.
type Answer struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Image   string `json:"image,omitempty"`
	Correct bool   `json:"correct"`
}

// Question is one ordered item of a quiz. Sections carry no timer, answers or
// points and are excluded from the player-visible counter.
type Question struct {
	ID           string       `json:"id"`
	Text         string       `json:"text"`
	Image        string       `json:"image,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	Hint         string       `json:"hint,omitempty"`
	Type         QuestionType `json:"type"`
	TimeLimitSec int          `json:"timeLimitSec"`
	Points       int          `json:"points"` // defaults to 100 if zero
	Answers      []Answer     `json:"answers"`
	EasterEgg    *EasterEgg   `json:"easterEgg,omitempty"`
}

// IsScored reports whether the question counts toward the score.
func (q Question) IsScored() bool {
	return q.Type != Section
}

// CorrectAnswerIDs returns the ids of all answers flagged correct.
func (q Question) CorrectAnswerIDs() []string {
	var ids []string
	for _, a := range q.Answers {
		if a.Correct {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// Quiz is the immutable question list a session is played from.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// ScoredQuestionCount counts the questions that appear in the player-visible
// counter.
func (q Quiz) ScoredQuestionCount() int {
	n := 0
	for _, question := range q.Questions {
		if question.IsScored() {
			n++
		}
	}
	return n
}

// AnswerSubmission records one player's answer to one question. At most one
// exists per (player, question).
type AnswerSubmission struct {
	PlayerID    string    `json:"playerId"`
	QuestionID  string    `json:"questionId"`
	AnswerIDs   []string  `json:"answerIds"`
	TimeTakenMs int64     `json:"timeTakenMs"`
	Correct     bool      `json:"correct"`
	Points      int       `json:"points"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// RankedPlayer is a scoreboard row. Delta is positions climbed since the
// previous scoreboard (negative when dropped).
type RankedPlayer struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	Score    int    `json:"score"`
	Position int    `json:"position"`
	Delta    int    `json:"delta"`
}

// PowerUpType enumerates the supported power-ups.
type PowerUpType string

const (
	PowerUpFiftyFifty   PowerUpType = "fifty-fifty"
	PowerUpDoublePoints PowerUpType = "double-points"
)
