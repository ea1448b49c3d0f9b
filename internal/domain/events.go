package domain

// EventType names every outbound notification the coordinator can emit. The
// gateway serializes events verbatim as {type, payload} envelopes.
type EventType string

const (
	EventStateSnapshot         EventType = "state-snapshot"
	EventGameCreated           EventType = "game-created"
	EventPlayerJoined          EventType = "player-joined"
	EventPlayerLeft            EventType = "player-left"
	EventPlayerRemoved         EventType = "player-removed"
	EventQuestionStarted       EventType = "question-started"
	EventTimerTick             EventType = "timer-tick"
	EventAnsweredCount         EventType = "answered-count-update"
	EventAnswerDetail          EventType = "answer-detail"
	EventAnswerResult          EventType = "answer-result"
	EventQuestionEnded         EventType = "question-ended"
	EventScoreUpdate           EventType = "score-update"
	EventScoreboardShown       EventType = "scoreboard-shown"
	EventNextQuestionPreview   EventType = "next-question-preview"
	EventGameFinished          EventType = "game-finished"
	EventGameCancelled         EventType = "game-cancelled"
	EventAdmissionRequested    EventType = "admission-requested"
	EventAdmissionStatusChange EventType = "admission-status-changed"
	EventPowerUpResult         EventType = "power-up-result"
	EventPreloadProgress       EventType = "preload-progress"
	EventPlayerView            EventType = "player-view"
	EventViewsRequested        EventType = "views-requested"
	EventError                 EventType = "error"
)

// Event is one outbound notification plus its wire payload.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// AnswerView is the player-visible form of an answer: never carries
// correctness.
type AnswerView struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// QuestionView is the broadcast form of a question or section.
type QuestionView struct {
	ID             string       `json:"id"`
	Text           string       `json:"text"`
	Image          string       `json:"image,omitempty"`
	Hint           string       `json:"hint,omitempty"`
	Type           QuestionType `json:"type"`
	TimeLimitSec   int          `json:"timeLimitSec"`
	Points         int          `json:"points"`
	Answers        []AnswerView `json:"answers,omitempty"`
	QuestionNumber int          `json:"questionNumber"` // sections report 0
	TotalQuestions int          `json:"totalQuestions"`
	EasterEgg      *EasterEgg   `json:"easterEgg,omitempty"`
}

// HostQuestionView adds host-only detail on top of the public view.
type HostQuestionView struct {
	QuestionView
	Notes            string   `json:"notes,omitempty"`
	CorrectAnswerIDs []string `json:"correctAnswerIds"`
}

// TickPayload carries the remaining seconds of the running question.
type TickPayload struct {
	QuestionID   string `json:"questionId"`
	RemainingSec int    `json:"remainingSec"`
}

// AnsweredCountPayload is the anonymized progress indicator.
type AnsweredCountPayload struct {
	QuestionID string `json:"questionId"`
	Answered   int    `json:"answered"`
	Eligible   int    `json:"eligible"`
}

// AnswerDetailPayload is host-only: full identity plus choices and timing.
type AnswerDetailPayload struct {
	PlayerID    string   `json:"playerId"`
	PlayerName  string   `json:"playerName"`
	QuestionID  string   `json:"questionId"`
	AnswerIDs   []string `json:"answerIds"`
	TimeTakenMs int64    `json:"timeTakenMs"`
	Correct     bool     `json:"correct"`
	Points      int      `json:"points"`
}

// AnswerResultPayload is the private outcome sent to the submitting player.
type AnswerResultPayload struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	Points     int    `json:"points"`
	TotalScore int    `json:"totalScore"`
	Position   int    `json:"position"`
}

// RevealPayload closes a question: correct ids plus the answer distribution.
type RevealPayload struct {
	QuestionID       string         `json:"questionId"`
	CorrectAnswerIDs []string       `json:"correctAnswerIds"`
	Distribution     map[string]int `json:"distribution"`
}

// ScoreboardPhase tags a scoreboard as mid-game or final.
type ScoreboardPhase string

const (
	PhaseMid   ScoreboardPhase = "mid"
	PhaseFinal ScoreboardPhase = "final"
)

// ScoreboardPayload carries ranked scores plus the phase tag.
type ScoreboardPayload struct {
	Phase   ScoreboardPhase `json:"phase"`
	Ranking []RankedPlayer  `json:"ranking"`
}

// FinishPayload is the terminal broadcast: final ranking plus top three.
type FinishPayload struct {
	Ranking []RankedPlayer `json:"ranking"`
	Winners []RankedPlayer `json:"winners"`
}

// AdmissionPayload reports an admission status change to one player.
type AdmissionPayload struct {
	PlayerID  string    `json:"playerId"`
	Name      string    `json:"name"`
	Admission Admission `json:"admission"`
}

// SnapshotPayload reconstructs client state on join or reconnect. Remaining
// lists only the questions still ahead, for preloading.
type SnapshotPayload struct {
	Session   GameSession    `json:"session"`
	Players   []RankedPlayer `json:"players"`
	Question  *QuestionView  `json:"question,omitempty"`
	Remaining []QuestionView `json:"remaining,omitempty"`
}

// PowerUpResultPayload answers a use-power-up request.
type PowerUpResultPayload struct {
	QuestionID string      `json:"questionId"`
	Type       PowerUpType `json:"type"`
	// EliminatedAnswerIDs is set for fifty-fifty.
	EliminatedAnswerIDs []string `json:"eliminatedAnswerIds,omitempty"`
}

// PreloadProgressPayload relays a player's asset-preload state to the host.
type PreloadProgressPayload struct {
	PlayerID   string `json:"playerId"`
	Percentage int    `json:"percentage"`
	Status     string `json:"status"`
}

// PlayerViewPayload relays a player's rendered-view snapshot to the host.
type PlayerViewPayload struct {
	PlayerID string `json:"playerId"`
	View     any    `json:"view"`
}

// ErrorPayload is delivered only to the originating connection.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
