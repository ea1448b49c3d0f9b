package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a session code does not resolve.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrPlayerNotFound is returned when a player id is unknown to the session.
	ErrPlayerNotFound = errors.New("player not found in session")
	// ErrInvalidTransition is returned for actions attempted from a status
	// that does not permit them. No partial mutation occurs.
	ErrInvalidTransition = errors.New("action not allowed in current session status")
	// ErrAdmissionDenied is returned when a refused player tries to rejoin.
	ErrAdmissionDenied = errors.New("admission denied")
	// ErrAlreadyAnswered marks a duplicate submission; callers treat it as a
	// quiet ack rather than a failure.
	ErrAlreadyAnswered = errors.New("already answered")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question id is not current.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoPlayers rejects starting a game with an empty lobby.
	ErrNoPlayers = errors.New("cannot start without admitted players")
	// ErrPowerUpSpent rejects a second power-up on the same question.
	ErrPowerUpSpent = errors.New("power-up already used for this question")
)
