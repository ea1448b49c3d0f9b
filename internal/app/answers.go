package app

import (
	"context"
	"fmt"

	"github.com/valyala/fastrand"

	"livequiz-service/internal/broadcast"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/logging"
	"livequiz-service/internal/scoring"
)

// SubmitAnswer records a player's answer for the running question. At most
// one submission per (player, question) is accepted; replays come back as
// ErrAlreadyAnswered and change nothing.
func (c *Coordinator) SubmitAnswer(ctx context.Context, code, playerID, questionID string, answerIDs []string) (domain.AnswerResultPayload, error) {
	g, err := c.game(code)
	if err != nil {
		return domain.AnswerResultPayload{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session.Status != domain.StatusQuestion {
		return domain.AnswerResultPayload{}, domain.ErrInvalidTransition
	}
	q := g.currentQuestionLocked()
	if q == nil || q.ID != questionID {
		return domain.AnswerResultPayload{}, domain.ErrQuestionNotFound
	}
	p, ok := g.players[playerID]
	if !ok || p.Admission != domain.AdmissionAdmitted || !p.Active {
		return domain.AnswerResultPayload{}, domain.ErrPlayerNotFound
	}
	entries := g.ledger[q.ID]
	if _, dup := entries[playerID]; dup {
		return domain.AnswerResultPayload{}, domain.ErrAlreadyAnswered
	}

	now := g.now()
	timeTaken := now.Sub(g.session.QuestionStartedAt).Milliseconds()
	if timeTaken < 0 {
		timeTaken = 0
	}
	limitMs := int64(q.TimeLimitSec) * 1000

	correctIDs := q.CorrectAnswerIDs()
	base := questionPoints(*q)
	var points int
	var correct bool
	switch q.Type {
	case domain.MultiSelect:
		correct = len(correctIDs) > 0 && scoring.FullyCorrect(answerIDs, correctIDs)
		points = scoring.MultiSelect(base, limitMs, timeTaken, answerIDs, correctIDs)
	default:
		correct = len(correctIDs) > 0 && scoring.FullyCorrect(answerIDs, correctIDs)
		points = scoring.SingleSelect(base, limitMs, timeTaken, correct)
	}
	if g.eggClicks[q.ID][playerID] && q.EasterEgg != nil && q.EasterEgg.DisablesScoring {
		points = 0
	}
	if g.doublePoints[q.ID][playerID] {
		points *= 2
	}

	sub := &domain.AnswerSubmission{
		PlayerID:    playerID,
		QuestionID:  q.ID,
		AnswerIDs:   answerIDs,
		TimeTakenMs: timeTaken,
		Correct:     correct,
		Points:      points,
		SubmittedAt: now,
	}
	entries[playerID] = sub
	p.Score += points

	// The durable mirror double-checks uniqueness so a replay after a process
	// restart cannot apply the score twice.
	created, err := c.store.RecordSubmission(ctx, g.session.Code, *sub)
	c.persist(ctx, g, "record submission", err)
	if err == nil && created && points > 0 {
		c.persist(ctx, g, "add score", c.store.AddScore(ctx, g.session.Code, playerID, points))
	}

	sessionCode := g.session.Code
	c.hub.Publish(sessionCode, broadcast.GroupAll, domain.Event{Type: domain.EventAnsweredCount, Payload: domain.AnsweredCountPayload{
		QuestionID: q.ID,
		Answered:   len(entries),
		Eligible:   g.eligibleCountLocked(),
	}})
	c.hub.Publish(sessionCode, broadcast.GroupHost, domain.Event{Type: domain.EventAnswerDetail, Payload: domain.AnswerDetailPayload{
		PlayerID:    playerID,
		PlayerName:  p.Name,
		QuestionID:  q.ID,
		AnswerIDs:   answerIDs,
		TimeTakenMs: timeTaken,
		Correct:     correct,
		Points:      points,
	}})

	result := domain.AnswerResultPayload{
		QuestionID: q.ID,
		Correct:    correct,
		Points:     points,
		TotalScore: p.Score,
		Position:   g.rankOfLocked(playerID),
	}
	if conn, connected := g.conns[playerID]; connected {
		c.hub.Direct(sessionCode, conn, domain.Event{Type: domain.EventAnswerResult, Payload: result})
	}
	return result, nil
}

// EasterEggClick idempotently records that a player clicked the question's
// side-channel button. When the egg disables scoring, the player's submission
// for this question scores zero.
func (c *Coordinator) EasterEggClick(ctx context.Context, code, playerID, questionID string) error {
	g, err := c.game(code)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session.Status != domain.StatusQuestion {
		return domain.ErrInvalidTransition
	}
	q := g.currentQuestionLocked()
	if q == nil || q.ID != questionID || q.EasterEgg == nil {
		return domain.ErrQuestionNotFound
	}
	if _, ok := g.players[playerID]; !ok {
		return domain.ErrPlayerNotFound
	}

	if g.eggClicks[q.ID] == nil {
		g.eggClicks[q.ID] = make(map[string]bool)
	}
	if g.eggClicks[q.ID][playerID] {
		return nil // replayed click, already counted
	}
	g.eggClicks[q.ID][playerID] = true

	_, err = c.store.RecordEggClick(ctx, g.session.Code, playerID, q.ID)
	c.persist(ctx, g, "record egg click", err)
	return nil
}

// UsePowerUp spends a player's one power-up for the running question. It must
// be used before answering.
func (c *Coordinator) UsePowerUp(ctx context.Context, code, playerID, questionID string, kind domain.PowerUpType, targetPlayerID string) (domain.PowerUpResultPayload, error) {
	g, err := c.game(code)
	if err != nil {
		return domain.PowerUpResultPayload{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session.Status != domain.StatusQuestion {
		return domain.PowerUpResultPayload{}, domain.ErrInvalidTransition
	}
	q := g.currentQuestionLocked()
	if q == nil || q.ID != questionID {
		return domain.PowerUpResultPayload{}, domain.ErrQuestionNotFound
	}
	p, ok := g.players[playerID]
	if !ok || p.Admission != domain.AdmissionAdmitted {
		return domain.PowerUpResultPayload{}, domain.ErrPlayerNotFound
	}
	if _, answered := g.ledger[q.ID][playerID]; answered {
		return domain.PowerUpResultPayload{}, domain.ErrAlreadyAnswered
	}
	if _, spent := g.powerUps[q.ID][playerID]; spent {
		return domain.PowerUpResultPayload{}, domain.ErrPowerUpSpent
	}

	result := domain.PowerUpResultPayload{QuestionID: q.ID, Type: kind}
	switch kind {
	case domain.PowerUpFiftyFifty:
		result.EliminatedAnswerIDs = pickWrongAnswers(*q, 2)
	case domain.PowerUpDoublePoints:
		if g.doublePoints[q.ID] == nil {
			g.doublePoints[q.ID] = make(map[string]bool)
		}
		g.doublePoints[q.ID][playerID] = true
	default:
		return domain.PowerUpResultPayload{}, fmt.Errorf("unknown power-up type %q", kind)
	}

	if g.powerUps[q.ID] == nil {
		g.powerUps[q.ID] = make(map[string]domain.PowerUpType)
	}
	g.powerUps[q.ID][playerID] = kind

	if conn, connected := g.conns[playerID]; connected {
		c.hub.Direct(g.session.Code, conn, domain.Event{Type: domain.EventPowerUpResult, Payload: result})
	}
	logging.FromContext(ctx).Debugw("power-up used", "code", g.session.Code, "player", p.Name, "type", kind)
	return result, nil
}

// pickWrongAnswers returns up to n incorrect answer ids, randomly chosen.
func pickWrongAnswers(q domain.Question, n int) []string {
	var wrong []string
	for _, a := range q.Answers {
		if !a.Correct {
			wrong = append(wrong, a.ID)
		}
	}
	for len(wrong) > n {
		i := int(fastrand.Uint32n(uint32(len(wrong))))
		wrong = append(wrong[:i], wrong[i+1:]...)
	}
	return wrong
}

// PreloadProgress relays a player's asset-preload state to the host.
func (c *Coordinator) PreloadProgress(ctx context.Context, code, playerID string, percentage int, status string) error {
	g, err := c.game(code)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.players[playerID]; !ok {
		return domain.ErrPlayerNotFound
	}
	c.hub.Publish(g.session.Code, broadcast.GroupHost, domain.Event{Type: domain.EventPreloadProgress, Payload: domain.PreloadProgressPayload{
		PlayerID:   playerID,
		Percentage: percentage,
		Status:     status,
	}})
	return nil
}

// ViewUpdate relays a player's rendered-view snapshot to the host.
func (c *Coordinator) ViewUpdate(ctx context.Context, code, playerID string, view any) error {
	g, err := c.game(code)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.players[playerID]; !ok {
		return domain.ErrPlayerNotFound
	}
	c.hub.Publish(g.session.Code, broadcast.GroupHost, domain.Event{Type: domain.EventPlayerView, Payload: domain.PlayerViewPayload{
		PlayerID: playerID,
		View:     view,
	}})
	return nil
}

// RequestPlayerViews asks every player client to push a view snapshot.
func (c *Coordinator) RequestPlayerViews(ctx context.Context, code string) error {
	g, err := c.game(code)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	c.hub.Publish(g.session.Code, broadcast.GroupPlayers, domain.Event{Type: domain.EventViewsRequested})
	return nil
}
