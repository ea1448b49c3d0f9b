package app

import (
	"context"
	"errors"
	"time"

	"livequiz-service/internal/broadcast"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/logging"
)

const codeRetries = 10

// Coordinator owns every live game session in this process. All mutating
// operations for one session code are serialized through that game's mutex;
// different sessions run fully independently.
type Coordinator struct {
	games    GameRegistry
	quizzes  QuizRepository
	store    StateStore
	hub      *broadcast.Hub
	archiver SessionArchiver

	clock   func() time.Time
	tick    time.Duration
	codeLen int
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithClock injects a deterministic clock for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithTickInterval shrinks the countdown resolution for tests. Production
// runs at one second per remaining unit.
func WithTickInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.tick = d }
}

// WithCodeLength overrides the generated session-code length.
func WithCodeLength(n int) Option {
	return func(c *Coordinator) { c.codeLen = n }
}

// WithArchiver attaches a sink for finished sessions.
func WithArchiver(a SessionArchiver) Option {
	return func(c *Coordinator) { c.archiver = a }
}

func NewCoordinator(games GameRegistry, quizzes QuizRepository, store StateStore, hub *broadcast.Hub, opts ...Option) *Coordinator {
	c := &Coordinator{
		games:   games,
		quizzes: quizzes,
		store:   store,
		hub:     hub,
		clock:   time.Now,
		tick:    time.Second,
		codeLen: defaultCodeLength,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// game resolves a live session by code.
func (c *Coordinator) game(code string) (*Game, error) {
	g, ok := c.games.Get(NormalizeCode(code))
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return g, nil
}

// persist records the outcome of a best-effort durability write. Failures are
// logged and counted but never interrupt the live game. Callers hold g.mu.
func (c *Coordinator) persist(ctx context.Context, g *Game, op string, err error) {
	if err == nil {
		return
	}
	g.persistFailures++
	logging.FromContext(ctx).Warnw("state store write dropped",
		"op", op, "code", g.session.Code, "dropped", g.persistFailures, "error", err)
}

// CreateGame provisions a new session in WAITING with a fresh unique code.
func (c *Coordinator) CreateGame(ctx context.Context, quizID string, autoAdmit bool) (domain.GameSession, error) {
	if _, err := c.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.GameSession{}, err
	}

	var code string
	for i := 0; i < codeRetries; i++ {
		candidate := newCode(c.codeLen)
		if !c.games.Exists(candidate) {
			code = candidate
			break
		}
	}
	if code == "" {
		return domain.GameSession{}, domain.ErrInvalidTransition
	}

	session := domain.GameSession{
		Code:         code,
		QuizID:       quizID,
		Status:       domain.StatusWaiting,
		CurrentIndex: -1,
		AutoAdmit:    autoAdmit,
		CreatedAt:    c.clock(),
	}
	g := newGame(session, c.clock)
	c.games.Put(code, g)

	g.mu.Lock()
	c.persist(ctx, g, "save session", c.store.SaveSession(ctx, session))
	g.mu.Unlock()

	logging.FromContext(ctx).Infow("game created", "code", code, "quiz", quizID)
	return session, nil
}

// HostAttach binds a host connection to a session and hands back the current
// state so the control surface can render.
func (c *Coordinator) HostAttach(ctx context.Context, code, connID string) error {
	g, err := c.game(code)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.hostConns[connID] = struct{}{}
	c.hub.Join(g.session.Code, connID, broadcast.GroupAll, broadcast.GroupHost)
	c.hub.Direct(g.session.Code, connID, domain.Event{Type: domain.EventStateSnapshot, Payload: g.snapshotLocked()})
	return nil
}

// Start moves a WAITING session with at least one admitted player into play
// and advances to the first question.
func (c *Coordinator) Start(ctx context.Context, code string) error {
	g, err := c.game(code)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session.Status != domain.StatusWaiting {
		return domain.ErrInvalidTransition
	}
	if g.admittedCountLocked() == 0 {
		return domain.ErrNoPlayers
	}

	quiz, err := c.quizzes.GetQuiz(ctx, g.session.QuizID)
	if err != nil {
		return err
	}
	if len(quiz.Questions) == 0 {
		return domain.ErrQuizNotFound
	}
	g.quiz = quiz
	g.session.Status = domain.StatusActive
	c.persist(ctx, g, "save session", c.store.SaveSession(ctx, g.session))

	logging.FromContext(ctx).Infow("game started", "code", g.session.Code, "questions", len(quiz.Questions))
	c.advanceLocked(ctx, g)
	return nil
}

// Advance moves to the next question or section. Valid for the host from
// REVEALING or SCOREBOARD; the coordinator also calls it internally right
// after start.
func (c *Coordinator) Advance(ctx context.Context, code string) error {
	g, err := c.game(code)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.session.Status {
	case domain.StatusRevealing, domain.StatusScoreboard, domain.StatusSection:
		c.advanceLocked(ctx, g)
		return nil
	default:
		return domain.ErrInvalidTransition
	}
}

func (c *Coordinator) advanceLocked(ctx context.Context, g *Game) {
	g.session.CurrentIndex++
	if g.session.CurrentIndex >= len(g.quiz.Questions) {
		c.endGameLocked(ctx, g)
		return
	}

	idx := g.session.CurrentIndex
	q := g.quiz.Questions[idx]
	g.lastReveal = nil

	if q.IsScored() {
		g.session.Status = domain.StatusQuestion
		g.session.QuestionStartedAt = g.now()
		g.ledger[q.ID] = make(map[string]*domain.AnswerSubmission)
	} else {
		g.session.Status = domain.StatusSection
	}
	c.persist(ctx, g, "save session", c.store.SaveSession(ctx, g.session))

	code := g.session.Code
	c.hub.Publish(code, broadcast.GroupPlayers, domain.Event{Type: domain.EventQuestionStarted, Payload: g.publicQuestionViewLocked(idx)})
	c.hub.Publish(code, broadcast.GroupHost, domain.Event{Type: domain.EventQuestionStarted, Payload: g.hostQuestionViewLocked(idx)})

	if q.IsScored() && q.TimeLimitSec > 0 {
		c.hub.Publish(code, broadcast.GroupAll, domain.Event{Type: domain.EventTimerTick, Payload: domain.TickPayload{
			QuestionID:   q.ID,
			RemainingSec: q.TimeLimitSec,
		}})
		c.startTimerLocked(g, q.ID, q.TimeLimitSec)
	}
}

// startTimerLocked runs the countdown for one question. A stale timer firing
// after the session moved on is a no-op: the goroutine re-checks status and
// question identity under the game lock on every tick.
func (c *Coordinator) startTimerLocked(g *Game, questionID string, seconds int) {
	stop := make(chan struct{})
	g.timerStop = stop
	code := g.session.Code

	go func() {
		remaining := seconds
		ticker := time.NewTicker(c.tick)
		defer ticker.Stop()
		ctx := context.Background()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				g.mu.Lock()
				q := g.currentQuestionLocked()
				if g.session.Status != domain.StatusQuestion || q == nil || q.ID != questionID || g.timerStop != stop {
					g.mu.Unlock()
					return
				}
				remaining--
				c.hub.Publish(code, broadcast.GroupAll, domain.Event{Type: domain.EventTimerTick, Payload: domain.TickPayload{
					QuestionID:   questionID,
					RemainingSec: max(remaining, 0),
				}})
				if remaining <= 0 {
					c.endQuestionLocked(ctx, g)
					g.mu.Unlock()
					return
				}
				g.mu.Unlock()
			}
		}
	}()
}

// SkipTimer ends the running question immediately.
func (c *Coordinator) SkipTimer(ctx context.Context, code string) error {
	g, err := c.game(code)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session.Status != domain.StatusQuestion {
		return domain.ErrInvalidTransition
	}
	c.endQuestionLocked(ctx, g)
	return nil
}

// endQuestionLocked closes the running question: reveal, scores, host
// preview. Guarded by status so a racing skip and timer expiry end the
// question exactly once.
func (c *Coordinator) endQuestionLocked(ctx context.Context, g *Game) {
	if g.session.Status != domain.StatusQuestion {
		return
	}
	g.stopTimerLocked()

	q := g.currentQuestionLocked()
	if q == nil {
		logging.FromContext(ctx).Warnw("question pointer out of range at end", "code", g.session.Code, "index", g.session.CurrentIndex)
		return
	}

	distribution := make(map[string]int)
	for _, sub := range g.ledger[q.ID] {
		for _, id := range sub.AnswerIDs {
			distribution[id]++
		}
	}

	g.session.Status = domain.StatusRevealing
	c.persist(ctx, g, "save session", c.store.SaveSession(ctx, g.session))

	reveal := &domain.RevealPayload{
		QuestionID:       q.ID,
		CorrectAnswerIDs: q.CorrectAnswerIDs(),
		Distribution:     distribution,
	}
	g.lastReveal = reveal

	code := g.session.Code
	c.hub.Publish(code, broadcast.GroupAll, domain.Event{Type: domain.EventQuestionEnded, Payload: reveal})
	c.hub.Publish(code, broadcast.GroupAll, domain.Event{Type: domain.EventScoreUpdate, Payload: g.rankingLocked()})

	// Host gets the next item ahead of everyone, or a null preview when the
	// game is about to end.
	var preview any
	if next := g.session.CurrentIndex + 1; next < len(g.quiz.Questions) {
		preview = g.hostQuestionViewLocked(next)
	}
	c.hub.Publish(code, broadcast.GroupHost, domain.Event{Type: domain.EventNextQuestionPreview, Payload: preview})
}

// RevealAnswers re-broadcasts the already-computed reveal while the session
// sits in REVEALING. It never ends a question itself.
func (c *Coordinator) RevealAnswers(ctx context.Context, code string) error {
	g, err := c.game(code)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session.Status != domain.StatusRevealing || g.lastReveal == nil {
		return domain.ErrInvalidTransition
	}
	c.hub.Publish(g.session.Code, broadcast.GroupAll, domain.Event{Type: domain.EventQuestionEnded, Payload: g.lastReveal})
	return nil
}

// ShowScoreboard broadcasts ranked scores tagged mid or final and records the
// ranking as the baseline for the next scoreboard's deltas.
func (c *Coordinator) ShowScoreboard(ctx context.Context, code string) error {
	g, err := c.game(code)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session.Status != domain.StatusRevealing {
		return domain.ErrInvalidTransition
	}
	g.session.Status = domain.StatusScoreboard
	c.persist(ctx, g, "save session", c.store.SaveSession(ctx, g.session))

	phase := domain.PhaseMid
	if !g.scoredQuestionsRemainLocked() {
		phase = domain.PhaseFinal
	}
	ranking := g.rankingLocked()
	c.hub.Publish(g.session.Code, broadcast.GroupAll, domain.Event{Type: domain.EventScoreboardShown, Payload: domain.ScoreboardPayload{
		Phase:   phase,
		Ranking: ranking,
	}})
	g.snapshotRankingBaselineLocked(ranking)
	return nil
}

// EndGame finishes the session, broadcasts the final ranking plus winners and
// releases the in-memory state. Host-triggered early end uses the same path
// as running out of questions.
func (c *Coordinator) EndGame(ctx context.Context, code string) error {
	g, err := c.game(code)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.session.InProgress() {
		return domain.ErrInvalidTransition
	}
	c.endGameLocked(ctx, g)
	return nil
}

func (c *Coordinator) endGameLocked(ctx context.Context, g *Game) {
	g.stopTimerLocked()

	now := g.now()
	g.session.Status = domain.StatusFinished
	g.session.EndedAt = &now
	c.persist(ctx, g, "save session", c.store.SaveSession(ctx, g.session))

	ranking := g.rankingLocked()
	winners := ranking[:min(3, len(ranking))]
	c.hub.Publish(g.session.Code, broadcast.GroupAll, domain.Event{Type: domain.EventGameFinished, Payload: domain.FinishPayload{
		Ranking: ranking,
		Winners: winners,
	}})

	if c.archiver != nil {
		players := make([]domain.Player, 0, len(g.players))
		for _, p := range g.players {
			players = append(players, *p)
		}
		if err := c.archiver.Archive(ctx, g.session, players); err != nil {
			logging.FromContext(ctx).Warnw("session archive failed", "code", g.session.Code, "error", err)
		}
	}

	logging.FromContext(ctx).Infow("game finished", "code", g.session.Code, "players", len(g.players))
	c.games.Delete(g.session.Code)
}

// Cancel deletes a session that never started. Rejected once the game has
// progressed past WAITING.
func (c *Coordinator) Cancel(ctx context.Context, code string) error {
	g, err := c.game(code)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session.Status != domain.StatusWaiting {
		return domain.ErrInvalidTransition
	}

	c.persist(ctx, g, "delete session", c.store.DeleteSession(ctx, g.session.Code))
	c.hub.Publish(g.session.Code, broadcast.GroupAll, domain.Event{Type: domain.EventGameCancelled})
	logging.FromContext(ctx).Infow("game cancelled", "code", g.session.Code)
	c.games.Delete(g.session.Code)
	return nil
}

// Snapshot returns the current session state, falling back to durable
// storage for sessions whose in-memory state has been released.
func (c *Coordinator) Snapshot(ctx context.Context, code string) (domain.SnapshotPayload, error) {
	if g, err := c.game(code); err == nil {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.snapshotLocked(), nil
	}

	session, players, err := c.store.LoadSession(ctx, NormalizeCode(code))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.SnapshotPayload{}, domain.ErrSessionNotFound
	}
	if err != nil {
		logging.FromContext(ctx).Warnw("session load failed", "code", code, "error", err)
		return domain.SnapshotPayload{}, err
	}
	snap := domain.SnapshotPayload{Session: session}
	for _, p := range players {
		if p.Admission != domain.AdmissionAdmitted {
			continue
		}
		snap.Players = append(snap.Players, domain.RankedPlayer{
			PlayerID: p.ID,
			Name:     p.Name,
			Avatar:   p.Avatar,
			Score:    p.Score,
		})
	}
	sortRanking(snap.Players)
	return snap, nil
}

// Disconnect flips the player behind a dropped connection to inactive. Host
// connections just unregister.
func (c *Coordinator) Disconnect(ctx context.Context, code, connID string) {
	g, err := c.game(code)
	if err != nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.hostConns[connID]; ok {
		delete(g.hostConns, connID)
		return
	}
	p, ok := g.playerByConnLocked(connID)
	if !ok {
		return
	}
	delete(g.conns, p.ID)
	p.Active = false
	c.persist(ctx, g, "save player", c.store.SavePlayer(ctx, *p))
	c.hub.Publish(g.session.Code, broadcast.GroupAll, domain.Event{Type: domain.EventPlayerLeft, Payload: domain.AdmissionPayload{
		PlayerID:  p.ID,
		Name:      p.Name,
		Admission: p.Admission,
	}})
}

// scoredQuestionsRemainLocked reports whether any scored question sits after
// the current pointer.
func (g *Game) scoredQuestionsRemainLocked() bool {
	for i := g.session.CurrentIndex + 1; i < len(g.quiz.Questions); i++ {
		if g.quiz.Questions[i].IsScored() {
			return true
		}
	}
	return false
}
