package app

import (
	"context"
	"sort"
	"strings"

	"github.com/enescakir/emoji"
	"github.com/google/uuid"

	"livequiz-service/internal/broadcast"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/logging"
)

var avatars = []emoji.Emoji{
	emoji.Robot,
	emoji.Alien,
	emoji.Unicorn,
	emoji.Flamingo,
	emoji.Dragon,
	emoji.Rocket,
	emoji.GameDie,
	emoji.Joystick,
	emoji.Guitar,
	emoji.Snail,
	emoji.Fire,
	emoji.Rainbow,
}

func avatarFor(n int) string {
	return avatars[n%len(avatars)].String()
}

// Join resolves a join request to one of: new player (admitted or pending
// per the auto-admit flag), pending re-attach, refused rejection, or
// admitted reconnect. playerID is the credential for reconnecting: a join
// that collides with an existing name without presenting that player's id is
// denied, not merged.
func (c *Coordinator) Join(ctx context.Context, code, connID, name, language, playerID string) (domain.Player, error) {
	g, err := c.game(code)
	if err != nil {
		return domain.Player{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Player{}, domain.ErrAdmissionDenied
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if playerID != "" {
		if p, ok := g.players[playerID]; ok {
			return c.rejoinLocked(ctx, g, p, connID, language)
		}
	}
	if _, taken := g.playerByNameLocked(name); taken {
		return domain.Player{}, domain.ErrAdmissionDenied
	}

	p := &domain.Player{
		ID:          uuid.NewString(),
		SessionCode: g.session.Code,
		Name:        name,
		Admission:   domain.AdmissionPending,
		Active:      false,
		Avatar:      avatarFor(len(g.players)),
		Language:    language,
	}
	if g.session.AutoAdmit {
		p.Admission = domain.AdmissionAdmitted
		p.Active = true
	}
	g.players[p.ID] = p
	g.names[strings.ToLower(name)] = p.ID
	g.conns[p.ID] = connID
	c.persist(ctx, g, "save player", c.store.SavePlayer(ctx, *p))

	if p.Admission == domain.AdmissionAdmitted {
		c.attachAdmittedLocked(g, p, connID)
	} else {
		c.notifyPendingLocked(g, p, connID)
	}
	logging.FromContext(ctx).Infow("player joined", "code", g.session.Code, "player", p.Name, "admission", p.Admission)
	return *p, nil
}

func (c *Coordinator) rejoinLocked(ctx context.Context, g *Game, p *domain.Player, connID, language string) (domain.Player, error) {
	switch p.Admission {
	case domain.AdmissionRefused:
		return domain.Player{}, domain.ErrAdmissionDenied
	case domain.AdmissionPending:
		g.conns[p.ID] = connID
		if language != "" {
			p.Language = language
		}
		c.notifyPendingLocked(g, p, connID)
		return *p, nil
	default: // admitted: normal reconnect
		g.conns[p.ID] = connID
		p.Active = true
		if language != "" {
			p.Language = language
		}
		c.persist(ctx, g, "save player", c.store.SavePlayer(ctx, *p))
		c.attachAdmittedLocked(g, p, connID)
		return *p, nil
	}
}

// attachAdmittedLocked joins a connection into the gameplay groups and pushes
// full state plus the joined announcement.
func (c *Coordinator) attachAdmittedLocked(g *Game, p *domain.Player, connID string) {
	code := g.session.Code
	c.hub.Join(code, connID, broadcast.GroupAll, broadcast.GroupPlayers)
	c.hub.Direct(code, connID, domain.Event{Type: domain.EventAdmissionStatusChange, Payload: domain.AdmissionPayload{
		PlayerID:  p.ID,
		Name:      p.Name,
		Admission: p.Admission,
	}})
	c.hub.Direct(code, connID, domain.Event{Type: domain.EventStateSnapshot, Payload: g.snapshotLocked()})
	c.hub.Publish(code, broadcast.GroupAll, domain.Event{Type: domain.EventPlayerJoined, Payload: domain.RankedPlayer{
		PlayerID: p.ID,
		Name:     p.Name,
		Avatar:   p.Avatar,
		Score:    p.Score,
	}})
}

// notifyPendingLocked leaves the connection outside the gameplay groups: the
// player gets enough state for a waiting screen, only the host learns who is
// knocking.
func (c *Coordinator) notifyPendingLocked(g *Game, p *domain.Player, connID string) {
	code := g.session.Code
	c.hub.Direct(code, connID, domain.Event{Type: domain.EventAdmissionStatusChange, Payload: domain.AdmissionPayload{
		PlayerID:  p.ID,
		Name:      p.Name,
		Admission: p.Admission,
	}})
	c.hub.Direct(code, connID, domain.Event{Type: domain.EventStateSnapshot, Payload: domain.SnapshotPayload{Session: g.session}})
	c.hub.Publish(code, broadcast.GroupHost, domain.Event{Type: domain.EventAdmissionRequested, Payload: domain.AdmissionPayload{
		PlayerID:  p.ID,
		Name:      p.Name,
		Admission: p.Admission,
	}})
}

// Admit flips a pending player to admitted and wires them into gameplay.
// Refused players can never be admitted.
func (c *Coordinator) Admit(ctx context.Context, code, playerID string) error {
	g, err := c.game(code)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	if p.Admission == domain.AdmissionRefused {
		return domain.ErrInvalidTransition
	}
	if p.Admission == domain.AdmissionAdmitted {
		return nil // idempotent
	}

	p.Admission = domain.AdmissionAdmitted
	p.RemovedAt = nil
	if conn, connected := g.conns[p.ID]; connected {
		p.Active = true
		c.attachAdmittedLocked(g, p, conn)
	}
	c.persist(ctx, g, "save player", c.store.SavePlayer(ctx, *p))
	logging.FromContext(ctx).Infow("player admitted", "code", g.session.Code, "player", p.Name)
	return nil
}

// Refuse permanently bars a player from the session under that name.
func (c *Coordinator) Refuse(ctx context.Context, code, playerID string) error {
	g, err := c.game(code)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	p.Admission = domain.AdmissionRefused
	p.Active = false
	c.persist(ctx, g, "save player", c.store.SavePlayer(ctx, *p))

	if conn, connected := g.conns[p.ID]; connected {
		c.hub.Direct(g.session.Code, conn, domain.Event{Type: domain.EventAdmissionStatusChange, Payload: domain.AdmissionPayload{
			PlayerID:  p.ID,
			Name:      p.Name,
			Admission: p.Admission,
		}})
		c.hub.LeaveAll(g.session.Code, conn)
	}
	logging.FromContext(ctx).Infow("player refused", "code", g.session.Code, "player", p.Name)
	return nil
}

// Remove sets an admitted player back to pending: a moderation pause, not a
// ban. The player keeps their score and may request re-admission.
func (c *Coordinator) Remove(ctx context.Context, code, playerID string) error {
	g, err := c.game(code)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	if p.Admission != domain.AdmissionAdmitted {
		return domain.ErrInvalidTransition
	}

	now := g.now()
	p.Admission = domain.AdmissionPending
	p.Active = false
	p.RemovedAt = &now
	c.persist(ctx, g, "save player", c.store.SavePlayer(ctx, *p))

	payload := domain.AdmissionPayload{PlayerID: p.ID, Name: p.Name, Admission: p.Admission}
	if conn, connected := g.conns[p.ID]; connected {
		c.hub.LeaveAll(g.session.Code, conn)
		c.hub.Direct(g.session.Code, conn, domain.Event{Type: domain.EventPlayerRemoved, Payload: payload})
	}
	c.hub.Publish(g.session.Code, broadcast.GroupAll, domain.Event{Type: domain.EventPlayerRemoved, Payload: payload})
	logging.FromContext(ctx).Infow("player removed", "code", g.session.Code, "player", p.Name)
	return nil
}

// ToggleAutoAdmit flips the session flag and re-broadcasts full state, since
// join behavior changes from here on.
func (c *Coordinator) ToggleAutoAdmit(ctx context.Context, code string, autoAdmit bool) error {
	g, err := c.game(code)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.session.AutoAdmit = autoAdmit
	c.persist(ctx, g, "save session", c.store.SaveSession(ctx, g.session))
	c.hub.Publish(g.session.Code, broadcast.GroupAll, domain.Event{Type: domain.EventStateSnapshot, Payload: g.snapshotLocked()})
	return nil
}

// UpdateLanguage stores a player's language preference and acks with fresh
// state.
func (c *Coordinator) UpdateLanguage(ctx context.Context, code, playerID, language string) error {
	g, err := c.game(code)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	p.Language = language
	c.persist(ctx, g, "save player", c.store.SavePlayer(ctx, *p))
	if conn, connected := g.conns[p.ID]; connected {
		c.hub.Direct(g.session.Code, conn, domain.Event{Type: domain.EventStateSnapshot, Payload: g.snapshotLocked()})
	}
	return nil
}

// sortRanking orders a recovered ranking the same way the live one sorts.
func sortRanking(ranking []domain.RankedPlayer) {
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Score != ranking[j].Score {
			return ranking[i].Score > ranking[j].Score
		}
		return strings.ToLower(ranking[i].Name) < strings.ToLower(ranking[j].Name)
	})
	for i := range ranking {
		ranking[i].Position = i + 1
	}
}
