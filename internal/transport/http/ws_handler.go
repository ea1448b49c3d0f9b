package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"livequiz-service/internal/app"
	"livequiz-service/internal/broadcast"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/logging"
)

const (
	roleHost   = "host"
	rolePlayer = "player"
)

// Gateway upgrades websocket connections and translates between the wire
// protocol and coordinator operations. Every connection declares a role up
// front; the set of accepted actions depends on it.
type Gateway struct {
	coord    *app.Coordinator
	hub      *broadcast.Hub
	upgrader websocket.Upgrader
}

func NewGateway(coord *app.Coordinator, hub *broadcast.Hub) *Gateway {
	return &Gateway{
		coord: coord,
		hub:   hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createGamePayload struct {
	QuizID    string `json:"quizId"`
	AutoAdmit bool   `json:"autoAdmit"`
}

type joinRoomPayload struct {
	Code     string `json:"code"`
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
	// PlayerID reclaims an existing player record on reconnect.
	PlayerID string `json:"playerId,omitempty"`
}

type answerPayload struct {
	QuestionID string   `json:"questionId"`
	AnswerIDs  []string `json:"answerIds"`
}

type playerRefPayload struct {
	PlayerID string `json:"playerId"`
}

type autoAdmitPayload struct {
	AutoAdmit bool `json:"autoAdmit"`
}

type languagePayload struct {
	Language string `json:"language"`
}

type powerUpPayload struct {
	QuestionID     string             `json:"questionId"`
	Type           domain.PowerUpType `json:"type"`
	TargetPlayerID string             `json:"targetPlayerId,omitempty"`
}

type eggClickPayload struct {
	QuestionID string `json:"questionId"`
}

type preloadPayload struct {
	Percentage int    `json:"percentage"`
	Status     string `json:"status"`
}

type viewPayload struct {
	View json.RawMessage `json:"view"`
}

// errorCode maps coordinator sentinels onto stable wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session-not-found"
	case errors.Is(err, domain.ErrPlayerNotFound):
		return "player-not-found"
	case errors.Is(err, domain.ErrQuizNotFound):
		return "quiz-not-found"
	case errors.Is(err, domain.ErrQuestionNotFound):
		return "question-not-found"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid-transition"
	case errors.Is(err, domain.ErrAdmissionDenied):
		return "admission-denied"
	case errors.Is(err, domain.ErrAlreadyAnswered):
		return "already-answered"
	case errors.Is(err, domain.ErrNoPlayers):
		return "no-players"
	case errors.Is(err, domain.ErrPowerUpSpent):
		return "power-up-spent"
	default:
		return "internal"
	}
}

// ServeWS handles one websocket connection for its whole lifetime. A single
// writer goroutine owns the socket for writes; the read loop dispatches
// inbound actions; a pump forwards room broadcasts once the connection is
// bound to a session.
func (gw *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role != roleHost && role != rolePlayer {
		http.Error(w, "role must be host or player", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	log := logging.FromContext(ctx)

	conn, err := gw.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnw("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	send := make(chan domain.Event, 32)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for ev := range send {
			if err := conn.WriteJSON(ev); err != nil {
				log.Debugw("ws write error", "conn", connID, "error", err)
				return
			}
		}
	}()

	// Set once the connection is bound to a session. A failed bind leaves its
	// pump draining toward exit, so shutdown waits on every pump ever started.
	var (
		code        string
		playerID    string
		unsubscribe func()
		pumpsDone   []chan struct{}
	)

	sendErr := func(err error) {
		select {
		case send <- domain.Event{Type: domain.EventError, Payload: domain.ErrorPayload{
			Code:    errorCode(err),
			Message: err.Error(),
		}}:
		case <-closeSignals:
		}
	}

	// bind subscribes the connection to its room's event stream and starts
	// the pump. The coordinator moves the connection between broadcast groups
	// afterwards; the subscription itself is group-agnostic.
	bind := func(sessionCode string) {
		events, cancel := gw.hub.Subscribe(sessionCode, connID)
		code, unsubscribe = sessionCode, cancel
		done := make(chan struct{})
		pumpsDone = append(pumpsDone, done)
		go func() {
			defer close(done)
			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return
					}
					select {
					case send <- ev:
					case <-closeSignals:
						return
					}
				case <-closeSignals:
					return
				}
			}
		}()
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		if code == "" {
			// Only binding actions are valid before the connection belongs to
			// a session.
			switch {
			case role == roleHost && inbound.Type == "create-game":
				var p createGamePayload
				if err := json.Unmarshal(inbound.Payload, &p); err != nil {
					sendErr(errors.New("invalid create-game payload"))
					continue
				}
				session, err := gw.coord.CreateGame(ctx, p.QuizID, p.AutoAdmit)
				if err != nil {
					sendErr(err)
					continue
				}
				bind(session.Code)
				send <- domain.Event{Type: domain.EventGameCreated, Payload: session}
				if err := gw.coord.HostAttach(ctx, session.Code, connID); err != nil {
					sendErr(err)
				}
			case role == roleHost && inbound.Type == "join-room":
				var p joinRoomPayload
				if err := json.Unmarshal(inbound.Payload, &p); err != nil {
					sendErr(errors.New("invalid join-room payload"))
					continue
				}
				normalized := app.NormalizeCode(p.Code)
				bind(normalized)
				if err := gw.coord.HostAttach(ctx, normalized, connID); err != nil {
					unsubscribe()
					code, unsubscribe = "", nil
					sendErr(err)
				}
			case role == rolePlayer && inbound.Type == "join":
				var p joinRoomPayload
				if err := json.Unmarshal(inbound.Payload, &p); err != nil {
					sendErr(errors.New("invalid join payload"))
					continue
				}
				normalized := app.NormalizeCode(p.Code)
				bind(normalized)
				player, err := gw.coord.Join(ctx, normalized, connID, p.Name, p.Language, p.PlayerID)
				if err != nil {
					unsubscribe()
					code, unsubscribe = "", nil
					sendErr(err)
					continue
				}
				playerID = player.ID
			default:
				sendErr(errors.New("join a session first"))
			}
			continue
		}

		if role == roleHost {
			gw.dispatchHost(ctx, code, inbound, sendErr)
		} else {
			gw.dispatchPlayer(ctx, code, playerID, inbound, sendErr)
		}
	}

	if code != "" {
		gw.coord.Disconnect(context.WithoutCancel(ctx), code, connID)
		gw.hub.LeaveAll(code, connID)
		unsubscribe()
	}

	close(closeSignals)
	for _, done := range pumpsDone {
		<-done
	}
	close(send)
	<-writerDone
}

func (gw *Gateway) dispatchHost(ctx context.Context, code string, inbound inboundMessage, sendErr func(error)) {
	var err error
	switch inbound.Type {
	case "start-game":
		err = gw.coord.Start(ctx, code)
	case "advance-question":
		err = gw.coord.Advance(ctx, code)
	case "skip-timer":
		err = gw.coord.SkipTimer(ctx, code)
	case "reveal-answers":
		err = gw.coord.RevealAnswers(ctx, code)
	case "show-scoreboard":
		err = gw.coord.ShowScoreboard(ctx, code)
	case "end-game":
		err = gw.coord.EndGame(ctx, code)
	case "cancel-game":
		err = gw.coord.Cancel(ctx, code)
	case "admit-player":
		var p playerRefPayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			err = gw.coord.Admit(ctx, code, p.PlayerID)
		}
	case "refuse-player":
		var p playerRefPayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			err = gw.coord.Refuse(ctx, code, p.PlayerID)
		}
	case "remove-player":
		var p playerRefPayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			err = gw.coord.Remove(ctx, code, p.PlayerID)
		}
	case "toggle-auto-admit":
		var p autoAdmitPayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			err = gw.coord.ToggleAutoAdmit(ctx, code, p.AutoAdmit)
		}
	case "request-player-views":
		err = gw.coord.RequestPlayerViews(ctx, code)
	default:
		err = errors.New("unsupported message type")
	}
	if err != nil {
		sendErr(err)
	}
}

func (gw *Gateway) dispatchPlayer(ctx context.Context, code, playerID string, inbound inboundMessage, sendErr func(error)) {
	var err error
	switch inbound.Type {
	case "answer":
		var p answerPayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			_, err = gw.coord.SubmitAnswer(ctx, code, playerID, p.QuestionID, p.AnswerIDs)
		}
	case "use-power-up":
		var p powerUpPayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			_, err = gw.coord.UsePowerUp(ctx, code, playerID, p.QuestionID, p.Type, p.TargetPlayerID)
		}
	case "easter-egg-click":
		var p eggClickPayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			err = gw.coord.EasterEggClick(ctx, code, playerID, p.QuestionID)
		}
	case "update-language":
		var p languagePayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			err = gw.coord.UpdateLanguage(ctx, code, playerID, p.Language)
		}
	case "preload-progress":
		var p preloadPayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			err = gw.coord.PreloadProgress(ctx, code, playerID, p.Percentage, p.Status)
		}
	case "view-update":
		var p viewPayload
		if err = json.Unmarshal(inbound.Payload, &p); err == nil {
			err = gw.coord.ViewUpdate(ctx, code, playerID, p.View)
		}
	default:
		err = errors.New("unsupported message type")
	}
	if err != nil {
		sendErr(err)
	}
}
